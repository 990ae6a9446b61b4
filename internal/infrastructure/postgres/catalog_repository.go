package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gameshelf/gameshelf/internal/domain/catalog"
)

// CatalogRepository implements catalog.Repository over the games table.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) Get(ctx context.Context, gameKey int64) (*catalog.Game, error) {
	var g catalog.Game
	err := r.pool.QueryRow(ctx, `
		SELECT game_key, name, cover_url, release_date, rating, created_at
		FROM games WHERE game_key=$1
	`, gameKey).Scan(&g.GameKey, &g.Name, &g.CoverURL, &g.ReleaseDate, &g.Rating, &g.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, catalog.ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *CatalogRepository) Exists(ctx context.Context, gameKey int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM games WHERE game_key=$1)
	`, gameKey).Scan(&exists)
	return exists, err
}
