package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gameshelf/gameshelf/internal/domain/history"
	"github.com/gameshelf/gameshelf/internal/domain/tracking"
)

// HistoryStore implements history.Repository. It is read-only: ledger rows
// are appended by TrackingStore inside the guarded write transaction.
type HistoryStore struct {
	pool *pgxpool.Pool
}

func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

func (s *HistoryStore) Timeline(ctx context.Context, userID uuid.UUID, gameKey int64) ([]history.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, game_key, previous_state, new_state, changed_at
		FROM game_state_history
		WHERE user_id=$1 AND game_key=$2
		ORDER BY changed_at ASC, id ASC
	`, userID, gameKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistoryEntries(rows)
}

func (s *HistoryStore) ForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]history.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, game_key, previous_state, new_state, changed_at
		FROM game_state_history
		WHERE user_id=$1
		ORDER BY changed_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistoryEntries(rows)
}

func scanHistoryEntries(rows pgx.Rows) ([]history.Entry, error) {
	var out []history.Entry
	for rows.Next() {
		var e history.Entry
		var prevText *string
		var newText string
		if err := rows.Scan(&e.ID, &e.UserID, &e.GameKey, &prevText, &newText, &e.ChangedAt); err != nil {
			return nil, err
		}
		if prevText != nil {
			kind, err := tracking.ParseStateKind(*prevText)
			if err != nil {
				return nil, err
			}
			e.PreviousState = &kind
		}
		kind, err := tracking.ParseStateKind(newText)
		if err != nil {
			return nil, err
		}
		e.NewState = kind
		out = append(out, e)
	}
	return out, rows.Err()
}
