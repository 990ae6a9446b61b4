package catalog

import "context"

// Repository defines read access to the game catalog.
type Repository interface {
	Get(ctx context.Context, gameKey int64) (*Game, error)
	Exists(ctx context.Context, gameKey int64) (bool, error)
}
