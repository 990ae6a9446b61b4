package history

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the read path over the state history ledger. Writes go
// through the tracking store so entry and record commit atomically.
type Repository interface {
	// Timeline returns the full transition history for a (user, game) key,
	// ordered by changed_at ascending. Pure query, restartable.
	Timeline(ctx context.Context, userID uuid.UUID, gameKey int64) ([]Entry, error)

	// ForUser returns a user's most recent transitions across all games.
	ForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Entry, error)
}
