package tracking

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the interface for tracking set persistence. Apply and Remove
// run their whole check-and-act sequence inside one storage transaction,
// serialized per (user, game) key, so concurrent writers for the same key
// cannot interleave their cross-set lookups.
type Store interface {
	// Apply runs the exclusivity guard for one write: acquire the key lock,
	// consult the other sets, reject or promote, perform the write and append
	// the history entry. Returns *StateConflictError on rejection.
	Apply(ctx context.Context, change Change) (*Applied, error)

	// Remove deletes the user's record(s) for a game. A nil kind removes from
	// whichever set holds the key. Returns ErrNotTracked when nothing matched.
	Remove(ctx context.Context, userID uuid.UUID, gameKey int64, kind *StateKind) ([]StateKind, error)

	// Records returns every tracking record held for the key across the three
	// sets. More than one result means the invariant is violated (legacy data).
	Records(ctx context.Context, userID uuid.UUID, gameKey int64) ([]TrackingRecord, error)

	// ListForUser returns all of a user's records in one set.
	ListForUser(ctx context.Context, userID uuid.UUID, kind StateKind, limit, offset int) ([]TrackingRecord, error)
}
