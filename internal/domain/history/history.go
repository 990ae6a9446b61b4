package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/gameshelf/gameshelf/internal/domain/tracking"
)

// Entry is one accepted state transition for a (user, game) key. Entries are
// write-once; the ledger is never updated or deleted.
type Entry struct {
	ID            int64               `json:"id"`
	UserID        uuid.UUID           `json:"userId"`
	GameKey       int64               `json:"gameKey"`
	PreviousState *tracking.StateKind `json:"previousState,omitempty"`
	NewState      tracking.StateKind  `json:"newState"`
	ChangedAt     time.Time           `json:"changedAt"`
}
