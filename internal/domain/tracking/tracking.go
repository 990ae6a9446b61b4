package tracking

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StateKind identifies one of the three tracking sets. The numeric order is
// the conflict priority: Progress > Collection > Wishlist.
type StateKind int

const (
	KindWishlist   StateKind = 0
	KindCollection StateKind = 1
	KindProgress   StateKind = 2
)

// String returns the string representation of StateKind
func (k StateKind) String() string {
	switch k {
	case KindWishlist:
		return "Wishlist"
	case KindCollection:
		return "Collection"
	case KindProgress:
		return "Progress"
	default:
		return "UNKNOWN"
	}
}

// ParseStateKind parses a string to StateKind
func ParseStateKind(s string) (StateKind, error) {
	switch s {
	case "Wishlist":
		return KindWishlist, nil
	case "Collection":
		return KindCollection, nil
	case "Progress":
		return KindProgress, nil
	default:
		return KindWishlist, fmt.Errorf("invalid state kind: %s", s)
	}
}

// HigherPriority reports whether k outranks other.
func (k StateKind) HigherPriority(other StateKind) bool {
	return k > other
}

// TrackingRecord is one row of a tracking set. Wishlist and Collection rows
// carry AddedAt; Progress rows carry the started/completed flags and their
// timestamps. GameKey is the external catalog identifier, not a row id, so
// records survive catalog re-keying.
type TrackingRecord struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"userId"`
	GameKey     int64      `json:"gameKey"`
	Kind        StateKind  `json:"kind"`
	AddedAt     *time.Time `json:"addedAt,omitempty"`
	Started     bool       `json:"started,omitempty"`
	Completed   bool       `json:"completed,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// AddedTime returns the timestamp used to order records of the same kind,
// newest wins. Progress rows fall back through started/completed times.
func (r *TrackingRecord) AddedTime() time.Time {
	if r.AddedAt != nil {
		return *r.AddedAt
	}
	if r.StartedAt != nil {
		return *r.StartedAt
	}
	if r.CompletedAt != nil {
		return *r.CompletedAt
	}
	return r.CreatedAt
}

// WriteOptions carries per-call write behavior. Bypass skips exclusivity
// enforcement for this one write only.
type WriteOptions struct {
	Bypass bool
}

// Change is a requested write against one tracking set.
type Change struct {
	UserID    uuid.UUID
	GameKey   int64
	Target    StateKind
	Started   bool
	Completed bool
	At        time.Time
	Options   WriteOptions
}

// Applied describes an accepted write.
type Applied struct {
	UserID    uuid.UUID  `json:"userId"`
	GameKey   int64      `json:"gameKey"`
	Previous  *StateKind `json:"previous,omitempty"`
	New       StateKind  `json:"new"`
	ChangedAt time.Time  `json:"changedAt"`
	Promoted  bool       `json:"promoted"`
}

// Action is the outcome of a guard decision.
type Action int

const (
	// ActionProceed inserts a new record; no conflicting record exists.
	ActionProceed Action = iota
	// ActionRefresh updates the record already held in the target set.
	ActionRefresh
	// ActionPromote deletes lower-priority records and inserts the new one.
	ActionPromote
	// ActionReject refuses the write; a higher-priority record exists.
	ActionReject
)

// Decision is the guard's verdict for a single write.
type Decision struct {
	Action   Action
	Remove   []StateKind
	Blocking StateKind
	Previous *StateKind
}

// Decide applies the priority rule to the set kinds currently held for a
// (user, game) key. With the invariant holding there is at most one existing
// kind, but legacy rows may present several; all lower kinds are demoted
// together in that case.
func Decide(existing []StateKind, target StateKind) Decision {
	var has [3]bool
	for _, k := range existing {
		has[k] = true
	}

	for k := KindProgress; k > target; k-- {
		if has[k] {
			return Decision{Action: ActionReject, Blocking: k}
		}
	}

	if has[target] {
		prev := target
		d := Decision{Action: ActionRefresh, Previous: &prev}
		for k := target - 1; k >= KindWishlist; k-- {
			if has[k] {
				d.Action = ActionPromote
				d.Remove = append(d.Remove, k)
			}
		}
		return d
	}

	var d Decision
	d.Action = ActionProceed
	for k := target - 1; k >= KindWishlist; k-- {
		if has[k] {
			if d.Previous == nil {
				prev := k
				d.Previous = &prev
			}
			d.Action = ActionPromote
			d.Remove = append(d.Remove, k)
		}
	}
	return d
}

// Errors
var (
	ErrStateConflict = errors.New("higher priority state exists")
	ErrNotTracked    = errors.New("game is not tracked")
	ErrUnknownKind   = errors.New("unknown state kind")
)

// StateConflictError is returned when a write would shadow a higher-priority
// record for the same (user, game) key.
type StateConflictError struct {
	UserID   uuid.UUID
	GameKey  int64
	Target   StateKind
	Blocking StateKind
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot add game %d to %s: already tracked as %s", e.GameKey, e.Target, e.Blocking)
}

func (e *StateConflictError) Unwrap() error {
	return ErrStateConflict
}
