package resolution

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gameshelf/gameshelf/internal/domain/tracking"
)

// Resolution reasons, written verbatim into the conflict log.
const (
	ReasonHigherPriority = "higher priority state exists"
	ReasonDuplicate      = "duplicate, most recent retained"
)

// LogEntry is one immutable conflict resolution record. Created only by the
// resolver, exactly one per deleted record.
type LogEntry struct {
	ID            int64              `json:"id"`
	UserID        uuid.UUID          `json:"userId"`
	GameKey       int64              `json:"gameKey"`
	ConflictType  string             `json:"conflictType"`
	OriginalState tracking.StateKind `json:"originalState"`
	ResolvedState tracking.StateKind `json:"resolvedState"`
	Reason        string             `json:"reason"`
	ResolvedAt    time.Time          `json:"resolvedAt"`
}

// ConflictType builds the pairwise label, removed kind first.
func ConflictType(removed, retained tracking.StateKind) string {
	return fmt.Sprintf("%s-%s", removed, retained)
}

// PairOverlap reports one pairwise overlap between two tracking sets.
type PairOverlap struct {
	Count int         `json:"count"`
	Users []uuid.UUID `json:"users"`
}

// AuditReport is the result of a full conflict scan. All counts are zero
// once the invariant holds.
type AuditReport struct {
	WishlistCollection PairOverlap `json:"wishlistCollection"`
	CollectionProgress PairOverlap `json:"collectionProgress"`
	WishlistProgress   PairOverlap `json:"wishlistProgress"`
	Duplicates         int         `json:"duplicates"`
	GeneratedAt        time.Time   `json:"generatedAt"`
}

// Clean reports whether the scan found no conflicts at all.
func (r *AuditReport) Clean() bool {
	return r.WishlistCollection.Count == 0 &&
		r.CollectionProgress.Count == 0 &&
		r.WishlistProgress.Count == 0 &&
		r.Duplicates == 0
}

// Snapshot is the metadata row for one pre-resolution backup. The copied
// tracking rows live in dedicated backup tables keyed by SnapshotID.
type Snapshot struct {
	SnapshotID     uuid.UUID `json:"snapshotId"`
	CreatedAt      time.Time `json:"createdAt"`
	WishlistRows   int64     `json:"wishlistRows"`
	CollectionRows int64     `json:"collectionRows"`
	ProgressRows   int64     `json:"progressRows"`
	Verified       bool      `json:"verified"`
}

// TotalRows returns the snapshot's total row count across all three sets.
func (s *Snapshot) TotalRows() int64 {
	return s.WishlistRows + s.CollectionRows + s.ProgressRows
}

// Result summarizes one resolver run.
type Result struct {
	PairsResolved     int `json:"pairsResolved"`
	LogEntriesWritten int `json:"logEntriesWritten"`
	Chunks            int `json:"chunks"`
}

// Removal is one planned deletion for a conflicting (user, game) key.
type Removal struct {
	Record       tracking.TrackingRecord
	ConflictType string
	Reason       string
}

// Plan decides, for all records held under one (user, game) key, which record
// survives and which are removed. Cross-kind conflicts fall to priority;
// same-kind duplicates keep the most recently added row. The input must hold
// at least one record; a single record yields no removals.
func Plan(records []tracking.TrackingRecord) (winner tracking.TrackingRecord, removals []Removal) {
	sorted := make([]tracking.TrackingRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind > sorted[j].Kind
		}
		return sorted[i].AddedTime().After(sorted[j].AddedTime())
	})

	winner = sorted[0]
	for _, r := range sorted[1:] {
		reason := ReasonHigherPriority
		if r.Kind == winner.Kind {
			reason = ReasonDuplicate
		}
		removals = append(removals, Removal{
			Record:       r,
			ConflictType: ConflictType(r.Kind, winner.Kind),
			Reason:       reason,
		})
	}
	return winner, removals
}

// Errors
var (
	ErrSnapshotNotFound    = errors.New("snapshot not found")
	ErrSnapshotNotVerified = errors.New("snapshot is not verified")
	ErrBackupFailed        = errors.New("backup failed")
)

// BackupError wraps a failure while creating or verifying a snapshot. Any
// backup failure is fatal to the maintenance pipeline.
type BackupError struct {
	Stage string
	Err   error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("backup failed during %s: %v", e.Stage, e.Err)
}

func (e *BackupError) Unwrap() error {
	return ErrBackupFailed
}
