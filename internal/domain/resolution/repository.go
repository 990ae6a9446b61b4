package resolution

import (
	"context"

	"github.com/google/uuid"
)

// Store defines persistence for the maintenance pipeline: conflict scanning,
// snapshots, chunked resolution and rollback.
type Store interface {
	// Audit scans the three tracking sets for overlapping (user, game) keys
	// and same-set duplicates. Pure read, safe at any time.
	Audit(ctx context.Context) (*AuditReport, error)

	// CreateSnapshot copies every tracking row into the backup tables, tagged
	// with a fresh snapshot id, and verifies the copied row counts against the
	// live sets inside the same transaction.
	CreateSnapshot(ctx context.Context) (*Snapshot, error)

	// GetSnapshot loads snapshot metadata. Returns ErrSnapshotNotFound when
	// the id is unknown.
	GetSnapshot(ctx context.Context, snapshotID uuid.UUID) (*Snapshot, error)

	// ResolveChunk resolves up to limit conflicting (user, game) pairs in one
	// transaction: per pair, the losing records are deleted and exactly one
	// log entry per deletion is written. Returns the number of pairs resolved
	// and log entries written; (0, 0) means no conflicts remain.
	ResolveChunk(ctx context.Context, limit int) (pairs, entries int, err error)

	// ConflictLog returns resolution log entries, newest first.
	ConflictLog(ctx context.Context, limit, offset int) ([]LogEntry, error)

	// Enforcement reports whether guard enforcement is currently enabled.
	Enforcement(ctx context.Context) (bool, error)

	// SetEnforcement toggles guard enforcement. Idempotent: changed is false
	// when the flag already had the requested value.
	SetEnforcement(ctx context.Context, enabled bool) (changed bool, err error)

	// RestoreSnapshot deletes the live tracking rows, restores the snapshot's
	// rows verbatim and verifies restored counts against the snapshot, all in
	// one transaction. Enforcement is disabled as part of the restore.
	RestoreSnapshot(ctx context.Context, snapshotID uuid.UUID) (*Snapshot, error)
}
