package maintenance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gameshelf/gameshelf/internal/domain/resolution"
)

// Service runs the operator maintenance pipeline: audit, snapshot, chunked
// conflict resolution, and rollback.
type Service struct {
	store     resolution.Store
	chunkSize int
	logger    zerolog.Logger
}

func NewService(store resolution.Store, chunkSize int, logger zerolog.Logger) *Service {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	return &Service{
		store:     store,
		chunkSize: chunkSize,
		logger:    logger.With().Str("service", "maintenance").Logger(),
	}
}

// Audit scans for invariant violations. Pure read, safe at any time.
func (s *Service) Audit(ctx context.Context) (*resolution.AuditReport, error) {
	report, err := s.store.Audit(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit failed: %w", err)
	}
	s.logger.Info().
		Int("wishlistCollection", report.WishlistCollection.Count).
		Int("collectionProgress", report.CollectionProgress.Count).
		Int("wishlistProgress", report.WishlistProgress.Count).
		Int("duplicates", report.Duplicates).
		Msg("conflict audit complete")
	return report, nil
}

// Snapshot backs up all three tracking sets. The returned snapshot is
// row-count verified; any failure is fatal to a subsequent Resolve.
func (s *Service) Snapshot(ctx context.Context) (*resolution.Snapshot, error) {
	snap, err := s.store.CreateSnapshot(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("backup failed")
		return nil, err
	}
	s.logger.Info().
		Str("snapshotId", snap.SnapshotID.String()).
		Int64("rows", snap.TotalRows()).
		Msg("backup snapshot created and verified")
	return snap, nil
}

// Resolve collapses every conflicting (user, game) pair to one surviving
// record, in bounded chunks, one transaction per chunk. It refuses to run
// without a verified snapshot. Idempotent: a clean second run resolves zero
// pairs and writes zero log entries.
func (s *Service) Resolve(ctx context.Context, snapshotID uuid.UUID) (*resolution.Result, error) {
	snap, err := s.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("resolve refused: %w", err)
	}
	if !snap.Verified {
		return nil, fmt.Errorf("resolve refused: %w", resolution.ErrSnapshotNotVerified)
	}

	result := &resolution.Result{}
	for {
		if err := ctx.Err(); err != nil {
			// Committed chunks stay resolved and logged; the rest is picked up
			// by the next run.
			s.logger.Warn().
				Int("pairsResolved", result.PairsResolved).
				Msg("resolution cancelled between chunks")
			return result, err
		}

		pairs, entries, err := s.store.ResolveChunk(ctx, s.chunkSize)
		if err != nil {
			return result, fmt.Errorf("resolution chunk failed: %w", err)
		}
		if pairs == 0 {
			break
		}
		result.PairsResolved += pairs
		result.LogEntriesWritten += entries
		result.Chunks++
		s.logger.Info().
			Int("pairs", pairs).
			Int("logEntries", entries).
			Msg("resolution chunk committed")
	}

	s.logger.Info().
		Int("pairsResolved", result.PairsResolved).
		Int("logEntriesWritten", result.LogEntriesWritten).
		Int("chunks", result.Chunks).
		Msg("conflict resolution complete")
	return result, nil
}

// PipelineReport is the outcome of one full cleanup pass.
type PipelineReport struct {
	Before     *resolution.AuditReport `json:"before"`
	Snapshot   *resolution.Snapshot    `json:"snapshot"`
	Resolution *resolution.Result      `json:"resolution"`
	After      *resolution.AuditReport `json:"after"`
}

// RunPipeline executes the fixed maintenance order: audit, snapshot, resolve,
// audit again to confirm zero conflicts.
func (s *Service) RunPipeline(ctx context.Context) (*PipelineReport, error) {
	before, err := s.Audit(ctx)
	if err != nil {
		return nil, err
	}
	report := &PipelineReport{Before: before}
	if before.Clean() {
		report.After = before
		return report, nil
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return report, err
	}
	report.Snapshot = snap

	result, err := s.Resolve(ctx, snap.SnapshotID)
	report.Resolution = result
	if err != nil {
		return report, err
	}

	after, err := s.Audit(ctx)
	if err != nil {
		return report, err
	}
	report.After = after
	if !after.Clean() {
		return report, fmt.Errorf("post-resolution audit still reports conflicts")
	}
	return report, nil
}

// SoftRollback disables guard enforcement without touching data. Calling it
// when enforcement is already off is a no-op, not an error.
func (s *Service) SoftRollback(ctx context.Context) (bool, error) {
	changed, err := s.store.SetEnforcement(ctx, false)
	if err != nil {
		return false, err
	}
	if changed {
		s.logger.Warn().Msg("guard enforcement disabled")
	} else {
		s.logger.Info().Msg("guard enforcement already disabled")
	}
	return changed, nil
}

// Reinstate re-enables guard enforcement after a soft rollback. Idempotent.
func (s *Service) Reinstate(ctx context.Context) (bool, error) {
	changed, err := s.store.SetEnforcement(ctx, true)
	if err != nil {
		return false, err
	}
	if changed {
		s.logger.Info().Msg("guard enforcement enabled")
	}
	return changed, nil
}

// Enforcement reports the current guard state.
func (s *Service) Enforcement(ctx context.Context) (bool, error) {
	return s.store.Enforcement(ctx)
}

// HardRollback restores the snapshot's rows verbatim and disables
// enforcement. It DESTROYS every tracking write made after the snapshot;
// run it only in a maintenance window.
func (s *Service) HardRollback(ctx context.Context, snapshotID uuid.UUID) (*resolution.Snapshot, error) {
	snap, err := s.store.RestoreSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("hard rollback failed: %w", err)
	}
	s.logger.Warn().
		Str("snapshotId", snap.SnapshotID.String()).
		Int64("rows", snap.TotalRows()).
		Msg("hard rollback complete; writes made after the snapshot are gone")
	return snap, nil
}

// ConflictLog returns resolver decisions, newest first.
func (s *Service) ConflictLog(ctx context.Context, limit, offset int) ([]resolution.LogEntry, error) {
	return s.store.ConflictLog(ctx, limit, offset)
}
