package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gameshelf/gameshelf/internal/domain/resolution"
	"github.com/gameshelf/gameshelf/internal/domain/tracking"
)

// ResolutionStore implements resolution.Store.
type ResolutionStore struct {
	pool *pgxpool.Pool
}

func NewResolutionStore(pool *pgxpool.Pool) *ResolutionStore {
	return &ResolutionStore{pool: pool}
}

func (s *ResolutionStore) Audit(ctx context.Context) (*resolution.AuditReport, error) {
	report := &resolution.AuditReport{GeneratedAt: time.Now().UTC()}

	overlaps := []struct {
		left, right string
		out         *resolution.PairOverlap
	}{
		{"user_wishlist", "user_collection", &report.WishlistCollection},
		{"user_collection", "user_game_progress", &report.CollectionProgress},
		{"user_wishlist", "user_game_progress", &report.WishlistProgress},
	}
	for _, o := range overlaps {
		rows, err := s.pool.Query(ctx, fmt.Sprintf(`
			SELECT user_id, game_key FROM %s
			INTERSECT
			SELECT user_id, game_key FROM %s
		`, o.left, o.right))
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s/%s overlap: %w", o.left, o.right, err)
		}
		seen := make(map[uuid.UUID]struct{})
		for rows.Next() {
			var userID uuid.UUID
			var gameKey int64
			if err := rows.Scan(&userID, &gameKey); err != nil {
				rows.Close()
				return nil, err
			}
			o.out.Count++
			if _, ok := seen[userID]; !ok {
				seen[userID] = struct{}{}
				o.out.Users = append(o.out.Users, userID)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT user_id, game_key FROM user_wishlist GROUP BY 1,2 HAVING COUNT(*) > 1
			UNION ALL
			SELECT user_id, game_key FROM user_collection GROUP BY 1,2 HAVING COUNT(*) > 1
			UNION ALL
			SELECT user_id, game_key FROM user_game_progress GROUP BY 1,2 HAVING COUNT(*) > 1
		) d
	`).Scan(&report.Duplicates)
	if err != nil {
		return nil, fmt.Errorf("failed to count duplicates: %w", err)
	}

	return report, nil
}

func (s *ResolutionStore) CreateSnapshot(ctx context.Context) (*resolution.Snapshot, error) {
	// Repeatable read keeps the copy and the verification counts on the same
	// database snapshot even with live traffic.
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, &resolution.BackupError{Stage: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	snap := &resolution.Snapshot{
		SnapshotID: uuid.New(),
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO backup_snapshots (snapshot_id, created_at) VALUES ($1,$2)
	`, snap.SnapshotID, snap.CreatedAt); err != nil {
		return nil, &resolution.BackupError{Stage: "create", Err: err}
	}

	copies := []struct {
		sql  string
		live string
		out  *int64
	}{
		{`INSERT INTO backup_user_wishlist (snapshot_id, id, user_id, game_key, added_at, created_at)
			SELECT $1, id, user_id, game_key, added_at, created_at FROM user_wishlist`,
			"user_wishlist", &snap.WishlistRows},
		{`INSERT INTO backup_user_collection (snapshot_id, id, user_id, game_key, added_at, created_at)
			SELECT $1, id, user_id, game_key, added_at, created_at FROM user_collection`,
			"user_collection", &snap.CollectionRows},
		{`INSERT INTO backup_user_game_progress (snapshot_id, id, user_id, game_key, started, completed, started_at, completed_at, created_at)
			SELECT $1, id, user_id, game_key, started, completed, started_at, completed_at, created_at FROM user_game_progress`,
			"user_game_progress", &snap.ProgressRows},
	}
	for _, c := range copies {
		tag, err := tx.Exec(ctx, c.sql, snap.SnapshotID)
		if err != nil {
			return nil, &resolution.BackupError{Stage: "copy " + c.live, Err: err}
		}
		*c.out = tag.RowsAffected()

		var live int64
		if err := tx.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.live)).Scan(&live); err != nil {
			return nil, &resolution.BackupError{Stage: "verify " + c.live, Err: err}
		}
		if live != *c.out {
			return nil, &resolution.BackupError{
				Stage: "verify " + c.live,
				Err:   fmt.Errorf("copied %d rows, live set has %d", *c.out, live),
			}
		}
	}

	snap.Verified = true
	if _, err := tx.Exec(ctx, `
		UPDATE backup_snapshots
		SET wishlist_rows=$2, collection_rows=$3, progress_rows=$4, verified=TRUE
		WHERE snapshot_id=$1
	`, snap.SnapshotID, snap.WishlistRows, snap.CollectionRows, snap.ProgressRows); err != nil {
		return nil, &resolution.BackupError{Stage: "finalize", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &resolution.BackupError{Stage: "commit", Err: err}
	}
	return snap, nil
}

func (s *ResolutionStore) GetSnapshot(ctx context.Context, snapshotID uuid.UUID) (*resolution.Snapshot, error) {
	var snap resolution.Snapshot
	err := s.pool.QueryRow(ctx, `
		SELECT snapshot_id, created_at, wishlist_rows, collection_rows, progress_rows, verified
		FROM backup_snapshots WHERE snapshot_id=$1
	`, snapshotID).Scan(&snap.SnapshotID, &snap.CreatedAt, &snap.WishlistRows, &snap.CollectionRows, &snap.ProgressRows, &snap.Verified)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, resolution.ErrSnapshotNotFound
		}
		return nil, err
	}
	return &snap, nil
}

func (s *ResolutionStore) ResolveChunk(ctx context.Context, limit int) (int, int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin chunk: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT user_id, game_key FROM (
			SELECT user_id, game_key FROM user_wishlist
			UNION ALL
			SELECT user_id, game_key FROM user_collection
			UNION ALL
			SELECT user_id, game_key FROM user_game_progress
		) t
		GROUP BY user_id, game_key
		HAVING COUNT(*) > 1
		LIMIT $1
	`, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to scan conflicts: %w", err)
	}
	type pairKey struct {
		userID  uuid.UUID
		gameKey int64
	}
	var pairs []pairKey
	for rows.Next() {
		var p pairKey
		if err := rows.Scan(&p.userID, &p.gameKey); err != nil {
			rows.Close()
			return 0, 0, err
		}
		pairs = append(pairs, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}
	if len(pairs) == 0 {
		return 0, 0, nil
	}

	resolved := 0
	entries := 0
	resolvedAt := time.Now().UTC()
	for _, p := range pairs {
		// Same serialization point as the guard, held until the chunk commits,
		// so a live write cannot interleave with this pair's cleanup.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(p.userID, p.gameKey)); err != nil {
			return 0, 0, fmt.Errorf("failed to acquire key lock: %w", err)
		}

		recs, err := recordsInTx(ctx, tx, p.userID, p.gameKey)
		if err != nil {
			return 0, 0, err
		}
		if len(recs) < 2 {
			// Resolved by a racing guard write between the scan and the lock.
			continue
		}

		winner, removals := resolution.Plan(recs)
		resolved++
		for _, rem := range removals {
			if _, err := tx.Exec(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, trackingTable(rem.Record.Kind)),
				rem.Record.ID); err != nil {
				return 0, 0, fmt.Errorf("failed to delete conflicting record: %w", err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO state_conflict_resolutions
				(user_id, game_key, conflict_type, original_state, resolved_state, reason, resolved_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
			`, p.userID, p.gameKey, rem.ConflictType, rem.Record.Kind.String(), winner.Kind.String(), rem.Reason, resolvedAt); err != nil {
				return 0, 0, fmt.Errorf("failed to write conflict log entry: %w", err)
			}
			entries++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit chunk: %w", err)
	}
	// Pairs that raced away are not counted; anything left past this chunk's
	// scan limit is found by the next run.
	return resolved, entries, nil
}

func (s *ResolutionStore) ConflictLog(ctx context.Context, limit, offset int) ([]resolution.LogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, game_key, conflict_type, original_state, resolved_state, reason, resolved_at
		FROM state_conflict_resolutions
		ORDER BY resolved_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []resolution.LogEntry
	for rows.Next() {
		var e resolution.LogEntry
		var origText, resText string
		if err := rows.Scan(&e.ID, &e.UserID, &e.GameKey, &e.ConflictType, &origText, &resText, &e.Reason, &e.ResolvedAt); err != nil {
			return nil, err
		}
		orig, err := tracking.ParseStateKind(origText)
		if err != nil {
			return nil, err
		}
		res, err := tracking.ParseStateKind(resText)
		if err != nil {
			return nil, err
		}
		e.OriginalState = orig
		e.ResolvedState = res
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *ResolutionStore) Enforcement(ctx context.Context) (bool, error) {
	var enabled bool
	err := s.pool.QueryRow(ctx, `SELECT enforcement_enabled FROM guard_settings WHERE id=1`).Scan(&enabled)
	if err != nil {
		return false, fmt.Errorf("failed to read guard settings: %w", err)
	}
	return enabled, nil
}

func (s *ResolutionStore) SetEnforcement(ctx context.Context, enabled bool) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE guard_settings SET enforcement_enabled=$1, updated_at=NOW()
		WHERE id=1 AND enforcement_enabled <> $1
	`, enabled)
	if err != nil {
		return false, fmt.Errorf("failed to update guard settings: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *ResolutionStore) RestoreSnapshot(ctx context.Context, snapshotID uuid.UUID) (*resolution.Snapshot, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin restore: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var snap resolution.Snapshot
	err = tx.QueryRow(ctx, `
		SELECT snapshot_id, created_at, wishlist_rows, collection_rows, progress_rows, verified
		FROM backup_snapshots WHERE snapshot_id=$1
	`, snapshotID).Scan(&snap.SnapshotID, &snap.CreatedAt, &snap.WishlistRows, &snap.CollectionRows, &snap.ProgressRows, &snap.Verified)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, resolution.ErrSnapshotNotFound
		}
		return nil, err
	}
	if !snap.Verified {
		return nil, resolution.ErrSnapshotNotVerified
	}

	restores := []struct {
		clear, restore string
		want           int64
	}{
		{`DELETE FROM user_wishlist`,
			`INSERT INTO user_wishlist (id, user_id, game_key, added_at, created_at)
				SELECT id, user_id, game_key, added_at, created_at
				FROM backup_user_wishlist WHERE snapshot_id=$1`,
			snap.WishlistRows},
		{`DELETE FROM user_collection`,
			`INSERT INTO user_collection (id, user_id, game_key, added_at, created_at)
				SELECT id, user_id, game_key, added_at, created_at
				FROM backup_user_collection WHERE snapshot_id=$1`,
			snap.CollectionRows},
		{`DELETE FROM user_game_progress`,
			`INSERT INTO user_game_progress (id, user_id, game_key, started, completed, started_at, completed_at, created_at)
				SELECT id, user_id, game_key, started, completed, started_at, completed_at, created_at
				FROM backup_user_game_progress WHERE snapshot_id=$1`,
			snap.ProgressRows},
	}
	for _, r := range restores {
		if _, err := tx.Exec(ctx, r.clear); err != nil {
			return nil, fmt.Errorf("failed to clear live set: %w", err)
		}
		tag, err := tx.Exec(ctx, r.restore, snapshotID)
		if err != nil {
			return nil, fmt.Errorf("failed to restore snapshot rows: %w", err)
		}
		if tag.RowsAffected() != r.want {
			return nil, fmt.Errorf("restore mismatch: restored %d rows, snapshot recorded %d", tag.RowsAffected(), r.want)
		}
	}

	// Hard rollback implies soft rollback: enforcement goes off in the same
	// transaction as the restore.
	if _, err := tx.Exec(ctx, `
		UPDATE guard_settings SET enforcement_enabled=FALSE, updated_at=NOW() WHERE id=1
	`); err != nil {
		return nil, fmt.Errorf("failed to disable enforcement: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit restore: %w", err)
	}
	return &snap, nil
}

func recordsInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, gameKey int64) ([]tracking.TrackingRecord, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, user_id, game_key, 'Wishlist', added_at, FALSE, FALSE, NULL::timestamptz, NULL::timestamptz, created_at
		FROM user_wishlist WHERE user_id=$1 AND game_key=$2
		UNION ALL
		SELECT id, user_id, game_key, 'Collection', added_at, FALSE, FALSE, NULL, NULL, created_at
		FROM user_collection WHERE user_id=$1 AND game_key=$2
		UNION ALL
		SELECT id, user_id, game_key, 'Progress', NULL, started, completed, started_at, completed_at, created_at
		FROM user_game_progress WHERE user_id=$1 AND game_key=$2
	`, userID, gameKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrackingRecords(rows)
}
