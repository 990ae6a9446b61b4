package postgres

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gameshelf/gameshelf/internal/domain/tracking"
)

// TrackingStore implements tracking.Store. Every write runs inside one
// transaction, serialized per (user, game) key by a transaction-scoped
// advisory lock, so two writers racing the same key into different sets are
// strictly ordered.
type TrackingStore struct {
	pool *pgxpool.Pool
}

func NewTrackingStore(pool *pgxpool.Pool) *TrackingStore {
	return &TrackingStore{pool: pool}
}

func trackingTable(k tracking.StateKind) string {
	switch k {
	case tracking.KindWishlist:
		return "user_wishlist"
	case tracking.KindCollection:
		return "user_collection"
	default:
		return "user_game_progress"
	}
}

// lockKey folds a (user, game) pair into the int64 keyspace of
// pg_advisory_xact_lock. Collisions only over-serialize, never under.
func lockKey(userID uuid.UUID, gameKey int64) int64 {
	h := fnv.New64a()
	_, _ = h.Write(userID[:])
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(gameKey))
	_, _ = h.Write(b[:])
	return int64(h.Sum64())
}

func (s *TrackingStore) Apply(ctx context.Context, change tracking.Change) (*tracking.Applied, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin write: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(change.UserID, change.GameKey)); err != nil {
		return nil, fmt.Errorf("failed to acquire key lock: %w", err)
	}

	var enforced bool
	if err := tx.QueryRow(ctx, `SELECT enforcement_enabled FROM guard_settings WHERE id=1`).Scan(&enforced); err != nil {
		return nil, fmt.Errorf("failed to read guard settings: %w", err)
	}

	var decision tracking.Decision
	if change.Options.Bypass || !enforced {
		// Legacy write path: the target set alone decides between insert and
		// refresh; the other sets are not consulted and nothing is demoted.
		held, err := kindsInTx(ctx, tx, change.UserID, change.GameKey, change.Target)
		if err != nil {
			return nil, err
		}
		decision = tracking.Decision{Action: tracking.ActionProceed}
		if len(held) > 0 {
			prev := change.Target
			decision = tracking.Decision{Action: tracking.ActionRefresh, Previous: &prev}
		}
	} else {
		held, err := kindsInTx(ctx, tx, change.UserID, change.GameKey,
			tracking.KindWishlist, tracking.KindCollection, tracking.KindProgress)
		if err != nil {
			return nil, err
		}
		decision = tracking.Decide(held, change.Target)
	}

	if decision.Action == tracking.ActionReject {
		return nil, &tracking.StateConflictError{
			UserID:   change.UserID,
			GameKey:  change.GameKey,
			Target:   change.Target,
			Blocking: decision.Blocking,
		}
	}

	for _, k := range decision.Remove {
		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE user_id=$1 AND game_key=$2`, trackingTable(k)),
			change.UserID, change.GameKey); err != nil {
			return nil, fmt.Errorf("failed to demote %s record: %w", k, err)
		}
	}

	refresh := decision.Action == tracking.ActionRefresh ||
		(decision.Action == tracking.ActionPromote && decision.Previous != nil && *decision.Previous == change.Target)
	if err := s.writeTarget(ctx, tx, change, refresh); err != nil {
		return nil, err
	}

	var prevText *string
	if decision.Previous != nil {
		t := decision.Previous.String()
		prevText = &t
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO game_state_history (user_id, game_key, previous_state, new_state, changed_at)
		VALUES ($1,$2,$3,$4,$5)
	`, change.UserID, change.GameKey, prevText, change.Target.String(), change.At); err != nil {
		return nil, fmt.Errorf("failed to append history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit write: %w", err)
	}

	return &tracking.Applied{
		UserID:    change.UserID,
		GameKey:   change.GameKey,
		Previous:  decision.Previous,
		New:       change.Target,
		ChangedAt: change.At,
		Promoted:  len(decision.Remove) > 0,
	}, nil
}

func (s *TrackingStore) writeTarget(ctx context.Context, tx pgx.Tx, change tracking.Change, refresh bool) error {
	switch change.Target {
	case tracking.KindProgress:
		if refresh {
			// Flags only accumulate: completing a started game keeps started.
			_, err := tx.Exec(ctx, `
				UPDATE user_game_progress
				SET started = started OR $3,
					completed = completed OR $4,
					started_at = CASE WHEN $3 THEN COALESCE(started_at, $5) ELSE started_at END,
					completed_at = CASE WHEN $4 THEN COALESCE(completed_at, $5) ELSE completed_at END
				WHERE user_id=$1 AND game_key=$2
			`, change.UserID, change.GameKey, change.Started, change.Completed, change.At)
			if err != nil {
				return fmt.Errorf("failed to update progress record: %w", err)
			}
			return nil
		}
		var startedAt, completedAt *time.Time
		if change.Started {
			startedAt = &change.At
		}
		if change.Completed {
			completedAt = &change.At
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO user_game_progress (id, user_id, game_key, started, completed, started_at, completed_at, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, uuid.New(), change.UserID, change.GameKey, change.Started, change.Completed, startedAt, completedAt, change.At)
		if err != nil {
			return fmt.Errorf("failed to insert progress record: %w", err)
		}
		return nil
	default:
		table := trackingTable(change.Target)
		if refresh {
			_, err := tx.Exec(ctx,
				fmt.Sprintf(`UPDATE %s SET added_at=$3 WHERE user_id=$1 AND game_key=$2`, table),
				change.UserID, change.GameKey, change.At)
			if err != nil {
				return fmt.Errorf("failed to refresh %s record: %w", change.Target, err)
			}
			return nil
		}
		_, err := tx.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (id, user_id, game_key, added_at, created_at) VALUES ($1,$2,$3,$4,$4)`, table),
			uuid.New(), change.UserID, change.GameKey, change.At)
		if err != nil {
			return fmt.Errorf("failed to insert %s record: %w", change.Target, err)
		}
		return nil
	}
}

func (s *TrackingStore) Remove(ctx context.Context, userID uuid.UUID, gameKey int64, kind *tracking.StateKind) ([]tracking.StateKind, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin remove: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(userID, gameKey)); err != nil {
		return nil, fmt.Errorf("failed to acquire key lock: %w", err)
	}

	kinds := []tracking.StateKind{tracking.KindWishlist, tracking.KindCollection, tracking.KindProgress}
	if kind != nil {
		kinds = []tracking.StateKind{*kind}
	}

	var removed []tracking.StateKind
	for _, k := range kinds {
		tag, err := tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE user_id=$1 AND game_key=$2`, trackingTable(k)),
			userID, gameKey)
		if err != nil {
			return nil, fmt.Errorf("failed to remove %s record: %w", k, err)
		}
		if tag.RowsAffected() > 0 {
			removed = append(removed, k)
		}
	}
	if len(removed) == 0 {
		return nil, tracking.ErrNotTracked
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit remove: %w", err)
	}
	return removed, nil
}

func (s *TrackingStore) Records(ctx context.Context, userID uuid.UUID, gameKey int64) ([]tracking.TrackingRecord, error) {
	rows, err := s.pool.Query(ctx, `
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

func (s *TrackingStore) ListForUser(ctx context.Context, userID uuid.UUID, kind tracking.StateKind, limit, offset int) ([]tracking.TrackingRecord, error) {
	var rows pgx.Rows
	var err error
	if kind == tracking.KindProgress {
		rows, err = s.pool.Query(ctx, `
			SELECT id, user_id, game_key, 'Progress', NULL::timestamptz, started, completed, started_at, completed_at, created_at
			FROM user_game_progress WHERE user_id=$1
			ORDER BY created_at DESC LIMIT $2 OFFSET $3
		`, userID, limit, offset)
	} else {
		rows, err = s.pool.Query(ctx, fmt.Sprintf(`
			SELECT id, user_id, game_key, '%s', added_at, FALSE, FALSE, NULL::timestamptz, NULL::timestamptz, created_at
			FROM %s WHERE user_id=$1
			ORDER BY added_at DESC LIMIT $2 OFFSET $3
		`, kind, trackingTable(kind)), userID, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrackingRecords(rows)
}

func kindsInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, gameKey int64, kinds ...tracking.StateKind) ([]tracking.StateKind, error) {
	var held []tracking.StateKind
	for _, k := range kinds {
		var exists bool
		err := tx.QueryRow(ctx,
			fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE user_id=$1 AND game_key=$2)`, trackingTable(k)),
			userID, gameKey).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s set: %w", k, err)
		}
		if exists {
			held = append(held, k)
		}
	}
	return held, nil
}

func scanTrackingRecords(rows pgx.Rows) ([]tracking.TrackingRecord, error) {
	var out []tracking.TrackingRecord
	for rows.Next() {
		var r tracking.TrackingRecord
		var kindText string
		if err := rows.Scan(&r.ID, &r.UserID, &r.GameKey, &kindText, &r.AddedAt, &r.Started, &r.Completed, &r.StartedAt, &r.CompletedAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		kind, err := tracking.ParseStateKind(kindText)
		if err != nil {
			return nil, err
		}
		r.Kind = kind
		out = append(out, r)
	}
	return out, rows.Err()
}
