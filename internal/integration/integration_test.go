//go:build integration
// +build integration

package integration

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	appMaintenance "github.com/gameshelf/gameshelf/internal/application/maintenance"
	appTracking "github.com/gameshelf/gameshelf/internal/application/tracking"
	"github.com/gameshelf/gameshelf/internal/domain/resolution"
	"github.com/gameshelf/gameshelf/internal/domain/tracking"
	"github.com/gameshelf/gameshelf/internal/infrastructure/postgres"
	"github.com/gameshelf/gameshelf/internal/infrastructure/sse"
)

func TestGuardRejectionIntegration(t *testing.T) {
	e, cleanup := newEngine(t)
	defer cleanup()
	ctx := context.Background()

	userID := uuid.New()
	seedGame(t, e.pool, 42)

	if _, err := e.tracking.MarkStarted(ctx, userID, 42, tracking.WriteOptions{}); err != nil {
		t.Fatalf("mark started: %v", err)
	}

	_, err := e.tracking.AddToWishlist(ctx, userID, 42, tracking.WriteOptions{})
	var conflict *tracking.StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if conflict.Blocking != tracking.KindProgress {
		t.Fatalf("expected Progress blocking, got %s", conflict.Blocking)
	}

	recs, err := e.store.Records(ctx, userID, 42)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 1 || recs[0].Kind != tracking.KindProgress {
		t.Fatalf("rejected write must leave the sets unchanged, got %+v", recs)
	}

	entries, err := e.tracking.Timeline(ctx, userID, 42)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("rejected write must not appear in history, got %d entries", len(entries))
	}
}

func TestGuardPromotionIntegration(t *testing.T) {
	e, cleanup := newEngine(t)
	defer cleanup()
	ctx := context.Background()

	userID := uuid.New()
	seedGame(t, e.pool, 100)

	if _, err := e.tracking.AddToWishlist(ctx, userID, 100, tracking.WriteOptions{}); err != nil {
		t.Fatalf("add to wishlist: %v", err)
	}

	applied, err := e.tracking.AddToCollection(ctx, userID, 100, tracking.WriteOptions{})
	if err != nil {
		t.Fatalf("add to collection: %v", err)
	}
	if !applied.Promoted {
		t.Fatal("expected promotion over the wishlist record")
	}
	if applied.Previous == nil || *applied.Previous != tracking.KindWishlist {
		t.Fatalf("expected previous=Wishlist, got %v", applied.Previous)
	}

	recs, err := e.store.Records(ctx, userID, 100)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 1 || recs[0].Kind != tracking.KindCollection {
		t.Fatalf("expected one Collection record, got %+v", recs)
	}

	entries, err := e.tracking.Timeline(ctx, userID, 100)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected one history entry per accepted write, got %d", len(entries))
	}
	if entries[0].PreviousState != nil || entries[0].NewState != tracking.KindWishlist {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].PreviousState == nil || *entries[1].PreviousState != tracking.KindWishlist ||
		entries[1].NewState != tracking.KindCollection {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
}

func TestResolveIdempotenceIntegration(t *testing.T) {
	e, cleanup := newEngine(t)
	defer cleanup()
	ctx := context.Background()

	t0 := time.Now().UTC().Add(-48 * time.Hour)
	t1 := t0.Add(24 * time.Hour)

	// Legacy data written before enforcement existed.
	userA := uuid.New()
	insertWishlist(t, e.pool, userA, 100, t1)
	insertProgress(t, e.pool, userA, 100, t0)

	userB := uuid.New()
	insertCollection(t, e.pool, userB, 200, t0)
	newID := insertCollection(t, e.pool, userB, 200, t1)

	report, err := e.maintenance.Audit(ctx)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if report.WishlistProgress.Count != 1 || report.Duplicates != 1 {
		t.Fatalf("unexpected pre-resolution audit: %+v", report)
	}

	snap, err := e.maintenance.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	result, err := e.maintenance.Resolve(ctx, snap.SnapshotID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.PairsResolved != 2 || result.LogEntriesWritten != 2 {
		t.Fatalf("expected 2 pairs and 2 log entries, got %+v", result)
	}

	recs, err := e.store.Records(ctx, userA, 100)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 1 || recs[0].Kind != tracking.KindProgress {
		t.Fatalf("Progress must survive over a newer Wishlist entry, got %+v", recs)
	}

	recs, err = e.store.Records(ctx, userB, 200)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != newID {
		t.Fatalf("most recent duplicate must survive, got %+v", recs)
	}

	log, err := e.maintenance.ConflictLog(ctx, 10, 0)
	if err != nil {
		t.Fatalf("conflict log: %v", err)
	}
	types := map[string]string{}
	for _, entry := range log {
		types[entry.ConflictType] = entry.Reason
	}
	if types["Wishlist-Progress"] != resolution.ReasonHigherPriority {
		t.Fatalf("missing priority log entry: %+v", log)
	}
	if types["Collection-Collection"] != resolution.ReasonDuplicate {
		t.Fatalf("missing duplicate log entry: %+v", log)
	}

	report, err = e.maintenance.Audit(ctx)
	if err != nil {
		t.Fatalf("post-resolution audit: %v", err)
	}
	if !report.Clean() {
		t.Fatalf("audit must be clean after resolution: %+v", report)
	}

	again, err := e.maintenance.Resolve(ctx, snap.SnapshotID)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if again.PairsResolved != 0 || again.LogEntriesWritten != 0 {
		t.Fatalf("second run must resolve nothing, got %+v", again)
	}
}

func TestResolveChunkAtomicityIntegration(t *testing.T) {
	e, cleanup := newEngine(t)
	defer cleanup()
	ctx := context.Background()

	userID := uuid.New()
	at := time.Now().UTC()
	insertWishlist(t, e.pool, userID, 300, at)
	insertCollection(t, e.pool, userID, 300, at)

	// Break the log insert mid-chunk; the pair's deletion must roll back
	// with it.
	if _, err := e.pool.Exec(ctx, `ALTER TABLE state_conflict_resolutions RENAME TO state_conflict_resolutions_hidden`); err != nil {
		t.Fatalf("hide log table: %v", err)
	}
	_, _, err := e.resolution.ResolveChunk(ctx, 10)
	if _, restoreErr := e.pool.Exec(ctx, `ALTER TABLE state_conflict_resolutions_hidden RENAME TO state_conflict_resolutions`); restoreErr != nil {
		t.Fatalf("restore log table: %v", restoreErr)
	}
	if err == nil {
		t.Fatal("expected the chunk to fail when the log write fails")
	}

	recs, err := e.store.Records(ctx, userID, 300)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("failed chunk must leave both records in place, got %+v", recs)
	}
	var logged int
	if err := e.pool.QueryRow(ctx, `SELECT COUNT(*) FROM state_conflict_resolutions`).Scan(&logged); err != nil {
		t.Fatalf("count log entries: %v", err)
	}
	if logged != 0 {
		t.Fatalf("failed chunk must write no log entries, got %d", logged)
	}
}

func TestResolveSkipsRacedPairsIntegration(t *testing.T) {
	e, cleanup := newEngine(t)
	defer cleanup()
	ctx := context.Background()

	at := time.Now().UTC()
	userA := uuid.New()
	insertWishlist(t, e.pool, userA, 500, at)
	insertCollection(t, e.pool, userA, 500, at)
	userB := uuid.New()
	insertWishlist(t, e.pool, userB, 600, at)
	insertProgress(t, e.pool, userB, 600, at)

	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire conn: %v", err)
	}
	defer conn.Release()
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, pairLockKey(userA, 500)); err != nil {
		t.Fatalf("hold key lock: %v", err)
	}

	type chunkResult struct {
		pairs, entries int
		err            error
	}
	done := make(chan chunkResult, 1)
	go func() {
		pairs, entries, err := e.resolution.ResolveChunk(ctx, 10)
		done <- chunkResult{pairs, entries, err}
	}()

	// Let the chunk scan both pairs and block on the held key, then clean
	// that pair up the way a concurrent guarded write would.
	time.Sleep(300 * time.Millisecond)
	if _, err := e.pool.Exec(ctx, `DELETE FROM user_collection WHERE user_id=$1 AND game_key=$2`, userA, int64(500)); err != nil {
		t.Fatalf("delete raced record: %v", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, pairLockKey(userA, 500)); err != nil {
		t.Fatalf("release key lock: %v", err)
	}

	var res chunkResult
	select {
	case res = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("chunk did not finish")
	}
	if res.err != nil {
		t.Fatalf("chunk: %v", res.err)
	}
	if res.pairs != 1 || res.entries != 1 {
		t.Fatalf("skipped pair must not be counted, got pairs=%d entries=%d", res.pairs, res.entries)
	}
}

func TestHardRollbackCountExactnessIntegration(t *testing.T) {
	e, cleanup := newEngine(t)
	defer cleanup()
	ctx := context.Background()

	userID := uuid.New()
	for _, gameKey := range []int64{1, 2, 3} {
		seedGame(t, e.pool, gameKey)
	}
	if _, err := e.tracking.AddToWishlist(ctx, userID, 1, tracking.WriteOptions{}); err != nil {
		t.Fatalf("add to wishlist: %v", err)
	}
	if _, err := e.tracking.AddToCollection(ctx, userID, 2, tracking.WriteOptions{}); err != nil {
		t.Fatalf("add to collection: %v", err)
	}

	snap, err := e.maintenance.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.WishlistRows != 1 || snap.CollectionRows != 1 || snap.ProgressRows != 0 {
		t.Fatalf("unexpected snapshot counts: %+v", snap)
	}

	// Writes made after the snapshot; the restore must destroy them.
	if _, err := e.tracking.MarkStarted(ctx, userID, 3, tracking.WriteOptions{}); err != nil {
		t.Fatalf("mark started: %v", err)
	}
	if _, err := e.tracking.AddToWishlist(ctx, uuid.New(), 1, tracking.WriteOptions{}); err != nil {
		t.Fatalf("post-snapshot wishlist add: %v", err)
	}

	restored, err := e.maintenance.HardRollback(ctx, snap.SnapshotID)
	if err != nil {
		t.Fatalf("hard rollback: %v", err)
	}
	if restored.SnapshotID != snap.SnapshotID {
		t.Fatalf("unexpected restored snapshot: %+v", restored)
	}

	counts := map[string]int64{
		"user_wishlist":      snap.WishlistRows,
		"user_collection":    snap.CollectionRows,
		"user_game_progress": snap.ProgressRows,
	}
	for table, want := range counts {
		var got int64
		if err := e.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&got); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if got != want {
			t.Fatalf("%s: got %d rows, snapshot recorded %d", table, got, want)
		}
	}

	enabled, err := e.maintenance.Enforcement(ctx)
	if err != nil {
		t.Fatalf("enforcement: %v", err)
	}
	if enabled {
		t.Fatal("hard rollback must disable guard enforcement")
	}
}

type engine struct {
	pool        *pgxpool.Pool
	store       *postgres.TrackingStore
	resolution  *postgres.ResolutionStore
	tracking    *appTracking.Service
	maintenance *appMaintenance.Service
	hub         *sse.Hub
}

func newEngine(t *testing.T) (*engine, func()) {
	t.Helper()
	dsn := testDatabaseURL(t)
	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, dsn, 0)
	if err != nil {
		t.Fatalf("db pool: %v", err)
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}
	if err := resetDatabase(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("reset db: %v", err)
	}

	logger := zerolog.Nop()
	store := postgres.NewTrackingStore(pool)
	resolutionStore := postgres.NewResolutionStore(pool)
	hub := sse.NewHub()

	e := &engine{
		pool:        pool,
		store:       store,
		resolution:  resolutionStore,
		tracking:    appTracking.NewService(store, postgres.NewHistoryStore(pool), postgres.NewCatalogRepository(pool), hub, logger),
		maintenance: appMaintenance.NewService(resolutionStore, 100, logger),
		hub:         hub,
	}
	cleanup := func() {
		hub.Stop()
		pool.Close()
	}
	return e, cleanup
}

func testDatabaseURL(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		return dsn
	}
	t.Skip("TEST_DATABASE_URL not set; skipping integration tests")
	return ""
}

func resetDatabase(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `
		TRUNCATE TABLE
			user_wishlist,
			user_collection,
			user_game_progress,
			game_state_history,
			state_conflict_resolutions,
			backup_user_wishlist,
			backup_user_collection,
			backup_user_game_progress,
			backup_snapshots,
			games,
			users
		RESTART IDENTITY CASCADE
	`); err != nil {
		return err
	}
	_, err := pool.Exec(ctx, `UPDATE guard_settings SET enforcement_enabled=TRUE WHERE id=1`)
	return err
}

func seedGame(t *testing.T, pool *pgxpool.Pool, gameKey int64) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), `
		INSERT INTO games (game_key, name) VALUES ($1, $2) ON CONFLICT (game_key) DO NOTHING
	`, gameKey, fmt.Sprintf("game-%d", gameKey)); err != nil {
		t.Fatalf("seed game %d: %v", gameKey, err)
	}
}

func insertWishlist(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, gameKey int64, at time.Time) uuid.UUID {
	t.Helper()
	return insertSetRow(t, pool, "user_wishlist", userID, gameKey, at)
}

func insertCollection(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, gameKey int64, at time.Time) uuid.UUID {
	t.Helper()
	return insertSetRow(t, pool, "user_collection", userID, gameKey, at)
}

func insertSetRow(t *testing.T, pool *pgxpool.Pool, table string, userID uuid.UUID, gameKey int64, at time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if _, err := pool.Exec(context.Background(), fmt.Sprintf(`
		INSERT INTO %s (id, user_id, game_key, added_at, created_at) VALUES ($1,$2,$3,$4,$4)
	`, table), id, userID, gameKey, at); err != nil {
		t.Fatalf("insert %s row: %v", table, err)
	}
	return id
}

func insertProgress(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, gameKey int64, at time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if _, err := pool.Exec(context.Background(), `
		INSERT INTO user_game_progress (id, user_id, game_key, started, completed, started_at, created_at)
		VALUES ($1,$2,$3,TRUE,FALSE,$4,$4)
	`, id, userID, gameKey, at); err != nil {
		t.Fatalf("insert progress row: %v", err)
	}
	return id
}

// Mirrors the store's advisory lock derivation for a (user, game) key.
func pairLockKey(userID uuid.UUID, gameKey int64) int64 {
	h := fnv.New64a()
	_, _ = h.Write(userID[:])
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(gameKey))
	_, _ = h.Write(b[:])
	return int64(h.Sum64())
}
