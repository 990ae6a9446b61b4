package tracking

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateKindString(t *testing.T) {
	assert.Equal(t, "Wishlist", KindWishlist.String())
	assert.Equal(t, "Collection", KindCollection.String())
	assert.Equal(t, "Progress", KindProgress.String())
	assert.Equal(t, "UNKNOWN", StateKind(7).String())
}

func TestParseStateKind(t *testing.T) {
	for _, k := range []StateKind{KindWishlist, KindCollection, KindProgress} {
		parsed, err := ParseStateKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseStateKind("Backlog")
	assert.Error(t, err)
}

func TestHigherPriority(t *testing.T) {
	assert.True(t, KindProgress.HigherPriority(KindCollection))
	assert.True(t, KindProgress.HigherPriority(KindWishlist))
	assert.True(t, KindCollection.HigherPriority(KindWishlist))
	assert.False(t, KindWishlist.HigherPriority(KindCollection))
	assert.False(t, KindCollection.HigherPriority(KindCollection))
}

func TestDecide(t *testing.T) {
	t.Run("empty state proceeds", func(t *testing.T) {
		d := Decide(nil, KindWishlist)
		assert.Equal(t, ActionProceed, d.Action)
		assert.Empty(t, d.Remove)
		assert.Nil(t, d.Previous)
	})

	t.Run("wishlist add rejected when game is in collection", func(t *testing.T) {
		d := Decide([]StateKind{KindCollection}, KindWishlist)
		assert.Equal(t, ActionReject, d.Action)
		assert.Equal(t, KindCollection, d.Blocking)
	})

	t.Run("wishlist add rejected when game has progress", func(t *testing.T) {
		d := Decide([]StateKind{KindProgress}, KindWishlist)
		assert.Equal(t, ActionReject, d.Action)
		assert.Equal(t, KindProgress, d.Blocking)
	})

	t.Run("collection add rejected when game has progress", func(t *testing.T) {
		d := Decide([]StateKind{KindProgress}, KindCollection)
		assert.Equal(t, ActionReject, d.Action)
		assert.Equal(t, KindProgress, d.Blocking)
	})

	t.Run("collection add promotes over wishlist", func(t *testing.T) {
		d := Decide([]StateKind{KindWishlist}, KindCollection)
		assert.Equal(t, ActionPromote, d.Action)
		assert.Equal(t, []StateKind{KindWishlist}, d.Remove)
		require.NotNil(t, d.Previous)
		assert.Equal(t, KindWishlist, *d.Previous)
	})

	t.Run("progress add promotes over collection", func(t *testing.T) {
		d := Decide([]StateKind{KindCollection}, KindProgress)
		assert.Equal(t, ActionPromote, d.Action)
		assert.Equal(t, []StateKind{KindCollection}, d.Remove)
		require.NotNil(t, d.Previous)
		assert.Equal(t, KindCollection, *d.Previous)
	})

	t.Run("refresh when target set already holds the key", func(t *testing.T) {
		d := Decide([]StateKind{KindProgress}, KindProgress)
		assert.Equal(t, ActionRefresh, d.Action)
		assert.Empty(t, d.Remove)
		require.NotNil(t, d.Previous)
		assert.Equal(t, KindProgress, *d.Previous)
	})

	t.Run("legacy multi-set state demotes all lower kinds", func(t *testing.T) {
		d := Decide([]StateKind{KindWishlist, KindCollection}, KindProgress)
		assert.Equal(t, ActionPromote, d.Action)
		assert.ElementsMatch(t, []StateKind{KindWishlist, KindCollection}, d.Remove)
		require.NotNil(t, d.Previous)
		assert.Equal(t, KindCollection, *d.Previous)
	})

	t.Run("legacy target plus lower kind cleans up on refresh", func(t *testing.T) {
		d := Decide([]StateKind{KindWishlist, KindCollection}, KindCollection)
		assert.Equal(t, ActionPromote, d.Action)
		assert.Equal(t, []StateKind{KindWishlist}, d.Remove)
		require.NotNil(t, d.Previous)
		assert.Equal(t, KindCollection, *d.Previous)
	})
}

func TestStateConflictError(t *testing.T) {
	err := &StateConflictError{
		UserID:   uuid.New(),
		GameKey:  100,
		Target:   KindWishlist,
		Blocking: KindProgress,
	}
	assert.Equal(t, "cannot add game 100 to Wishlist: already tracked as Progress", err.Error())
	assert.True(t, errors.Is(err, ErrStateConflict))
}

func TestAddedTime(t *testing.T) {
	added := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	started := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	r := TrackingRecord{AddedAt: &added, StartedAt: &started, CreatedAt: created}
	assert.Equal(t, added, r.AddedTime())

	r = TrackingRecord{StartedAt: &started, CreatedAt: created}
	assert.Equal(t, started, r.AddedTime())

	r = TrackingRecord{CreatedAt: created}
	assert.Equal(t, created, r.AddedTime())
}
