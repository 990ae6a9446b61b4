package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gameshelf/gameshelf/internal/domain/catalog"
	"github.com/gameshelf/gameshelf/internal/domain/history"
	"github.com/gameshelf/gameshelf/internal/domain/tracking"
	"github.com/gameshelf/gameshelf/internal/infrastructure/sse"
)

// Service is the write API over the tracking sets. Every write is routed
// through the exclusivity guard in the store before it becomes durable.
type Service struct {
	store       tracking.Store
	historyRepo history.Repository
	catalogRepo catalog.Repository
	hub         *sse.Hub
	logger      zerolog.Logger
}

func NewService(store tracking.Store, historyRepo history.Repository, catalogRepo catalog.Repository, hub *sse.Hub, logger zerolog.Logger) *Service {
	return &Service{
		store:       store,
		historyRepo: historyRepo,
		catalogRepo: catalogRepo,
		hub:         hub,
		logger:      logger.With().Str("service", "tracking").Logger(),
	}
}

// GameState is the enriched current state for one (user, game) key.
type GameState struct {
	UserID  uuid.UUID                 `json:"userId"`
	GameKey int64                     `json:"gameKey"`
	Game    *catalog.Game             `json:"game,omitempty"`
	Records []tracking.TrackingRecord `json:"records"`
}

func (s *Service) AddToWishlist(ctx context.Context, userID uuid.UUID, gameKey int64, opts tracking.WriteOptions) (*tracking.Applied, error) {
	return s.apply(ctx, tracking.Change{
		UserID:  userID,
		GameKey: gameKey,
		Target:  tracking.KindWishlist,
		Options: opts,
	})
}

func (s *Service) AddToCollection(ctx context.Context, userID uuid.UUID, gameKey int64, opts tracking.WriteOptions) (*tracking.Applied, error) {
	return s.apply(ctx, tracking.Change{
		UserID:  userID,
		GameKey: gameKey,
		Target:  tracking.KindCollection,
		Options: opts,
	})
}

func (s *Service) MarkStarted(ctx context.Context, userID uuid.UUID, gameKey int64, opts tracking.WriteOptions) (*tracking.Applied, error) {
	return s.apply(ctx, tracking.Change{
		UserID:  userID,
		GameKey: gameKey,
		Target:  tracking.KindProgress,
		Started: true,
		Options: opts,
	})
}

func (s *Service) MarkCompleted(ctx context.Context, userID uuid.UUID, gameKey int64, opts tracking.WriteOptions) (*tracking.Applied, error) {
	return s.apply(ctx, tracking.Change{
		UserID:    userID,
		GameKey:   gameKey,
		Target:    tracking.KindProgress,
		Completed: true,
		Options:   opts,
	})
}

func (s *Service) apply(ctx context.Context, change tracking.Change) (*tracking.Applied, error) {
	exists, err := s.catalogRepo.Exists(ctx, change.GameKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check game catalog: %w", err)
	}
	if !exists {
		return nil, catalog.ErrNotFound
	}
	change.At = time.Now().UTC()

	applied, err := s.store.Apply(ctx, change)
	if err != nil {
		var conflict *tracking.StateConflictError
		if errors.As(err, &conflict) {
			s.logger.Debug().
				Str("userId", change.UserID.String()).
				Int64("gameKey", change.GameKey).
				Str("target", change.Target.String()).
				Str("blocking", conflict.Blocking.String()).
				Msg("write rejected by exclusivity guard")
		}
		return nil, err
	}

	event := s.logger.Info().
		Str("userId", applied.UserID.String()).
		Int64("gameKey", applied.GameKey).
		Str("newState", applied.New.String()).
		Bool("promoted", applied.Promoted)
	if applied.Previous != nil {
		event = event.Str("previousState", applied.Previous.String())
	}
	event.Msg("state transition accepted")

	s.hub.Publish(sse.NewEvent(applied))
	return applied, nil
}

// Remove deletes a user's record(s) for a game. A nil kind removes from
// whichever set holds the key.
func (s *Service) Remove(ctx context.Context, userID uuid.UUID, gameKey int64, kind *tracking.StateKind) ([]tracking.StateKind, error) {
	removed, err := s.store.Remove(ctx, userID, gameKey, kind)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("userId", userID.String()).
		Int64("gameKey", gameKey).
		Int("sets", len(removed)).
		Msg("tracking records removed")
	return removed, nil
}

// State returns the current records for a key, enriched with catalog data.
func (s *Service) State(ctx context.Context, userID uuid.UUID, gameKey int64) (*GameState, error) {
	records, err := s.store.Records(ctx, userID, gameKey)
	if err != nil {
		return nil, err
	}
	state := &GameState{UserID: userID, GameKey: gameKey, Records: records}
	if game, err := s.catalogRepo.Get(ctx, gameKey); err == nil {
		state.Game = game
	} else if !errors.Is(err, catalog.ErrNotFound) {
		return nil, err
	}
	return state, nil
}

// Timeline returns the transition ledger for a key, oldest first.
func (s *Service) Timeline(ctx context.Context, userID uuid.UUID, gameKey int64) ([]history.Entry, error) {
	return s.historyRepo.Timeline(ctx, userID, gameKey)
}

// RecentActivity returns a user's latest transitions across all games.
func (s *Service) RecentActivity(ctx context.Context, userID uuid.UUID, limit, offset int) ([]history.Entry, error) {
	return s.historyRepo.ForUser(ctx, userID, limit, offset)
}

// List returns a user's records in one tracking set.
func (s *Service) List(ctx context.Context, userID uuid.UUID, kind tracking.StateKind, limit, offset int) ([]tracking.TrackingRecord, error) {
	return s.store.ListForUser(ctx, userID, kind, limit, offset)
}
