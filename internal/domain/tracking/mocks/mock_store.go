package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/gameshelf/gameshelf/internal/domain/tracking"
)

// MockStore is a mock implementation of tracking.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Apply(ctx context.Context, change tracking.Change) (*tracking.Applied, error) {
	args := m.Called(ctx, change)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tracking.Applied), args.Error(1)
}

func (m *MockStore) Remove(ctx context.Context, userID uuid.UUID, gameKey int64, kind *tracking.StateKind) ([]tracking.StateKind, error) {
	args := m.Called(ctx, userID, gameKey, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tracking.StateKind), args.Error(1)
}

func (m *MockStore) Records(ctx context.Context, userID uuid.UUID, gameKey int64) ([]tracking.TrackingRecord, error) {
	args := m.Called(ctx, userID, gameKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tracking.TrackingRecord), args.Error(1)
}

func (m *MockStore) ListForUser(ctx context.Context, userID uuid.UUID, kind tracking.StateKind, limit, offset int) ([]tracking.TrackingRecord, error) {
	args := m.Called(ctx, userID, kind, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tracking.TrackingRecord), args.Error(1)
}
