package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/gameshelf/gameshelf/internal/domain/history"
)

// MockRepository is a mock implementation of history.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Timeline(ctx context.Context, userID uuid.UUID, gameKey int64) ([]history.Entry, error) {
	args := m.Called(ctx, userID, gameKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]history.Entry), args.Error(1)
}

func (m *MockRepository) ForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]history.Entry, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]history.Entry), args.Error(1)
}
