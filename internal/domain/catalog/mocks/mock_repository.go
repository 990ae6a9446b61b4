package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gameshelf/gameshelf/internal/domain/catalog"
)

// MockRepository is a mock implementation of catalog.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Get(ctx context.Context, gameKey int64) (*catalog.Game, error) {
	args := m.Called(ctx, gameKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Game), args.Error(1)
}

func (m *MockRepository) Exists(ctx context.Context, gameKey int64) (bool, error) {
	args := m.Called(ctx, gameKey)
	return args.Bool(0), args.Error(1)
}
