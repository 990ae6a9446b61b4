package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/gameshelf/gameshelf/internal/domain/resolution"
)

// MockStore is a mock implementation of resolution.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Audit(ctx context.Context) (*resolution.AuditReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resolution.AuditReport), args.Error(1)
}

func (m *MockStore) CreateSnapshot(ctx context.Context) (*resolution.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resolution.Snapshot), args.Error(1)
}

func (m *MockStore) GetSnapshot(ctx context.Context, snapshotID uuid.UUID) (*resolution.Snapshot, error) {
	args := m.Called(ctx, snapshotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resolution.Snapshot), args.Error(1)
}

func (m *MockStore) ResolveChunk(ctx context.Context, limit int) (int, int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *MockStore) ConflictLog(ctx context.Context, limit, offset int) ([]resolution.LogEntry, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]resolution.LogEntry), args.Error(1)
}

func (m *MockStore) Enforcement(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) SetEnforcement(ctx context.Context, enabled bool) (bool, error) {
	args := m.Called(ctx, enabled)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) RestoreSnapshot(ctx context.Context, snapshotID uuid.UUID) (*resolution.Snapshot, error) {
	args := m.Called(ctx, snapshotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resolution.Snapshot), args.Error(1)
}
