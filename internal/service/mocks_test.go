package service

import (
	"context"

	"chatgraph-backend/internal/domain"
	"chatgraph-backend/internal/engine"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockCheckpointStore mocks the CheckpointStore interface
type MockCheckpointStore struct {
	mock.Mock
}

func (m *MockCheckpointStore) CreateThread(ctx context.Context, threadID uuid.UUID) error {
	args := m.Called(ctx, threadID)
	return args.Error(0)
}

func (m *MockCheckpointStore) AppendMessage(ctx context.Context, threadID uuid.UUID, msg domain.Message) error {
	args := m.Called(ctx, threadID, msg)
	return args.Error(0)
}

func (m *MockCheckpointStore) ListMessages(ctx context.Context, threadID uuid.UUID) ([]domain.Message, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

func (m *MockCheckpointStore) GetThread(ctx context.Context, threadID uuid.UUID) (*domain.ThreadSummary, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ThreadSummary), args.Error(1)
}

func (m *MockCheckpointStore) ListThreads(ctx context.Context) ([]domain.ThreadSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ThreadSummary), args.Error(1)
}

func (m *MockCheckpointStore) RenameThread(ctx context.Context, threadID uuid.UUID, title string) error {
	args := m.Called(ctx, threadID, title)
	return args.Error(0)
}

func (m *MockCheckpointStore) DeleteThread(ctx context.Context, threadID uuid.UUID) error {
	args := m.Called(ctx, threadID)
	return args.Error(0)
}

func (m *MockCheckpointStore) DeleteAllThreads(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockCheckpointStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockTurnRunner mocks the TurnRunner interface
type MockTurnRunner struct {
	mock.Mock
}

func (m *MockTurnRunner) Run(ctx context.Context, history []domain.Message, sink engine.Sink) ([]domain.Message, error) {
	args := m.Called(ctx, history, sink)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}
