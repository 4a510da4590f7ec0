package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatgraph-backend/internal/domain"
	"chatgraph-backend/internal/engine"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func noopSink() engine.Sink {
	return engine.SinkFunc(func(engine.Event) {})
}

func messageWithRole(role domain.MessageRole) interface{} {
	return mock.MatchedBy(func(m domain.Message) bool { return m.Role == role })
}

func TestNewThread(t *testing.T) {
	store := new(MockCheckpointStore)
	svc := NewConversationService(store, new(MockTurnRunner), nil)

	store.On("CreateThread", mock.Anything, mock.Anything).Return(nil)

	summary, err := svc.NewThread(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, summary.ThreadID)
	assert.Equal(t, domain.DefaultThreadTitle, summary.Title)
	store.AssertExpectations(t)
}

func TestSubmitFirstMessageSetsTitle(t *testing.T) {
	store := new(MockCheckpointStore)
	runner := new(MockTurnRunner)
	svc := NewConversationService(store, runner, nil)
	threadID := uuid.New()

	question := "Please explain how tides work in simple terms"

	store.On("GetThread", mock.Anything, threadID).Return(&domain.ThreadSummary{
		ThreadID: threadID,
		Title:    domain.DefaultThreadTitle,
	}, nil)
	store.On("ListMessages", mock.Anything, threadID).Return([]domain.Message{}, nil)
	store.On("AppendMessage", mock.Anything, threadID, messageWithRole(domain.RoleUser)).Return(nil)
	store.On("RenameThread", mock.Anything, threadID, "Please explain how t...").Return(nil)
	store.On("AppendMessage", mock.Anything, threadID, messageWithRole(domain.RoleAssistant)).Return(nil)

	runner.On("Run", mock.Anything, mock.MatchedBy(func(history []domain.Message) bool {
		return len(history) == 1 && history[0].Content == question
	}), mock.Anything).Return([]domain.Message{
		{Role: domain.RoleAssistant, Content: "Tides are caused by the Moon's gravity."},
	}, nil)

	reply, err := svc.Submit(context.Background(), threadID, question, noopSink())
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAssistant, reply.Role)
	assert.Equal(t, "Tides are caused by the Moon's gravity.", reply.Content)
	store.AssertExpectations(t)
	runner.AssertExpectations(t)
}

func TestSubmitShortFirstMessageTitleVerbatim(t *testing.T) {
	store := new(MockCheckpointStore)
	runner := new(MockTurnRunner)
	svc := NewConversationService(store, runner, nil)
	threadID := uuid.New()

	store.On("GetThread", mock.Anything, threadID).Return(&domain.ThreadSummary{
		ThreadID: threadID,
		Title:    domain.DefaultThreadTitle,
	}, nil)
	store.On("ListMessages", mock.Anything, threadID).Return([]domain.Message{}, nil)
	store.On("AppendMessage", mock.Anything, threadID, mock.Anything).Return(nil)
	store.On("RenameThread", mock.Anything, threadID, "What is 12 times 7?").Return(nil)

	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).Return([]domain.Message{
		{Role: domain.RoleAssistant, Content: "84"},
	}, nil)

	_, err := svc.Submit(context.Background(), threadID, "What is 12 times 7?", noopSink())
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestSubmitLaterTurnKeepsTitle(t *testing.T) {
	store := new(MockCheckpointStore)
	runner := new(MockTurnRunner)
	svc := NewConversationService(store, runner, nil)
	threadID := uuid.New()

	history := []domain.Message{
		{Role: domain.RoleUser, Content: "first question"},
		{Role: domain.RoleAssistant, Content: "first answer"},
	}
	store.On("ListMessages", mock.Anything, threadID).Return(history, nil)
	store.On("GetThread", mock.Anything, threadID).Return(&domain.ThreadSummary{
		ThreadID: threadID,
		Title:    "first question",
	}, nil)
	store.On("AppendMessage", mock.Anything, threadID, mock.Anything).Return(nil)

	runner.On("Run", mock.Anything, mock.MatchedBy(func(h []domain.Message) bool {
		return len(h) == 3
	}), mock.Anything).Return([]domain.Message{
		{Role: domain.RoleAssistant, Content: "second answer"},
	}, nil)

	_, err := svc.Submit(context.Background(), threadID, "follow up", noopSink())
	require.NoError(t, err)
	store.AssertNotCalled(t, "RenameThread", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitEmptyMessage(t *testing.T) {
	store := new(MockCheckpointStore)
	svc := NewConversationService(store, new(MockTurnRunner), nil)

	_, err := svc.Submit(context.Background(), uuid.New(), "   ", noopSink())
	assert.Error(t, err)
	store.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitPersistsToolMessages(t *testing.T) {
	store := new(MockCheckpointStore)
	runner := new(MockTurnRunner)
	svc := NewConversationService(store, runner, nil)
	threadID := uuid.New()

	store.On("GetThread", mock.Anything, threadID).Return(&domain.ThreadSummary{
		ThreadID: threadID,
		Title:    domain.DefaultThreadTitle,
	}, nil)
	store.On("ListMessages", mock.Anything, threadID).Return([]domain.Message{}, nil)
	store.On("AppendMessage", mock.Anything, threadID, mock.Anything).Return(nil)
	store.On("RenameThread", mock.Anything, threadID, mock.Anything).Return(nil)

	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).Return([]domain.Message{
		{Role: domain.RoleTool, ToolName: "calculator", Content: `{"operation":"mul","result":84}`},
		{Role: domain.RoleAssistant, Content: "12 times 7 is 84."},
	}, nil)

	reply, err := svc.Submit(context.Background(), threadID, "What is 12 times 7?", noopSink())
	require.NoError(t, err)
	assert.Equal(t, "12 times 7 is 84.", reply.Content)

	// one user message plus the two the turn produced
	store.AssertNumberOfCalls(t, "AppendMessage", 3)
}

func TestSubmitRunnerError(t *testing.T) {
	store := new(MockCheckpointStore)
	runner := new(MockTurnRunner)
	svc := NewConversationService(store, runner, nil)
	threadID := uuid.New()

	store.On("GetThread", mock.Anything, threadID).Return(&domain.ThreadSummary{
		ThreadID: threadID,
		Title:    domain.DefaultThreadTitle,
	}, nil)
	store.On("ListMessages", mock.Anything, threadID).Return([]domain.Message{}, nil)
	store.On("AppendMessage", mock.Anything, threadID, mock.Anything).Return(nil)
	store.On("RenameThread", mock.Anything, threadID, mock.Anything).Return(nil)

	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, context.Canceled)

	_, err := svc.Submit(context.Background(), threadID, "hello", noopSink())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListThreadsNewestFirst(t *testing.T) {
	store := new(MockCheckpointStore)
	svc := NewConversationService(store, new(MockTurnRunner), nil)

	older := domain.ThreadSummary{ThreadID: uuid.New(), Title: "older", CreatedAt: time.Now().Add(-time.Hour)}
	newer := domain.ThreadSummary{ThreadID: uuid.New(), Title: "newer", CreatedAt: time.Now()}
	store.On("ListThreads", mock.Anything).Return([]domain.ThreadSummary{older, newer}, nil)

	summaries, err := svc.ListThreads(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "newer", summaries[0].Title)
	assert.Equal(t, "older", summaries[1].Title)
}

func TestHistoryStoreFailure(t *testing.T) {
	store := new(MockCheckpointStore)
	svc := NewConversationService(store, new(MockTurnRunner), nil)
	threadID := uuid.New()

	store.On("ListMessages", mock.Anything, threadID).Return(nil, errors.New("disk gone"))

	messages, err := svc.History(context.Background(), threadID)
	assert.Error(t, err)
	assert.Empty(t, messages)
	assert.NotNil(t, messages)
}

func TestRenameMissingThread(t *testing.T) {
	store := new(MockCheckpointStore)
	svc := NewConversationService(store, new(MockTurnRunner), nil)
	threadID := uuid.New()

	store.On("RenameThread", mock.Anything, threadID, "new title").Return(domain.ErrThreadNotFound)

	err := svc.Rename(context.Background(), threadID, "new title")
	assert.ErrorIs(t, err, domain.ErrThreadNotFound)
}

func TestDeleteAll(t *testing.T) {
	store := new(MockCheckpointStore)
	svc := NewConversationService(store, new(MockTurnRunner), nil)

	store.On("DeleteAllThreads", mock.Anything).Return(3, nil)

	count, err := svc.DeleteAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
