package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatgraph-backend/internal/domain"
	"chatgraph-backend/internal/engine"
	"chatgraph-backend/internal/repository/redis"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TurnRunner executes one full assistant turn over a conversation history
type TurnRunner interface {
	Run(ctx context.Context, history []domain.Message, sink engine.Sink) ([]domain.Message, error)
}

// ConversationService orchestrates threads, turns and persistence
type ConversationService struct {
	store  domain.CheckpointStore
	runner TurnRunner
	cache  *redis.ThreadCache
}

// NewConversationService creates a new conversation service. The cache is
// optional and may be nil.
func NewConversationService(store domain.CheckpointStore, runner TurnRunner, cache *redis.ThreadCache) *ConversationService {
	return &ConversationService{
		store:  store,
		runner: runner,
		cache:  cache,
	}
}

// NewThread registers an empty thread and returns its summary
func (s *ConversationService) NewThread(ctx context.Context) (*domain.ThreadSummary, error) {
	threadID := uuid.New()
	if err := s.store.CreateThread(ctx, threadID); err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}

	s.invalidateCache(ctx)

	return &domain.ThreadSummary{
		ThreadID:  threadID,
		Title:     domain.DefaultThreadTitle,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Submit runs one user turn: it appends the user message, sets the thread
// title on the first message, executes the turn loop and persists everything
// the turn produced. Streaming events are published to sink as they happen.
// The returned message is the final assistant reply.
func (s *ConversationService) Submit(ctx context.Context, threadID uuid.UUID, content string, sink engine.Sink) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("message content must not be empty")
	}

	history, err := s.store.ListMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	// The title is set automatically only while it is still the default;
	// later turns never overwrite a title the user chose.
	autoTitle := true
	if summary, err := s.store.GetThread(ctx, threadID); err == nil {
		autoTitle = summary.Title == domain.DefaultThreadTitle
	}

	userMsg := domain.Message{
		Role:      domain.RoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AppendMessage(ctx, threadID, userMsg); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	if autoTitle {
		if err := s.store.RenameThread(ctx, threadID, domain.DeriveTitle(content)); err != nil {
			log.Warn().Err(err).Str("thread_id", threadID.String()).Msg("failed to set thread title")
		}
	}

	produced, err := s.runner.Run(ctx, append(history, userMsg), sink)
	if err != nil {
		return nil, fmt.Errorf("turn failed: %w", err)
	}

	for _, msg := range produced {
		if err := s.store.AppendMessage(ctx, threadID, msg); err != nil {
			return nil, fmt.Errorf("failed to save %s message: %w", msg.Role, err)
		}
	}

	s.invalidateCache(ctx)

	if len(produced) == 0 {
		return nil, fmt.Errorf("turn produced no reply")
	}
	final := produced[len(produced)-1]
	return &final, nil
}

// ListThreads returns every thread, most recently created first
func (s *ConversationService) ListThreads(ctx context.Context) ([]domain.ThreadSummary, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	summaries, err := s.store.ListThreads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	// The store reports oldest first; the sidebar wants newest on top
	for i, j := 0, len(summaries)-1; i < j; i, j = i+1, j-1 {
		summaries[i], summaries[j] = summaries[j], summaries[i]
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, summaries); err != nil {
			log.Warn().Err(err).Msg("failed to cache thread list")
		}
	}

	return summaries, nil
}

// GetThread returns one thread's summary
func (s *ConversationService) GetThread(ctx context.Context, threadID uuid.UUID) (*domain.ThreadSummary, error) {
	return s.store.GetThread(ctx, threadID)
}

// History returns the thread's messages in order
func (s *ConversationService) History(ctx context.Context, threadID uuid.UUID) ([]domain.Message, error) {
	messages, err := s.store.ListMessages(ctx, threadID)
	if err != nil {
		return []domain.Message{}, fmt.Errorf("failed to load conversation: %w", err)
	}
	return messages, nil
}

// Rename sets a thread's title. Returns domain.ErrThreadNotFound when the
// thread has never been persisted.
func (s *ConversationService) Rename(ctx context.Context, threadID uuid.UUID, title string) error {
	if err := s.store.RenameThread(ctx, threadID, title); err != nil {
		return err
	}
	s.invalidateCache(ctx)
	return nil
}

// Delete removes one thread and its full history
func (s *ConversationService) Delete(ctx context.Context, threadID uuid.UUID) error {
	if err := s.store.DeleteThread(ctx, threadID); err != nil {
		return err
	}
	s.invalidateCache(ctx)
	return nil
}

// DeleteAll removes every thread and reports how many existed
func (s *ConversationService) DeleteAll(ctx context.Context) (int, error) {
	count, err := s.store.DeleteAllThreads(ctx)
	if err != nil {
		return 0, err
	}
	s.invalidateCache(ctx)
	return count, nil
}

func (s *ConversationService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate thread cache")
	}
}
