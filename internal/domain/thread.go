package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultThreadTitle is the title given to a thread before its first user
// message. The auto-title rule only fires while the title still equals it.
const DefaultThreadTitle = "New Chat"

// ErrThreadNotFound is returned when an operation targets a thread_id with
// no rows in the store.
var ErrThreadNotFound = errors.New("thread not found")

// TitleMaxLen is how many characters of the first user message survive into
// an auto-derived thread title.
const TitleMaxLen = 20

// DeriveTitle builds a thread title from the first user message: the first
// TitleMaxLen characters plus an ellipsis when longer, else the message
// verbatim.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) > TitleMaxLen {
		return string(runes[:TitleMaxLen]) + "..."
	}
	return content
}

// ThreadSummary describes one conversation thread for listing purposes.
type ThreadSummary struct {
	ThreadID  uuid.UUID `json:"thread_id"`
	Title     string    `json:"thread_title"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckpointStore persists conversation threads as ordered checkpoint rows.
// One row is written per step; thread titles live in a nullable column on
// the same table. All implementations share one long-lived connection.
type CheckpointStore interface {
	// CreateThread registers an empty thread with the default title.
	// Idempotent when the thread already exists.
	CreateThread(ctx context.Context, threadID uuid.UUID) error

	// AppendMessage appends one message to the thread's history,
	// creating the thread if it does not exist yet.
	AppendMessage(ctx context.Context, threadID uuid.UUID, msg Message) error

	// ListMessages returns the thread's messages in chronological order.
	ListMessages(ctx context.Context, threadID uuid.UUID) ([]Message, error)

	// GetThread returns the summary for one thread with its resolved title.
	GetThread(ctx context.Context, threadID uuid.UUID) (*ThreadSummary, error)

	// ListThreads returns every known thread, deduplicated, with resolved titles.
	ListThreads(ctx context.Context) ([]ThreadSummary, error)

	// RenameThread overwrites the thread's title. Returns ErrThreadNotFound
	// when no rows were affected.
	RenameThread(ctx context.Context, threadID uuid.UUID, title string) error

	// DeleteThread removes the thread's full history and metadata.
	DeleteThread(ctx context.Context, threadID uuid.UUID) error

	// DeleteAllThreads removes every thread and returns how many distinct
	// threads existed beforehand.
	DeleteAllThreads(ctx context.Context) (int, error)

	Close() error
}
