// Package postgres implements domain.CheckpointStore over PostgreSQL for
// deployments that outgrow the embedded SQLite file.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatgraph-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements domain.CheckpointStore over a shared pgx pool
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to the database and prepares the schema
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS checkpoints (
			id BIGSERIAL PRIMARY KEY,
			thread_id TEXT NOT NULL,
			seq BIGINT NOT NULL,
			role TEXT NOT NULL DEFAULT '',
			tool_name TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create checkpoints table: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_checkpoints_thread
		ON checkpoints (thread_id, seq)
	`)
	if err != nil {
		return fmt.Errorf("failed to create checkpoints index: %w", err)
	}

	return s.EnsureTitleColumn(ctx)
}

// EnsureTitleColumn adds the thread_title column when it is missing. Safe to
// call repeatedly and before the table exists.
func (s *Store) EnsureTitleColumn(ctx context.Context) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_name = 'checkpoints'
		)
	`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if !exists {
		return nil
	}

	var hasColumn bool
	err = s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_name = 'checkpoints' AND column_name = 'thread_title'
		)
	`).Scan(&hasColumn)
	if err != nil {
		return fmt.Errorf("failed to inspect columns: %w", err)
	}
	if hasColumn {
		return nil
	}

	if _, err := s.pool.Exec(ctx, `ALTER TABLE checkpoints ADD COLUMN thread_title TEXT`); err != nil {
		return fmt.Errorf("failed to add thread_title column: %w", err)
	}
	return nil
}

// CreateThread registers an empty thread with the default title. Idempotent.
func (s *Store) CreateThread(ctx context.Context, threadID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO checkpoints (thread_id, seq, role, tool_name, content, created_at, thread_title)
		SELECT $1, 0, '', '', '', $2, $3
		WHERE NOT EXISTS (SELECT 1 FROM checkpoints WHERE thread_id = $1)
	`, threadID.String(), time.Now().UTC(), domain.DefaultThreadTitle)
	if err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}
	return nil
}

// AppendMessage appends one checkpoint row, creating the thread when absent
func (s *Store) AppendMessage(ctx context.Context, threadID uuid.UUID, msg domain.Message) error {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO checkpoints (thread_id, seq, role, tool_name, content, created_at)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5
		FROM checkpoints WHERE thread_id = $1
	`, threadID.String(), string(msg.Role), msg.ToolName, msg.Content, createdAt)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// ListMessages returns the thread's messages in chronological order
func (s *Store) ListMessages(ctx context.Context, threadID uuid.UUID) ([]domain.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT role, tool_name, content, created_at
		FROM checkpoints
		WHERE thread_id = $1 AND seq > 0
		ORDER BY seq
	`, threadID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		var role string
		if err := rows.Scan(&role, &m.ToolName, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = domain.MessageRole(role)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return messages, nil
}

// GetThread returns the summary for one thread with its resolved title
func (s *Store) GetThread(ctx context.Context, threadID uuid.UUID) (*domain.ThreadSummary, error) {
	var createdAt *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT MIN(created_at) FROM checkpoints WHERE thread_id = $1`,
		threadID.String()).Scan(&createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	if createdAt == nil {
		return nil, domain.ErrThreadNotFound
	}

	title, err := s.resolveTitle(ctx, threadID)
	if err != nil {
		return nil, err
	}

	return &domain.ThreadSummary{
		ThreadID:  threadID,
		Title:     title,
		CreatedAt: *createdAt,
	}, nil
}

// ListThreads returns every known thread, oldest first, with resolved titles
func (s *Store) ListThreads(ctx context.Context) ([]domain.ThreadSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT thread_id, MIN(created_at) AS first_seen
		FROM checkpoints
		GROUP BY thread_id
		ORDER BY first_seen
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	var summaries []domain.ThreadSummary
	for rows.Next() {
		var (
			id        string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threadID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid thread id %q: %w", id, err)
		}
		summaries = append(summaries, domain.ThreadSummary{ThreadID: threadID, CreatedAt: createdAt})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	for i := range summaries {
		title, err := s.resolveTitle(ctx, summaries[i].ThreadID)
		if err != nil {
			return nil, err
		}
		summaries[i].Title = title
	}
	return summaries, nil
}

// RenameThread overwrites the title on every checkpoint row of the thread
func (s *Store) RenameThread(ctx context.Context, threadID uuid.UUID, title string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE checkpoints SET thread_title = $1 WHERE thread_id = $2`,
		title, threadID.String())
	if err != nil {
		return fmt.Errorf("failed to rename thread: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrThreadNotFound
	}
	return nil
}

// DeleteThread removes the thread's full history and metadata
func (s *Store) DeleteThread(ctx context.Context, threadID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM checkpoints WHERE thread_id = $1`, threadID.String())
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	return nil
}

// DeleteAllThreads removes every thread and reports how many existed
func (s *Store) DeleteAllThreads(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT thread_id) FROM checkpoints`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count threads: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM checkpoints`); err != nil {
		return 0, fmt.Errorf("failed to delete threads: %w", err)
	}
	return count, nil
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the shared pool
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) resolveTitle(ctx context.Context, threadID uuid.UUID) (string, error) {
	var stored string
	err := s.pool.QueryRow(ctx, `
		SELECT thread_title FROM checkpoints
		WHERE thread_id = $1 AND thread_title IS NOT NULL AND thread_title != ''
		LIMIT 1
	`, threadID.String()).Scan(&stored)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("failed to read thread title: %w", err)
	}

	if stored != "" && stored != domain.DefaultThreadTitle {
		return stored, nil
	}

	var first string
	err = s.pool.QueryRow(ctx, `
		SELECT content FROM checkpoints
		WHERE thread_id = $1 AND seq > 0
		ORDER BY seq LIMIT 1
	`, threadID.String()).Scan(&first)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultThreadTitle, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read first message: %w", err)
	}
	if first == "" {
		return domain.DefaultThreadTitle, nil
	}
	return domain.DeriveTitle(first), nil
}
