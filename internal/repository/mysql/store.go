// Package mysql implements domain.CheckpointStore over MySQL.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chatgraph-backend/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// Store implements domain.CheckpointStore over a shared connection pool
type Store struct {
	db *sql.DB
}

// Open connects to the database and prepares the schema. The DSN must carry
// parseTime=true so TIMESTAMP columns scan into time.Time.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkpoints (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			thread_id VARCHAR(36) NOT NULL,
			seq BIGINT NOT NULL,
			role VARCHAR(16) NOT NULL DEFAULT '',
			tool_name VARCHAR(64) NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			created_at TIMESTAMP(6) NOT NULL,
			INDEX idx_checkpoints_thread (thread_id, seq)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create checkpoints table: %w", err)
	}

	return s.EnsureTitleColumn(ctx)
}

// EnsureTitleColumn adds the thread_title column when it is missing. Safe to
// call repeatedly and before the table exists.
func (s *Store) EnsureTitleColumn(ctx context.Context) error {
	var tables int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name = 'checkpoints'
	`).Scan(&tables)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if tables == 0 {
		return nil
	}

	var columns int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = 'checkpoints' AND column_name = 'thread_title'
	`).Scan(&columns)
	if err != nil {
		return fmt.Errorf("failed to inspect columns: %w", err)
	}
	if columns > 0 {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, `ALTER TABLE checkpoints ADD COLUMN thread_title TEXT`); err != nil {
		return fmt.Errorf("failed to add thread_title column: %w", err)
	}
	return nil
}

// CreateThread registers an empty thread with the default title. Idempotent.
func (s *Store) CreateThread(ctx context.Context, threadID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, seq, role, tool_name, content, created_at, thread_title)
		SELECT ?, 0, '', '', '', ?, ?
		FROM DUAL
		WHERE NOT EXISTS (SELECT 1 FROM checkpoints WHERE thread_id = ?)
	`, threadID.String(), time.Now().UTC(), domain.DefaultThreadTitle, threadID.String())
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, seq, role, tool_name, content, created_at)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?
		FROM checkpoints WHERE thread_id = ?
	`, threadID.String(), string(msg.Role), msg.ToolName, msg.Content, createdAt, threadID.String())
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// ListMessages returns the thread's messages in chronological order
func (s *Store) ListMessages(ctx context.Context, threadID uuid.UUID) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, tool_name, content, created_at
		FROM checkpoints
		WHERE thread_id = ? AND seq > 0
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
	var createdAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(created_at) FROM checkpoints WHERE thread_id = ?`,
		threadID.String()).Scan(&createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	if !createdAt.Valid {
		return nil, domain.ErrThreadNotFound
	}

	title, err := s.resolveTitle(ctx, threadID)
	if err != nil {
		return nil, err
	}

	return &domain.ThreadSummary{
		ThreadID:  threadID,
		Title:     title,
		CreatedAt: createdAt.Time,
	}, nil
}

// ListThreads returns every known thread, oldest first, with resolved titles
func (s *Store) ListThreads(ctx context.Context) ([]domain.ThreadSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
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
	res, err := s.db.ExecContext(ctx,
		`UPDATE checkpoints SET thread_title = ? WHERE thread_id = ?`,
		title, threadID.String())
	if err != nil {
		return fmt.Errorf("failed to rename thread: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rename result: %w", err)
	}
	if affected == 0 {
		// MySQL reports zero affected rows for same-value updates too
		var one int
		checkErr := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM checkpoints WHERE thread_id = ? LIMIT 1`,
			threadID.String()).Scan(&one)
		if errors.Is(checkErr, sql.ErrNoRows) {
			return domain.ErrThreadNotFound
		}
		if checkErr != nil {
			return fmt.Errorf("failed to check thread existence: %w", checkErr)
		}
	}
	return nil
}

// DeleteThread removes the thread's full history and metadata
func (s *Store) DeleteThread(ctx context.Context, threadID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE thread_id = ?`, threadID.String())
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	return nil
}

// DeleteAllThreads removes every thread and reports how many existed
func (s *Store) DeleteAllThreads(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT thread_id) FROM checkpoints`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count threads: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints`); err != nil {
		return 0, fmt.Errorf("failed to delete threads: %w", err)
	}
	return count, nil
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the shared pool
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) resolveTitle(ctx context.Context, threadID uuid.UUID) (string, error) {
	var stored sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT thread_title FROM checkpoints
		WHERE thread_id = ? AND thread_title IS NOT NULL AND thread_title != ''
		LIMIT 1
	`, threadID.String()).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to read thread title: %w", err)
	}

	if stored.Valid && stored.String != domain.DefaultThreadTitle {
		return stored.String, nil
	}

	var first string
	err = s.db.QueryRowContext(ctx, `
		SELECT content FROM checkpoints
		WHERE thread_id = ? AND seq > 0
		ORDER BY seq LIMIT 1
	`, threadID.String()).Scan(&first)
	if errors.Is(err, sql.ErrNoRows) {
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
