// Package sqlite implements domain.CheckpointStore over an embedded
// file-backed SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chatgraph-backend/internal/domain"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store implements domain.CheckpointStore. It holds one long-lived
// connection shared by every request context; SQLite gets a single writer.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database file and prepares the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database file path is required")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkpoints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL DEFAULT '',
			tool_name TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create checkpoints table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
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
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'checkpoints'`,
	).Scan(&name)
	if err == sql.ErrNoRows {
		// First run, nothing to evolve yet
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(checkpoints)`)
	if err != nil {
		return fmt.Errorf("failed to read table info: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			colName    string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &defaultVal, &pk); err != nil {
			return fmt.Errorf("failed to scan table info: %w", err)
		}
		if colName == "thread_title" {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read table info: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `ALTER TABLE checkpoints ADD COLUMN thread_title TEXT`); err != nil {
		return fmt.Errorf("failed to add thread_title column: %w", err)
	}
	return nil
}

// CreateThread registers an empty thread with the default title. Idempotent.
func (s *Store) CreateThread(ctx context.Context, threadID uuid.UUID) error {
	exists, err := s.threadExists(ctx, threadID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, seq, role, tool_name, content, created_at, thread_title)
		VALUES (?, 0, '', '', '', ?, ?)
	`, threadID.String(), time.Now().UTC(), domain.DefaultThreadTitle)
	if err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}
	return nil
}

// AppendMessage appends one checkpoint row, creating the thread when absent.
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

// ListMessages returns the thread's messages in chronological order. An
// unknown thread yields an empty slice, not an error.
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

	return scanMessages(rows)
}

// GetThread returns the summary for one thread with its resolved title
func (s *Store) GetThread(ctx context.Context, threadID uuid.UUID) (*domain.ThreadSummary, error) {
	var createdAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MIN(created_at) FROM checkpoints WHERE thread_id = ?
	`, threadID.String()).Scan(&createdAt)
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
		title, threadID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to rename thread: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rename result: %w", err)
	}
	if affected == 0 {
		return domain.ErrThreadNotFound
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

// Close closes the shared connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) threadExists(ctx context.Context, threadID uuid.UUID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM checkpoints WHERE thread_id = ? LIMIT 1`,
		threadID.String()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check thread existence: %w", err)
	}
	return true, nil
}

// resolveTitle applies the title precedence: stored non-default title, then
// a title derived from the first message, then the default.
func (s *Store) resolveTitle(ctx context.Context, threadID uuid.UUID) (string, error) {
	var stored sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT thread_title FROM checkpoints
		WHERE thread_id = ? AND thread_title IS NOT NULL AND thread_title != ''
		LIMIT 1
	`, threadID.String()).Scan(&stored)
	if err != nil && err != sql.ErrNoRows {
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
	if err == sql.ErrNoRows {
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

func scanMessages(rows *sql.Rows) ([]domain.Message, error) {
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
