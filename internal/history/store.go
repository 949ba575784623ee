// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound indicates the requested conversation does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("history store is closed")
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    created_at INTEGER NOT NULL,  -- Unix timestamp
    updated_at INTEGER NOT NULL
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    role TEXT NOT NULL,           -- "user" or "assistant"
    content TEXT NOT NULL,
    backend TEXT NOT NULL,        -- "local" or "cloud", empty for user turns
    model TEXT NOT NULL,
    token_count INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,  -- Unix nanoseconds, preserves turn order
    FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
`

// =============================================================================
// TYPES
// =============================================================================

// Conversation is one chat session.
type Conversation struct {
	ID           string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// Message is one turn within a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	Backend        string
	Model          string
	TokenCount     int           // completion tokens, assistant turns only
	Duration       time.Duration // generation time, assistant turns only
	CreatedAt      time.Time
}

// =============================================================================
// STORE
// =============================================================================

// Store persists conversations in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// DefaultPath returns the default history database path.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".quill", "history.db"), nil
}

// Open opens (creating if necessary) the history database at path.
// An empty path uses DefaultPath.
func Open(path string) (*Store, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// NewConversation creates a conversation with the given title and
// returns its generated ID.
func (s *Store) NewConversation(ctx context.Context, title string) (string, error) {
	if s.db == nil {
		return "", ErrClosed
	}

	id := uuid.NewString()
	now := time.Now().Unix()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, title, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	return id, nil
}

// ListConversations returns conversations ordered by most recent
// activity, limited to limit entries (0 = all).
func (s *Store) ListConversations(ctx context.Context, limit int) ([]Conversation, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	query := `
		SELECT c.id, c.title, c.created_at, c.updated_at, COUNT(m.id)
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.updated_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		var created, updated int64
		if err := rows.Scan(&c.ID, &c.Title, &created, &updated, &c.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		c.CreatedAt = time.Unix(created, 0)
		c.UpdatedAt = time.Unix(updated, 0)
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversation returns a single conversation by ID.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	var c Conversation
	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.Title, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	c.CreatedAt = time.Unix(created, 0)
	c.UpdatedAt = time.Unix(updated, 0)
	return &c, nil
}

// Delete removes a conversation and its messages.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return ErrClosed
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Prune removes the oldest conversations beyond keep, returning how
// many were deleted. keep <= 0 is a no-op.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	if keep <= 0 {
		return 0, nil
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM conversations WHERE id NOT IN (
			SELECT id FROM conversations ORDER BY updated_at DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune conversations: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// =============================================================================
// MESSAGES
// =============================================================================

// Append records a message in a conversation and bumps its
// updated_at timestamp.
func (s *Store) Append(ctx context.Context, conversationID string, msg Message) (string, error) {
	if s.db == nil {
		return "", ErrClosed
	}

	id := uuid.NewString()
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, now.Unix(), conversationID)
	if err != nil {
		return "", fmt.Errorf("failed to touch conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, backend, model, token_count, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, conversationID, msg.Role, msg.Content, msg.Backend, msg.Model,
		msg.TokenCount, msg.Duration.Milliseconds(), now.UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to append message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return id, nil
}

// Messages returns all messages in a conversation, oldest first.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, backend, model, token_count, duration_ms, created_at
		FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var created, durationMs int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Backend, &m.Model, &m.TokenCount, &durationMs, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Duration = time.Duration(durationMs) * time.Millisecond
		m.CreatedAt = time.Unix(0, created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
