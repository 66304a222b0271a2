// ABOUTME: SQLite implementation of the Ledger interface using modernc.org/sqlite
// ABOUTME: Provides append-only message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteLedger implements the Ledger interface using SQLite
type SQLiteLedger struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteLedger creates a new SQLite ledger at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection queues
	// concurrent appends instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteLedger{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite ledger initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteLedger) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			user_id         TEXT NOT NULL,
			content         TEXT NOT NULL,
			speaker         TEXT NOT NULL,
			seq             INTEGER NOT NULL,
			created_at      TEXT NOT NULL,

			CHECK (speaker IN ('User', 'AI')),
			UNIQUE (user_id, conversation_id, seq)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_scope
			ON messages(user_id, conversation_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteLedger) Close() error {
	s.logger.Info("closing SQLite ledger")
	return s.db.Close()
}

// Append inserts a new turn with the next per-scope index.
// The index is computed inside the INSERT itself and read back via RETURNING,
// so count, write, and read are one atomic statement under SQLite's writer
// lock: an error means nothing was persisted. The UNIQUE constraint on
// (user_id, conversation_id, seq) backstops double assignment.
func (s *SQLiteLedger) Append(ctx context.Context, userID, conversationID, speaker, content string) (*Message, error) {
	now := time.Now().UTC()

	query := `
		INSERT INTO messages (conversation_id, user_id, content, speaker, seq, created_at)
		VALUES (?, ?, ?, ?,
			(SELECT COUNT(*) + 1 FROM messages WHERE user_id = ? AND conversation_id = ?),
			?)
		RETURNING id, seq
	`

	var id int64
	var seq int
	err := s.db.QueryRowContext(ctx, query,
		conversationID,
		userID,
		content,
		speaker,
		userID,
		conversationID,
		now.Format(time.RFC3339),
	).Scan(&id, &seq)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	msg := &Message{
		ID:             id,
		ConversationID: conversationID,
		UserID:         userID,
		Speaker:        speaker,
		Content:        content,
		Seq:            seq,
		CreatedAt:      now,
	}

	s.logger.Debug("appended message",
		"id", id,
		"user_id", userID,
		"conversation_id", conversationID,
		"speaker", speaker,
		"seq", seq,
	)
	return msg, nil
}

// LastN retrieves the n most recent turns for a scope, re-ordered to
// chronological order. Uses a DESC subquery to pick the most recent rows,
// then re-orders ASC so callers receive turns in conversation order.
func (s *SQLiteLedger) LastN(ctx context.Context, userID, conversationID string, n int) ([]*Message, error) {
	if n <= 0 {
		return []*Message{}, nil
	}

	query := `
		SELECT id, conversation_id, user_id, content, speaker, seq, created_at
		FROM (
			SELECT id, conversation_id, user_id, content, speaker, seq, created_at
			FROM messages
			WHERE user_id = ? AND conversation_id = ?
			ORDER BY seq DESC
			LIMIT ?
		)
		ORDER BY seq ASC
	`

	return s.queryMessages(ctx, query, userID, conversationID, n)
}

// All retrieves the full history for a scope, oldest first.
func (s *SQLiteLedger) All(ctx context.Context, userID, conversationID string) ([]*Message, error) {
	query := `
		SELECT id, conversation_id, user_id, content, speaker, seq, created_at
		FROM messages
		WHERE user_id = ? AND conversation_id = ?
		ORDER BY seq ASC
	`

	return s.queryMessages(ctx, query, userID, conversationID)
}

// queryMessages is a helper that executes a query and scans message rows
func (s *SQLiteLedger) queryMessages(ctx context.Context, query string, args ...any) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		var msg Message
		var createdAtStr string

		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.UserID,
			&msg.Content,
			&msg.Speaker,
			&msg.Seq,
			&createdAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		msg.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return messages, nil
}

// Ensure SQLiteLedger implements Ledger interface
var _ Ledger = (*SQLiteLedger)(nil)
