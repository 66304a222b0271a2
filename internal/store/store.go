// ABOUTME: Ledger interface and data types for ragchat persistence
// ABOUTME: Defines the Message turn struct and the Ledger interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Speaker constants for message turns
const (
	SpeakerUser = "User" // A question from the human caller
	SpeakerAI   = "AI"   // A reply from the inference service
)

// Message represents a single turn within a (user, conversation) scope.
// Messages are immutable once written; there is no update or delete path.
type Message struct {
	ID             int64
	ConversationID string
	UserID         string
	Speaker        string // "User" or "AI"
	Content        string
	Seq            int // 1-based index, strictly increasing per scope with no gaps
	CreatedAt      time.Time
}

// Ledger defines the interface for the append-only message log.
// A conversation has no record of its own; it exists implicitly as the set
// of messages sharing (user_id, conversation_id).
type Ledger interface {
	// Append assigns the next per-scope index and inserts the turn.
	// Concurrent appends to the same scope never receive the same index.
	Append(ctx context.Context, userID, conversationID, speaker, content string) (*Message, error)

	// LastN returns at most n most-recent turns in chronological order
	// (oldest first). An empty scope returns an empty slice, not an error.
	LastN(ctx context.Context, userID, conversationID string, n int) ([]*Message, error)

	// All returns the full history for a scope, oldest first.
	All(ctx context.Context, userID, conversationID string) ([]*Message, error)

	// Close releases any resources held by the ledger
	Close() error
}
