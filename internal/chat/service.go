// ABOUTME: Conversation orchestrator: records turns, builds the context window, and calls inference
// ABOUTME: The ledger is the source of truth - the user turn is persisted before anything else happens

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docline/ragchat/internal/auth"
	"github.com/docline/ragchat/internal/inference"
	"github.com/docline/ragchat/internal/protocol"
	"github.com/docline/ragchat/internal/store"
)

// Outcome errors, mapped to HTTP statuses by the handlers.
var (
	// ErrUnauthenticated means no valid identity was resolved; nothing was written.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrEmptyQuestion means the question was missing or blank; nothing was written.
	ErrEmptyQuestion = errors.New("question is required")
	// ErrStorage means a ledger operation failed before an answer was produced.
	ErrStorage = errors.New("storage failure")
	// ErrUpstream means the inference service was unreachable or errored.
	// The user's turn remains recorded.
	ErrUpstream = errors.New("inference unavailable")
)

// Ledger defines what the service needs from storage
type Ledger interface {
	Append(ctx context.Context, userID, conversationID, speaker, content string) (*store.Message, error)
	LastN(ctx context.Context, userID, conversationID string, n int) ([]*store.Message, error)
	All(ctx context.Context, userID, conversationID string) ([]*store.Message, error)
}

// Asker defines what the service needs from the inference collaborator
type Asker interface {
	Ask(ctx context.Context, req *inference.AskRequest) (string, error)
}

// Service orchestrates one chat exchange: authenticate, record the user turn,
// build a bounded context window, invoke inference, decode, record the AI turn.
type Service struct {
	store   Ledger
	asker   Asker
	decoder *protocol.Decoder
	logger  *slog.Logger

	contextWindow       int
	defaultConversation string
}

// Options tunes conversation behavior.
type Options struct {
	// ContextWindow is the number of recent turns sent upstream (default 8)
	ContextWindow int
	// DefaultConversation is the conversation key used when the client
	// supplies none (default "default")
	DefaultConversation string
}

// New creates a chat Service
func New(ledger Ledger, asker Asker, decoder *protocol.Decoder, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = 8
	}
	if opts.DefaultConversation == "" {
		opts.DefaultConversation = "default"
	}
	if decoder == nil {
		decoder = protocol.NewDecoder(logger)
	}
	return &Service{
		store:               ledger,
		asker:               asker,
		decoder:             decoder,
		logger:              logger.With("component", "chat"),
		contextWindow:       opts.ContextWindow,
		defaultConversation: opts.DefaultConversation,
	}
}

// Result is the composed outcome of one exchange.
type Result struct {
	// AIMessage is the original undecoded reply text as persisted in the ledger
	AIMessage string
	// Answer is the visible text with the metadata block stripped
	Answer string
	// Sources are the citation strings extracted from the metadata block
	Sources []string
	// ConversationID is the resolved conversation key
	ConversationID string
}

// Ask runs one exchange for the authenticated caller.
//
// Key principle: record first, then act. The question is appended to the
// ledger BEFORE the inference call, so a record exists even if inference
// fails. An AI-turn write failure after the answer was computed is logged
// and swallowed - the answer still reaches the client.
func (s *Service) Ask(ctx context.Context, id *auth.Identity, question, conversationID string) (*Result, error) {
	if id == nil {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if conversationID == "" {
		conversationID = s.defaultConversation
	}

	// Once admitted, the exchange runs to completion even if the client
	// disconnects: the ledger writes and the inference call must not be
	// aborted by request cancellation. The inference client's own timeout
	// still bounds the slow step.
	ctx = context.WithoutCancel(ctx)

	requestID := uuid.New().String()
	logger := s.logger.With("request_id", requestID, "user_id", id.UserID, "conversation_id", conversationID)

	// 1. Record the user turn FIRST. Failure here is fatal: inference is
	// never called without a durable record of the question.
	userMsg, err := s.store.Append(ctx, id.UserID, conversationID, store.SpeakerUser, question)
	if err != nil {
		logger.Error("failed to record user turn", "error", err)
		return nil, fmt.Errorf("%w: recording question: %v", ErrStorage, err)
	}
	logger.Debug("user turn recorded", "seq", userMsg.Seq)

	// 2. Build the bounded context window: the last N turns, oldest first.
	// This is the entire memory mechanism; relevance scoring belongs upstream.
	recent, err := s.store.LastN(ctx, id.UserID, conversationID, s.contextWindow)
	if err != nil {
		logger.Error("failed to read context window", "error", err)
		return nil, fmt.Errorf("%w: reading context: %v", ErrStorage, err)
	}

	// 3. Invoke inference. This can block for minutes; no ledger lock is
	// held while waiting. Single attempt, no retry.
	raw, err := s.asker.Ask(ctx, &inference.AskRequest{
		UserID:         id.UserID,
		Question:       question,
		ConversationID: conversationID,
		MessageContext: contextWindow(recent),
	})
	if err != nil {
		logger.Error("inference call failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	// 4. Decode the sentinel-delimited reply. Never fails.
	reply := s.decoder.Decode(raw)

	// 5. Record the AI turn with the ORIGINAL undecoded text, so history
	// replays retain the full payload. Failure is logged, never surfaced:
	// the answer has already been computed and must still reach the client.
	s.recordAITurn(id.UserID, conversationID, raw, logger)

	return &Result{
		AIMessage:      raw,
		Answer:         reply.Answer,
		Sources:        reply.Sources,
		ConversationID: conversationID,
	}, nil
}

// History returns the full default-conversation history for the caller,
// oldest first.
func (s *Service) History(ctx context.Context, id *auth.Identity) (string, []*store.Message, error) {
	if id == nil {
		return "", nil, ErrUnauthenticated
	}

	messages, err := s.store.All(ctx, id.UserID, s.defaultConversation)
	if err != nil {
		return "", nil, fmt.Errorf("%w: reading history: %v", ErrStorage, err)
	}
	return s.defaultConversation, messages, nil
}

// recordAITurn appends the AI turn with a detached timeout context.
// This ensures persistence continues even if the request context is cancelled.
func (s *Service) recordAITurn(userID, conversationID, content string, logger *slog.Logger) {
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg, err := s.store.Append(saveCtx, userID, conversationID, store.SpeakerAI, content)
	if err != nil {
		logger.Error("failed to record AI turn", "error", err)
		return
	}
	logger.Debug("AI turn recorded", "seq", msg.Seq)
}

// contextWindow maps ledger turns to the upstream role/content shape.
func contextWindow(messages []*store.Message) []inference.ContextMessage {
	window := make([]inference.ContextMessage, len(messages))
	for i, msg := range messages {
		window[i] = inference.ContextMessage{
			Role:    RoleForSpeaker(msg.Speaker),
			Content: msg.Content,
		}
	}
	return window
}

// RoleForSpeaker maps a ledger speaker to the role name used on the wire
// and in history responses.
func RoleForSpeaker(speaker string) string {
	if speaker == store.SpeakerUser {
		return "user"
	}
	return "assistant"
}

// Ensure the SQLite ledger satisfies the service's storage needs
var _ Ledger = (*store.SQLiteLedger)(nil)
