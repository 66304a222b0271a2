// ABOUTME: HTTP API handlers for the chat endpoints
// ABOUTME: Provides POST /chat, GET /chat history, and GET /health

package chat

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/docline/ragchat/internal/auth"
)

// AskRequestBody is the JSON request body for POST /chat.
type AskRequestBody struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversationId,omitempty"`
}

// AskResponse is the JSON response for POST /chat.
type AskResponse struct {
	AIMessage      string   `json:"aiMessage"`
	Answer         string   `json:"answer"`
	Sources        []string `json:"sources"`
	ConversationID string   `json:"conversationId"`
}

// MessageResponse is one turn in a history response.
type MessageResponse struct {
	MessageID int64  `json:"messageId"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Index     int    `json:"index"`
	CreatedAt string `json:"createdAt"`
}

// ConversationResponse wraps one conversation's turns. GET /chat returns a
// single-element array of these so multi-conversation listing can be added
// later without a breaking change.
type ConversationResponse struct {
	ConversationID string            `json:"conversationId"`
	UserID         string            `json:"userId"`
	Messages       []MessageResponse `json:"messages"`
}

// Handlers exposes the chat service over HTTP.
type Handlers struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandlers creates the HTTP handler set for the chat service
func NewHandlers(svc *Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		svc:    svc,
		logger: logger.With("component", "chat_api"),
	}
}

// RegisterRoutes attaches the chat endpoints to the mux
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/chat", h.handleChat)
	mux.HandleFunc("/health", h.handleHealth)
}

// handleChat routes chat requests by HTTP method.
func (h *Handlers) handleChat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleAsk(w, r)
	case http.MethodGet:
		h.handleHistory(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleAsk handles POST /chat requests.
// Responsibilities:
//  1. Parse JSON body - decode the question and optional conversation id
//  2. Run the exchange via the chat service (auth, ledger, inference, decode)
//  3. Map outcome errors to HTTP statuses
func (h *Handlers) handleAsk(w http.ResponseWriter, r *http.Request) {
	req, err := parseAskRequest(r.Body)
	if err != nil {
		h.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.Ask(r.Context(), auth.IdentityFromContext(r.Context()), req.Question, req.ConversationID)
	if err != nil {
		h.writeOutcomeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AskResponse{
		AIMessage:      result.AIMessage,
		Answer:         result.Answer,
		Sources:        result.Sources,
		ConversationID: result.ConversationID,
	})
}

// handleHistory handles GET /chat requests.
// Returns the caller's default-conversation history in chronological order.
func (h *Handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())

	conversationID, messages, err := h.svc.History(r.Context(), id)
	if err != nil {
		h.writeOutcomeError(w, err)
		return
	}

	conv := ConversationResponse{
		ConversationID: conversationID,
		UserID:         id.UserID,
		Messages:       make([]MessageResponse, len(messages)),
	}
	for i, msg := range messages {
		conv.Messages[i] = MessageResponse{
			MessageID: msg.ID,
			Role:      RoleForSpeaker(msg.Speaker),
			Content:   msg.Content,
			Index:     msg.Seq,
			CreatedAt: msg.CreatedAt.Format(time.RFC3339),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode([]ConversationResponse{conv})
}

// handleHealth handles GET /health requests.
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeOutcomeError maps service outcome errors to HTTP statuses.
func (h *Handlers) writeOutcomeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		h.sendJSONError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, ErrEmptyQuestion):
		h.sendJSONError(w, http.StatusBadRequest, "question is required")
	case errors.Is(err, ErrUpstream):
		h.sendJSONError(w, http.StatusBadGateway, "inference service unavailable")
	default:
		h.logger.Error("chat request failed", "error", err)
		h.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// sendJSONError writes a JSON error response.
func (h *Handlers) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// parseAskRequest parses an AskRequestBody from the given reader.
// Question presence is validated by the service so that auth is checked first.
func parseAskRequest(r io.Reader) (*AskRequestBody, error) {
	var req AskRequestBody
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	return &req, nil
}
