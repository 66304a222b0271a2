// ABOUTME: HTTP client for the external inference service
// ABOUTME: Forwards a question plus context window and returns the raw text reply

package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable is returned when the inference service cannot produce an
// answer: network failure, timeout, a non-2xx status, or an engine-reported
// pipeline error.
var ErrUnavailable = errors.New("inference service unavailable")

// systemErrorPrefix marks an in-band failure: the engine streams this prefix
// instead of an answer when its pipeline dies mid-request.
const systemErrorPrefix = "SYSTEM_ERROR:"

// DefaultTimeout bounds a single inference call. Generation is slow, so this
// is on the order of minutes rather than seconds.
const DefaultTimeout = 10 * time.Minute

// ContextMessage is one turn of the bounded context window sent upstream.
type ContextMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// AskRequest carries everything the inference service needs for one answer.
type AskRequest struct {
	UserID         string           `json:"user_id"`
	Question       string           `json:"question"`
	ConversationID string           `json:"conversationId"`
	MessageContext []ContextMessage `json:"messageContext"`
}

// Client calls the external inference service over HTTP.
// A single attempt either succeeds or fails; there is no retry policy.
type Client struct {
	url        string
	secret     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client for the service at the given base URL.
// The shared secret is sent on every request for service-to-service trust.
func New(url, secret string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:        strings.TrimSuffix(url, "/"),
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "inference"),
	}
}

// Ask sends the question and context window and returns the raw text body in
// the sentinel-delimited wire format. The caller decodes it separately.
func (c *Client) Ask(ctx context.Context, req *AskRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/stream_response", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-internal-secret", c.secret)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("inference request failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("reading inference response failed", "error", err)
		return "", fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("inference service returned error status",
			"status", resp.StatusCode,
			"body_len", len(raw),
		)
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	text := string(raw)
	if strings.HasPrefix(strings.TrimSpace(text), systemErrorPrefix) {
		c.logger.Error("inference service reported pipeline error", "body", text)
		return "", fmt.Errorf("%w: %s", ErrUnavailable, strings.TrimSpace(text))
	}

	c.logger.Debug("inference reply received",
		"status", resp.StatusCode,
		"bytes", len(raw),
		"duration", time.Since(start),
	)
	return text, nil
}
