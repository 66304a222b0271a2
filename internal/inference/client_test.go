// ABOUTME: Tests for the inference HTTP client
// ABOUTME: Uses httptest servers to verify the wire format and failure mapping

package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskSendsWireFormat(t *testing.T) {
	var gotPath, gotSecret, gotContentType string
	var gotBody AskRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSecret = r.Header.Get("x-internal-secret")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte("the reply"))
	}))
	defer srv.Close()

	client := New(srv.URL, "shared-secret", time.Minute, nil)

	reply, err := client.Ask(context.Background(), &AskRequest{
		UserID:         "alice",
		Question:       "what?",
		ConversationID: "default",
		MessageContext: []ContextMessage{
			{Role: "user", Content: "earlier question"},
			{Role: "assistant", Content: "earlier answer"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "the reply", reply)

	assert.Equal(t, "/api/stream_response", gotPath)
	assert.Equal(t, "shared-secret", gotSecret)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "alice", gotBody.UserID)
	assert.Equal(t, "what?", gotBody.Question)
	assert.Equal(t, "default", gotBody.ConversationID)
	require.Len(t, gotBody.MessageContext, 2)
	assert.Equal(t, "user", gotBody.MessageContext[0].Role)
}

func TestAskTrailingSlashURL(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := New(srv.URL+"/", "s", time.Minute, nil)
	_, err := client.Ask(context.Background(), &AskRequest{UserID: "a", Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, "/api/stream_response", gotPath)
}

func TestAskNon2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(srv.URL, "s", time.Minute, nil)
	_, err := client.Ask(context.Background(), &AskRequest{UserID: "a", Question: "q"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAskTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Nothing listening anymore

	client := New(srv.URL, "s", time.Minute, nil)
	_, err := client.Ask(context.Background(), &AskRequest{UserID: "a", Question: "q"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAskSystemErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("SYSTEM_ERROR: retrieval pipeline died"))
	}))
	defer srv.Close()

	client := New(srv.URL, "s", time.Minute, nil)
	_, err := client.Ask(context.Background(), &AskRequest{UserID: "a", Question: "q"})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "SYSTEM_ERROR")
}

func TestAskContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := New(srv.URL, "s", time.Minute, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Ask(ctx, &AskRequest{UserID: "a", Question: "q"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewAppliesDefaultTimeout(t *testing.T) {
	client := New("http://example.invalid", "s", 0, nil)
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
}
