// ABOUTME: Tests for the conversation orchestrator
// ABOUTME: Uses fake ledger and inference collaborators to drive each outcome path

package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docline/ragchat/internal/auth"
	"github.com/docline/ragchat/internal/inference"
	"github.com/docline/ragchat/internal/store"
)

// fakeLedger is an in-memory Ledger with injectable failures.
type fakeLedger struct {
	messages  []*store.Message
	appendErr error
	lastNErr  error
	allErr    error
	// failOnSpeaker makes only appends for that speaker fail
	failOnSpeaker string
}

func (f *fakeLedger) Append(ctx context.Context, userID, conversationID, speaker, content string) (*store.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.appendErr != nil && (f.failOnSpeaker == "" || f.failOnSpeaker == speaker) {
		return nil, f.appendErr
	}
	seq := 0
	for _, m := range f.messages {
		if m.UserID == userID && m.ConversationID == conversationID {
			seq++
		}
	}
	msg := &store.Message{
		ID:             int64(len(f.messages) + 1),
		UserID:         userID,
		ConversationID: conversationID,
		Speaker:        speaker,
		Content:        content,
		Seq:            seq + 1,
		CreatedAt:      time.Now().UTC(),
	}
	f.messages = append(f.messages, msg)
	return msg, nil
}

func (f *fakeLedger) LastN(ctx context.Context, userID, conversationID string, n int) ([]*store.Message, error) {
	if f.lastNErr != nil {
		return nil, f.lastNErr
	}
	scoped := f.scoped(userID, conversationID)
	if len(scoped) > n {
		scoped = scoped[len(scoped)-n:]
	}
	return scoped, nil
}

func (f *fakeLedger) All(ctx context.Context, userID, conversationID string) ([]*store.Message, error) {
	if f.allErr != nil {
		return nil, f.allErr
	}
	return f.scoped(userID, conversationID), nil
}

func (f *fakeLedger) scoped(userID, conversationID string) []*store.Message {
	out := []*store.Message{}
	for _, m := range f.messages {
		if m.UserID == userID && m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out
}

// fakeAsker records the request it received and returns a canned reply.
type fakeAsker struct {
	reply   string
	err     error
	lastReq *inference.AskRequest
}

func (f *fakeAsker) Ask(ctx context.Context, req *inference.AskRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

var testIdentity = &auth.Identity{UserID: "alice", Email: "alice@example.com"}

func TestAskRecordsBothTurns(t *testing.T) {
	ledger := &fakeLedger{}
	asker := &fakeAsker{reply: "The answer. METADATA_START:{'sources': ['doc.pdf']}:METADATA_END"}
	svc := New(ledger, asker, nil, Options{}, nil)

	result, err := svc.Ask(context.Background(), testIdentity, "What is up?", "")
	require.NoError(t, err)

	assert.Equal(t, "The answer.", result.Answer)
	assert.Equal(t, []string{"doc.pdf"}, result.Sources)
	assert.Equal(t, asker.reply, result.AIMessage, "raw reply is preserved undecoded")
	assert.Equal(t, "default", result.ConversationID)

	require.Len(t, ledger.messages, 2)
	assert.Equal(t, store.SpeakerUser, ledger.messages[0].Speaker)
	assert.Equal(t, "What is up?", ledger.messages[0].Content)
	assert.Equal(t, 1, ledger.messages[0].Seq)
	assert.Equal(t, store.SpeakerAI, ledger.messages[1].Speaker)
	assert.Equal(t, asker.reply, ledger.messages[1].Content, "AI turn stores the raw reply")
	assert.Equal(t, 2, ledger.messages[1].Seq)
}

func TestAskUnauthenticated(t *testing.T) {
	ledger := &fakeLedger{}
	svc := New(ledger, &fakeAsker{reply: "hi"}, nil, Options{}, nil)

	_, err := svc.Ask(context.Background(), nil, "question", "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Empty(t, ledger.messages, "nothing is written for unauthenticated callers")
}

func TestAskEmptyQuestion(t *testing.T) {
	ledger := &fakeLedger{}
	svc := New(ledger, &fakeAsker{reply: "hi"}, nil, Options{}, nil)

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := svc.Ask(context.Background(), testIdentity, q, "")
		assert.ErrorIs(t, err, ErrEmptyQuestion)
	}
	assert.Empty(t, ledger.messages, "blank questions never reach the ledger")
}

func TestAskAuthCheckedBeforeQuestion(t *testing.T) {
	svc := New(&fakeLedger{}, &fakeAsker{}, nil, Options{}, nil)

	_, err := svc.Ask(context.Background(), nil, "", "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAskContextWindowBounded(t *testing.T) {
	ledger := &fakeLedger{}
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := ledger.Append(ctx, "alice", "default", store.SpeakerUser, fmt.Sprintf("old %d", i))
		require.NoError(t, err)
	}

	asker := &fakeAsker{reply: "ok"}
	svc := New(ledger, asker, nil, Options{ContextWindow: 4}, nil)

	_, err := svc.Ask(ctx, testIdentity, "latest question", "")
	require.NoError(t, err)

	require.NotNil(t, asker.lastReq)
	assert.Equal(t, "alice", asker.lastReq.UserID)
	assert.Equal(t, "latest question", asker.lastReq.Question)
	require.Len(t, asker.lastReq.MessageContext, 4)
	// The just-recorded question is the newest turn in the window.
	assert.Equal(t, "latest question", asker.lastReq.MessageContext[3].Content)
	assert.Equal(t, "user", asker.lastReq.MessageContext[3].Role)
	assert.Equal(t, "old 9", asker.lastReq.MessageContext[2].Content)
}

func TestAskExplicitConversation(t *testing.T) {
	ledger := &fakeLedger{}
	asker := &fakeAsker{reply: "ok"}
	svc := New(ledger, asker, nil, Options{}, nil)

	result, err := svc.Ask(context.Background(), testIdentity, "hi", "project-x")
	require.NoError(t, err)

	assert.Equal(t, "project-x", result.ConversationID)
	assert.Equal(t, "project-x", asker.lastReq.ConversationID)
	assert.Equal(t, "project-x", ledger.messages[0].ConversationID)
}

func TestAskUserTurnWriteFailure(t *testing.T) {
	ledger := &fakeLedger{appendErr: errors.New("disk full")}
	asker := &fakeAsker{reply: "should never be called"}
	svc := New(ledger, asker, nil, Options{}, nil)

	_, err := svc.Ask(context.Background(), testIdentity, "hi", "")
	assert.ErrorIs(t, err, ErrStorage)
	assert.Nil(t, asker.lastReq, "inference is not called without a recorded question")
}

func TestAskUpstreamFailureLeavesUserTurn(t *testing.T) {
	ledger := &fakeLedger{}
	asker := &fakeAsker{err: fmt.Errorf("%w: connection refused", inference.ErrUnavailable)}
	svc := New(ledger, asker, nil, Options{}, nil)

	_, err := svc.Ask(context.Background(), testIdentity, "hi", "")
	assert.ErrorIs(t, err, ErrUpstream)

	require.Len(t, ledger.messages, 1, "the user's turn survives the failure")
	assert.Equal(t, store.SpeakerUser, ledger.messages[0].Speaker)
}

func TestAskClientDisconnectStillCompletes(t *testing.T) {
	ledger := &fakeLedger{}
	asker := &fakeAsker{reply: "the answer"}
	svc := New(ledger, asker, nil, Options{}, nil)

	// Simulate a client that disconnected before the exchange ran: net/http
	// cancels the request context, but the writes and the inference call
	// must still complete.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.Ask(ctx, testIdentity, "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "the answer", result.Answer)

	require.Len(t, ledger.messages, 2)
	assert.Equal(t, store.SpeakerUser, ledger.messages[0].Speaker)
	assert.Equal(t, store.SpeakerAI, ledger.messages[1].Speaker)
}

func TestAskAITurnWriteFailureStillAnswers(t *testing.T) {
	ledger := &fakeLedger{
		appendErr:     errors.New("disk full"),
		failOnSpeaker: store.SpeakerAI,
	}
	asker := &fakeAsker{reply: "the answer"}
	svc := New(ledger, asker, nil, Options{}, nil)

	result, err := svc.Ask(context.Background(), testIdentity, "hi", "")
	require.NoError(t, err, "AI-turn write failure is swallowed")
	assert.Equal(t, "the answer", result.Answer)

	require.Len(t, ledger.messages, 1)
	assert.Equal(t, store.SpeakerUser, ledger.messages[0].Speaker)
}

func TestHistory(t *testing.T) {
	ledger := &fakeLedger{}
	ctx := context.Background()
	_, err := ledger.Append(ctx, "alice", "default", store.SpeakerUser, "q")
	require.NoError(t, err)
	_, err = ledger.Append(ctx, "alice", "default", store.SpeakerAI, "a")
	require.NoError(t, err)
	_, err = ledger.Append(ctx, "bob", "default", store.SpeakerUser, "other")
	require.NoError(t, err)

	svc := New(ledger, &fakeAsker{}, nil, Options{}, nil)

	conversationID, messages, err := svc.History(ctx, testIdentity)
	require.NoError(t, err)
	assert.Equal(t, "default", conversationID)
	require.Len(t, messages, 2)
	assert.Equal(t, "q", messages[0].Content)
	assert.Equal(t, "a", messages[1].Content)
}

func TestHistoryUnauthenticated(t *testing.T) {
	svc := New(&fakeLedger{}, &fakeAsker{}, nil, Options{}, nil)

	_, _, err := svc.History(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestHistoryEmpty(t *testing.T) {
	svc := New(&fakeLedger{}, &fakeAsker{}, nil, Options{}, nil)

	conversationID, messages, err := svc.History(context.Background(), testIdentity)
	require.NoError(t, err)
	assert.Equal(t, "default", conversationID)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)
}

func TestRoleForSpeaker(t *testing.T) {
	assert.Equal(t, "user", RoleForSpeaker(store.SpeakerUser))
	assert.Equal(t, "assistant", RoleForSpeaker(store.SpeakerAI))
}
