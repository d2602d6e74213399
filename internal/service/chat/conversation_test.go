package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/visa-assistant/client/internal/model/chat"
	"github.com/zhouzirui/visa-assistant/client/internal/service/chat"
	"github.com/zhouzirui/visa-assistant/client/pkg/assistantapi"
)

type fakeBackend struct {
	mu       sync.Mutex
	requests []assistantapi.GenerateReplyRequest
	reply    func(req assistantapi.GenerateReplyRequest) (string, error)
	gate     chan struct{}
}

func (f *fakeBackend) GenerateReply(_ context.Context, req assistantapi.GenerateReplyRequest) (*assistantapi.GenerateReplyResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	text, err := f.reply(req)
	if err != nil {
		return nil, err
	}
	return &assistantapi.GenerateReplyResponse{AIReply: text}, nil
}

func echoBackend() *fakeBackend {
	return &fakeBackend{reply: func(req assistantapi.GenerateReplyRequest) (string, error) {
		return "re: " + req.ClientSequence, nil
	}}
}

func send(t *testing.T, conv *chat.Conversation, text string) {
	t.Helper()
	conv.SetInput(text)
	require.NoError(t, conv.Send(context.Background()))
}

func TestSendAppendsClientThenConsultant(t *testing.T) {
	backend := &fakeBackend{reply: func(assistantapi.GenerateReplyRequest) (string, error) {
		return "You can apply online.", nil
	}}
	conv := chat.NewConversation(backend, nil)

	send(t, conv, "How do I apply for a DTV visa?")

	snap := conv.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, model.Message{Role: model.RoleClient, Message: "How do I apply for a DTV visa?"}, snap.Messages[0])
	assert.Equal(t, model.Message{Role: model.RoleConsultant, Message: "You can apply online."}, snap.Messages[1])
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Input)

	require.Len(t, backend.requests, 1)
	assert.Equal(t, "How do I apply for a DTV visa?", backend.requests[0].ClientSequence)
	assert.Empty(t, backend.requests[0].ChatHistory)
}

func TestClientTurnVisibleBeforeReply(t *testing.T) {
	backend := echoBackend()
	backend.gate = make(chan struct{})
	conv := chat.NewConversation(backend, nil)

	conv.SetInput("  hello  ")
	exchange, err := conv.Start()
	require.NoError(t, err)
	assert.Equal(t, "hello", exchange.Text())

	snap := conv.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.True(t, snap.Loading)
	assert.Empty(t, snap.Input)

	done := make(chan struct{})
	go func() {
		exchange.Complete(context.Background())
		close(done)
	}()
	close(backend.gate)
	<-done

	snap = conv.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "re: hello", snap.Messages[1].Message)
	assert.False(t, snap.Loading)
}

func TestMessageOrderFollowsSendOrder(t *testing.T) {
	backend := echoBackend()
	conv := chat.NewConversation(backend, nil)

	inputs := []string{"one", "two", "three"}
	for _, in := range inputs {
		send(t, conv, in)
	}

	snap := conv.Snapshot()
	require.Len(t, snap.Messages, 6)
	for i, in := range inputs {
		assert.Equal(t, model.Message{Role: model.RoleClient, Message: in}, snap.Messages[2*i])
		assert.Equal(t, model.Message{Role: model.RoleConsultant, Message: "re: " + in}, snap.Messages[2*i+1])
	}

	require.Len(t, backend.requests, 3)
	assert.Len(t, backend.requests[2].ChatHistory, 4)
	assert.Equal(t, assistantapi.ChatMessage{Role: assistantapi.RoleConsultant, Message: "re: two"}, backend.requests[2].ChatHistory[3])
}

func TestSendFailureAppendsApology(t *testing.T) {
	backend := &fakeBackend{reply: func(assistantapi.GenerateReplyRequest) (string, error) {
		return "", errors.New("boom")
	}}
	conv := chat.NewConversation(backend, nil)

	send(t, conv, "hi")

	snap := conv.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, model.Message{Role: model.RoleConsultant, Message: chat.ApologyMessage}, snap.Messages[1])
	assert.Equal(t, chat.ReplyErrorText, snap.Error)
	assert.False(t, snap.Loading)
}

func TestSendRejectsBlankAndBusy(t *testing.T) {
	backend := echoBackend()
	backend.gate = make(chan struct{})
	conv := chat.NewConversation(backend, nil)

	conv.SetInput("   ")
	assert.ErrorIs(t, conv.Send(context.Background()), chat.ErrEmptyInput)

	conv.SetInput("first")
	exchange, err := conv.Start()
	require.NoError(t, err)

	conv.SetInput("second")
	_, err = conv.Start()
	assert.ErrorIs(t, err, chat.ErrBusy)
	assert.ErrorIs(t, conv.Retry(), chat.ErrBusy)

	close(backend.gate)
	exchange.Complete(context.Background())
	assert.Len(t, conv.Snapshot().Messages, 2)
}

func TestRetryRepopulatesInputWithoutResending(t *testing.T) {
	backend := echoBackend()
	conv := chat.NewConversation(backend, nil)
	send(t, conv, "first question")
	send(t, conv, "second question")

	require.NoError(t, conv.Retry())

	snap := conv.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, model.RoleClient, snap.Messages[2].Role)
	assert.Equal(t, "second question", snap.Input)
	assert.Len(t, backend.requests, 2)
}

func TestRetryOnEmptyConversationIsNoop(t *testing.T) {
	conv := chat.NewConversation(echoBackend(), nil)
	require.NoError(t, conv.Retry())
	assert.Empty(t, conv.Snapshot().Messages)
	assert.Empty(t, conv.Snapshot().Input)
}

func TestClearResetsEverything(t *testing.T) {
	conv := chat.NewConversation(echoBackend(), nil)
	send(t, conv, "hello")
	_, err := conv.Rate(1, model.FeedbackUp)
	require.NoError(t, err)
	conv.SetInput("draft")

	conv.Clear()

	snap := conv.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Feedback)
	assert.Empty(t, snap.Input)
	assert.Empty(t, snap.Error)
	assert.False(t, snap.Loading)
}

func TestReplyAfterClearIsDropped(t *testing.T) {
	backend := echoBackend()
	backend.gate = make(chan struct{})
	conv := chat.NewConversation(backend, nil)

	conv.SetInput("hello")
	exchange, err := conv.Start()
	require.NoError(t, err)

	conv.Clear()
	close(backend.gate)
	exchange.Complete(context.Background())

	snap := conv.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.False(t, snap.Loading)
}

func TestRateTogglesAndValidates(t *testing.T) {
	conv := chat.NewConversation(echoBackend(), nil)
	send(t, conv, "hello")

	got, err := conv.Rate(1, model.FeedbackUp)
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackUp, got)
	assert.Equal(t, model.FeedbackUp, conv.Feedback(1))

	got, err = conv.Rate(1, model.FeedbackDown)
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackDown, got)

	got, err = conv.Rate(1, model.FeedbackDown)
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackNone, got)
	assert.Equal(t, model.FeedbackNone, conv.Feedback(1))

	_, err = conv.Rate(0, model.FeedbackUp)
	assert.ErrorIs(t, err, chat.ErrInvalidFeedbackTarget)
	_, err = conv.Rate(5, model.FeedbackUp)
	assert.ErrorIs(t, err, chat.ErrMessageNotFound)
}

func TestRetryDropsFeedbackOfRemovedMessage(t *testing.T) {
	conv := chat.NewConversation(echoBackend(), nil)
	send(t, conv, "hello")
	_, err := conv.Rate(1, model.FeedbackDown)
	require.NoError(t, err)

	require.NoError(t, conv.Retry())
	assert.Empty(t, conv.Snapshot().Feedback)
}

func TestCopyReturnsMessageText(t *testing.T) {
	conv := chat.NewConversation(echoBackend(), nil)
	send(t, conv, "hello")

	text, err := conv.Copy(1)
	require.NoError(t, err)
	assert.Equal(t, "re: hello", text)

	_, err = conv.Copy(-1)
	assert.ErrorIs(t, err, chat.ErrMessageNotFound)
}

func TestSubscribeReceivesLatestSnapshot(t *testing.T) {
	conv := chat.NewConversation(echoBackend(), nil)
	updates, cancel := conv.Subscribe()
	defer cancel()

	send(t, conv, "hello")

	select {
	case snap := <-updates:
		assert.Len(t, snap.Messages, 2)
		assert.False(t, snap.Loading)
	case <-time.After(time.Second):
		t.Fatal("expected a snapshot")
	}

	cancel()
	_, open := <-updates
	assert.False(t, open)
}

func TestSnapshotIsACopy(t *testing.T) {
	conv := chat.NewConversation(echoBackend(), nil)
	send(t, conv, "hello")

	snap := conv.Snapshot()
	snap.Messages[0].Message = "mutated"
	snap.Feedback[1] = model.FeedbackUp

	fresh := conv.Snapshot()
	assert.Equal(t, "hello", fresh.Messages[0].Message)
	assert.Empty(t, fresh.Feedback)
}
