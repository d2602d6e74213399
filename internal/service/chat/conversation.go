package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/visa-assistant/client/internal/model/chat"
	"github.com/zhouzirui/visa-assistant/client/pkg/assistantapi"
)

const (
	// ApologyMessage is appended as a consultant turn when the backend fails.
	ApologyMessage = "Sorry, I encountered an error. Please try again."
	// ReplyErrorText is the error string recorded alongside the apology.
	ReplyErrorText = "Failed to get a reply from the assistant."
)

var (
	ErrEmptyInput            = errors.New("message is empty")
	ErrBusy                  = errors.New("a reply is already pending")
	ErrMessageNotFound       = errors.New("message not found")
	ErrInvalidFeedbackTarget = errors.New("feedback applies to consultant messages only")
)

// ReplyGenerator is the slice of the backend the chat view needs.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, req assistantapi.GenerateReplyRequest) (*assistantapi.GenerateReplyResponse, error)
}

// Snapshot is a consistent copy of the conversation state.
type Snapshot struct {
	Messages []chat.Message        `json:"messages"`
	Input    string                `json:"input"`
	Loading  bool                  `json:"loading"`
	Error    string                `json:"error,omitempty"`
	Feedback map[int]chat.Feedback `json:"feedback"`
}

// Conversation is the chat view state machine: idle -> sending -> idle.
type Conversation struct {
	backend ReplyGenerator
	logger  *zap.SugaredLogger

	mu       sync.Mutex
	messages []chat.Message
	input    string
	loading  bool
	errText  string
	feedback map[int]chat.Feedback
	// epoch changes on Clear so replies to a cleared conversation are dropped.
	epoch uint64

	subs    map[int]chan Snapshot
	nextSub int
}

// NewConversation returns an empty conversation backed by backend.
func NewConversation(backend ReplyGenerator, logger *zap.SugaredLogger) *Conversation {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Conversation{
		backend:  backend,
		logger:   logger,
		feedback: make(map[int]chat.Feedback),
		subs:     make(map[int]chan Snapshot),
	}
}

// Exchange is a client turn that has been appended and awaits its reply.
type Exchange struct {
	conv    *Conversation
	epoch   uint64
	text    string
	history []assistantapi.ChatMessage
}

// Text returns the client message sent in this exchange.
func (e *Exchange) Text() string {
	return e.text
}

// SetInput replaces the input buffer.
func (c *Conversation) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = text
	c.publishLocked()
}

// Start appends the client turn built from the input buffer, clears the input
// and marks the conversation as loading. The returned Exchange must be
// completed to obtain the consultant turn.
func (c *Conversation) Start() (*Exchange, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	text := strings.TrimSpace(c.input)
	if text == "" {
		return nil, ErrEmptyInput
	}
	if c.loading {
		return nil, ErrBusy
	}

	history := make([]assistantapi.ChatMessage, 0, len(c.messages))
	for _, msg := range c.messages {
		history = append(history, assistantapi.ChatMessage{Role: assistantapi.Role(msg.Role), Message: msg.Message})
	}

	c.messages = append(c.messages, chat.Message{Role: chat.RoleClient, Message: text})
	c.input = ""
	c.loading = true
	c.publishLocked()

	return &Exchange{conv: c, epoch: c.epoch, text: text, history: history}, nil
}

// Complete calls the backend and appends the consultant turn, or the apology
// when the call fails. It blocks until the backend answers.
func (e *Exchange) Complete(ctx context.Context) {
	resp, err := e.conv.backend.GenerateReply(ctx, assistantapi.GenerateReplyRequest{
		ClientSequence: e.text,
		ChatHistory:    e.history,
	})

	c := e.conv
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != e.epoch {
		c.logger.Debugw("dropping reply for cleared conversation", "error", err)
		return
	}

	c.loading = false
	if err != nil {
		c.logger.Errorw("error generating reply", "error", err)
		c.messages = append(c.messages, chat.Message{Role: chat.RoleConsultant, Message: ApologyMessage})
		c.errText = ReplyErrorText
	} else {
		c.messages = append(c.messages, chat.Message{Role: chat.RoleConsultant, Message: resp.AIReply})
	}
	c.publishLocked()
}

// Send is Start followed by Complete.
func (c *Conversation) Send(ctx context.Context) error {
	exchange, err := c.Start()
	if err != nil {
		return err
	}
	exchange.Complete(ctx)
	return nil
}

// Retry drops the last message and puts the last client message back into
// the input buffer. It never resends on its own.
func (c *Conversation) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loading {
		return ErrBusy
	}
	if len(c.messages) == 0 {
		return nil
	}

	lastClient := ""
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == chat.RoleClient {
			lastClient = c.messages[i].Message
			break
		}
	}

	last := len(c.messages) - 1
	c.messages = c.messages[:last]
	delete(c.feedback, last)
	c.input = lastClient
	c.errText = ""
	c.publishLocked()
	return nil
}

// Clear resets every piece of local state.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = nil
	c.input = ""
	c.loading = false
	c.errText = ""
	c.feedback = make(map[int]chat.Feedback)
	c.epoch++
	c.publishLocked()
}

// Rate annotates a consultant message. Rating it with its current value
// resets the annotation to none.
func (c *Conversation) Rate(index int, value chat.Feedback) (chat.Feedback, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.messages) {
		return "", ErrMessageNotFound
	}
	if c.messages[index].Role != chat.RoleConsultant {
		return "", ErrInvalidFeedbackTarget
	}

	if value == chat.FeedbackNone || c.feedback[index] == value {
		delete(c.feedback, index)
		c.publishLocked()
		return chat.FeedbackNone, nil
	}

	c.feedback[index] = value
	c.publishLocked()
	return value, nil
}

// Feedback returns the annotation of a message, none when unset.
func (c *Conversation) Feedback(index int) chat.Feedback {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fb, ok := c.feedback[index]; ok {
		return fb
	}
	return chat.FeedbackNone
}

// Copy returns the text of a message for the clipboard.
func (c *Conversation) Copy(index int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.messages) {
		return "", ErrMessageNotFound
	}
	return c.messages[index].Message, nil
}

// Snapshot returns a copy of the current state.
func (c *Conversation) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a feed of snapshots taken after every state change. Slow
// readers only ever see the latest snapshot. The returned func unsubscribes.
func (c *Conversation) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Snapshot, 1)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

func (c *Conversation) snapshotLocked() Snapshot {
	messages := make([]chat.Message, len(c.messages))
	copy(messages, c.messages)

	feedback := make(map[int]chat.Feedback, len(c.feedback))
	for idx, fb := range c.feedback {
		feedback[idx] = fb
	}

	return Snapshot{
		Messages: messages,
		Input:    c.input,
		Loading:  c.loading,
		Error:    c.errText,
		Feedback: feedback,
	}
}

func (c *Conversation) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
