package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/visa-assistant/client/internal/model/chat"
)

var ErrSessionNotFound = errors.New("session not found")

// Service keeps one conversation per browser session, in memory only.
type Service struct {
	backend ReplyGenerator
	logger  *zap.SugaredLogger

	mu            sync.RWMutex
	sessions      map[string]chat.Session
	conversations map[string]*Conversation
}

// NewService bootstraps the in-memory conversation registry.
func NewService(backend ReplyGenerator, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		backend:       backend,
		logger:        logger,
		sessions:      make(map[string]chat.Session),
		conversations: make(map[string]*Conversation),
	}
}

// CreateSession provisions a fresh session with an empty conversation.
func (s *Service) CreateSession(_ context.Context) chat.Session {
	session := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.conversations[session.ID] = NewConversation(s.backend, s.logger.With("session", session.ID))
	s.mu.Unlock()

	return session
}

// Conversation returns the conversation of a session, creating both when the
// session id has not been seen yet (for example after a server restart).
func (s *Service) Conversation(_ context.Context, sessionID string) (*Conversation, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	s.mu.RLock()
	conv, ok := s.conversations[sessionID]
	s.mu.RUnlock()
	if ok {
		return conv, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[sessionID]; ok {
		return conv, nil
	}
	s.sessions[sessionID] = chat.Session{ID: sessionID, CreatedAt: time.Now().UTC()}
	conv = NewConversation(s.backend, s.logger.With("session", sessionID))
	s.conversations[sessionID] = conv
	return conv, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}
