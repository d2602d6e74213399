package prompt

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrSessionRequired = errors.New("session id is required")

// Service keeps one prompt editor per browser session.
type Service struct {
	backend Backend
	logger  *zap.SugaredLogger
	opts    []EditorOption

	mu      sync.RWMutex
	editors map[string]*Editor
}

// NewService creates the in-memory editor registry.
func NewService(backend Backend, logger *zap.SugaredLogger, opts ...EditorOption) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		backend: backend,
		logger:  logger,
		opts:    opts,
		editors: make(map[string]*Editor),
	}
}

// Editor returns the session's editor, creating it in the loading state on
// first use.
func (s *Service) Editor(sessionID string) (*Editor, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}

	s.mu.RLock()
	editor, ok := s.editors[sessionID]
	s.mu.RUnlock()
	if ok {
		return editor, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if editor, ok := s.editors[sessionID]; ok {
		return editor, nil
	}
	editor = NewEditor(s.backend, s.logger.With("session", sessionID), s.opts...)
	s.editors[sessionID] = editor
	return editor, nil
}
