package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nilebyte/site/backend/internal/model/chat"
)

// Sender values recorded in a transcript.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

var (
	ErrSessionRequired = errors.New("session id is required")
	ErrSessionNotFound = errors.New("session not found")
)

// Service keeps the transcripts seen by the local automation backend, keyed
// by the session id the widget sends along with every message.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	turns    map[string][]chat.Turn
	limit    int
}

// NewService 创建内存版会话记录服务。limit <= 0 表示不截断。
func NewService(limit int) *Service {
	return &Service{
		sessions: make(map[string]chat.Session),
		turns:    make(map[string][]chat.Turn),
		limit:    limit,
	}
}

// EnsureSession registers sessionID on first sight and returns it.
func (s *Service) EnsureSession(_ context.Context, sessionID string) (chat.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return chat.Session{}, ErrSessionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[sessionID]; ok {
		return session, nil
	}

	session := chat.Session{ID: sessionID, CreatedAt: time.Now().UTC()}
	s.sessions[sessionID] = session
	s.turns[sessionID] = make([]chat.Turn, 0, 16)
	return session, nil
}

// SaveTurn appends a turn to the session transcript.
func (s *Service) SaveTurn(_ context.Context, turn chat.Turn) error {
	if turn.SessionID == "" {
		return ErrSessionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[turn.SessionID]; !ok {
		return ErrSessionNotFound
	}

	turn.ID = uuid.NewString()
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	turns := append(s.turns[turn.SessionID], turn)
	if s.limit > 0 && len(turns) > s.limit {
		turns = append(turns[:0:0], turns[len(turns)-s.limit:]...)
	}
	s.turns[turn.SessionID] = turns
	return nil
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

// LoadTranscript returns the stored turns for the session, oldest first.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns, ok := s.turns[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Turn, len(turns))
	copy(copied, turns)
	return copied, nil
}
