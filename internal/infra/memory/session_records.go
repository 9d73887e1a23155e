package memory

import (
	"context"
	"sync"
	"time"

	"livequiz-service/internal/domain"
)

// SessionRecords is an in-memory implementation of app.SessionRecords.
type SessionRecords struct {
	mu       sync.RWMutex
	byID     map[string]domain.Session
	byCode   map[string]string
}

func NewSessionRecords() *SessionRecords {
	return &SessionRecords{
		byID:   make(map[string]domain.Session),
		byCode: make(map[string]string),
	}
}

func (s *SessionRecords) Create(_ context.Context, sess domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[sess.ID] = sess
	s.byCode[sess.JoinCode] = sess.ID
	return nil
}

func (s *SessionRecords) Get(_ context.Context, id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *SessionRecords) GetByJoinCode(_ context.Context, code string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return domain.Session{}, domain.ErrUnknownJoinCode
	}
	return s.byID[id], nil
}

func (s *SessionRecords) SetStatus(_ context.Context, id string, status domain.SessionStatus, endedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	sess.Status = status
	sess.EndedAt = endedAt
	s.byID[id] = sess
	return nil
}
