package memory

import (
	"context"
	"sync"

	"livequiz-service/internal/domain"
)

// ResponseStore is an in-memory implementation of app.ResponseStore, mainly
// for tests and the no-Postgres dev setup. Order of appends is preserved.
type ResponseStore struct {
	mu        sync.RWMutex
	responses []domain.Response
}

func NewResponseStore() *ResponseStore {
	return &ResponseStore{}
}

func (s *ResponseStore) Append(_ context.Context, r domain.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, r)
	return nil
}

func (s *ResponseStore) ListByQuestion(_ context.Context, sessionID, questionID string) ([]domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Response, 0)
	for _, r := range s.responses {
		if r.SessionID == sessionID && r.QuestionID == questionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *ResponseStore) ListBySession(_ context.Context, sessionID string) ([]domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Response, 0)
	for _, r := range s.responses {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}
