package memory

import (
	"context"
	"sync"
	"time"

	"livequiz-service/internal/domain"
)

// StateStore is an in-memory implementation of app.StateStore. Entries expire
// lazily: an abandoned session's state becomes unreadable once its TTL has
// passed, matching the self-cleaning behavior of the Redis store.
type StateStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu           sync.Mutex
	states       map[string]*stateEntry
	participants map[string]map[string]domain.Participant
}

type stateEntry struct {
	state     domain.SessionState
	expiresAt time.Time
}

func NewStateStore(ttl time.Duration) *StateStore {
	return &StateStore{
		ttl:          ttl,
		clock:        time.Now,
		states:       make(map[string]*stateEntry),
		participants: make(map[string]map[string]domain.Participant),
	}
}

// NewStateStoreWithClock is test-only for deterministic expiry.
func NewStateStoreWithClock(ttl time.Duration, clock func() time.Time) *StateStore {
	s := NewStateStore(ttl)
	s.clock = clock
	return s
}

func (s *StateStore) CreateState(_ context.Context, sessionID string, st domain.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sessionID] = &stateEntry{state: st, expiresAt: s.clock().Add(s.ttl)}
	return nil
}

func (s *StateStore) GetState(_ context.Context, sessionID string) (domain.SessionState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.liveEntryLocked(sessionID)
	if entry == nil {
		return domain.SessionState{}, false, nil
	}
	return entry.state, true, nil
}

func (s *StateStore) UpdateState(_ context.Context, sessionID string, apply func(*domain.SessionState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateLocked(sessionID, apply)
	return nil
}

func (s *StateStore) DeleteState(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)
	delete(s.participants, sessionID)
	return nil
}

func (s *StateStore) AddParticipant(_ context.Context, sessionID string, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.participants[sessionID]
	if !ok {
		members = make(map[string]domain.Participant)
		s.participants[sessionID] = members
	}
	members[p.ConnID] = p
	s.foldRosterLocked(sessionID, members)
	return nil
}

func (s *StateStore) RemoveParticipant(_ context.Context, sessionID, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.participants[sessionID]
	if !ok {
		return nil
	}
	delete(members, connID)
	s.foldRosterLocked(sessionID, members)
	return nil
}

func (s *StateStore) GetParticipant(_ context.Context, sessionID, connID string) (domain.Participant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[sessionID][connID]
	return p, ok, nil
}

func (s *StateStore) GetParticipants(_ context.Context, sessionID string) ([]domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.participants[sessionID]
	out := make([]domain.Participant, 0, len(members))
	for _, p := range members {
		out = append(out, p)
	}
	return out, nil
}

// foldRosterLocked folds the deduplicated student roster into the state in
// the same critical section that changed the registry.
func (s *StateStore) foldRosterLocked(sessionID string, members map[string]domain.Participant) {
	list := make([]domain.Participant, 0, len(members))
	for _, p := range members {
		list = append(list, p)
	}
	s.updateLocked(sessionID, func(st *domain.SessionState) {
		domain.FoldRoster(st, list)
	})
}

func (s *StateStore) updateLocked(sessionID string, apply func(*domain.SessionState)) {
	entry := s.liveEntryLocked(sessionID)
	if entry == nil {
		entry = &stateEntry{state: domain.SessionState{Phase: domain.PhaseWaiting}}
		s.states[sessionID] = entry
	}
	apply(&entry.state)
	entry.expiresAt = s.clock().Add(s.ttl)
}

func (s *StateStore) liveEntryLocked(sessionID string) *stateEntry {
	entry, ok := s.states[sessionID]
	if !ok {
		return nil
	}
	if !entry.expiresAt.After(s.clock()) {
		delete(s.states, sessionID)
		delete(s.participants, sessionID)
		return nil
	}
	return entry
}
