package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"livequiz-service/internal/domain"
)

// joinCodeAlphabet avoids 0/O and 1/I; codes are typed by hand on phones.
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const joinCodeLength = 6

// Lifecycle is the authoritative state machine per session:
// created -> active -> ended, monotonic, with ended final. The broker
// consults it before every operation.
type Lifecycle struct {
	records SessionRecords
	state   StateStore
	now     func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewLifecycle(records SessionRecords, state StateStore) *Lifecycle {
	return &Lifecycle{
		records: records,
		state:   state,
		now:     time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Create mints a new session in status created and seeds its ephemeral state
// in the waiting phase.
func (l *Lifecycle) Create(ctx context.Context, hostID, questionSetID string) (domain.Session, error) {
	s := domain.Session{
		ID:            uuid.NewString(),
		JoinCode:      l.newJoinCode(),
		HostID:        hostID,
		QuestionSetID: questionSetID,
		Status:        domain.StatusCreated,
		CreatedAt:     l.now(),
	}
	if err := l.records.Create(ctx, s); err != nil {
		return domain.Session{}, err
	}
	if err := l.state.CreateState(ctx, s.ID, domain.SessionState{Phase: domain.PhaseWaiting}); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

// Activate moves a created session to active. Any other starting status is an
// invalid transition.
func (l *Lifecycle) Activate(ctx context.Context, id string) (domain.Session, error) {
	s, err := l.records.Get(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if s.Status != domain.StatusCreated {
		return domain.Session{}, fmt.Errorf("%w: cannot activate a %s session", domain.ErrInvalidState, s.Status)
	}
	if err := l.records.SetStatus(ctx, id, domain.StatusActive, nil); err != nil {
		return domain.Session{}, err
	}
	s.Status = domain.StatusActive
	return s, nil
}

// End closes the session for good. Ended is final; ending twice is an invalid
// transition.
func (l *Lifecycle) End(ctx context.Context, id string) (domain.Session, error) {
	s, err := l.records.Get(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if s.Status != domain.StatusActive {
		return domain.Session{}, fmt.Errorf("%w: cannot end a %s session", domain.ErrInvalidState, s.Status)
	}
	endedAt := l.now()
	if err := l.records.SetStatus(ctx, id, domain.StatusEnded, &endedAt); err != nil {
		return domain.Session{}, err
	}
	s.Status = domain.StatusEnded
	s.EndedAt = &endedAt
	return s, nil
}

func (l *Lifecycle) Get(ctx context.Context, id string) (domain.Session, error) {
	return l.records.Get(ctx, id)
}

func (l *Lifecycle) GetByJoinCode(ctx context.Context, code string) (domain.Session, error) {
	return l.records.GetByJoinCode(ctx, code)
}

// Require loads the session and fails with ErrInvalidState unless its status
// matches.
func (l *Lifecycle) Require(ctx context.Context, id string, want domain.SessionStatus) (domain.Session, error) {
	s, err := l.records.Get(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if s.Status != want {
		return domain.Session{}, fmt.Errorf("%w: session is %s, want %s", domain.ErrInvalidState, s.Status, want)
	}
	return s, nil
}

func (l *Lifecycle) newJoinCode() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	code := make([]byte, joinCodeLength)
	for i := range code {
		code[i] = joinCodeAlphabet[l.rnd.Intn(len(joinCodeAlphabet))]
	}
	return string(code)
}
