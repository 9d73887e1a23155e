package app

import (
	"sync"

	"livequiz-service/internal/domain"
)

// Event is one server-to-client notification fanned out to a room.
type Event struct {
	Type    string
	Payload any
}

// Event types broadcast by the broker.
const (
	EventHeadcount       = "headcount"
	EventQuestionStarted = "question_started"
	EventTimerTick       = "timer_tick"
	EventResponseCount   = "response_count"
	EventResults         = "results"
	EventSessionEnded    = "session_ended"
)

// HeadcountPayload carries the student-only, nickname-deduplicated view.
type HeadcountPayload struct {
	Count int      `json:"count"`
	Names []string `json:"names"`
}

// QuestionStartedPayload is the question body as students see it. The answer
// key never travels through here.
type QuestionStartedPayload struct {
	QuestionID   string              `json:"questionId"`
	Prompt       string              `json:"prompt"`
	Options      []string            `json:"options,omitempty"`
	Type         domain.QuestionType `json:"type"`
	TimerSeconds int                 `json:"timerSeconds,omitempty"`
}

type TimerTickPayload struct {
	Remaining int `json:"remaining"`
}

type ResponseCountPayload struct {
	QuestionID string `json:"questionId"`
	Count      int    `json:"count"`
}

// Member is one live connection inside a room. Events are delivered on a
// buffered channel that the broker closes on disconnect or session end.
type Member struct {
	sessionID   string
	participant domain.Participant
	events      chan Event
}

// Events returns the member's notification stream. The channel closes when
// the member leaves the room or the session ends.
func (m *Member) Events() <-chan Event { return m.events }

// Participant returns the registry record backing this member.
func (m *Member) Participant() domain.Participant { return m.participant }

// SessionID returns the session this member belongs to.
func (m *Member) SessionID() string { return m.sessionID }

// room owns the live connection list for one session. The member map is
// mutated only under mu, and only by the broker that owns the room.
type room struct {
	sessionID string

	mu      sync.Mutex
	members map[*Member]struct{}
	timer   *countdown
}

func newRoom(sessionID string) *room {
	return &room{
		sessionID: sessionID,
		members:   make(map[*Member]struct{}),
	}
}

// remove detaches the member and closes its event channel. It reports whether
// the member was still attached, which makes disconnect idempotent.
func (r *room) remove(m *Member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[m]; !ok {
		return false
	}
	delete(r.members, m)
	close(m.events)
	return true
}

func (r *room) isEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members) == 0
}

// closeAll detaches every member and closes their channels.
func (r *room) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for m := range r.members {
		close(m.events)
	}
	r.members = make(map[*Member]struct{})
}

// broadcast fans an event out to every member. A slow consumer gets its
// oldest pending event dropped rather than blocking the room; clients treat
// every event as a full snapshot so dropping stale ones is safe.
func (r *room) broadcast(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for m := range r.members {
		select {
		case m.events <- ev:
		default:
			select {
			case <-m.events:
			default:
			}
			m.events <- ev
		}
	}
}

// swapTimer installs the given countdown (may be nil) and returns the one it
// replaced so the caller can cancel it outside the room lock.
func (r *room) swapTimer(c *countdown) *countdown {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.timer
	r.timer = c
	return old
}

// clearTimer drops the timer reference if it still points at c. The countdown
// goroutine calls this when it expires naturally.
func (r *room) clearTimer(c *countdown) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer == c {
		r.timer = nil
	}
}

// countdown is a cancellable per-session ticker handle. stop is closed by
// cancel, done by the ticking goroutine on exit.
type countdown struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newCountdown() *countdown {
	return &countdown{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// cancel stops the countdown and waits for its goroutine to finish. Must not
// be called while holding the room lock; the goroutine takes that lock to
// broadcast ticks.
func (c *countdown) cancel() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}
