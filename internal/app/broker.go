package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"livequiz-service/internal/domain"
	"livequiz-service/internal/evaluate"
	"livequiz-service/internal/score"
)

// storeTimeout bounds state-store calls made from timer goroutines, which
// have no request context to inherit.
const storeTimeout = 2 * time.Second

// Broker owns one room per live session: admission, role bookkeeping, the
// countdown timer, and broadcast fan-out. All state-store writes for a
// session go through atomic read-modify-write operations, so request handling
// for the same session observes a consistent order.
type Broker struct {
	lifecycle *Lifecycle
	state     StateStore
	questions QuestionStore
	responses ResponseStore
	log       *logrus.Logger
	now       func() time.Time

	mu    sync.RWMutex
	rooms map[string]*room
}

func NewBroker(lifecycle *Lifecycle, state StateStore, questions QuestionStore, responses ResponseStore, log *logrus.Logger) *Broker {
	return &Broker{
		lifecycle: lifecycle,
		state:     state,
		questions: questions,
		responses: responses,
		log:       log,
		now:       time.Now,
		rooms:     make(map[string]*room),
	}
}

// Join resolves a join code, registers the participant, and attaches the
// connection to the session's broadcast group. Student nicknames must be
// unique within the session; the rejection goes to the caller only and leaves
// no trace in the registry.
func (b *Broker) Join(ctx context.Context, joinCode string, role domain.Role, userID, nickname string) (*Member, domain.Session, error) {
	sess, err := b.lifecycle.GetByJoinCode(ctx, joinCode)
	if err != nil {
		return nil, domain.Session{}, err
	}
	if sess.Status == domain.StatusEnded {
		return nil, domain.Session{}, domain.ErrSessionEnded
	}

	rm := b.roomFor(sess.ID)

	// Serializes same-room joins so two students cannot race the same
	// nickname past the check.
	rm.mu.Lock()
	if role == domain.RoleStudent {
		participants, err := b.state.GetParticipants(ctx, sess.ID)
		if err != nil {
			rm.mu.Unlock()
			return nil, domain.Session{}, err
		}
		for _, p := range participants {
			if p.Role == domain.RoleStudent && p.Nickname == nickname {
				rm.mu.Unlock()
				return nil, domain.Session{}, fmt.Errorf("%w: %q", domain.ErrNicknameTaken, nickname)
			}
		}
	}

	p := domain.Participant{
		ConnID:   uuid.NewString(),
		Role:     role,
		UserID:   userID,
		Nickname: nickname,
		JoinedAt: b.now(),
	}
	if err := b.state.AddParticipant(ctx, sess.ID, p); err != nil {
		rm.mu.Unlock()
		return nil, domain.Session{}, err
	}
	m := &Member{
		sessionID:   sess.ID,
		participant: p,
		events:      make(chan Event, 16),
	}
	rm.members[m] = struct{}{}
	rm.mu.Unlock()

	b.broadcastHeadcount(ctx, rm)
	b.log.WithFields(logrus.Fields{
		"session":  sess.ID,
		"role":     role,
		"nickname": nickname,
	}).Info("participant joined")
	return m, sess, nil
}

// StartQuestion pushes a new question to the room and schedules its
// countdown. Legal only while the session is active; a prior timer is
// superseded before any state changes.
func (b *Broker) StartQuestion(ctx context.Context, sessionID, questionID string) error {
	sess, err := b.lifecycle.Require(ctx, sessionID, domain.StatusActive)
	if err != nil {
		return err
	}
	set, err := b.questions.GetQuestionSet(ctx, sess.QuestionSetID)
	if err != nil {
		return err
	}
	q, ok := set.Find(questionID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, questionID)
	}

	rm := b.roomFor(sessionID)
	rm.swapTimer(nil).cancel()

	now := b.now()
	var remaining *int
	var startedAt *time.Time
	if q.TimerSeconds > 0 {
		r := q.TimerSeconds
		remaining = &r
		startedAt = &now
	}
	if err := b.state.UpdateState(ctx, sessionID, func(st *domain.SessionState) {
		st.CurrentQuestionID = q.ID
		st.Phase = domain.PhaseQuestionActive
		st.Remaining = remaining
		st.TimerStartedAt = startedAt
	}); err != nil {
		// No partial transition: nothing was broadcast, phase is unchanged.
		return err
	}

	rm.broadcast(Event{Type: EventQuestionStarted, Payload: QuestionStartedPayload{
		QuestionID:   q.ID,
		Prompt:       q.Prompt,
		Options:      q.Options,
		Type:         q.Type,
		TimerSeconds: q.TimerSeconds,
	}})

	if q.TimerSeconds > 0 {
		b.startCountdown(rm, sessionID, q.TimerSeconds)
	}
	b.log.WithFields(logrus.Fields{"session": sessionID, "question": q.ID}).Info("question started")
	return nil
}

// SubmitResponse grades a raw answer for the current question, records it
// durably, and broadcasts the updated response count (never the content).
func (b *Broker) SubmitResponse(ctx context.Context, sessionID string, p domain.Participant, questionID string, rawAnswer json.RawMessage, elapsedMs int64) (domain.Verdict, int, error) {
	sess, err := b.lifecycle.Require(ctx, sessionID, domain.StatusActive)
	if err != nil {
		return "", 0, err
	}
	set, err := b.questions.GetQuestionSet(ctx, sess.QuestionSetID)
	if err != nil {
		return "", 0, err
	}
	q, ok := set.Find(questionID)
	if !ok {
		return "", 0, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, questionID)
	}
	st, found, err := b.state.GetState(ctx, sessionID)
	if err != nil {
		return "", 0, err
	}
	if !found || st.CurrentQuestionID != questionID {
		return "", 0, fmt.Errorf("%w: %s", domain.ErrStaleQuestion, questionID)
	}

	answer := domain.ParseAnswer(q.Type, rawAnswer)
	verdict := evaluate.Evaluate(q.Type, answer, q.Key)
	points := score.Points(verdict == domain.VerdictCorrect, elapsedMs)

	resp := domain.Response{
		SessionID:   sessionID,
		QuestionID:  questionID,
		UserID:      p.UserID,
		Nickname:    p.Nickname,
		Answer:      answer,
		ElapsedMs:   elapsedMs,
		Verdict:     verdict,
		SubmittedAt: b.now(),
	}
	if err := b.responses.Append(ctx, resp); err != nil {
		return "", 0, err
	}

	rm := b.roomFor(sessionID)
	recorded, err := b.responses.ListByQuestion(ctx, sessionID, questionID)
	if err != nil {
		// The response is durably recorded; only the progress counter is lost.
		b.log.WithError(err).WithField("session", sessionID).Warn("response count unavailable")
	} else {
		rm.broadcast(Event{Type: EventResponseCount, Payload: ResponseCountPayload{
			QuestionID: questionID,
			Count:      len(recorded),
		}})
	}
	return verdict, points, nil
}

// ShowResults aggregates the distribution and correctness counts for a
// question, computes the leaderboard, and reveals both to the room.
// Responses arriving after the aggregation read are still recorded but miss
// this broadcast; that eventual-consistency gap is accepted.
func (b *Broker) ShowResults(ctx context.Context, sessionID, questionID string) (domain.QuestionResults, error) {
	if _, err := b.lifecycle.Require(ctx, sessionID, domain.StatusActive); err != nil {
		return domain.QuestionResults{}, err
	}

	forQuestion, err := b.responses.ListByQuestion(ctx, sessionID, questionID)
	if err != nil {
		return domain.QuestionResults{}, err
	}
	results := domain.QuestionResults{
		QuestionID:   questionID,
		Distribution: make(map[string]int),
	}
	for _, r := range forQuestion {
		results.Distribution[r.Answer.Label()]++
		switch r.Verdict {
		case domain.VerdictCorrect:
			results.Correct++
		case domain.VerdictIncorrect:
			results.Incorrect++
		default:
			results.Unknown++
		}
	}

	forSession, err := b.responses.ListBySession(ctx, sessionID)
	if err != nil {
		return domain.QuestionResults{}, err
	}
	results.Leaderboard = score.Leaderboard(forSession)

	if err := b.state.UpdateState(ctx, sessionID, func(st *domain.SessionState) {
		st.Phase = domain.PhaseResultsShown
	}); err != nil {
		return domain.QuestionResults{}, err
	}

	b.roomFor(sessionID).broadcast(Event{Type: EventResults, Payload: results})
	return results, nil
}

// EndSession closes the room for good: lifecycle transition, timer cancel,
// terminal broadcast, ephemeral-state purge. Durable responses survive.
func (b *Broker) EndSession(ctx context.Context, sessionID string) error {
	if _, err := b.lifecycle.End(ctx, sessionID); err != nil {
		return err
	}

	rm := b.takeRoom(sessionID)
	if rm != nil {
		rm.swapTimer(nil).cancel()
		rm.broadcast(Event{Type: EventSessionEnded, Payload: struct{}{}})
	}
	if err := b.state.DeleteState(ctx, sessionID); err != nil {
		b.log.WithError(err).WithField("session", sessionID).Warn("ephemeral state purge failed; TTL will reclaim it")
	}
	if rm != nil {
		rm.closeAll()
	}
	b.log.WithField("session", sessionID).Info("session ended")
	return nil
}

// Disconnect removes a member after connection loss. Sessions survive
// individual disconnects; only the headcount changes for everyone else.
func (b *Broker) Disconnect(ctx context.Context, m *Member) {
	if m == nil {
		return
	}
	rm := b.lookupRoom(m.sessionID)
	if rm == nil || !rm.remove(m) {
		return
	}
	if err := b.state.RemoveParticipant(ctx, m.sessionID, m.participant.ConnID); err != nil {
		b.log.WithError(err).WithField("session", m.sessionID).Warn("participant removal failed")
	}
	b.broadcastHeadcount(ctx, rm)
	if rm.isEmpty() {
		b.dropRoomIfEmpty(m.sessionID)
	}
}

// State exposes the current ephemeral state, mainly for transports that send
// a snapshot on join.
func (b *Broker) State(ctx context.Context, sessionID string) (domain.SessionState, bool, error) {
	return b.state.GetState(ctx, sessionID)
}

func (b *Broker) startCountdown(rm *room, sessionID string, seconds int) {
	c := newCountdown()
	rm.swapTimer(c).cancel()

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		remaining := seconds
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				remaining--
				left := remaining
				ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
				err := b.state.UpdateState(ctx, sessionID, func(st *domain.SessionState) {
					st.Remaining = &left
				})
				cancel()
				if err != nil {
					b.log.WithError(err).WithField("session", sessionID).Warn("timer tick persist failed")
				}
				rm.broadcast(Event{Type: EventTimerTick, Payload: TimerTickPayload{Remaining: remaining}})
				if remaining <= 0 {
					rm.clearTimer(c)
					return
				}
			}
		}
	}()
}

func (b *Broker) broadcastHeadcount(ctx context.Context, rm *room) {
	st, ok, err := b.state.GetState(ctx, rm.sessionID)
	if err != nil || !ok {
		if err != nil {
			b.log.WithError(err).WithField("session", rm.sessionID).Warn("headcount read failed")
		}
		return
	}
	names := st.StudentNames
	if names == nil {
		names = []string{}
	}
	rm.broadcast(Event{Type: EventHeadcount, Payload: HeadcountPayload{
		Count: st.StudentCount,
		Names: names,
	}})
}

func (b *Broker) roomFor(sessionID string) *room {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rm, ok := b.rooms[sessionID]; ok {
		return rm
	}
	rm := newRoom(sessionID)
	b.rooms[sessionID] = rm
	return rm
}

func (b *Broker) lookupRoom(sessionID string) *room {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rooms[sessionID]
}

// takeRoom detaches the room from the registry so no new members can join it
// while the session is being torn down.
func (b *Broker) takeRoom(sessionID string) *room {
	b.mu.Lock()
	defer b.mu.Unlock()
	rm := b.rooms[sessionID]
	delete(b.rooms, sessionID)
	return rm
}

func (b *Broker) dropRoomIfEmpty(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rm, ok := b.rooms[sessionID]
	if ok && rm.isEmpty() {
		delete(b.rooms, sessionID)
	}
}
