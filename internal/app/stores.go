package app

import (
	"context"
	"time"

	"livequiz-service/internal/domain"
)

// StateStore holds the per-session ephemeral state (in-memory, Redis, etc).
// Every write refreshes a bounded TTL so abandoned sessions self-clean.
type StateStore interface {
	CreateState(ctx context.Context, sessionID string, st domain.SessionState) error
	GetState(ctx context.Context, sessionID string) (domain.SessionState, bool, error)
	// UpdateState applies the mutator atomically with respect to concurrent
	// writers for the same session, creating the state if absent.
	UpdateState(ctx context.Context, sessionID string, apply func(*domain.SessionState)) error
	// DeleteState removes the state and purges all participant entries.
	DeleteState(ctx context.Context, sessionID string) error

	// Participant registry. Add/remove fold the deduplicated student roster
	// into SessionState as part of the same logical operation.
	AddParticipant(ctx context.Context, sessionID string, p domain.Participant) error
	RemoveParticipant(ctx context.Context, sessionID, connID string) error
	GetParticipant(ctx context.Context, sessionID, connID string) (domain.Participant, bool, error)
	GetParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error)
}

// QuestionStore loads question-set content (from cache/backing store).
type QuestionStore interface {
	GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// ResponseStore appends and reads durable response records. Responses outlive
// the ephemeral room and back post-session analytics.
type ResponseStore interface {
	Append(ctx context.Context, r domain.Response) error
	ListByQuestion(ctx context.Context, sessionID, questionID string) ([]domain.Response, error)
	ListBySession(ctx context.Context, sessionID string) ([]domain.Response, error)
}

// SessionRecords persists the coarse lifecycle record of a session.
type SessionRecords interface {
	Create(ctx context.Context, s domain.Session) error
	Get(ctx context.Context, id string) (domain.Session, error)
	GetByJoinCode(ctx context.Context, code string) (domain.Session, error)
	SetStatus(ctx context.Context, id string, status domain.SessionStatus, endedAt *time.Time) error
}
