package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no session exists for the given id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUnknownJoinCode is returned when a join code resolves to nothing.
	ErrUnknownJoinCode = errors.New("join code not recognized")
	// ErrQuestionNotFound indicates the question id is not in the session's set.
	ErrQuestionNotFound = errors.New("question not found in set")
	// ErrQuestionSetNotFound indicates the question set could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrNicknameTaken rejects a student join reusing a registered nickname.
	ErrNicknameTaken = errors.New("nickname already taken in this session")
	// ErrSessionEnded rejects joins and submissions against a finished session.
	ErrSessionEnded = errors.New("session has already ended")
	// ErrStaleQuestion rejects submissions that reference a superseded question.
	ErrStaleQuestion = errors.New("question is not the current question")
	// ErrInvalidState gates operations attempted outside their legal lifecycle phase.
	ErrInvalidState = errors.New("operation not allowed in current session status")
	// ErrStoreUnavailable wraps transient collaborator-store failures.
	ErrStoreUnavailable = errors.New("backing store unavailable")
)

// ErrorKind buckets an error into the coarse taxonomy reported to clients.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrUnknownJoinCode),
		errors.Is(err, ErrQuestionNotFound),
		errors.Is(err, ErrQuestionSetNotFound):
		return "not_found"
	case errors.Is(err, ErrNicknameTaken),
		errors.Is(err, ErrSessionEnded),
		errors.Is(err, ErrStaleQuestion):
		return "conflict"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrStoreUnavailable):
		return "transient"
	default:
		return "internal"
	}
}
