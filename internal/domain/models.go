package domain

import "time"

// SessionStatus is the coarse lifecycle status of a session. Transitions are
// monotonic: created -> active -> ended.
type SessionStatus string

const (
	StatusCreated SessionStatus = "created"
	StatusActive  SessionStatus = "active"
	StatusEnded   SessionStatus = "ended"
)

// Role identifies what a participant may do inside a room.
type Role string

const (
	RoleLecturer Role = "lecturer"
	RoleStudent  Role = "student"
)

// Phase is the sub-state of an active session.
type Phase string

const (
	PhaseWaiting        Phase = "waiting"
	PhaseQuestionActive Phase = "question_active"
	PhaseResultsShown   Phase = "results_shown"
	PhaseEnded          Phase = "ended"
)

// QuestionType selects the answer shape and the correctness rule.
type QuestionType string

const (
	SingleSelect QuestionType = "single_select"
	TrueFalse    QuestionType = "true_false"
	MultiSelect  QuestionType = "multi_select"
	ShortText    QuestionType = "short_text"
	LongText     QuestionType = "long_text"
)

// Verdict is tri-state correctness. Unknown means the answer could not be
// auto-graded and needs manual review.
type Verdict string

const (
	VerdictCorrect   Verdict = "correct"
	VerdictIncorrect Verdict = "incorrect"
	VerdictUnknown   Verdict = "unknown"
)

// Session identifies one live quiz run joinable by a short code.
type Session struct {
	ID            string        `json:"id"`
	JoinCode      string        `json:"joinCode"`
	HostID        string        `json:"hostId"`
	QuestionSetID string        `json:"questionSetId"`
	Status        SessionStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	EndedAt       *time.Time    `json:"endedAt,omitempty"`
}

// Participant is one connected actor inside a session room. Records are
// ephemeral: created on join, destroyed on disconnect or session end.
type Participant struct {
	ConnID   string    `json:"connId"`
	Role     Role      `json:"role"`
	UserID   string    `json:"userId,omitempty"`
	Nickname string    `json:"nickname,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
}

// SessionState is the single mutable ephemeral record per session. It is a
// cache with a bounded TTL, not the source of truth for historical results.
type SessionState struct {
	CurrentQuestionID string     `json:"currentQuestionId,omitempty"`
	Remaining         *int       `json:"remaining,omitempty"`
	TimerStartedAt    *time.Time `json:"timerStartedAt,omitempty"`
	Phase             Phase      `json:"phase"`
	StudentCount      int        `json:"studentCount"`
	StudentNames      []string   `json:"studentNames,omitempty"`
}

// AnswerKey is the grading key for a question. Exactly one of the groups is
// populated depending on the question type; it is never broadcast to clients.
type AnswerKey struct {
	Index    *int     `json:"index,omitempty"`
	Text     string   `json:"text,omitempty"`
	Indices  []int    `json:"indices,omitempty"`
	Accepted []string `json:"accepted,omitempty"`
}

// Question models a single timed question inside a set.
type Question struct {
	ID           string       `json:"id"`
	Prompt       string       `json:"prompt"`
	Type         QuestionType `json:"type"`
	Options      []string     `json:"options,omitempty"`
	TimerSeconds int          `json:"timerSeconds,omitempty"`
	Key          AnswerKey    `json:"key"`
}

// QuestionSet is an ordered collection of questions.
type QuestionSet struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// Find returns the question with the given id, if present in the set.
func (s QuestionSet) Find(questionID string) (Question, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == questionID {
			return s.Questions[i], true
		}
	}
	return Question{}, false
}

// Response is one submitted answer, durably recorded with its verdict.
type Response struct {
	SessionID   string    `json:"sessionId"`
	QuestionID  string    `json:"questionId"`
	UserID      string    `json:"userId,omitempty"`
	Nickname    string    `json:"nickname,omitempty"`
	Answer      Answer    `json:"answer"`
	ElapsedMs   int64     `json:"elapsedMs"`
	Verdict     Verdict   `json:"verdict"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Identity returns the durable identity of the submitter, falling back to the
// nickname for anonymous students.
func (r Response) Identity() string {
	if r.UserID != "" {
		return r.UserID
	}
	return r.Nickname
}

// RankingEntry is a derived leaderboard row; never persisted.
type RankingEntry struct {
	Rank         int    `json:"rank"`
	Identity     string `json:"identity"`
	Nickname     string `json:"nickname"`
	CorrectCount int    `json:"correctCount"`
	Score        int    `json:"score"`
	AvgElapsedMs int64  `json:"avgElapsedMs"`
}

// QuestionResults aggregates what gets revealed when the lecturer shows
// results for a question.
type QuestionResults struct {
	QuestionID   string         `json:"questionId"`
	Distribution map[string]int `json:"distribution"`
	Correct      int            `json:"correct"`
	Incorrect    int            `json:"incorrect"`
	Unknown      int            `json:"unknown"`
	Leaderboard  []RankingEntry `json:"leaderboard,omitempty"`
}
