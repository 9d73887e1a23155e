package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/infra/memory"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) (*httptest.Server, *app.Lifecycle) {
	t.Helper()
	correct := 1
	sets := map[string]domain.QuestionSet{
		"set-1": {
			ID: "set-1",
			Questions: []domain.Question{
				{
					ID:      "q1",
					Prompt:  "Pick b",
					Type:    domain.SingleSelect,
					Options: []string{"a", "b"},
					Key:     domain.AnswerKey{Index: &correct},
				},
			},
		},
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	state := memory.NewStateStore(time.Hour)
	questions := memory.NewQuestionStore(memory.NewStaticQuestionLoader(sets), 5*time.Minute)
	lifecycle := app.NewLifecycle(memory.NewSessionRecords(), state)
	broker := app.NewBroker(lifecycle, state, questions, memory.NewResponseStore(), log)

	handler := NewWSHandler(broker, log)
	srv := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	t.Cleanup(srv.Close)
	return srv, lifecycle
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteJSON(frame{Type: typ, Payload: data}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readNext drains the connection until a frame of the wanted type arrives;
// headcounts and timer ticks interleave with everything else.
func readNext(t *testing.T, conn *websocket.Conn, typ string) frame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("reading toward %s: %v", typ, err)
		}
		if f.Type == "error" {
			var e struct {
				Kind    string `json:"kind"`
				Message string `json:"message"`
			}
			_ = json.Unmarshal(f.Payload, &e)
			if typ != "error" {
				t.Fatalf("unexpected error frame while waiting for %s: %s %s", typ, e.Kind, e.Message)
			}
			return f
		}
		if f.Type == typ {
			return f
		}
	}
}

func TestWebsocketQuizFlow(t *testing.T) {
	srv, lifecycle := newTestServer(t)
	ctx := context.Background()

	sess, err := lifecycle.Create(ctx, "host-1", "set-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := lifecycle.Activate(ctx, sess.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	lecturer := dial(t, srv)
	sendFrame(t, lecturer, "join", map[string]string{"code": sess.JoinCode, "role": "lecturer", "userId": "host-1"})
	joined := readNext(t, lecturer, "room_joined")
	var roomJoined struct {
		Session domain.Session `json:"session"`
		Role    domain.Role    `json:"role"`
	}
	if err := json.Unmarshal(joined.Payload, &roomJoined); err != nil {
		t.Fatalf("unmarshal room_joined: %v", err)
	}
	if roomJoined.Session.ID != sess.ID || roomJoined.Role != domain.RoleLecturer {
		t.Fatalf("unexpected room_joined: %+v", roomJoined)
	}

	student := dial(t, srv)
	sendFrame(t, student, "join", map[string]string{"code": sess.JoinCode, "role": "student", "nickname": "A"})
	readNext(t, student, "room_joined")

	hc := readNext(t, lecturer, "headcount")
	var headcount struct {
		Count int      `json:"count"`
		Names []string `json:"names"`
	}
	for {
		if err := json.Unmarshal(hc.Payload, &headcount); err != nil {
			t.Fatalf("unmarshal headcount: %v", err)
		}
		if headcount.Count == 1 {
			break
		}
		hc = readNext(t, lecturer, "headcount")
	}
	if len(headcount.Names) != 1 || headcount.Names[0] != "A" {
		t.Fatalf("unexpected roster: %+v", headcount)
	}

	sendFrame(t, lecturer, "start_question", map[string]string{"questionId": "q1"})
	started := readNext(t, student, "question_started")
	var question struct {
		QuestionID string   `json:"questionId"`
		Options    []string `json:"options"`
	}
	if err := json.Unmarshal(started.Payload, &question); err != nil {
		t.Fatalf("unmarshal question_started: %v", err)
	}
	if question.QuestionID != "q1" || len(question.Options) != 2 {
		t.Fatalf("unexpected question: %+v", question)
	}

	sendFrame(t, student, "submit_response", map[string]any{
		"questionId": "q1",
		"answer":     1,
		"elapsedMs":  3000,
	})
	readNext(t, student, "submission_received")

	sendFrame(t, lecturer, "show_results", map[string]string{"questionId": "q1"})
	resultsFrame := readNext(t, student, "results")
	var results domain.QuestionResults
	if err := json.Unmarshal(resultsFrame.Payload, &results); err != nil {
		t.Fatalf("unmarshal results: %v", err)
	}
	if results.Correct != 1 || results.Distribution["1"] != 1 {
		t.Fatalf("unexpected results: %+v", results)
	}
	if len(results.Leaderboard) != 1 || results.Leaderboard[0].Score != 1700 {
		t.Fatalf("unexpected leaderboard: %+v", results.Leaderboard)
	}

	sendFrame(t, lecturer, "end_session", struct{}{})
	readNext(t, student, "session_ended")
}

func TestWebsocketRejectsStudentControlMessages(t *testing.T) {
	srv, lifecycle := newTestServer(t)
	ctx := context.Background()

	sess, err := lifecycle.Create(ctx, "host-1", "set-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := lifecycle.Activate(ctx, sess.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	student := dial(t, srv)
	sendFrame(t, student, "join", map[string]string{"code": sess.JoinCode, "role": "student", "nickname": "A"})
	readNext(t, student, "room_joined")

	sendFrame(t, student, "start_question", map[string]string{"questionId": "q1"})
	errf := readNext(t, student, "error")
	var e struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(errf.Payload, &e); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if e.Kind != "forbidden" {
		t.Fatalf("expected forbidden, got %q", e.Kind)
	}
}

func TestWebsocketRequiresJoinFirst(t *testing.T) {
	srv, _ := newTestServer(t)

	conn := dial(t, srv)
	sendFrame(t, conn, "start_question", map[string]string{"questionId": "q1"})
	f := readNext(t, conn, "error")
	if f.Type != "error" {
		t.Fatalf("expected error frame, got %+v", f)
	}
}

func TestWebsocketRejectsUnknownCodeAndMissingNickname(t *testing.T) {
	srv, _ := newTestServer(t)

	conn := dial(t, srv)
	sendFrame(t, conn, "join", map[string]string{"code": "NOPE42", "role": "student", "nickname": "A"})
	f := readNext(t, conn, "error")
	var e struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(f.Payload, &e); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if e.Kind != "not_found" {
		t.Fatalf("expected not_found, got %q", e.Kind)
	}

	conn2 := dial(t, srv)
	sendFrame(t, conn2, "join", map[string]string{"code": "NOPE42", "role": "student"})
	readNext(t, conn2, "error")
}
