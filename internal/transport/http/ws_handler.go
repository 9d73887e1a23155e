package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

type WSHandler struct {
	broker   *app.Broker
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(broker *app.Broker, log *logrus.Logger) *WSHandler {
	return &WSHandler{
		broker: broker,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	Code     string `json:"code"`
	Role     string `json:"role"`
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
}

type startQuestionPayload struct {
	QuestionID string `json:"questionId"`
}

type submitResponsePayload struct {
	QuestionID string          `json:"questionId"`
	Answer     json.RawMessage `json:"answer"`
	ElapsedMs  int64           `json:"elapsedMs"`
}

type showResultsPayload struct {
	QuestionID string `json:"questionId"`
}

type roomJoinedPayload struct {
	Session domain.Session      `json:"session"`
	State   domain.SessionState `json:"state"`
	Role    domain.Role         `json:"role"`
}

type submissionReceivedPayload struct {
	QuestionID string `json:"questionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func errFrame(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{
		Kind:    domain.ErrorKind(err),
		Message: err.Error(),
	}}
}

// ServeWS upgrades HTTP requests to websockets and wires them into the room.
// The first frame must be a join; everything after is session traffic. Errors
// go back to this connection only, never to the room.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	var first inboundMessage
	if err := conn.ReadJSON(&first); err != nil {
		return
	}
	if first.Type != "join" {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Kind: "conflict", Message: "first message must be join"}})
		return
	}
	var join joinPayload
	if err := json.Unmarshal(first.Payload, &join); err != nil || join.Code == "" {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Kind: "conflict", Message: "invalid join payload"}})
		return
	}
	role := domain.Role(join.Role)
	if role != domain.RoleLecturer {
		role = domain.RoleStudent
	}
	if role == domain.RoleStudent && join.Nickname == "" {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Kind: "conflict", Message: "students must pick a nickname"}})
		return
	}

	member, sess, err := h.broker.Join(r.Context(), join.Code, role, join.UserID, join.Nickname)
	if err != nil {
		_ = conn.WriteJSON(errFrame(err))
		return
	}

	st, _, err := h.broker.State(r.Context(), sess.ID)
	if err != nil {
		_ = conn.WriteJSON(errFrame(err))
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	pumpDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.WithError(err).Debug("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(pumpDone)
		for {
			select {
			case ev, ok := <-member.Events():
				if !ok {
					// Room is gone (session ended or we were detached);
					// closing the conn unblocks the read loop below.
					_ = conn.Close()
					return
				}
				select {
				case send <- outboundMessage[any]{Type: ev.Type, Payload: ev.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "room_joined", Payload: roomJoinedPayload{
		Session: sess,
		State:   st,
		Role:    role,
	}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start_question":
			if !h.requireLecturer(member, send) {
				continue
			}
			var payload startQuestionPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Kind: "conflict", Message: "invalid start_question payload"}}
				continue
			}
			if err := h.broker.StartQuestion(r.Context(), sess.ID, payload.QuestionID); err != nil {
				send <- errFrame(err)
			}
		case "submit_response":
			var payload submitResponsePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Kind: "conflict", Message: "invalid submit_response payload"}}
				continue
			}
			_, _, err := h.broker.SubmitResponse(r.Context(), sess.ID, member.Participant(), payload.QuestionID, payload.Answer, payload.ElapsedMs)
			if err != nil {
				send <- errFrame(err)
				continue
			}
			send <- outboundMessage[any]{Type: "submission_received", Payload: submissionReceivedPayload{QuestionID: payload.QuestionID}}
		case "show_results":
			if !h.requireLecturer(member, send) {
				continue
			}
			var payload showResultsPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Kind: "conflict", Message: "invalid show_results payload"}}
				continue
			}
			if _, err := h.broker.ShowResults(r.Context(), sess.ID, payload.QuestionID); err != nil {
				send <- errFrame(err)
			}
		case "end_session":
			if !h.requireLecturer(member, send) {
				continue
			}
			if err := h.broker.EndSession(r.Context(), sess.ID); err != nil {
				send <- errFrame(err)
			}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Kind: "conflict", Message: "unsupported message type"}}
		}
	}

	h.broker.Disconnect(r.Context(), member)
	close(closeSignals)
	<-pumpDone
	close(send)
	<-writerDone
}

func (h *WSHandler) requireLecturer(m *app.Member, send chan<- outboundMessage[any]) bool {
	if m.Participant().Role == domain.RoleLecturer {
		return true
	}
	send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Kind: "forbidden", Message: "only the lecturer can do this"}}
	return false
}
