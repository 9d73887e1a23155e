package http

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

// SessionHandler exposes the lecturer-facing lifecycle endpoints: create a
// session (mints the join code) and activate it. Everything else happens over
// the websocket.
type SessionHandler struct {
	lifecycle *app.Lifecycle
	log       *logrus.Logger
}

func NewSessionHandler(lifecycle *app.Lifecycle, log *logrus.Logger) *SessionHandler {
	return &SessionHandler{lifecycle: lifecycle, log: log}
}

// Register mounts the handler's routes on the mux.
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /sessions", h.create)
	mux.HandleFunc("POST /sessions/{id}/activate", h.activate)
}

type createSessionRequest struct {
	HostID        string `json:"hostId"`
	QuestionSetID string `json:"questionSetId"`
}

func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.HostID == "" || req.QuestionSetID == "" {
		writeError(w, http.StatusBadRequest, "hostId and questionSetId are required")
		return
	}
	sess, err := h.lifecycle.Create(r.Context(), req.HostID, req.QuestionSetID)
	if err != nil {
		h.log.WithError(err).Warn("session create failed")
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *SessionHandler) activate(w http.ResponseWriter, r *http.Request) {
	sess, err := h.lifecycle.Activate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func statusFor(err error) int {
	switch domain.ErrorKind(err) {
	case "not_found":
		return http.StatusNotFound
	case "conflict", "invalid_state":
		return http.StatusConflict
	case "transient":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
