package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/infra/memory"
)

func newSessionMux(t *testing.T) *http.ServeMux {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	lifecycle := app.NewLifecycle(memory.NewSessionRecords(), memory.NewStateStore(time.Hour))
	mux := http.NewServeMux()
	NewSessionHandler(lifecycle, log).Register(mux)
	return mux
}

func TestCreateAndActivateSession(t *testing.T) {
	mux := newSessionMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions",
		strings.NewReader(`{"hostId":"host-1","questionSetId":"set-1"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var sess domain.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.Status != domain.StatusCreated || len(sess.JoinCode) != 6 {
		t.Fatalf("unexpected session: %+v", sess)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID+"/activate", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var activated domain.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &activated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if activated.Status != domain.StatusActive {
		t.Fatalf("expected active, got %s", activated.Status)
	}

	// Activating twice maps the state-machine violation to 409.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID+"/activate", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on double activate, got %d", rec.Code)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	mux := newSessionMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"hostId":"host-1"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions/unknown/activate", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", rec.Code)
	}
}
