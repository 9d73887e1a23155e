package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/infra/memory"
)

func newTestLifecycle() *app.Lifecycle {
	return app.NewLifecycle(memory.NewSessionRecords(), memory.NewStateStore(time.Hour))
}

func TestLifecycleTransitions(t *testing.T) {
	ctx := context.Background()
	lc := newTestLifecycle()

	sess, err := lc.Create(ctx, "host-1", "set-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.Status != domain.StatusCreated {
		t.Fatalf("expected created, got %s", sess.Status)
	}
	if len(sess.JoinCode) != 6 {
		t.Fatalf("expected 6-char join code, got %q", sess.JoinCode)
	}

	sess, err = lc.Activate(ctx, sess.ID)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if sess.Status != domain.StatusActive {
		t.Fatalf("expected active, got %s", sess.Status)
	}

	sess, err = lc.End(ctx, sess.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if sess.Status != domain.StatusEnded || sess.EndedAt == nil {
		t.Fatalf("expected ended with timestamp, got %+v", sess)
	}
}

func TestLifecycleRejectsIllegalTransitions(t *testing.T) {
	ctx := context.Background()
	lc := newTestLifecycle()

	sess, err := lc.Create(ctx, "host-1", "set-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Ending before activation is not a defined transition.
	if _, err := lc.End(ctx, sess.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}

	if _, err := lc.Activate(ctx, sess.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := lc.Activate(ctx, sess.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state on double activate, got %v", err)
	}

	if _, err := lc.End(ctx, sess.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	// Ended is final.
	if _, err := lc.End(ctx, sess.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state on double end, got %v", err)
	}
	if _, err := lc.Activate(ctx, sess.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state reactivating ended session, got %v", err)
	}
}

func TestLifecycleGetByJoinCode(t *testing.T) {
	ctx := context.Background()
	lc := newTestLifecycle()

	sess, err := lc.Create(ctx, "host-1", "set-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := lc.GetByJoinCode(ctx, sess.JoinCode)
	if err != nil || got.ID != sess.ID {
		t.Fatalf("expected session by code, got %+v err=%v", got, err)
	}
	if _, err := lc.GetByJoinCode(ctx, "NOPE42"); !errors.Is(err, domain.ErrUnknownJoinCode) {
		t.Fatalf("expected unknown join code, got %v", err)
	}
}
