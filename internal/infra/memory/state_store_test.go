package memory

import (
	"context"
	"testing"
	"time"

	"livequiz-service/internal/domain"
)

func TestStateStoreExpiresEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewStateStoreWithClock(time.Minute, func() time.Time { return now })

	if err := store.CreateState(ctx, "s1", domain.SessionState{Phase: domain.PhaseWaiting}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok, _ := store.GetState(ctx, "s1"); !ok {
		t.Fatalf("expected state before expiry")
	}

	// Activity refreshes the TTL.
	now = now.Add(50 * time.Second)
	if err := store.UpdateState(ctx, "s1", func(st *domain.SessionState) {
		st.Phase = domain.PhaseQuestionActive
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	now = now.Add(50 * time.Second)
	st, ok, _ := store.GetState(ctx, "s1")
	if !ok || st.Phase != domain.PhaseQuestionActive {
		t.Fatalf("expected refreshed state, got ok=%v %+v", ok, st)
	}

	// A full idle TTL reclaims state and participants together.
	if err := store.AddParticipant(ctx, "s1", domain.Participant{ConnID: "c1", Role: domain.RoleStudent, Nickname: "A"}); err != nil {
		t.Fatalf("add participant: %v", err)
	}
	now = now.Add(61 * time.Second)
	if _, ok, _ := store.GetState(ctx, "s1"); ok {
		t.Fatalf("expected state expired")
	}
	participants, _ := store.GetParticipants(ctx, "s1")
	if len(participants) != 0 {
		t.Fatalf("expected participants reclaimed with state, got %d", len(participants))
	}
}

func TestStateStoreFoldsRoster(t *testing.T) {
	ctx := context.Background()
	store := NewStateStore(time.Hour)
	if err := store.CreateState(ctx, "s1", domain.SessionState{Phase: domain.PhaseWaiting}); err != nil {
		t.Fatalf("create: %v", err)
	}

	add := func(connID string, role domain.Role, nickname string) {
		t.Helper()
		err := store.AddParticipant(ctx, "s1", domain.Participant{ConnID: connID, Role: role, Nickname: nickname})
		if err != nil {
			t.Fatalf("add %s: %v", connID, err)
		}
	}
	add("c1", domain.RoleLecturer, "")
	add("c2", domain.RoleStudent, "B")
	add("c3", domain.RoleStudent, "A")
	// Same nickname on a second connection counts once.
	add("c4", domain.RoleStudent, "A")

	st, ok, _ := store.GetState(ctx, "s1")
	if !ok {
		t.Fatalf("expected state")
	}
	if st.StudentCount != 2 {
		t.Fatalf("expected 2 distinct students, got %d", st.StudentCount)
	}
	if len(st.StudentNames) != 2 || st.StudentNames[0] != "A" || st.StudentNames[1] != "B" {
		t.Fatalf("expected sorted names [A B], got %v", st.StudentNames)
	}

	// Dropping one of A's connections keeps A on the roster.
	if err := store.RemoveParticipant(ctx, "s1", "c3"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	st, _, _ = store.GetState(ctx, "s1")
	if st.StudentCount != 2 {
		t.Fatalf("expected A still counted, got %d", st.StudentCount)
	}

	if err := store.RemoveParticipant(ctx, "s1", "c4"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	st, _, _ = store.GetState(ctx, "s1")
	if st.StudentCount != 1 || st.StudentNames[0] != "B" {
		t.Fatalf("expected only B, got %+v", st)
	}
}

func TestStateStoreDeletePurgesEverything(t *testing.T) {
	ctx := context.Background()
	store := NewStateStore(time.Hour)
	if err := store.CreateState(ctx, "s1", domain.SessionState{Phase: domain.PhaseWaiting}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.AddParticipant(ctx, "s1", domain.Participant{ConnID: "c1", Role: domain.RoleStudent, Nickname: "A"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := store.DeleteState(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.GetState(ctx, "s1"); ok {
		t.Fatalf("expected state gone")
	}
	if _, ok, _ := store.GetParticipant(ctx, "s1", "c1"); ok {
		t.Fatalf("expected participant gone")
	}
}
