package recitals_test

import (
	"context"
	"testing"

	"recital/internal/recitals"
	"recital/internal/testsupport"
)

func TestCreateSessionStartsActive(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	user := testsupport.NewUser(t, store, "speaker@example.com")

	session, err := store.CreateSession(context.Background(), user.ID, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.Status != recitals.StatusActive {
		t.Fatalf("expected active status, got %s", session.Status)
	}
	if len(session.ID) != 21 {
		t.Fatalf("expected 21-character session id, got %q", session.ID)
	}
	if session.Disavowed {
		t.Fatal("new session should not be disavowed")
	}
	if session.HasArtifact() {
		t.Fatal("new session should not carry an artifact")
	}
}

func TestEndSessionTransitionsOnce(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	user := testsupport.NewUser(t, store, "speaker@example.com")
	session := testsupport.NewSession(t, store, user.ID)
	ctx := context.Background()

	ended, err := store.EndSession(ctx, session.ID, user.ID)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if !ended {
		t.Fatal("first end should report the transition")
	}

	again, err := store.EndSession(ctx, session.ID, user.ID)
	if err != nil {
		t.Fatalf("EndSession repeat: %v", err)
	}
	if again {
		t.Fatal("second end must not report a transition")
	}

	reloaded, err := store.SessionForUser(ctx, session.ID, user.ID)
	if err != nil {
		t.Fatalf("SessionForUser: %v", err)
	}
	if reloaded.Status != recitals.StatusEnded {
		t.Fatalf("expected ended status, got %s", reloaded.Status)
	}
}

func TestEndSessionIgnoresForeignOwner(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	owner := testsupport.NewUser(t, store, "owner@example.com")
	other := testsupport.NewUser(t, store, "other@example.com")
	session := testsupport.NewSession(t, store, owner.ID)
	ctx := context.Background()

	ended, err := store.EndSession(ctx, session.ID, other.ID)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if ended {
		t.Fatal("foreign owner must not end the session")
	}

	foreign, err := store.SessionForUser(ctx, session.ID, other.ID)
	if err != nil {
		t.Fatalf("SessionForUser: %v", err)
	}
	if foreign != nil {
		t.Fatal("foreign owner must not see the session")
	}
}

func TestSetFinalizedRequiresEnded(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	user := testsupport.NewUser(t, store, "speaker@example.com")
	session := testsupport.NewSession(t, store, user.ID)
	ctx := context.Background()

	updated, err := store.SetFinalized(ctx, session.ID, session.ID+".light.ogg")
	if err != nil {
		t.Fatalf("SetFinalized: %v", err)
	}
	if updated {
		t.Fatal("active session must not finalize")
	}

	if _, err := store.EndSession(ctx, session.ID, user.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	updated, err = store.SetFinalized(ctx, session.ID, session.ID+".light.ogg")
	if err != nil {
		t.Fatalf("SetFinalized: %v", err)
	}
	if !updated {
		t.Fatal("ended session should finalize")
	}

	reloaded, err := store.SessionForUser(ctx, session.ID, user.ID)
	if err != nil {
		t.Fatalf("SessionForUser: %v", err)
	}
	if reloaded.Status != recitals.StatusFinalized {
		t.Fatalf("expected finalized status, got %s", reloaded.Status)
	}
	if !reloaded.HasArtifact() {
		t.Fatal("finalized session should carry the artifact filename")
	}
}

func TestSetFinalizedIsRepeatable(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	user := testsupport.NewUser(t, store, "speaker@example.com")
	session := testsupport.NewSession(t, store, user.ID)
	ctx := context.Background()

	if _, err := store.EndSession(ctx, session.ID, user.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	for i := 0; i < 2; i++ {
		updated, err := store.SetFinalized(ctx, session.ID, session.ID+".light.ogg")
		if err != nil {
			t.Fatalf("SetFinalized run %d: %v", i, err)
		}
		if !updated {
			t.Fatalf("SetFinalized run %d should update", i)
		}
	}
}

func TestDisavowHidesSessionFromOwner(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	user := testsupport.NewUser(t, store, "speaker@example.com")
	session := testsupport.NewSession(t, store, user.ID)
	ctx := context.Background()

	if _, err := store.Disavow(ctx, session.ID); err != nil {
		t.Fatalf("Disavow: %v", err)
	}

	hidden, err := store.SessionForUser(ctx, session.ID, user.ID)
	if err != nil {
		t.Fatalf("SessionForUser: %v", err)
	}
	if hidden != nil {
		t.Fatal("disavowed session must be hidden from the owner")
	}

	admin, err := store.SessionByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("SessionByID: %v", err)
	}
	if admin == nil || !admin.Disavowed {
		t.Fatal("administrative lookup should still see the disavowed session")
	}
}

func TestListSessionsFiltersStatusAndDisavow(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	user := testsupport.NewUser(t, store, "speaker@example.com")
	ctx := context.Background()

	active := testsupport.NewSession(t, store, user.ID)
	ended := testsupport.NewSession(t, store, user.ID)
	hidden := testsupport.NewSession(t, store, user.ID)

	if _, err := store.EndSession(ctx, ended.ID, user.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if _, err := store.Disavow(ctx, hidden.ID); err != nil {
		t.Fatalf("Disavow: %v", err)
	}

	endedOnly, err := store.ListSessions(ctx, false, recitals.StatusEnded)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(endedOnly) != 1 || endedOnly[0].ID != ended.ID {
		t.Fatalf("expected only the ended session, got %d rows", len(endedOnly))
	}

	visible, err := store.ListSessions(ctx, false)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible sessions, got %d", len(visible))
	}

	all, err := store.ListSessions(ctx, true)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions including disavowed, got %d", len(all))
	}
	_ = active
}

func TestNextEndedSessionReturnsOldest(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	user := testsupport.NewUser(t, store, "speaker@example.com")
	ctx := context.Background()

	none, err := store.NextEndedSession(ctx)
	if err != nil {
		t.Fatalf("NextEndedSession: %v", err)
	}
	if none != nil {
		t.Fatal("expected no pending session")
	}

	first := testsupport.NewSession(t, store, user.ID)
	second := testsupport.NewSession(t, store, user.ID)
	if _, err := store.EndSession(ctx, first.ID, user.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if _, err := store.EndSession(ctx, second.ID, user.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	next, err := store.NextEndedSession(ctx)
	if err != nil {
		t.Fatalf("NextEndedSession: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatal("expected the first ended session to be picked up")
	}

	if _, err := store.SetFinalized(ctx, first.ID, ""); err != nil {
		t.Fatalf("SetFinalized: %v", err)
	}
	next, err = store.NextEndedSession(ctx)
	if err != nil {
		t.Fatalf("NextEndedSession: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatal("expected the second ended session after the first finalized")
	}
}
