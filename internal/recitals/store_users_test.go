package recitals_test

import (
	"context"
	"testing"
	"time"

	"recital/internal/recitals"
	"recital/internal/testsupport"
)

func TestUpsertUserKeepsIdentifierStable(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first, err := store.UpsertUser(ctx, &recitals.User{Email: "speaker@example.com", Name: "Before"})
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	second, err := store.UpsertUser(ctx, &recitals.User{Email: "speaker@example.com", Name: "After", EmailVerified: true})
	if err != nil {
		t.Fatalf("UpsertUser repeat: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("repeat login changed the user id: %s vs %s", first.ID, second.ID)
	}
	if second.Name != "After" {
		t.Fatalf("expected refreshed name, got %q", second.Name)
	}
	if !second.EmailVerified {
		t.Fatal("expected refreshed email_verified flag")
	}
}

func TestTokenLifecycle(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	user := testsupport.NewUser(t, store, "speaker@example.com")
	ctx := context.Background()

	token, err := store.CreateToken(ctx, user.ID, time.Hour)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if len(token.Token) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(token.Token))
	}

	resolved, err := store.UserByToken(ctx, token.Token, time.Now())
	if err != nil {
		t.Fatalf("UserByToken: %v", err)
	}
	if resolved == nil || resolved.ID != user.ID {
		t.Fatal("expected token to resolve to its user")
	}

	expired, err := store.UserByToken(ctx, token.Token, time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("UserByToken after expiry: %v", err)
	}
	if expired != nil {
		t.Fatal("expired token must not resolve")
	}

	if err := store.DeleteToken(ctx, token.Token); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	revoked, err := store.UserByToken(ctx, token.Token, time.Now())
	if err != nil {
		t.Fatalf("UserByToken after delete: %v", err)
	}
	if revoked != nil {
		t.Fatal("revoked token must not resolve")
	}
}

func TestPurgeExpiredTokens(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	user := testsupport.NewUser(t, store, "speaker@example.com")
	ctx := context.Background()

	stale, err := store.CreateToken(ctx, user.ID, time.Minute)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	fresh, err := store.CreateToken(ctx, user.ID, 24*time.Hour)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	purged, err := store.PurgeExpiredTokens(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PurgeExpiredTokens: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged token, got %d", purged)
	}

	if resolved, err := store.UserByToken(ctx, stale.Token, time.Now()); err != nil || resolved != nil {
		t.Fatalf("stale token should be gone (user=%v err=%v)", resolved, err)
	}
	if resolved, err := store.UserByToken(ctx, fresh.Token, time.Now()); err != nil || resolved == nil {
		t.Fatalf("fresh token should survive (user=%v err=%v)", resolved, err)
	}
}
