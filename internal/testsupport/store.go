package testsupport

import (
	"context"
	"testing"

	"recital/internal/config"
	"recital/internal/recitals"
)

// MustOpenStore opens a recitals.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *recitals.Store {
	t.Helper()

	store, err := recitals.Open(cfg)
	if err != nil {
		t.Fatalf("recitals.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewUser creates a user for tests using the provided store.
func NewUser(t testing.TB, store *recitals.Store, email string) *recitals.User {
	t.Helper()

	user, err := store.UpsertUser(context.Background(), &recitals.User{
		Email:         email,
		Name:          "Test Speaker",
		EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("store.UpsertUser: %v", err)
	}
	return user
}

// NewSession creates an active session for tests using the provided store.
func NewSession(t testing.TB, store *recitals.Store, userID string) *recitals.Session {
	t.Helper()

	session, err := store.CreateSession(context.Background(), userID, "")
	if err != nil {
		t.Fatalf("store.CreateSession: %v", err)
	}
	return session
}
