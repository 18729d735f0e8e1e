package notifications_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"recital/internal/config"
	"recital/internal/notifications"
)

func TestNewServiceReturnsNoopWhenRelayMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Email.RelayURL = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifySessionEnded(context.Background(), "speaker@example.com", "abc"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestRelayServiceFormatsMessages(t *testing.T) {
	var captured struct {
		From    string   `json:"from"`
		To      []string `json:"to"`
		ReplyTo string   `json:"reply_to"`
		Subject string   `json:"subject"`
		Text    string   `json:"text"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("unexpected content type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Email.RelayURL = server.URL
	cfg.Email.FromAddress = "recitald@example.com"
	cfg.Email.ReplyToAddress = "support@example.com"

	svc := notifications.NewService(&cfg)
	if err := svc.NotifySessionFinalized(context.Background(), "speaker@example.com", "abc123", "abc123.light.ogg"); err != nil {
		t.Fatalf("notification returned error: %v", err)
	}

	if captured.From != "recitald@example.com" {
		t.Fatalf("unexpected from address %q", captured.From)
	}
	if len(captured.To) != 1 || captured.To[0] != "speaker@example.com" {
		t.Fatalf("unexpected recipients %v", captured.To)
	}
	if captured.ReplyTo != "support@example.com" {
		t.Fatalf("unexpected reply-to %q", captured.ReplyTo)
	}
	if captured.Subject != "Recital session ready" {
		t.Fatalf("unexpected subject %q", captured.Subject)
	}
	if captured.Text != "Your recital session abc123 is ready.\nRecording: abc123.light.ogg" {
		t.Fatalf("unexpected text %q", captured.Text)
	}
}

func TestRelayServiceReportsUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "relay down", http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Email.RelayURL = server.URL
	cfg.Email.FromAddress = "recitald@example.com"

	svc := notifications.NewService(&cfg)
	err := svc.NotifyError(context.Background(), errors.New("merge failed"), "finalizer")
	if err == nil {
		t.Fatal("expected error from failing relay")
	}
}
