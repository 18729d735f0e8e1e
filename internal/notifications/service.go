package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"recital/internal/config"
)

const userAgent = "Recitald/0.1.0"

// Service defines the notification surface exposed to session components.
// All deliveries are best effort: callers log failures and move on.
type Service interface {
	NotifySessionEnded(ctx context.Context, recipient, sessionID string) error
	NotifySessionFinalized(ctx context.Context, recipient, sessionID, artifactFilename string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context, recipient string) error
}

// NewService builds a notification service backed by the mail relay when
// configured. When no relay URL is configured, a noop implementation is
// returned.
func NewService(cfg *config.Config) Service {
	relayURL := strings.TrimSpace(cfg.Email.RelayURL)
	if relayURL == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Email.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &relayService{
		endpoint: relayURL,
		from:     strings.TrimSpace(cfg.Email.FromAddress),
		replyTo:  strings.TrimSpace(cfg.Email.ReplyToAddress),
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

type relayService struct {
	endpoint string
	from     string
	replyTo  string
	client   *http.Client
}

func (r *relayService) NotifySessionEnded(ctx context.Context, recipient, sessionID string) error {
	return r.send(ctx, message{
		To:      []string{recipient},
		Subject: "Recital session ended",
		Text:    fmt.Sprintf("Your recital session %s has ended and is queued for processing.", sessionID),
	})
}

func (r *relayService) NotifySessionFinalized(ctx context.Context, recipient, sessionID, artifactFilename string) error {
	text := fmt.Sprintf("Your recital session %s is ready.", sessionID)
	if artifactFilename = strings.TrimSpace(artifactFilename); artifactFilename != "" {
		text = fmt.Sprintf("%s\nRecording: %s", text, artifactFilename)
	}
	return r.send(ctx, message{
		To:      []string{recipient},
		Subject: "Recital session ready",
		Text:    text,
	})
}

func (r *relayService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	return r.send(ctx, message{
		To:      []string{r.from},
		Subject: "Recitald - Error",
		Text:    builder.String(),
	})
}

func (r *relayService) TestNotification(ctx context.Context, recipient string) error {
	return r.send(ctx, message{
		To:      []string{recipient},
		Subject: "Recitald - Test",
		Text:    "Notification system test",
	})
}

func (r *relayService) send(ctx context.Context, msg message) error {
	if r == nil || r.client == nil {
		return nil
	}
	if msg.From == "" {
		msg.From = r.from
	}
	if msg.ReplyTo == "" {
		msg.ReplyTo = r.replyTo
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode mail message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("mail relay returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// NewNop returns a notification service that silently drops everything.
func NewNop() Service {
	return noopService{}
}

type noopService struct{}

func (noopService) NotifySessionEnded(context.Context, string, string) error             { return nil }
func (noopService) NotifySessionFinalized(context.Context, string, string, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                     { return nil }
func (noopService) TestNotification(context.Context, string) error                       { return nil }
