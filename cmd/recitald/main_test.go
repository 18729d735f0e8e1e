package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recital/internal/config"
	"recital/internal/recitals"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	path := filepath.Join(base, "recitald.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[server]
api_bind = "127.0.0.1:0"
`, filepath.Join(base, "content"), filepath.Join(base, "logs"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected output: %s", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestSessionsListEmpty(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", cfgPath, "sessions", "list")
	if err != nil {
		t.Fatalf("sessions list: %v", err)
	}
	if !strings.Contains(out, "No sessions found") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestSessionsDisavow(t *testing.T) {
	cfgPath := writeTestConfig(t)

	cfg, _, _, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	store, err := recitals.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	user, err := store.UpsertUser(context.Background(), &recitals.User{Email: "speaker@example.com"})
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	session, err := store.CreateSession(context.Background(), user.ID, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	store.Close()

	out, err := runCommand(t, "--config", cfgPath, "sessions", "disavow", session.ID)
	if err != nil {
		t.Fatalf("sessions disavow: %v", err)
	}
	if !strings.Contains(out, "disavowed") {
		t.Fatalf("unexpected output: %s", out)
	}

	if _, err := runCommand(t, "--config", cfgPath, "sessions", "disavow", "missing-session"); err == nil {
		t.Fatal("expected error for unknown session")
	}

	out, err = runCommand(t, "--config", cfgPath, "sessions", "list", "--all")
	if err != nil {
		t.Fatalf("sessions list: %v", err)
	}
	if !strings.Contains(out, session.ID) {
		t.Fatalf("expected disavowed session in --all listing: %s", out)
	}
}

func TestContentSweepEmpty(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", cfgPath, "content", "sweep")
	if err != nil {
		t.Fatalf("content sweep: %v", err)
	}
	if !strings.Contains(out, "No orphaned segment files found") {
		t.Fatalf("unexpected output: %s", out)
	}
}
