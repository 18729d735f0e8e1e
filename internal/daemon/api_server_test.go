package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"recital/internal/daemon"
	"recital/internal/recitals"
	"recital/internal/testsupport"
)

type apiClient struct {
	t     *testing.T
	base  string
	token string
}

func startDaemon(t *testing.T) (*daemon.Daemon, *recitals.Store, *apiClient) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	d, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	return d, store, &apiClient{t: t, base: "http://" + d.APIAddr()}
}

func (c *apiClient) do(method, path string, body io.Reader, contentType string) (*http.Response, []byte) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		c.t.Fatalf("build request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func (c *apiClient) doJSON(method, path string, payload any) (*http.Response, []byte) {
	c.t.Helper()
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			c.t.Fatalf("encode payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}
	return c.do(method, path, body, "application/json")
}

func (c *apiClient) login(email string) {
	c.t.Helper()
	resp, data := c.doJSON(http.MethodPost, "/api/login", map[string]any{
		"email":          email,
		"name":           "Test Speaker",
		"email_verified": true,
	})
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login returned %d: %s", resp.StatusCode, data)
	}
	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		c.t.Fatalf("decode login response: %v", err)
	}
	if out.TokenType != "bearer" || out.AccessToken == "" {
		c.t.Fatalf("unexpected login response: %s", data)
	}
	c.token = out.AccessToken
}

func TestStatusEndpointIsPublic(t *testing.T) {
	_, _, client := startDaemon(t)

	resp, data := client.do(http.MethodGet, "/api/status", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status returned %d", resp.StatusCode)
	}
	if !strings.Contains(string(data), `"OK"`) {
		t.Fatalf("unexpected status body: %s", data)
	}
}

func TestEndpointsRequireToken(t *testing.T) {
	_, _, client := startDaemon(t)

	resp, _ := client.doJSON(http.MethodPut, "/api/new-recital-session", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	client.token = "0badtoken"
	resp, _ = client.doJSON(http.MethodPut, "/api/new-recital-session", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bogus token, got %d", resp.StatusCode)
	}
}

func TestRecitalSessionFlow(t *testing.T) {
	_, store, client := startDaemon(t)
	client.login("speaker@example.com")

	resp, data := client.doJSON(http.MethodPost, "/api/create_document_from_source", map[string]string{
		"source":      "First sentence. Second sentence.",
		"source_type": "plain-text",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create document returned %d: %s", resp.StatusCode, data)
	}
	var docOut struct {
		DocumentID string `json:"document_id"`
		Title      string `json:"title"`
	}
	if err := json.Unmarshal(data, &docOut); err != nil {
		t.Fatalf("decode document response: %v", err)
	}
	if docOut.Title != "First sentence." {
		t.Fatalf("unexpected document title %q", docOut.Title)
	}

	resp, data = client.doJSON(http.MethodPut, "/api/new-recital-session", map[string]string{
		"document_id": docOut.DocumentID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("new session returned %d: %s", resp.StatusCode, data)
	}
	var sessionOut struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &sessionOut); err != nil {
		t.Fatalf("decode session response: %v", err)
	}
	if len(sessionOut.SessionID) != 21 {
		t.Fatalf("unexpected session id %q", sessionOut.SessionID)
	}

	resp, data = client.doJSON(http.MethodPost, "/api/upload-text-segment/"+sessionOut.SessionID, map[string]any{
		"seek_end": 1.5,
		"text":     "First sentence.",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload text returned %d: %s", resp.StatusCode, data)
	}

	for i, chunk := range []string{"alpha", "beta"} {
		resp, data = client.uploadAudio(sessionOut.SessionID, fmt.Sprintf("%d", i+1), chunk)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("upload audio returned %d: %s", resp.StatusCode, data)
		}
	}

	resp, data = client.doJSON(http.MethodPost, "/api/end-recital-session/"+sessionOut.SessionID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end session returned %d: %s", resp.StatusCode, data)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		session, err := store.SessionByID(context.Background(), sessionOut.SessionID)
		if err != nil {
			t.Fatalf("SessionByID: %v", err)
		}
		if session.Status == recitals.StatusFinalized {
			if !session.HasArtifact() {
				t.Fatal("finalized session missing artifact")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session not finalized in time, status %s", session.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func (c *apiClient) uploadAudio(sessionID, segmentID, payload string) (*http.Response, []byte) {
	c.t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio_data", "chunk.ogg")
	if err != nil {
		c.t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(payload)); err != nil {
		c.t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		c.t.Fatalf("close multipart writer: %v", err)
	}
	return c.do(http.MethodPost, "/api/upload-audio-segment/"+sessionID+"/"+segmentID, &buf, writer.FormDataContentType())
}

func TestForeignSessionLooksMissing(t *testing.T) {
	_, _, client := startDaemon(t)
	client.login("owner@example.com")

	resp, data := client.doJSON(http.MethodPut, "/api/new-recital-session", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("new session returned %d: %s", resp.StatusCode, data)
	}
	var sessionOut struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &sessionOut); err != nil {
		t.Fatalf("decode session response: %v", err)
	}

	client.login("intruder@example.com")
	resp, _ = client.doJSON(http.MethodPost, "/api/end-recital-session/"+sessionOut.SessionID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign session, got %d", resp.StatusCode)
	}
}

func TestMeAndLogout(t *testing.T) {
	_, _, client := startDaemon(t)
	client.login("speaker@example.com")

	resp, data := client.do(http.MethodGet, "/api/me", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me returned %d: %s", resp.StatusCode, data)
	}
	var me struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("decode me response: %v", err)
	}
	if me.Email != "speaker@example.com" {
		t.Fatalf("unexpected email %q", me.Email)
	}

	resp, _ = client.doJSON(http.MethodPost, "/api/logout", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout returned %d", resp.StatusCode)
	}

	resp, _ = client.do(http.MethodGet, "/api/me", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestDocumentListingScopedToOwner(t *testing.T) {
	_, _, client := startDaemon(t)
	client.login("owner@example.com")

	resp, data := client.doJSON(http.MethodPost, "/api/create_document_from_source", map[string]string{
		"source":      "Mine alone.",
		"source_type": "plain-text",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create document returned %d: %s", resp.StatusCode, data)
	}

	resp, data = client.do(http.MethodGet, "/api/documents", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("documents returned %d", resp.StatusCode)
	}
	var docs []struct {
		Title string     `json:"title"`
		Text  [][]string `json:"text"`
	}
	if err := json.Unmarshal(data, &docs); err != nil {
		t.Fatalf("decode documents: %v", err)
	}
	if len(docs) != 1 || docs[0].Title != "Mine alone." {
		t.Fatalf("unexpected documents: %s", data)
	}
	if docs[0].Text != nil {
		t.Fatal("text should be omitted without include_text")
	}

	client.login("other@example.com")
	resp, data = client.do(http.MethodGet, "/api/documents", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("documents returned %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, &docs); err != nil {
		t.Fatalf("decode documents: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected empty list for other speaker, got %s", data)
	}
}

func TestCreateDocumentUnknownSourceType(t *testing.T) {
	_, _, client := startDaemon(t)
	client.login("speaker@example.com")

	resp, _ := client.doJSON(http.MethodPost, "/api/create_document_from_source", map[string]string{
		"source":      "text",
		"source_type": "wiki-article",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown source type, got %d", resp.StatusCode)
	}
}
