package daemon

import (
	"encoding/json"
	"net/http"
	"strings"
)

type newSessionRequest struct {
	DocumentID string `json:"document_id"`
}

func (s *apiServer) handleNewSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req newSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	session, err := s.daemon.gateway.CreateSession(r.Context(), currentUser(r).ID, req.DocumentID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"session_id": session.ID})
}

func (s *apiServer) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sessionID := pathTail(r.URL.Path, "/api/end-recital-session/")
	if sessionID == "" {
		s.writeError(w, http.StatusNotFound, "recital session not found")
		return
	}

	if err := s.daemon.gateway.EndSession(r.Context(), sessionID, currentUser(r).ID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Recital session ended successfully"})
}

type textSegmentRequest struct {
	SeekEnd float64 `json:"seek_end"`
	Text    string  `json:"text"`
}

func (s *apiServer) handleUploadText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sessionID := pathTail(r.URL.Path, "/api/upload-text-segment/")
	if sessionID == "" {
		s.writeError(w, http.StatusNotFound, "recital session not found")
		return
	}

	var req textSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.daemon.gateway.SubmitText(r.Context(), sessionID, currentUser(r).ID, req.SeekEnd, req.Text); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Text segment uploaded successfully"})
}

func (s *apiServer) handleUploadAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/upload-audio-segment/")
	sessionID, segmentID, ok := strings.Cut(rest, "/")
	if !ok || sessionID == "" || segmentID == "" || strings.Contains(segmentID, "/") {
		s.writeError(w, http.StatusNotFound, "recital session not found")
		return
	}

	audio, mimeType, err := audioBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid audio upload")
		return
	}

	if _, err := s.daemon.gateway.SubmitAudio(r.Context(), sessionID, currentUser(r).ID, segmentID, mimeType, audio); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Audio uploaded successfully"})
}
