package daemon

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"recital/internal/recitals"
)

type createDocumentRequest struct {
	Source     string `json:"source"`
	SourceType string `json:"source_type"`
}

func (s *apiServer) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := s.daemon.documents.CreateFromSource(r.Context(), req.Source, req.SourceType, currentUser(r).ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"document_id": doc.ID,
		"title":       doc.Title,
	})
}

type documentResponse struct {
	ID         string     `json:"id"`
	SourceType string     `json:"source_type"`
	Title      string     `json:"title"`
	Text       [][]string `json:"text,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func toDocumentResponse(doc *recitals.Document, includeText bool) documentResponse {
	resp := documentResponse{
		ID:         doc.ID,
		SourceType: doc.SourceType,
		Title:      doc.Title,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
	if includeText {
		resp.Text = doc.Text
	}
	return resp
}

func (s *apiServer) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	includeText := r.URL.Query().Get("include_text") == "true" || r.URL.Query().Get("include_text") == "1"

	docs, err := s.daemon.documents.LoadOwn(r.Context(), currentUser(r).ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentResponse(doc, includeText))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *apiServer) handleDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	documentID := pathTail(r.URL.Path, "/api/documents/")
	if documentID == "" {
		s.writeError(w, http.StatusNotFound, "document not found")
		return
	}

	doc, err := s.daemon.documents.Load(r.Context(), documentID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toDocumentResponse(doc, true))
}

// pathTail returns the single path element after prefix, or "" when the
// remainder is empty or contains further slashes.
func pathTail(path, prefix string) string {
	tail := strings.TrimPrefix(path, prefix)
	if tail == "" || strings.Contains(tail, "/") {
		return ""
	}
	return tail
}

// audioBody extracts the uploaded audio stream and its content type. Both
// multipart uploads with an "audio_data" part and raw request bodies are
// accepted.
func audioBody(r *http.Request) (io.Reader, string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, header, err := r.FormFile("audio_data")
		if err != nil {
			return nil, "", err
		}
		return file, header.Header.Get("Content-Type"), nil
	}
	return r.Body, contentType, nil
}
