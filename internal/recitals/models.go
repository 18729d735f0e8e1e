package recitals

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a recital session.
type Status string

const (
	// StatusActive accepts segment uploads.
	StatusActive Status = "active"
	// StatusEnded means the speaker finished; finalization is pending.
	StatusEnded Status = "ended"
	// StatusFinalized is terminal: the merge job ran. The session may still
	// have no artifact when it ended with zero audio segments.
	StatusFinalized Status = "finalized"
)

var allStatuses = []Status{StatusActive, StatusEnded, StatusFinalized}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Session represents one recitation attempt by a speaker.
type Session struct {
	ID         string
	UserID     string
	DocumentID string
	Status     Status
	// Disavowed withdraws the session from listing and ingestion without
	// deleting its rows or files.
	Disavowed          bool
	LightAudioFilename string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasArtifact reports whether a merged audio artifact exists for the session.
func (s Session) HasArtifact() bool {
	return s.LightAudioFilename != ""
}

// TextSegment is one chunk of spoken-text transcript. seek_end encodes the
// intended temporal order; arrival order carries no meaning.
type TextSegment struct {
	ID        int64
	SessionID string
	SeekEnd   float64
	Text      string
	CreatedAt time.Time
}

// AudioSegment is one chunk of recorded audio. Sequential is assigned by
// the client and unique per session, but not contiguous or in arrival order.
type AudioSegment struct {
	ID         string
	SessionID  string
	Sequential int64
	Filename   string
	MimeType   string
	CreatedAt  time.Time
}

// User is an authenticated principal. Identity fields mirror what the
// external provider asserts at login.
type User struct {
	ID            string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AccessToken is an opaque bearer token issued after external login.
type AccessToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Document is a text being recited, stored as paragraphs of sentences.
type Document struct {
	ID         string
	OwnerID    string
	Source     string
	SourceType string
	Title      string
	Text       [][]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
