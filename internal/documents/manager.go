package documents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"recital/internal/logging"
	"recital/internal/recitals"
	"recital/internal/services"
)

// SourceTypePlainText identifies raw pasted text submissions.
const SourceTypePlainText = "plain-text"

const maxTitleLength = 120

// Manager converts raw source material into stored documents and serves
// reads scoped to the requesting speaker.
type Manager struct {
	store  *recitals.Store
	logger *slog.Logger
}

// NewManager constructs a document manager backed by the given store.
func NewManager(store *recitals.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		store:  store,
		logger: logging.WithComponent(logger, "documents"),
	}
}

// CreateFromSource parses source according to sourceType and stores the
// resulting document for owner. Unknown source types are a validation error.
func (m *Manager) CreateFromSource(ctx context.Context, source, sourceType, ownerID string) (*recitals.Document, error) {
	var (
		title string
		text  [][]string
	)
	switch sourceType {
	case SourceTypePlainText:
		title, text = parsePlainText(source)
	default:
		return nil, services.Wrap(services.ErrValidation, "documents", "create from source",
			fmt.Sprintf("unsupported source type %q", sourceType), nil)
	}
	if len(text) == 0 {
		return nil, services.Wrap(services.ErrValidation, "documents", "create from source",
			"source contains no text", nil)
	}

	doc, err := m.store.InsertDocument(ctx, &recitals.Document{
		OwnerID:    ownerID,
		Source:     source,
		SourceType: sourceType,
		Title:      title,
		Text:       text,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "documents", "create from source", "", err)
	}
	m.logger.Info("document created",
		logging.String("document_id", doc.ID),
		logging.String("source_type", sourceType),
		logging.Int("paragraphs", len(text)))
	return doc, nil
}

// Load fetches a document by id. Missing documents surface as not found.
func (m *Manager) Load(ctx context.Context, id string) (*recitals.Document, error) {
	doc, err := m.store.DocumentByID(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "documents", "load", "", err)
	}
	if doc == nil {
		return nil, services.Wrap(services.ErrNotFound, "documents", "load", "document not found", nil)
	}
	return doc, nil
}

// LoadOwn lists the documents belonging to a speaker.
func (m *Manager) LoadOwn(ctx context.Context, ownerID string) ([]*recitals.Document, error) {
	docs, err := m.store.DocumentsByOwner(ctx, ownerID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "documents", "load own", "", err)
	}
	return docs, nil
}

// parsePlainText splits source into paragraphs on blank lines and paragraphs
// into sentences on terminal punctuation. The title is the first sentence,
// truncated when it runs long.
func parsePlainText(source string) (string, [][]string) {
	var text [][]string
	for _, block := range strings.Split(normalizeNewlines(source), "\n\n") {
		paragraph := splitSentences(block)
		if len(paragraph) > 0 {
			text = append(text, paragraph)
		}
	}
	if len(text) == 0 {
		return "", nil
	}

	title := text[0][0]
	if len(title) > maxTitleLength {
		title = strings.TrimSpace(title[:maxTitleLength]) + "…"
	}
	return title, text
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func splitSentences(block string) []string {
	var sentences []string
	var current strings.Builder
	flush := func() {
		sentence := strings.TrimSpace(current.String())
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for _, r := range strings.ReplaceAll(block, "\n", " ") {
		current.WriteRune(r)
		switch r {
		case '.', '!', '?', ':', ';':
			flush()
		}
	}
	flush()
	return sentences
}
