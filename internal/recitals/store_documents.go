package recitals

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const documentColumns = "id, owner_id, source, source_type, title, text_json, created_at, updated_at"

// InsertDocument persists a parsed text document.
func (s *Store) InsertDocument(ctx context.Context, doc *Document) (*Document, error) {
	if doc == nil {
		return nil, errors.New("document is nil")
	}
	ctx = ensureContext(ctx)
	now := time.Now().UTC()

	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}
	text := doc.Text
	if text == nil {
		text = [][]string{}
	}
	textJSON, err := json.Marshal(text)
	if err != nil {
		return nil, fmt.Errorf("marshal document text: %w", err)
	}

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO text_documents (id, owner_id, source, source_type, title, text_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		nullableString(doc.OwnerID),
		doc.Source,
		doc.SourceType,
		doc.Title,
		string(textJSON),
		formatTime(now),
		formatTime(now),
	); err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return s.DocumentByID(ctx, id)
}

// DocumentByID fetches a document by identifier.
func (s *Store) DocumentByID(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+documentColumns+` FROM text_documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// DocumentsByOwner returns a speaker's documents ordered by creation time.
func (s *Store) DocumentsByOwner(ctx context.Context, ownerID string) ([]*Document, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+documentColumns+` FROM text_documents WHERE owner_id = ? ORDER BY created_at`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(scanner interface{ Scan(dest ...any) error }) (*Document, error) {
	var (
		doc        Document
		ownerID    sql.NullString
		textJSON   string
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&doc.ID,
		&ownerID,
		&doc.Source,
		&doc.SourceType,
		&doc.Title,
		&textJSON,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	doc.OwnerID = ownerID.String
	if err := json.Unmarshal([]byte(textJSON), &doc.Text); err != nil {
		return nil, fmt.Errorf("unmarshal document text: %w", err)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		doc.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		doc.UpdatedAt = updated
	}
	return &doc, nil
}
