package recitals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendTextSegment inserts one transcript chunk. Rows are never updated
// or deleted; out-of-order seek_end values are stored as-is.
func (s *Store) AppendTextSegment(ctx context.Context, sessionID string, seekEnd float64, text string) (*TextSegment, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO recital_text_segments (recital_session_id, seek_end, text, created_at)
         VALUES (?, ?, ?, ?)`,
		sessionID,
		seekEnd,
		text,
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert text segment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &TextSegment{
		ID:        id,
		SessionID: sessionID,
		SeekEnd:   seekEnd,
		Text:      text,
		CreatedAt: now,
	}, nil
}

// AppendAudioSegment records the metadata row for an uploaded audio chunk.
// A repeated sequential for the same session replaces the earlier row
// (last write wins), tolerating client retries of the same upload.
func (s *Store) AppendAudioSegment(ctx context.Context, sessionID string, sequential int64, filename, mimeType string) (*AudioSegment, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO recital_audio_segments (id, recital_session_id, sequential, filename, mime_type, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(recital_session_id, sequential)
         DO UPDATE SET filename = excluded.filename, mime_type = excluded.mime_type, created_at = excluded.created_at`,
		uuid.NewString(),
		sessionID,
		sequential,
		filename,
		mimeType,
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert audio segment: %w", err)
	}
	return s.AudioSegment(ctx, sessionID, sequential)
}

// AudioSegment fetches one audio segment by its per-session sequence number.
func (s *Store) AudioSegment(ctx context.Context, sessionID string, sequential int64) (*AudioSegment, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+audioSegmentColumns+` FROM recital_audio_segments
         WHERE recital_session_id = ? AND sequential = ?`,
		sessionID,
		sequential,
	)
	segment, err := scanAudioSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get audio segment: %w", err)
	}
	return segment, nil
}

// ListAudioSegments returns all audio segments for a session ordered by
// sequential, reconstructing intended order regardless of arrival order.
func (s *Store) ListAudioSegments(ctx context.Context, sessionID string) ([]*AudioSegment, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+audioSegmentColumns+` FROM recital_audio_segments
         WHERE recital_session_id = ? ORDER BY sequential`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audio segments: %w", err)
	}
	defer rows.Close()

	var segments []*AudioSegment
	for rows.Next() {
		segment, err := scanAudioSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, segment)
	}
	return segments, rows.Err()
}

// ListTextSegments returns all text segments for a session ordered by seek_end.
func (s *Store) ListTextSegments(ctx context.Context, sessionID string) ([]*TextSegment, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, recital_session_id, seek_end, text, created_at FROM recital_text_segments
         WHERE recital_session_id = ? ORDER BY seek_end`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list text segments: %w", err)
	}
	defer rows.Close()

	var segments []*TextSegment
	for rows.Next() {
		var (
			segment    TextSegment
			createdRaw sql.NullString
		)
		if err := rows.Scan(&segment.ID, &segment.SessionID, &segment.SeekEnd, &segment.Text, &createdRaw); err != nil {
			return nil, err
		}
		if created, err := parseTimeString(createdRaw.String); err == nil {
			segment.CreatedAt = created
		}
		segments = append(segments, &segment)
	}
	return segments, rows.Err()
}

// HasAudioSegmentFile reports whether any metadata row references filename.
// Used by the orphan sweep to spot files whose row insert failed.
func (s *Store) HasAudioSegmentFile(ctx context.Context, filename string) (bool, error) {
	var count int
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT COUNT(1) FROM recital_audio_segments WHERE filename = ?`,
		filename,
	)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check segment filename: %w", err)
	}
	return count > 0, nil
}

const audioSegmentColumns = "id, recital_session_id, sequential, filename, mime_type, created_at"

func scanAudioSegment(scanner interface{ Scan(dest ...any) error }) (*AudioSegment, error) {
	var (
		segment    AudioSegment
		createdRaw sql.NullString
	)
	if err := scanner.Scan(
		&segment.ID,
		&segment.SessionID,
		&segment.Sequential,
		&segment.Filename,
		&segment.MimeType,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		segment.CreatedAt = created
	}
	return &segment, nil
}
