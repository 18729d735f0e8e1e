package recitals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const sessionColumns = "id, user_id, document_id, status, disavowed, light_audio_filename, created_at, updated_at"

const createSessionAttempts = 3

// CreateSession allocates a new active session for a speaker. The generated
// id is collision-resistant but not guaranteed unique, so the insert retries
// with a fresh id on the rare duplicate.
func (s *Store) CreateSession(ctx context.Context, userID, documentID string) (*Session, error) {
	ctx = ensureContext(ctx)
	timestamp := formatTime(time.Now())

	var lastErr error
	for attempt := 0; attempt < createSessionAttempts; attempt++ {
		id, err := NewSessionID()
		if err != nil {
			return nil, err
		}
		_, err = s.execWithRetry(
			ctx,
			`INSERT INTO recital_sessions (id, user_id, document_id, status, disavowed, created_at, updated_at)
             VALUES (?, ?, ?, ?, 0, ?, ?)`,
			id,
			userID,
			nullableString(documentID),
			StatusActive,
			timestamp,
			timestamp,
		)
		if err == nil {
			return s.SessionByID(ctx, id)
		}
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("insert session: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("insert session: id collisions exhausted retries: %w", lastErr)
}

// SessionByID fetches a session by identifier without ownership or disavow
// filtering. Administrative callers only.
func (s *Store) SessionByID(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+sessionColumns+` FROM recital_sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// SessionForUser fetches a session scoped to its owner. Missing, unowned,
// and disavowed sessions all return nil so callers cannot distinguish them.
func (s *Store) SessionForUser(ctx context.Context, id, userID string) (*Session, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+sessionColumns+` FROM recital_sessions WHERE id = ? AND user_id = ? AND disavowed = 0`,
		id,
		userID,
	)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session for user: %w", err)
	}
	return session, nil
}

// EndSession transitions an owned active session to ended. The single
// conditional UPDATE serializes concurrent calls: exactly one caller
// observes the transition and schedules finalization.
func (s *Store) EndSession(ctx context.Context, id, userID string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE recital_sessions SET status = ?, updated_at = ?
         WHERE id = ? AND user_id = ? AND status = ? AND disavowed = 0`,
		StatusEnded,
		formatTime(time.Now()),
		id,
		userID,
		StatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("end session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetFinalized records the merge result and moves the session to its
// terminal status. Finalized sessions stay updatable so a re-run overwrites
// the artifact reference deterministically.
func (s *Store) SetFinalized(ctx context.Context, id, artifactFilename string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE recital_sessions SET status = ?, light_audio_filename = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusFinalized,
		nullableString(artifactFilename),
		formatTime(time.Now()),
		id,
		StatusEnded,
		StatusFinalized,
	)
	if err != nil {
		return false, fmt.Errorf("finalize session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Disavow withdraws a session from normal visibility. Idempotent.
func (s *Store) Disavow(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE recital_sessions SET disavowed = 1, updated_at = ? WHERE id = ?`,
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return false, fmt.Errorf("disavow session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListSessions returns sessions filtered by status set (or all statuses when
// none are given), ordered by creation time. Disavowed sessions are excluded
// unless includeDisavowed is set.
func (s *Store) ListSessions(ctx context.Context, includeDisavowed bool, statuses ...Status) ([]*Session, error) {
	ctx = ensureContext(ctx)

	query := `SELECT ` + sessionColumns + ` FROM recital_sessions`
	var clauses []string
	var args []any
	if !includeDisavowed {
		clauses = append(clauses, "disavowed = 0")
	}
	if len(statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(statuses))+")")
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// NextEndedSession returns the oldest ended session awaiting finalization.
func (s *Store) NextEndedSession(ctx context.Context) (*Session, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+sessionColumns+` FROM recital_sessions
         WHERE status = ? AND disavowed = 0 ORDER BY updated_at LIMIT 1`,
		StatusEnded,
	)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next ended session: %w", err)
	}
	return session, nil
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id            string
		userID        string
		documentID    sql.NullString
		statusStr     string
		disavowed     sql.NullInt64
		lightAudio    sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&userID,
		&documentID,
		&statusStr,
		&disavowed,
		&lightAudio,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	session := &Session{
		ID:                 id,
		UserID:             userID,
		DocumentID:         documentID.String,
		Status:             Status(statusStr),
		LightAudioFilename: lightAudio.String,
	}
	if disavowed.Valid {
		session.Disavowed = disavowed.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		session.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		session.UpdatedAt = updated
	}
	return session, nil
}
