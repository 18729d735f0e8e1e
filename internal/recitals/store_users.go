package recitals

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const userColumns = "id, email, name, picture, email_verified, created_at, updated_at"

// UpsertUser inserts or refreshes a user keyed by email. The identity
// fields come from the external provider's assertion at login.
func (s *Store) UpsertUser(ctx context.Context, user *User) (*User, error) {
	if user == nil {
		return nil, errors.New("user is nil")
	}
	ctx = ensureContext(ctx)
	timestamp := formatTime(time.Now())

	id := user.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO users (id, email, name, picture, email_verified, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(email)
         DO UPDATE SET name = excluded.name, picture = excluded.picture,
             email_verified = excluded.email_verified, updated_at = excluded.updated_at`,
		id,
		user.Email,
		user.Name,
		user.Picture,
		boolToInt(user.EmailVerified),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return s.UserByEmail(ctx, user.Email)
}

// UserByEmail fetches a user by email address.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// UserByID fetches a user by identifier.
func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

// CreateToken issues a new opaque bearer token for a user.
func (s *Store) CreateToken(ctx context.Context, userID string, ttl time.Duration) (*AccessToken, error) {
	ctx = ensureContext(ctx)

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	now := time.Now().UTC()
	token := &AccessToken{
		Token:     hex.EncodeToString(raw),
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO access_tokens (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		token.Token,
		token.UserID,
		formatTime(token.ExpiresAt),
		formatTime(token.CreatedAt),
	); err != nil {
		return nil, fmt.Errorf("insert token: %w", err)
	}
	return token, nil
}

// UserByToken resolves a bearer token to its user. Expired or unknown
// tokens return nil.
func (s *Store) UserByToken(ctx context.Context, token string, now time.Time) (*User, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+prefixColumns("u", userColumns)+`
         FROM access_tokens t JOIN users u ON u.id = t.user_id
         WHERE t.token = ? AND t.expires_at > ?`,
		token,
		formatTime(now),
	)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by token: %w", err)
	}
	return user, nil
}

// DeleteToken revokes a bearer token. Deleting an unknown token is a no-op.
func (s *Store) DeleteToken(ctx context.Context, token string) error {
	if _, err := s.execWithRetry(ensureContext(ctx), `DELETE FROM access_tokens WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// PurgeExpiredTokens removes tokens whose expiry has passed.
func (s *Store) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ensureContext(ctx),
		`DELETE FROM access_tokens WHERE expires_at <= ?`,
		formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", err)
	}
	return res.RowsAffected()
}

func prefixColumns(prefix, columns string) string {
	out := ""
	for i, col := range splitColumns(columns) {
		if i > 0 {
			out += ", "
		}
		out += prefix + "." + col
	}
	return out
}

func splitColumns(columns string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(columns); i++ {
		if i == len(columns) || columns[i] == ',' {
			col := columns[start:i]
			for len(col) > 0 && col[0] == ' ' {
				col = col[1:]
			}
			if col != "" {
				out = append(out, col)
			}
			start = i + 1
		}
	}
	return out
}

func scanUser(scanner interface{ Scan(dest ...any) error }) (*User, error) {
	var (
		user          User
		emailVerified sql.NullInt64
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)
	if err := scanner.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Picture,
		&emailVerified,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	if emailVerified.Valid {
		user.EmailVerified = emailVerified.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		user.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		user.UpdatedAt = updated
	}
	return &user, nil
}
