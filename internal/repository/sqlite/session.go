package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/matrimony-portal/internal/apperror"
	"github.com/sakif/matrimony-portal/internal/model"
	"github.com/sakif/matrimony-portal/internal/repository"
)

// compile-time check that *DB implements repository.SessionRepository
var _ repository.SessionRepository = (*DB)(nil)

// Create inserts a new session row. An empty ID is filled with a fresh xid.
//
// Credentials are stored as one JSON column: they are only ever read and
// written as a unit. Expiry is stored as unix seconds so the cleanup sweep
// can compare it numerically.
func (db *DB) Create(ctx context.Context, s *model.StoredSession) error {
	if s.ID == "" {
		s.ID = xid.New().String()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.ExpiresAt.IsZero() {
		return fmt.Errorf("sqlite: session %s has no expiry", s.ID)
	}

	creds, err := json.Marshal(s.Credentials)
	if err != nil {
		return fmt.Errorf("sqlite: encoding credentials for session %s: %w", s.ID, err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, credentials, created_at, updated_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.UserID,
		string(creds),
		s.CreatedAt,
		s.UpdatedAt,
		s.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting session %s: %w", s.ID, err)
	}
	return nil
}

// Get returns a session row. Expired rows are reported as not found.
func (db *DB) Get(ctx context.Context, id string) (*model.StoredSession, error) {
	var (
		s         model.StoredSession
		creds     string
		expiresAt int64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, credentials, created_at, updated_at, expires_at
		 FROM sessions WHERE id = ?`,
		id,
	).Scan(
		&s.ID,
		&s.UserID,
		&creds,
		&s.CreatedAt,
		&s.UpdatedAt,
		&expiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("session", id)
		}
		return nil, fmt.Errorf("sqlite: getting session %s: %w", id, err)
	}

	s.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	if s.Expired(time.Now()) {
		return nil, apperror.NotFound("session", id)
	}
	if err := json.Unmarshal([]byte(creds), &s.Credentials); err != nil {
		return nil, fmt.Errorf("sqlite: decoding credentials for session %s: %w", id, err)
	}
	return &s, nil
}

// UpdateCredentials replaces the stored credentials, user and expiry.
func (db *DB) UpdateCredentials(ctx context.Context, id, userID string, creds model.Credentials, expiresAt time.Time) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("sqlite: encoding credentials for session %s: %w", id, err)
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE sessions SET user_id = ?, credentials = ?, updated_at = ?, expires_at = ?
		 WHERE id = ?`,
		userID,
		string(raw),
		time.Now().UTC(),
		expiresAt.Unix(),
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating session %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("session", id)
	}
	return nil
}

// Delete removes a session row. Deleting a missing row is not an error:
// signing out twice ends in the same state.
func (db *DB) Delete(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting session %s: %w", id, err)
	}
	return nil
}

// DeleteExpired removes every row expired at now and reports how many.
func (db *DB) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}
