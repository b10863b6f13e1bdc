// internal/storage/session_repo.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/siftmail/sift-backend/internal/domain"
)

// ErrSessionNotFound is returned when a token matches no session row.
var ErrSessionNotFound = errors.New("session not found")

// InsertSession persists a newly issued session.
func InsertSession(ctx context.Context, db *sql.DB, s *domain.Session) error {
	sqlStatement := `INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`
	_, err := db.ExecContext(ctx, sqlStatement, s.Token, s.UserID, s.ExpiresAt)
	if err != nil {
		customLog.Warnf("Storage: Failed to insert session for user %s: %v", s.UserID, err)
		return fmt.Errorf("database error during session creation: %w", err)
	}
	return nil
}

// FindSessionWithUser looks up a session by token together with its owner.
// It does not judge expiry or revocation; that is the authenticator's call.
func FindSessionWithUser(ctx context.Context, db *sql.DB, token string) (*domain.Session, *domain.User, error) {
	sqlStatement := `
	SELECT s.token, s.user_id, s.expires_at, s.revoked_at, s.created_at,
	       u.id, u.email, u.full_name, u.password_hash, u.email_confirmed_at, u.created_at
	FROM sessions s
	JOIN users u ON u.id = s.user_id
	WHERE s.token = ?
	LIMIT 1`

	var s domain.Session
	var u domain.User
	err := db.QueryRowContext(ctx, sqlStatement, token).Scan(
		&s.Token, &s.UserID, &s.ExpiresAt, &s.RevokedAt, &s.CreatedAt,
		&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.EmailConfirmedAt, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrSessionNotFound
		}
		customLog.Warnf("Storage: Error looking up session: %v", err)
		return nil, nil, fmt.Errorf("database error finding session: %w", err)
	}
	return &s, &u, nil
}

// RevokeSession marks a session revoked. Revoking an unknown or already
// revoked token is not an error (idempotent).
func RevokeSession(ctx context.Context, db *sql.DB, token string, at time.Time) error {
	sqlStatement := `UPDATE sessions SET revoked_at = ? WHERE token = ? AND revoked_at IS NULL`
	_, err := db.ExecContext(ctx, sqlStatement, at, token)
	if err != nil {
		customLog.Warnf("Storage: Failed to revoke session: %v", err)
		return fmt.Errorf("database error during session revocation: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that are past expiry or revoked,
// returning the number of rows deleted.
func DeleteExpiredSessions(ctx context.Context, db *sql.DB, now time.Time) (int64, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ? OR revoked_at IS NOT NULL`, now)
	if err != nil {
		customLog.Warnf("Storage: Failed to purge sessions: %v", err)
		return 0, fmt.Errorf("database error purging sessions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed confirming session purge: %w", err)
	}
	return deleted, nil
}
