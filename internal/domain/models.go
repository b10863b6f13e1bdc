// internal/domain/models.go
package domain

import (
	"database/sql"
	"time"
)

// User defines the structure for user data in the DB
type User struct {
	ID               string
	Email            string
	FullName         string
	PasswordHash     sql.NullString // Null until the first password is set
	EmailConfirmedAt sql.NullTime
	CreatedAt        time.Time
}

// HasPassword reports whether a credential hash has ever been set for the user.
func (u *User) HasPassword() bool {
	return u.PasswordHash.Valid && u.PasswordHash.String != ""
}

// Session is a server-side record binding an opaque token to a user.
// Lifecycle: issued on sign-in, terminal once expired or revoked.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	RevokedAt sql.NullTime
	CreatedAt time.Time
}

// Active reports whether the session is still usable at time now.
func (s *Session) Active(now time.Time) bool {
	return !s.RevokedAt.Valid && now.Before(s.ExpiresAt)
}
