// api/models/auth_models.go
package models

import (
	"time"

	"github.com/siftmail/sift-backend/internal/domain"
)

// --- Auth Request/Response Structs ---

// SignupRequest defines the structure for the signup request body
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"fullName" binding:"omitempty,max=128"`
}

// SigninRequest defines the structure for the signin request body
type SigninRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ResetPasswordRequest sets the first password for an account that was
// created without one.
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

// UpdateUserRequest updates fields of the authenticated identity.
// Nil fields are left unchanged.
type UpdateUserRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=6"`
	FullName *string `json:"fullName" binding:"omitempty,max=128"`
}

// UserResponse is the public view of a user. The credential hash is never
// serialized.
type UserResponse struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	FullName         string     `json:"fullName"`
	EmailConfirmedAt *time.Time `json:"emailConfirmedAt"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// SessionResponse is the public view of a session. The token itself travels
// only in the cookie.
type SessionResponse struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthResponse pairs a user with their session; both are null when no
// session is present.
type AuthResponse struct {
	User    *UserResponse    `json:"user"`
	Session *SessionResponse `json:"session"`
}

// NewUserResponse maps a domain user to its public view.
func NewUserResponse(u *domain.User) *UserResponse {
	resp := &UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt,
	}
	if u.EmailConfirmedAt.Valid {
		t := u.EmailConfirmedAt.Time
		resp.EmailConfirmedAt = &t
	}
	return resp
}

// NewSessionResponse maps a domain session to its public view.
func NewSessionResponse(s *domain.Session) *SessionResponse {
	return &SessionResponse{ExpiresAt: s.ExpiresAt}
}
