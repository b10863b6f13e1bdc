// api/handlers/auth_handler.go
package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/siftmail/sift-backend/api/middleware"
	"github.com/siftmail/sift-backend/api/models"
	"github.com/siftmail/sift-backend/config"
	"github.com/siftmail/sift-backend/internal/auth"
	"github.com/siftmail/sift-backend/internal/domain"
	"github.com/siftmail/sift-backend/internal/logger"
	"github.com/siftmail/sift-backend/internal/storage"
)

var customLog = logger.NewLogger()

// AuthHandler holds dependencies for authentication handlers.
type AuthHandler struct {
	DB   *sql.DB
	Cfg  *config.Config
	Auth *auth.Authenticator
}

// NewAuthHandler creates a new AuthHandler with dependencies.
func NewAuthHandler(db *sql.DB, cfg *config.Config, authn *auth.Authenticator) *AuthHandler {
	return &AuthHandler{
		DB:   db,
		Cfg:  cfg,
		Auth: authn,
	}
}

// setSessionCookie writes the session cookie. Secure is set in production;
// SameSite=Lax keeps the cookie on top-level navigations only.
func (h *AuthHandler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	secure := h.Cfg.Env == "production"
	c.SetCookie(middleware.SessionCookieName, token, maxAge, "/", "", secure, true)
}

// Signup handles user registration. No session cookie is issued here;
// the client signs in afterwards.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		customLog.Warnf("Signup binding error: %v", err)
		_ = c.Error(err)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		customLog.Warnf("Failed to hash password during signup for email %s: %v", req.Email, err)
		_ = c.Error(err)
		return
	}

	userID := uuid.New().String()
	if err := storage.CreateUser(c.Request.Context(), h.DB, userID, req.Email, req.FullName, hashedPassword); err != nil {
		customLog.Warnf("Failed to create user %s: %v", req.Email, err)
		_ = c.Error(err) // e.g. ErrEmailExists -> 409
		return
	}

	user, err := storage.FindUserByID(c.Request.Context(), h.DB, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	customLog.Printf("Successfully registered user with email %s", req.Email)
	c.JSON(http.StatusCreated, gin.H{"user": models.NewUserResponse(user)})
}

// Signin verifies credentials and issues a session cookie.
func (h *AuthHandler) Signin(c *gin.Context) {
	var req models.SigninRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		customLog.Warnf("Signin binding error: %v", err)
		_ = c.Error(err)
		return
	}

	user, err := storage.FindUserByEmail(c.Request.Context(), h.DB, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// Same answer as a bad password; do not reveal which emails exist.
			_ = c.Error(storage.ErrInvalidCredentials)
			return
		}
		_ = c.Error(err)
		return
	}

	if !user.HasPassword() {
		customLog.Warnf("Signin attempt for %s: no password set", user.Email)
		_ = c.Error(storage.ErrInvalidCredentials)
		return
	}

	match, err := auth.CheckPasswordHash(req.Password, user.PasswordHash.String)
	if err != nil {
		customLog.Warnf("Signin: corrupt credential hash for %s: %v", user.Email, err)
		_ = c.Error(err)
		return
	}
	if !match {
		customLog.Warnf("Signin attempt failed for email %s: invalid password", user.Email)
		_ = c.Error(storage.ErrInvalidCredentials)
		return
	}

	session, err := h.Auth.Issue(c.Request.Context(), user.ID)
	if err != nil {
		customLog.Warnf("Failed to issue session for user %s: %v", user.ID, err)
		_ = c.Error(err)
		return
	}

	h.setSessionCookie(c, session.Token, int(h.Cfg.SessionTTL.Seconds()))
	c.JSON(http.StatusOK, models.AuthResponse{
		User:    models.NewUserResponse(user),
		Session: models.NewSessionResponse(session),
	})
}

// Signout revokes the current session (if any) and clears the cookie.
func (h *AuthHandler) Signout(c *gin.Context) {
	token, _ := c.Cookie(middleware.SessionCookieName)
	if token != "" {
		if err := h.Auth.Revoke(c.Request.Context(), token); err != nil {
			customLog.Warnf("Signout: failed to revoke session: %v", err)
			_ = c.Error(err)
			return
		}
	}

	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Signed out successfully"})
}

// Session resolves the current cookie. "No session" is a normal answer, not
// an error: the response is always 200 with null user/session on failure.
func (h *AuthHandler) Session(c *gin.Context) {
	token, _ := c.Cookie(middleware.SessionCookieName)

	user, session, err := h.Auth.Resolve(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, auth.ErrUnauthenticated) {
			customLog.Warnf("Session lookup failed: %v", err)
		}
		c.JSON(http.StatusOK, models.AuthResponse{User: nil, Session: nil})
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{
		User:    models.NewUserResponse(user),
		Session: models.NewSessionResponse(session),
	})
}

// ResetPassword sets the first password for an identity that has none
// (accounts migrated without a credential). It refuses to replace an
// existing hash.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		customLog.Warnf("ResetPassword binding error: %v", err)
		_ = c.Error(err)
		return
	}

	user, err := storage.FindUserByEmail(c.Request.Context(), h.DB, req.Email)
	if err != nil {
		_ = c.Error(err) // ErrUserNotFound -> 404
		return
	}

	if user.HasPassword() {
		_ = c.Error(auth.ErrPasswordAlreadySet)
		return
	}

	hashedPassword, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := storage.SetPasswordHash(c.Request.Context(), h.DB, user.ID, hashedPassword); err != nil {
		_ = c.Error(err)
		return
	}

	customLog.Printf("Password set for user %s via reset flow", user.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Password set successfully"})
}

// UpdateUser modifies the authenticated identity. Runs behind SessionAuth.
func (h *AuthHandler) UpdateUser(c *gin.Context) {
	user := c.MustGet(middleware.ContextUserKey).(*domain.User)

	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		customLog.Warnf("UpdateUser binding error: %v", err)
		_ = c.Error(err)
		return
	}

	upd := storage.UserUpdate{
		Email:    req.Email,
		FullName: req.FullName,
	}
	if req.Password != nil {
		hashedPassword, err := auth.HashPassword(*req.Password)
		if err != nil {
			_ = c.Error(err)
			return
		}
		upd.PasswordHash = &hashedPassword
	}

	if err := storage.UpdateUser(c.Request.Context(), h.DB, user.ID, upd); err != nil {
		customLog.Warnf("Failed to update user %s: %v", user.ID, err)
		_ = c.Error(err)
		return
	}

	updated, err := storage.FindUserByID(c.Request.Context(), h.DB, user.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": models.NewUserResponse(updated)})
}
