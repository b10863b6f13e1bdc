// api/middleware/session_middleware.go
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/siftmail/sift-backend/internal/auth"
	"github.com/siftmail/sift-backend/internal/logger"
)

var customLog = logger.NewLogger()

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "sift_session"

// Context keys set by SessionAuth on success.
const (
	ContextUserKey    = "user"
	ContextSessionKey = "session"
)

// SessionAuth resolves the session cookie to a user identity before any
// protected handler runs. Every resolution failure degrades to "no session":
// the response never distinguishes missing, invalid, expired, or revoked
// tokens.
func SessionAuth(authn *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(SessionCookieName)

		user, session, err := authn.Resolve(c.Request.Context(), token)
		if err != nil {
			// Storage failures are logged with detail but still reject the
			// request; a partially resolved identity must never get through.
			if !errors.Is(err, auth.ErrUnauthenticated) {
				customLog.Warnf("SessionAuth: session resolution failed: %v", err)
			}
			_ = c.Error(auth.ErrUnauthenticated)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required."})
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextSessionKey, session)
		c.Next()
	}
}
