// api/middleware/error_handler.go
package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10" // Import validator for binding errors

	"github.com/siftmail/sift-backend/internal/auth"
	"github.com/siftmail/sift-backend/internal/gateway"
	"github.com/siftmail/sift-backend/internal/storage"
)

// ErrorHandler creates a Gin middleware for centralized error handling.
// Handlers attach errors with c.Error and return; this middleware maps each
// error kind to exactly one HTTP status and user message, so no storage or
// driver detail reaches the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// Only the last error drives the response.
		err := c.Errors.Last().Err
		customLog.Warnf("[ErrorHandler] Detected error: %v | Type: %T", err, err)

		var statusCode int
		var userMessage string

		switch {
		case errors.Is(err, auth.ErrUnauthenticated):
			statusCode = http.StatusUnauthorized
			// One message for every token failure mode so valid tokens
			// cannot be probed.
			userMessage = "Authentication required."
		case errors.Is(err, storage.ErrInvalidCredentials):
			statusCode = http.StatusUnauthorized
			userMessage = err.Error()
		case errors.Is(err, gateway.ErrNotFound),
			errors.Is(err, storage.ErrUserNotFound):
			statusCode = http.StatusNotFound
			userMessage = err.Error()
		case errors.Is(err, storage.ErrEmailExists):
			statusCode = http.StatusConflict
			userMessage = err.Error()
		case errors.Is(err, gateway.ErrInvalidTable),
			errors.Is(err, gateway.ErrUnsupportedOperation),
			errors.Is(err, gateway.ErrInvalidColumn),
			errors.Is(err, gateway.ErrInvalidFilterValue),
			errors.Is(err, gateway.ErrInvalidPayload),
			errors.Is(err, gateway.ErrInvalidLimit),
			errors.Is(err, gateway.ErrFilterRequired),
			errors.Is(err, gateway.ErrMultipleRows),
			errors.Is(err, auth.ErrPasswordTooShort),
			errors.Is(err, auth.ErrPasswordAlreadySet),
			errors.Is(err, storage.ErrNoFieldsToUpdate):
			statusCode = http.StatusBadRequest
			userMessage = err.Error()
		case errors.Is(err, gateway.ErrStorageTimeout):
			statusCode = http.StatusGatewayTimeout
			userMessage = "Storage operation timed out."
		default:
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
				errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				statusCode = http.StatusBadRequest
				userMessage = "Invalid JSON request body."
				break
			}
			if validationErrs, ok := err.(validator.ValidationErrors); ok {
				statusCode = http.StatusBadRequest
				userMessage = "Validation failed. Please check your input."
				for _, fe := range validationErrs {
					customLog.Warnf("Validation Error: Field %s failed on %s", fe.Field(), fe.Tag())
				}
				break
			}
			// Infrastructure and unexpected failures: log detail, answer generic.
			statusCode = http.StatusInternalServerError
			userMessage = "An unexpected internal server error occurred."
			customLog.Warnf("Unhandled error type: %T, Error: %v", err, err)
		}

		if !c.Writer.Written() {
			c.AbortWithStatusJSON(statusCode, gin.H{"error": userMessage})
		}
	}
}
