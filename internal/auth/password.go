// internal/auth/password.go
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/siftmail/sift-backend/internal/logger"
)

var (
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrCorruptCredential  = errors.New("stored credential hash is malformed")
	ErrPasswordAlreadySet = errors.New("a password is already set for this account")

	customLog = logger.NewLogger()
)

// MinPasswordLength is the minimum accepted plaintext password length.
const MinPasswordLength = 6

// HashPassword generates a bcrypt hash for the given password.
// The output is salted, so hashing the same password twice yields
// different strings; equality is only checked via CheckPasswordHash.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		customLog.Warnf("Error generating bcrypt hash: %v", err)
		return "", errors.New("failed to hash password")
	}
	return string(bytes), nil
}

// CheckPasswordHash compares a plaintext password with a stored bcrypt hash.
// A mismatch returns (false, nil); only a hash bcrypt cannot parse is an error.
func CheckPasswordHash(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	customLog.Warnf("Unexpected error comparing password hash: %v", err)
	return false, ErrCorruptCredential
}
