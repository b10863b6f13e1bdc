// internal/auth/password_test.go
package auth

import (
	"errors"
	"testing"
)

func TestHashPassword(t *testing.T) {
	t.Run("hashes a valid password", func(t *testing.T) {
		hash, err := HashPassword("secret1")
		if err != nil {
			t.Fatalf("HashPassword returned error: %v", err)
		}
		if hash == "" || hash == "secret1" {
			t.Errorf("expected a non-empty hash distinct from the input, got %q", hash)
		}
	})

	t.Run("rejects short passwords", func(t *testing.T) {
		_, err := HashPassword("12345")
		if !errors.Is(err, ErrPasswordTooShort) {
			t.Errorf("expected ErrPasswordTooShort, got %v", err)
		}
	})

	t.Run("output is salted", func(t *testing.T) {
		h1, err1 := HashPassword("secret1")
		h2, err2 := HashPassword("secret1")
		if err1 != nil || err2 != nil {
			t.Fatalf("unexpected errors: %v, %v", err1, err2)
		}
		if h1 == h2 {
			t.Errorf("two hashes of the same password should differ, both were %q", h1)
		}
	})
}

func TestCheckPasswordHash(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}

	t.Run("matching password verifies", func(t *testing.T) {
		ok, err := CheckPasswordHash("secret1", hash)
		if err != nil {
			t.Fatalf("CheckPasswordHash returned error: %v", err)
		}
		if !ok {
			t.Error("expected matching password to verify")
		}
	})

	t.Run("wrong password does not verify and is not an error", func(t *testing.T) {
		ok, err := CheckPasswordHash("secret2", hash)
		if err != nil {
			t.Fatalf("mismatch should not be an error, got %v", err)
		}
		if ok {
			t.Error("expected wrong password to fail verification")
		}
	})

	t.Run("malformed stored hash is an error", func(t *testing.T) {
		_, err := CheckPasswordHash("secret1", "not-a-bcrypt-hash")
		if !errors.Is(err, ErrCorruptCredential) {
			t.Errorf("expected ErrCorruptCredential, got %v", err)
		}
	})
}
