// internal/auth/session.go
package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/siftmail/sift-backend/internal/domain"
	"github.com/siftmail/sift-backend/internal/storage"
)

// ErrUnauthenticated covers every session resolution failure: absent,
// unknown, expired, and revoked tokens all collapse into it so callers
// cannot distinguish which tokens exist.
var ErrUnauthenticated = errors.New("unauthenticated")

const tokenBytes = 32

// Authenticator issues, resolves, and revokes opaque session tokens.
// Construct with NewAuthenticator; the zero value is not usable.
type Authenticator struct {
	db  *sql.DB
	ttl time.Duration

	// mu guards locks; each entry serializes issuance per identity so
	// concurrent sign-ins cannot race on session state. Entries are
	// reference counted and removed once the last holder releases, so
	// the map only holds identities with an issuance in flight.
	mu    sync.Mutex
	locks map[string]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

// NewAuthenticator creates an Authenticator backed by the given pool.
// ttl is the lifetime of newly issued sessions.
func NewAuthenticator(db *sql.DB, ttl time.Duration) *Authenticator {
	return &Authenticator{
		db:    db,
		ttl:   ttl,
		locks: make(map[string]*identityLock),
	}
}

// lockIdentity serializes issuance for userID and returns the release func.
func (a *Authenticator) lockIdentity(userID string) func() {
	a.mu.Lock()
	lock, ok := a.locks[userID]
	if !ok {
		lock = &identityLock{}
		a.locks[userID] = lock
	}
	lock.refs++
	a.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		a.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(a.locks, userID)
		}
		a.mu.Unlock()
	}
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Issue creates and persists a new session for userID. It must only be
// called after credential verification has succeeded.
func (a *Authenticator) Issue(ctx context.Context, userID string) (*domain.Session, error) {
	unlock := a.lockIdentity(userID)
	defer unlock()

	token, err := generateToken()
	if err != nil {
		customLog.Warnf("Auth: token generation failed for user %s: %v", userID, err)
		return nil, err
	}

	session := &domain.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(a.ttl),
	}
	if err := storage.InsertSession(ctx, a.db, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Resolve maps a token to its user, or ErrUnauthenticated. Storage failures
// other than "not found" are surfaced as-is so infrastructure problems are
// not mistaken for bad credentials.
func (a *Authenticator) Resolve(ctx context.Context, token string) (*domain.User, *domain.Session, error) {
	if token == "" {
		return nil, nil, ErrUnauthenticated
	}

	session, user, err := storage.FindSessionWithUser(ctx, a.db, token)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, err
	}

	if !session.Active(time.Now()) {
		return nil, nil, ErrUnauthenticated
	}
	return user, session, nil
}

// Revoke permanently invalidates a token. Idempotent: revoking an unknown
// or already revoked token succeeds.
func (a *Authenticator) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return storage.RevokeSession(ctx, a.db, token, time.Now())
}

// PurgeExpired deletes sessions that can never become valid again.
func (a *Authenticator) PurgeExpired(ctx context.Context) (int64, error) {
	return storage.DeleteExpiredSessions(ctx, a.db, time.Now())
}
