// api/handlers/auth_handler_integration_test.go
package handlers_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/siftmail/sift-backend/api"
	"github.com/siftmail/sift-backend/config"
	"github.com/siftmail/sift-backend/internal/auth"
	"github.com/siftmail/sift-backend/internal/storage"
)

// testDBSetup creates a temporary SQLite DB for testing.
func testDBSetup(t *testing.T) (*sql.DB, *config.Config) {
	t.Helper()

	testCfg := &config.Config{
		ServerPort:     "0",
		Env:            "test",
		DatabaseDir:    t.TempDir(),
		DatabaseFile:   "test_sift.db",
		SessionTTL:     time.Minute * 5,
		QueryTimeout:   time.Second * 5,
		AllowedOrigins: []string{"http://localhost:3000"},
		AuthRateLimit:  1000, // Not under test here
	}

	db, err := storage.ConnectDB(testCfg) // Creates schema
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	})

	return db, testCfg
}

// setupTestServer creates a test server instance with a test DB and a
// cookie-carrying client.
func setupTestServer(t *testing.T) (*httptest.Server, *sql.DB, *http.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, cfg := testDBSetup(t)
	authn := auth.NewAuthenticator(db, cfg.SessionTTL)
	router := api.SetupRouter(db, cfg, authn)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server, db, newCookieClient(t)
}

func newCookieClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("Failed to create cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request body: %v", err)
	}
	res, err := client.Post(url, "application/json", bytes.NewReader(bodyBytes))
	if err != nil {
		t.Fatalf("Request to %s failed: %v", url, err)
	}
	return res
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	defer res.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
	return body
}

// TestAuthEndpoints walks the full session lifecycle:
// signup -> signin -> session -> update -> signout -> session gone.
func TestAuthEndpoints(t *testing.T) {
	server, db, client := setupTestServer(t)
	assert := assert.New(t)

	testEmail := "user@example.com"
	testPassword := "secret1"
	var userID string

	t.Run("Signup Success", func(t *testing.T) {
		res := postJSON(t, client, server.URL+"/auth/signup", map[string]string{
			"email": testEmail, "password": testPassword, "fullName": "Test User",
		})
		assert.Equal(http.StatusCreated, res.StatusCode, "Expected status 201 Created")
		body := decodeBody(t, res)
		assert.NotNil(body["user"])

		user, err := storage.FindUserByEmail(context.Background(), db, testEmail)
		assert.NoError(err, "Finding user after signup should not fail")
		if assert.NotNil(user) {
			userID = user.ID
			assert.Equal(testEmail, user.Email)
			match, err := auth.CheckPasswordHash(testPassword, user.PasswordHash.String)
			assert.NoError(err)
			assert.True(match, "Stored password hash should match")
		}
	})

	t.Run("Signup Conflict (Duplicate Email)", func(t *testing.T) {
		res := postJSON(t, client, server.URL+"/auth/signup", map[string]string{
			"email": testEmail, "password": "anotherPassword",
		})
		defer res.Body.Close()
		assert.Equal(http.StatusConflict, res.StatusCode)
	})

	t.Run("Signup Weak Password", func(t *testing.T) {
		res := postJSON(t, client, server.URL+"/auth/signup", map[string]string{
			"email": "short@example.com", "password": "12345",
		})
		defer res.Body.Close()
		assert.Equal(http.StatusBadRequest, res.StatusCode)
	})

	t.Run("Signin Wrong Password", func(t *testing.T) {
		res := postJSON(t, client, server.URL+"/auth/signin", map[string]string{
			"email": testEmail, "password": "wrong-password",
		})
		defer res.Body.Close()
		assert.Equal(http.StatusUnauthorized, res.StatusCode)
	})

	t.Run("Signin Unknown Email Is Indistinguishable", func(t *testing.T) {
		res := postJSON(t, client, server.URL+"/auth/signin", map[string]string{
			"email": "nobody@example.com", "password": testPassword,
		})
		defer res.Body.Close()
		assert.Equal(http.StatusUnauthorized, res.StatusCode)
	})

	t.Run("Signin Success Sets Cookie", func(t *testing.T) {
		res := postJSON(t, client, server.URL+"/auth/signin", map[string]string{
			"email": testEmail, "password": testPassword,
		})
		assert.Equal(http.StatusOK, res.StatusCode)

		var sessionCookie *http.Cookie
		for _, cookie := range res.Cookies() {
			if cookie.Name == "sift_session" {
				sessionCookie = cookie
			}
		}
		if assert.NotNil(sessionCookie, "signin should set the session cookie") {
			assert.True(sessionCookie.HttpOnly)
			assert.NotEmpty(sessionCookie.Value)
		}

		body := decodeBody(t, res)
		assert.NotNil(body["user"])
		assert.NotNil(body["session"])
	})

	t.Run("Session Returns Current User", func(t *testing.T) {
		res, err := client.Get(server.URL + "/auth/session")
		assert.NoError(err)
		assert.Equal(http.StatusOK, res.StatusCode)

		body := decodeBody(t, res)
		user, ok := body["user"].(map[string]any)
		if assert.True(ok, "session response should carry the user") {
			assert.Equal(userID, user["id"])
		}
	})

	t.Run("Update User", func(t *testing.T) {
		res := postJSON(t, client, server.URL+"/auth/update-user", map[string]string{
			"fullName": "Renamed User",
		})
		assert.Equal(http.StatusOK, res.StatusCode)
		body := decodeBody(t, res)
		user, ok := body["user"].(map[string]any)
		if assert.True(ok) {
			assert.Equal("Renamed User", user["fullName"])
		}
	})

	t.Run("Signout Clears Session", func(t *testing.T) {
		res := postJSON(t, client, server.URL+"/auth/signout", map[string]string{})
		assert.Equal(http.StatusOK, res.StatusCode)
		res.Body.Close()

		// The old session is revoked server-side, not just cookie-cleared.
		res, err := client.Get(server.URL + "/auth/session")
		assert.NoError(err)
		assert.Equal(http.StatusOK, res.StatusCode, "no-session is a normal answer, not an error")
		body := decodeBody(t, res)
		assert.Nil(body["user"])
		assert.Nil(body["session"])
	})
}

func TestUpdateUserRequiresSession(t *testing.T) {
	server, _, client := setupTestServer(t)
	assert := assert.New(t)

	res := postJSON(t, client, server.URL+"/auth/update-user", map[string]string{
		"fullName": "Nobody",
	})
	defer res.Body.Close()
	assert.Equal(http.StatusUnauthorized, res.StatusCode)
}

// TestResetPassword covers the migrated-account flow: accounts created
// without a credential get exactly one password set via reset-password.
func TestResetPassword(t *testing.T) {
	server, db, client := setupTestServer(t)
	assert := assert.New(t)

	migratedEmail := "migrated@example.com"
	err := storage.CreateUser(context.Background(), db, uuid.New().String(), migratedEmail, "Migrated User", "")
	assert.NoError(err)

	t.Run("first password set succeeds", func(t *testing.T) {
		res := postJSON(t, client, server.URL+"/auth/reset-password", map[string]string{
			"email": migratedEmail, "newPassword": "secret1",
		})
		defer res.Body.Close()
		assert.Equal(http.StatusOK, res.StatusCode)

		// The new password signs in.
		signin := postJSON(t, client, server.URL+"/auth/signin", map[string]string{
			"email": migratedEmail, "password": "secret1",
		})
		defer signin.Body.Close()
		assert.Equal(http.StatusOK, signin.StatusCode)
	})

	t.Run("second reset is rejected and hash is unchanged", func(t *testing.T) {
		before, err := storage.FindUserByEmail(context.Background(), db, migratedEmail)
		assert.NoError(err)

		res := postJSON(t, client, server.URL+"/auth/reset-password", map[string]string{
			"email": migratedEmail, "newPassword": "different1",
		})
		assert.Equal(http.StatusBadRequest, res.StatusCode)
		body := decodeBody(t, res)
		assert.Contains(body["error"], "already set")

		after, err := storage.FindUserByEmail(context.Background(), db, migratedEmail)
		assert.NoError(err)
		assert.Equal(before.PasswordHash.String, after.PasswordHash.String)
	})

	t.Run("unknown email", func(t *testing.T) {
		res := postJSON(t, client, server.URL+"/auth/reset-password", map[string]string{
			"email": "ghost@example.com", "newPassword": "secret1",
		})
		defer res.Body.Close()
		assert.Equal(http.StatusNotFound, res.StatusCode)
	})
}
