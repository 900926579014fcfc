package hub

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HerbHall/hubgate/internal/secrets"
)

// newSecretsReader writes secret material fixtures and returns a Reader
// over them. Empty key or users skips the respective document.
func newSecretsReader(t *testing.T, key, users string) *secrets.Reader {
	t.Helper()
	dir := t.TempDir()

	secretsPath := filepath.Join(dir, "secrets.json")
	if key != "" {
		doc := fmt.Sprintf(`{"secretKey":%q}`, key)
		require.NoError(t, os.WriteFile(secretsPath, []byte(doc), 0o600))
	}

	usersPath := filepath.Join(dir, "users.json")
	if users != "" {
		require.NoError(t, os.WriteFile(usersPath, []byte(users), 0o600))
	}

	return secrets.NewReader(secretsPath, usersPath, zap.NewNop())
}

const adminUsers = `[{"id":1,"username":"admin","name":"Administrator","admin":true}]`

func TestModeDirectSignPreferred(t *testing.T) {
	reader := newSecretsReader(t, "topsecret", adminUsers)

	// Declared login credentials also present; direct-sign still wins.
	b := New("http://hub.local", reader, "admin", "password", time.Second, zap.NewNop())
	assert.Equal(t, ModeDirectSign, b.Mode())
}

func TestModeCredentialLogin(t *testing.T) {
	reader := newSecretsReader(t, "", "")

	b := New("http://hub.local", reader, "admin", "password", time.Second, zap.NewNop())
	assert.Equal(t, ModeCredentialLogin, b.Mode())
}

func TestModeCredentialLoginWhenNoAdminUser(t *testing.T) {
	// Secret key present but no admin account: direct signing impossible.
	reader := newSecretsReader(t, "topsecret", `[{"id":1,"username":"viewer","admin":false}]`)

	b := New("http://hub.local", reader, "admin", "password", time.Second, zap.NewNop())
	assert.Equal(t, ModeCredentialLogin, b.Mode())
}

func TestModeUnavailable(t *testing.T) {
	reader := newSecretsReader(t, "", "")

	b := New("http://hub.local", reader, "", "", time.Second, zap.NewNop())
	require.Equal(t, ModeUnavailable, b.Mode())

	_, err := b.Credential(context.Background())
	assert.ErrorIs(t, err, ErrNoAuthStrategy)

	// Every subsequent call keeps failing the same way.
	_, err = b.Credential(context.Background())
	assert.ErrorIs(t, err, ErrNoAuthStrategy)
}

func TestDirectSignClaims(t *testing.T) {
	reader := newSecretsReader(t, "topsecret", adminUsers)
	b := New("http://hub.local", reader, "", "", time.Second, zap.NewNop())

	cred, err := b.Credential(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, cred.Token)

	parsed, err := jwt.Parse(cred.Token, func(tok *jwt.Token) (any, error) {
		return []byte("topsecret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)

	assert.Equal(t, "admin", claims["username"])
	assert.Equal(t, "Administrator", claims["name"])
	assert.Equal(t, true, claims["admin"])

	wantInstance := sha256.Sum256([]byte("topsecret"))
	assert.Equal(t, hex.EncodeToString(wantInstance[:]), claims["instanceId"])

	// Cache expiry is discounted below the signed validity.
	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.True(t, cred.ExpiresAt.Before(exp.Time), "cached expiry must precede signed expiry")
}

func TestDirectSignCredentialCached(t *testing.T) {
	reader := newSecretsReader(t, "topsecret", adminUsers)
	b := New("http://hub.local", reader, "", "", time.Second, zap.NewNop())

	first, err := b.Credential(context.Background())
	require.NoError(t, err)
	second, err := b.Credential(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second, "calls inside the refresh margin reuse the cache")
}

func TestLoginCredentialRefresh(t *testing.T) {
	var logins int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/login", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "admin", body["username"])
		require.Equal(t, "hunter2", body["password"])

		logins++
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("token-%d", logins),
			"token_type":   "Bearer",
			"expires_in":   28800,
		})
	}))
	defer srv.Close()

	reader := newSecretsReader(t, "", "")
	b := New(srv.URL, reader, "admin", "hunter2", time.Second, zap.NewNop())
	require.Equal(t, ModeCredentialLogin, b.Mode())

	first, err := b.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", first.Token)

	// Cached: no second upstream call.
	again, err := b.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", again.Token)
	assert.Equal(t, 1, logins)

	// Forced expiry produces a fresh credential.
	b.invalidate()
	fresh, err := b.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", fresh.Token)
	assert.Equal(t, 2, logins)
}

func TestLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	reader := newSecretsReader(t, "", "")
	b := New(srv.URL, reader, "admin", "wrong", time.Second, zap.NewNop())

	_, err := b.Credential(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.Contains(t, authErr.Body, "bad credentials")
}

func TestLoginMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"token_type": "Bearer"})
	}))
	defer srv.Close()

	reader := newSecretsReader(t, "", "")
	b := New(srv.URL, reader, "admin", "hunter2", time.Second, zap.NewNop())

	_, err := b.Credential(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}
