// Package hub maintains hubgate's outbound credential for the hub
// management API and performs the raw read and write calls against it.
package hub

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/HerbHall/hubgate/internal/metrics"
	"github.com/HerbHall/hubgate/internal/secrets"
)

// AuthMode selects how the bridge obtains its outbound credential. Chosen
// once at construction from the inputs available, immutable thereafter.
type AuthMode string

const (
	ModeDirectSign      AuthMode = "direct-sign"
	ModeCredentialLogin AuthMode = "credential-login"
	ModeUnavailable     AuthMode = "unavailable"
)

const (
	// signValidity is the validity window stamped into self-signed tokens.
	signValidity = 8 * time.Hour

	// refreshMargin is subtracted from the signed validity when caching, so
	// a token is reissued well before the hub would reject it.
	refreshMargin = 5 * time.Minute

	// loginSafetyMargin is subtracted from a login token's declared
	// expires_in when caching.
	loginSafetyMargin = time.Minute

	// maxBodyBytes bounds how much of an upstream response body is read
	// into error details.
	maxBodyBytes = 64 * 1024
)

// Credential is the cached outbound credential. ExpiresAt already includes
// the refresh margin; a credential is usable until that instant.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Bridge holds the process-wide outbound credential cache and the HTTP
// client for the hub management API. Concurrent credential refreshes are
// benign: both racers produce an equivalent credential and the last write
// wins via the atomic pointer.
type Bridge struct {
	mode    AuthMode
	baseURL string
	client  *http.Client
	logger  *zap.Logger

	// direct-sign inputs
	secretKey string
	adminUser string
	adminName string

	// credential-login inputs
	username string
	password string

	cached        atomic.Pointer[Credential]
	logConfigOnce sync.Once
}

// New selects the auth mode from the available inputs and returns the
// bridge. Direct signing wins whenever the hub's secret key and an admin
// account are both readable, even if login credentials were also declared.
func New(baseURL string, reader *secrets.Reader, username, password string, timeout time.Duration, logger *zap.Logger) *Bridge {
	b := &Bridge{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		username: username,
		password: password,
	}

	key := ""
	var admin *secrets.User
	if reader != nil {
		key = reader.SecretKey()
		admin = reader.AdminUser()
	}

	switch {
	case key != "" && admin != nil:
		b.mode = ModeDirectSign
		b.secretKey = key
		b.adminUser = admin.Username
		b.adminName = admin.Name
		if b.adminName == "" {
			b.adminName = admin.Username
		}
	case username != "" && password != "":
		b.mode = ModeCredentialLogin
	default:
		b.mode = ModeUnavailable
	}

	logger.Info("hub auth bridge ready", zap.String("mode", string(b.mode)))
	return b
}

// Mode returns the auth mode fixed at construction.
func (b *Bridge) Mode() AuthMode {
	return b.mode
}

// Credential returns a valid outbound credential, refreshing the cache
// when absent or past its discounted expiry.
func (b *Bridge) Credential(ctx context.Context) (Credential, error) {
	if b.mode == ModeUnavailable {
		b.logConfigOnce.Do(func() {
			b.logger.Error("hub calls impossible: no secret key material and no login credentials")
		})
		return Credential{}, ErrNoAuthStrategy
	}

	if c := b.cached.Load(); c != nil && time.Now().Before(c.ExpiresAt) {
		return *c, nil
	}

	var cred Credential
	var err error
	switch b.mode {
	case ModeDirectSign:
		cred, err = b.signCredential()
	case ModeCredentialLogin:
		cred, err = b.login(ctx)
	}
	if err != nil {
		return Credential{}, err
	}

	b.cached.Store(&cred)
	return cred, nil
}

// signCredential issues a token signed with the hub's own secret key,
// impersonating the admin account the hub already trusts.
func (b *Bridge) signCredential() (Credential, error) {
	now := time.Now()

	// The hub identifies its own instance by a digest of the secret key.
	instanceID := sha256.Sum256([]byte(b.secretKey))

	claims := jwt.MapClaims{
		"username":   b.adminUser,
		"name":       b.adminName,
		"admin":      true,
		"instanceId": hex.EncodeToString(instanceID[:]),
		"iat":        now.Unix(),
		"exp":        now.Add(signValidity).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(b.secretKey))
	if err != nil {
		return Credential{}, fmt.Errorf("sign hub token: %w", err)
	}

	b.logger.Debug("signed hub credential", zap.String("subject", b.adminUser))
	return Credential{
		Token:     signed,
		ExpiresAt: now.Add(signValidity - refreshMargin),
	}, nil
}

// login performs one authentication call against the hub. Failures are
// returned as AuthError and never retried here.
func (b *Bridge) login(ctx context.Context) (Credential, error) {
	body, _ := json.Marshal(map[string]string{
		"username": b.username,
		"password": b.password,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return Credential{}, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("login", metrics.OutcomeError).Inc()
		return Credential{}, fmt.Errorf("hub login call: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequests.WithLabelValues("login", metrics.OutcomeError).Inc()
		return Credential{}, &AuthError{Status: resp.StatusCode, Body: string(respBody)}
	}
	metrics.UpstreamRequests.WithLabelValues("login", metrics.OutcomeOK).Inc()

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return Credential{}, fmt.Errorf("decode login response: %w", err)
	}
	if payload.AccessToken == "" {
		return Credential{}, &AuthError{Status: resp.StatusCode, Body: "login response missing access_token"}
	}

	ttl := time.Duration(payload.ExpiresIn) * time.Second
	if ttl <= loginSafetyMargin {
		ttl = 2 * loginSafetyMargin
	}

	b.logger.Debug("hub login succeeded", zap.Duration("ttl", ttl))
	return Credential{
		Token:     payload.AccessToken,
		ExpiresAt: time.Now().Add(ttl - loginSafetyMargin),
	}, nil
}

// invalidate drops the cached credential. Used by tests to force a refresh.
func (b *Bridge) invalidate() {
	b.cached.Store(nil)
}
