package token

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubSecrets implements SecretSource with a fixed key.
type stubSecrets struct {
	key string
}

func (s *stubSecrets) SecretKey() string { return s.key }

func newTestResolver(t *testing.T, key string) (*Resolver, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".hubgate-token")
	return NewResolver(path, &stubSecrets{key: key}, zap.NewNop()), path
}

func TestResolveEnvironmentWins(t *testing.T) {
	r, path := newTestResolver(t, "hubsecret")

	// All lower-priority sources present simultaneously.
	require.NoError(t, os.WriteFile(path, []byte("persisted-token-long-enough\n"), 0o600))
	t.Setenv(EnvVar, "x") // no length floor for the environment source

	tok := r.Resolve("declared-token")
	assert.Equal(t, "x", tok.Value)
	assert.Equal(t, SourceEnvironment, tok.Source)
}

func TestResolvePersistedFile(t *testing.T) {
	t.Setenv(EnvVar, "")
	r, path := newTestResolver(t, "hubsecret")
	require.NoError(t, os.WriteFile(path, []byte("  persisted-token-long-enough \n"), 0o600))

	tok := r.Resolve("declared-token")
	assert.Equal(t, "persisted-token-long-enough", tok.Value, "content should be trimmed")
	assert.Equal(t, SourcePersistedFile, tok.Source)
}

func TestResolvePersistedFileTooShort(t *testing.T) {
	t.Setenv(EnvVar, "")
	r, path := newTestResolver(t, "hubsecret")
	require.NoError(t, os.WriteFile(path, []byte("short\n"), 0o600))

	tok := r.Resolve("declared-token")
	assert.Equal(t, SourceDeclaredConfig, tok.Source, "short file content falls through")
	assert.Equal(t, "declared-token", tok.Value)
}

func TestResolveDeclaredConfig(t *testing.T) {
	t.Setenv(EnvVar, "")
	r, _ := newTestResolver(t, "hubsecret")

	tok := r.Resolve("declared-token")
	assert.Equal(t, "declared-token", tok.Value)
	assert.Equal(t, SourceDeclaredConfig, tok.Source)
}

func TestResolveDeclaredConfigTooShort(t *testing.T) {
	t.Setenv(EnvVar, "")
	r, _ := newTestResolver(t, "hubsecret")

	tok := r.Resolve("tiny")
	assert.Equal(t, SourceGenerated, tok.Source, "declared value under 8 chars falls through")
}

func TestResolveGenerated(t *testing.T) {
	t.Setenv(EnvVar, "")
	r, path := newTestResolver(t, "hubsecret")

	tok := r.Resolve("")
	require.Equal(t, SourceGenerated, tok.Source)
	assert.Len(t, tok.Value, 48)
	assert.Equal(t, strings.ToLower(tok.Value), tok.Value, "token is lowercase hex")

	// The generated token was persisted with restrictive permissions.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, tok.Value, strings.TrimSpace(string(data)))
}

func TestResolveGeneratedThenReadBack(t *testing.T) {
	t.Setenv(EnvVar, "")
	r, _ := newTestResolver(t, "hubsecret")

	first := r.Resolve("")
	require.Equal(t, SourceGenerated, first.Source)

	// Second pass re-reads the persisted value.
	second := r.Resolve("")
	assert.Equal(t, SourcePersistedFile, second.Source)
	assert.Equal(t, first.Value, second.Value)
}

func TestResolveGeneratedDeterministic(t *testing.T) {
	t.Setenv(EnvVar, "")
	a, _ := newTestResolver(t, "hubsecret")
	b, _ := newTestResolver(t, "hubsecret")
	c, _ := newTestResolver(t, "othersecret")

	assert.Equal(t, a.generate(), b.generate(), "same seed yields same token")
	assert.NotEqual(t, a.generate(), c.generate(), "different seed yields different token")
}

func TestResolveGeneratedFallbackSeed(t *testing.T) {
	t.Setenv(EnvVar, "")
	r, _ := newTestResolver(t, "")

	tok := r.Resolve("")
	require.Equal(t, SourceGenerated, tok.Source)
	assert.Len(t, tok.Value, 48)
}

func TestResolvePersistFailureNonFatal(t *testing.T) {
	t.Setenv(EnvVar, "")
	// Point the persist path into a directory that does not exist.
	r := NewResolver(filepath.Join(t.TempDir(), "missing", "sub", "tok"),
		&stubSecrets{key: "hubsecret"}, zap.NewNop())

	tok := r.Resolve("")
	assert.Equal(t, SourceGenerated, tok.Source)
	assert.Len(t, tok.Value, 48, "token is still returned when persistence fails")
}
