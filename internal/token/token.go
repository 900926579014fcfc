// Package token resolves the bearer token hubgate accepts from its own
// callers. Resolution walks a fixed priority chain and always succeeds;
// the only side effect is a best-effort persist of a generated token.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Source records which resolution layer produced the token. Provenance is
// observability-only; it never changes behavior downstream.
type Source string

const (
	SourceEnvironment    Source = "environment"
	SourcePersistedFile  Source = "persisted-file"
	SourceDeclaredConfig Source = "declared-config"
	SourceGenerated      Source = "generated"
)

// EnvVar is the environment variable consulted first during resolution.
const EnvVar = "HUBGATE_API_TOKEN"

const (
	// minPersistedLen is the floor for tokens read back from disk. Shorter
	// content is treated as absent so a truncated write never becomes the
	// accepted credential.
	minPersistedLen = 16

	// minDeclaredLen is the floor for operator-declared config tokens.
	minDeclaredLen = 8

	// generatedHexLen is the length of a generated token in hex characters.
	generatedHexLen = 48

	// defaultSeed is used when the hub's secret key cannot be read.
	defaultSeed = "hubgate-fallback-seed"

	// domainSeparator keys the HMAC so tokens derived from the hub secret
	// are never valid in any other signing context.
	domainSeparator = "hubgate/api-token/v1"
)

// Token is the resolved inbound bearer credential.
type Token struct {
	Value  string
	Source Source
}

// SecretSource supplies the shared secret key used to derive a generated
// token. Implemented by secrets.Reader.
type SecretSource interface {
	SecretKey() string
}

// Resolver resolves the inbound token once per process lifetime.
type Resolver struct {
	filePath string
	secrets  SecretSource
	logger   *zap.Logger
}

// NewResolver creates a Resolver. filePath is both read in layer 2 and
// written in layer 4.
func NewResolver(filePath string, secrets SecretSource, logger *zap.Logger) *Resolver {
	return &Resolver{
		filePath: filePath,
		secrets:  secrets,
		logger:   logger,
	}
}

// Resolve returns the inbound token, trying in order: environment variable,
// persisted file, declared config value, generated. It never fails.
func (r *Resolver) Resolve(declared string) Token {
	if v := os.Getenv(EnvVar); v != "" {
		r.logger.Info("api token resolved", zap.String("source", string(SourceEnvironment)))
		return Token{Value: v, Source: SourceEnvironment}
	}

	if v := r.readPersisted(); v != "" {
		r.logger.Info("api token resolved", zap.String("source", string(SourcePersistedFile)))
		return Token{Value: v, Source: SourcePersistedFile}
	}

	if len(declared) >= minDeclaredLen {
		r.logger.Info("api token resolved", zap.String("source", string(SourceDeclaredConfig)))
		return Token{Value: declared, Source: SourceDeclaredConfig}
	}

	value := r.generate()
	r.persist(value)
	r.logger.Info("api token resolved", zap.String("source", string(SourceGenerated)))
	return Token{Value: value, Source: SourceGenerated}
}

// readPersisted returns the trimmed file content if it meets the length
// floor, and "" otherwise.
func (r *Resolver) readPersisted() string {
	if r.filePath == "" {
		return ""
	}
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		return ""
	}
	v := strings.TrimSpace(string(data))
	if len(v) < minPersistedLen {
		return ""
	}
	return v
}

// generate derives a deterministic token from the hub's secret key (or the
// fallback seed) via a domain-separated HMAC-SHA256.
func (r *Resolver) generate() string {
	seed := ""
	if r.secrets != nil {
		seed = r.secrets.SecretKey()
	}
	if seed == "" {
		seed = defaultSeed
		r.logger.Warn("hub secret key unavailable, generating token from fallback seed")
	}

	mac := hmac.New(sha256.New, []byte(seed))
	mac.Write([]byte(domainSeparator))
	return hex.EncodeToString(mac.Sum(nil))[:generatedHexLen]
}

// persist writes the generated token with restrictive permissions. Failure
// is logged and swallowed: the resolved token is still served from memory.
func (r *Resolver) persist(value string) {
	if r.filePath == "" {
		return
	}
	if err := os.WriteFile(r.filePath, []byte(value+"\n"), 0o600); err != nil {
		r.logger.Warn("could not persist generated api token",
			zap.String("path", r.filePath), zap.Error(err))
	}
}
