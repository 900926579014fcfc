// Package secrets reads the hub's host-resident secret material: the
// secrets document carrying the shared signing key and the users document
// listing accounts. Both reads are best-effort; a missing or corrupt file
// degrades the caller's options but never fails.
package secrets

import (
	"encoding/json"
	"os"

	"go.uber.org/zap"
)

// User is a single account record from the hub's users document.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Admin    bool   `json:"admin"`
}

// Reader loads secret material from the hub's storage directory.
type Reader struct {
	secretsPath string
	usersPath   string
	logger      *zap.Logger
}

// NewReader creates a Reader for the given document paths.
func NewReader(secretsPath, usersPath string, logger *zap.Logger) *Reader {
	return &Reader{
		secretsPath: secretsPath,
		usersPath:   usersPath,
		logger:      logger,
	}
}

// SecretKey returns the hub's shared signing key, or "" if the secrets
// document is missing, unreadable, or lacks the field.
func (r *Reader) SecretKey() string {
	data, err := os.ReadFile(r.secretsPath)
	if err != nil {
		r.logger.Debug("secrets document unreadable", zap.String("path", r.secretsPath), zap.Error(err))
		return ""
	}

	var doc struct {
		SecretKey string `json:"secretKey"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		r.logger.Debug("secrets document malformed", zap.String("path", r.secretsPath), zap.Error(err))
		return ""
	}
	return doc.SecretKey
}

// AdminUser returns the first administrator account from the users
// document, or nil if the document is unavailable or holds no admin.
func (r *Reader) AdminUser() *User {
	data, err := os.ReadFile(r.usersPath)
	if err != nil {
		r.logger.Debug("users document unreadable", zap.String("path", r.usersPath), zap.Error(err))
		return nil
	}

	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		r.logger.Debug("users document malformed", zap.String("path", r.usersPath), zap.Error(err))
		return nil
	}

	for i := range users {
		if users[i].Admin {
			return &users[i]
		}
	}
	return nil
}
