package hub

import (
	"errors"
	"fmt"
)

// ErrNoAuthStrategy is returned by every credential request when neither
// direct signing material nor login credentials were available at startup.
var ErrNoAuthStrategy = errors.New("no usable hub authentication strategy configured")

// AuthError reports a rejected login call. It is not retried.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("hub login rejected: status %d: %s", e.Status, e.Body)
}

// UpstreamError reports a non-success status from a hub read or write call.
type UpstreamError struct {
	Operation string
	Status    int
	Body      string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("hub %s failed: status %d: %s", e.Operation, e.Status, e.Body)
}
