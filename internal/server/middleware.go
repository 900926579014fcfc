package server

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/HerbHall/hubgate/internal/metrics"
)

// unauthorizedMessage is the fixed detail returned on every 401.
const unauthorizedMessage = "Missing or invalid authorization token"

// protected chains the standard middleware for authenticated API routes:
// request metrics, rate limiting, then bearer auth.
func (s *Server) protected(next http.HandlerFunc) http.HandlerFunc {
	return s.withMetrics(s.rateLimited(s.authenticated(next)))
}

// authenticated enforces the resolved inbound bearer token with a
// constant-time comparison.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		bearer, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || bearer == "" {
			writeError(w, http.StatusUnauthorized, unauthorizedMessage)
			return
		}
		if subtle.ConstantTimeCompare([]byte(bearer), []byte(s.apiToken.Value)) != 1 {
			writeError(w, http.StatusUnauthorized, unauthorizedMessage)
			return
		}
		next(w, r)
	}
}

// rateLimited applies the process-wide token bucket.
func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withMetrics counts the request by route pattern and status code.
func (s *Server) withMetrics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		path := r.Pattern
		if path == "" {
			path = r.URL.Path
		}
		metrics.HTTPRequests.WithLabelValues(path, strconv.Itoa(rec.status)).Inc()
	}
}
