package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"tourhub/pkg/logging"
)

type stubLimiter struct {
	allow bool
	keys  []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	securityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/tours", nil)
	corsMiddleware(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitMiddleware(t *testing.T) {
	metrics := NewMetrics("ratelimit_test")
	logger := logging.Default("test")

	t.Run("over the limit", func(t *testing.T) {
		limiter := &stubLimiter{allow: false}
		mw := rateLimitMiddleware(limiter, metrics, logger)(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil)
		req.RemoteAddr = "9.9.9.9:1234"
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Contains(t, rec.Body.String(), "Too many requests from this IP")
		assert.Equal(t, []string{"9.9.9.9"}, limiter.keys)
	})

	t.Run("non-api paths bypass the limiter", func(t *testing.T) {
		limiter := &stubLimiter{allow: false}
		mw := rateLimitMiddleware(limiter, metrics, logger)(okHandler())

		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, limiter.keys)
	})
}

func TestBodyLimit(t *testing.T) {
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 32<<10)
		if _, err := r.Body.Read(buf); err != nil && err.Error() == "http: request body too large" {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	t.Run("oversized json body rejected", func(t *testing.T) {
		body := strings.NewReader(strings.Repeat("x", 11<<10))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tours", body)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		bodyLimit(echo).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("multipart exempt", func(t *testing.T) {
		body := strings.NewReader(strings.Repeat("x", 11<<10))
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/tours/t1", body)
		req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
		rec := httptest.NewRecorder()
		bodyLimit(echo).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(req))
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/api/v1/tours/{id}", normalizePath("/api/v1/tours/abc-123"))
	assert.Equal(t, "/api/v1/tours", normalizePath("/api/v1/tours"))
	assert.Equal(t, "/health", normalizePath("/health"))
}
