package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourhub/internal/apiserver/httperr"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWTSecret = "test-secret"
	return cfg
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("pass1234")
	require.NoError(t, err)
	assert.NotEqual(t, "pass1234", hash)
	assert.True(t, CheckPassword("pass1234", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

func TestTokenRoundtrip(t *testing.T) {
	cfg := testConfig()

	token, err := SignToken(cfg, "user-1")
	require.NoError(t, err)

	claims, err := ParseToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	require.NotNil(t, claims.IssuedAt)
	assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, 5*time.Second)
}

func TestParseTokenErrors(t *testing.T) {
	cfg := testConfig()

	t.Run("expired", func(t *testing.T) {
		short := cfg
		short.TokenTTL = -time.Hour
		token, err := SignToken(short, "user-1")
		require.NoError(t, err)

		_, err = ParseToken(cfg, token)
		var e *httperr.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, httperr.KindTokenExpired, e.Kind)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseToken(cfg, "not.a.token")
		var e *httperr.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, httperr.KindTokenMalformed, e.Kind)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := cfg
		other.JWTSecret = "other-secret"
		token, err := SignToken(other, "user-1")
		require.NoError(t, err)

		_, err = ParseToken(cfg, token)
		var e *httperr.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, httperr.KindTokenMalformed, e.Kind)
	})
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		cookie   string
		expected string
	}{
		{"bearer header", "Bearer abc", "", "abc"},
		{"case insensitive scheme", "bearer abc", "", "abc"},
		{"cookie", "", "xyz", "xyz"},
		{"header wins over cookie", "Bearer abc", "xyz", "abc"},
		{"logged out sentinel ignored", "", "loggedout", ""},
		{"malformed header falls through to cookie", "Basic abc", "xyz", "xyz"},
		{"nothing", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.cookie})
			}
			assert.Equal(t, tt.expected, tokenFromRequest(r))
		})
	}
}

func TestSessionCookie(t *testing.T) {
	cfg := testConfig()
	cfg.SecureCookie = true

	rec := httptest.NewRecorder()
	SetSessionCookie(rec, cfg, "tok")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, SessionCookieName, c.Name)
	assert.Equal(t, "tok", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)

	rec = httptest.NewRecorder()
	ClearSessionCookie(rec)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "loggedout", cookies[0].Value)
	assert.WithinDuration(t, time.Now().Add(10*time.Second), cookies[0].Expires, 5*time.Second)
}
