package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourhub/internal/apiserver/httperr"
	"tourhub/internal/shared/model"
	"tourhub/internal/shared/storage"
	"tourhub/pkg/logging"
)

// fakeLoader 测试用用户加载器
type fakeLoader struct {
	users map[string]*model.User
}

func (f *fakeLoader) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

func testGuard(users ...*model.User) *Guard {
	loader := &fakeLoader{users: map[string]*model.User{}}
	for _, u := range users {
		loader.users[u.ID] = u
	}
	tr := httperr.NewTranslator(true, logging.Default("test"))
	return NewGuard(testConfig(), loader, tr)
}

func echoUser(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := SessionUser(r.Context())
		require.NotNil(t, user)
		w.Write([]byte(user.ID))
	}
}

func TestRequireSession(t *testing.T) {
	user := &model.User{ID: "u1", Role: model.UserRoleUser}
	guard := testGuard(user)

	t.Run("no token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guard.RequireSession(echoUser(t))(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "You are not logged in")
	})

	t.Run("valid bearer token", func(t *testing.T) {
		token, err := SignToken(guard.cfg, "u1")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		guard.RequireSession(echoUser(t))(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", rec.Body.String())
	})

	t.Run("valid cookie token", func(t *testing.T) {
		token, err := SignToken(guard.cfg, "u1")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
		rec := httptest.NewRecorder()
		guard.RequireSession(echoUser(t))(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("user no longer exists", func(t *testing.T) {
		token, err := SignToken(guard.cfg, "ghost")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		guard.RequireSession(echoUser(t))(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "does no longer exist")
	})

	t.Run("password changed after token issued", func(t *testing.T) {
		changed := time.Now().Add(time.Hour)
		stale := &model.User{ID: "u2", PasswordChangedAt: &changed}
		guard := testGuard(stale)

		token, err := SignToken(guard.cfg, "u2")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		guard.RequireSession(echoUser(t))(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "recently changed password")
	})
}

func TestOptionalSession(t *testing.T) {
	user := &model.User{ID: "u1", Role: model.UserRoleUser}
	guard := testGuard(user)

	// 会话用户存在与否都放行，存在时注入 context
	echo := func(w http.ResponseWriter, r *http.Request) {
		if u := SessionUser(r.Context()); u != nil {
			w.Write([]byte(u.ID))
			return
		}
		w.Write([]byte("anonymous"))
	}

	do := func(mutate func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil)
		if mutate != nil {
			mutate(req)
		}
		rec := httptest.NewRecorder()
		guard.OptionalSession(echo)(rec, req)
		return rec
	}

	t.Run("no token", func(t *testing.T) {
		rec := do(nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
	})

	t.Run("valid token attaches user", func(t *testing.T) {
		token, err := SignToken(guard.cfg, "u1")
		require.NoError(t, err)
		rec := do(func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", rec.Body.String())
	})

	t.Run("garbage token is swallowed", func(t *testing.T) {
		rec := do(func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "not-a-jwt"})
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
	})

	t.Run("ghost user is swallowed", func(t *testing.T) {
		token, err := SignToken(guard.cfg, "ghost")
		require.NoError(t, err)
		rec := do(func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
	})

	t.Run("stale password is swallowed", func(t *testing.T) {
		changed := time.Now().Add(time.Hour)
		stale := &model.User{ID: "u2", PasswordChangedAt: &changed}
		guard := testGuard(stale)

		token, err := SignToken(guard.cfg, "u2")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		guard.OptionalSession(echo)(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
	})
}

func TestRequireRole(t *testing.T) {
	admin := &model.User{ID: "a1", Role: model.UserRoleAdmin}
	regular := &model.User{ID: "u1", Role: model.UserRoleUser}
	guard := testGuard(admin, regular)

	handler := guard.Protect(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, model.UserRoleAdmin, model.UserRoleLeadGuide)

	do := func(userID string) *httptest.ResponseRecorder {
		token, err := SignToken(guard.cfg, userID)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/tours/t1", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("a1").Code)

	rec := do("u1")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "You do not have permission")
}
