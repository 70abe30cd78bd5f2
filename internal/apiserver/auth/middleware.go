package auth

import (
	"context"
	"errors"
	"net/http"

	"tourhub/internal/apiserver/httperr"
	"tourhub/internal/shared/model"
	"tourhub/internal/shared/storage"
)

// UserLoader 守卫加载会话用户的能力
type UserLoader interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Guard 会话守卫，受保护路由的处理器包装器
type Guard struct {
	cfg        Config
	users      UserLoader
	translator *httperr.Translator
}

// NewGuard 创建会话守卫
func NewGuard(cfg Config, users UserLoader, tr *httperr.Translator) *Guard {
	return &Guard{cfg: cfg, users: users, translator: tr}
}

// RequireSession 要求有效会话
//
// 依次校验：令牌存在、签名与时效、用户仍然存在、
// 密码未在令牌签发后修改。通过后把用户注入 context。
func (g *Guard) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			g.translator.Write(w, r, httperr.Unauthorized("You are not logged in! Please log in to get access."))
			return
		}

		claims, err := ParseToken(g.cfg, token)
		if err != nil {
			g.translator.Write(w, r, err)
			return
		}

		user, err := g.users.FindByID(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				g.translator.Write(w, r, httperr.Unauthorized("The user belonging to this token does no longer exist."))
				return
			}
			g.translator.Write(w, r, err)
			return
		}

		if claims.IssuedAt != nil && user.ChangedPasswordAfter(claims.IssuedAt.Unix()) {
			g.translator.Write(w, r, httperr.Unauthorized("User recently changed password! Please log in again."))
			return
		}

		next(w, r.WithContext(WithSessionUser(r.Context(), user)))
	}
}

// OptionalSession 尽力识别会话用户
//
// 校验链与 RequireSession 相同，但任何一步失败都不中止请求，
// 只表现为 context 中没有会话用户。
func (g *Guard) OptionalSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			next(w, r)
			return
		}
		claims, err := ParseToken(g.cfg, token)
		if err != nil {
			next(w, r)
			return
		}
		user, err := g.users.FindByID(r.Context(), claims.Subject)
		if err != nil {
			next(w, r)
			return
		}
		if claims.IssuedAt != nil && user.ChangedPasswordAfter(claims.IssuedAt.Unix()) {
			next(w, r)
			return
		}
		next(w, r.WithContext(WithSessionUser(r.Context(), user)))
	}
}

// RequireRole 要求会话用户属于给定角色之一，套在 RequireSession 之内
func (g *Guard) RequireRole(roles ...model.UserRole) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user := SessionUser(r.Context())
			if user == nil {
				g.translator.Write(w, r, httperr.Unauthorized("You are not logged in! Please log in to get access."))
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next(w, r)
					return
				}
			}
			g.translator.Write(w, r, httperr.Forbidden("You do not have permission to perform this action"))
		}
	}
}

// Protect RequireSession 与 RequireRole 的组合便捷方法
func (g *Guard) Protect(next http.HandlerFunc, roles ...model.UserRole) http.HandlerFunc {
	if len(roles) > 0 {
		next = g.RequireRole(roles...)(next)
	}
	return g.RequireSession(next)
}
