// Package auth 会话认证：JWT 令牌管理、密码哈希、会话 Cookie、HTTP 守卫
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"tourhub/internal/apiserver/httperr"
	"tourhub/internal/shared/model"
)

// contextKey context 键类型
type contextKey string

const ctxKeySessionUser contextKey = "session_user"

// SessionCookieName 会话 Cookie 名
const SessionCookieName = "jwt"

// loggedOutSentinel 登出哨兵值，守卫视为无令牌
const loggedOutSentinel = "loggedout"

// Config 认证配置
type Config struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	CookieDays   int           `yaml:"cookie_days"`
	SecureCookie bool          `yaml:"secure_cookie"`
}

// DefaultConfig 返回默认认证配置
func DefaultConfig() Config {
	return Config{
		TokenTTL:   90 * 24 * time.Hour,
		CookieDays: 90,
	}
}

// ============================================================================
// 密码哈希
// ============================================================================

// HashPassword 使用 bcrypt 哈希密码
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	return string(bytes), err
}

// CheckPassword 验证密码
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ============================================================================
// JWT Token
// ============================================================================

// Claims JWT 声明，Subject 为用户 ID
type Claims struct {
	jwt.RegisteredClaims
}

// SignToken 为用户签发会话令牌
func SignToken(cfg Config, userID string) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(cfg.TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ParseToken 解析并验证会话令牌
//
// 过期与格式错误分别映射到对应的错误变体。
func ParseToken(cfg Config, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, httperr.TokenExpired(err)
		}
		return nil, httperr.TokenMalformed(err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, httperr.TokenMalformed(fmt.Errorf("invalid token"))
	}
	return claims, nil
}

// ============================================================================
// 会话 Cookie
// ============================================================================

// SetSessionCookie 写入会话 Cookie
func SetSessionCookie(w http.ResponseWriter, cfg Config, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(time.Duration(cfg.CookieDays) * 24 * time.Hour),
		HttpOnly: true,
		Secure:   cfg.SecureCookie,
	})
}

// ClearSessionCookie 用短时效哨兵值覆盖会话 Cookie
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    loggedOutSentinel,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Second),
		HttpOnly: true,
	})
}

// tokenFromRequest 从 Authorization 头或会话 Cookie 提取令牌
//
// Bearer 头优先，登出哨兵值视为无令牌。
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != loggedOutSentinel {
		return c.Value
	}
	return ""
}

// ============================================================================
// Context 辅助函数
// ============================================================================

// WithSessionUser 将会话用户注入 context
func WithSessionUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, ctxKeySessionUser, user)
}

// SessionUser 从 context 获取会话用户，未认证返回 nil
func SessionUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(ctxKeySessionUser).(*model.User)
	return user
}
