package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"tourhub/internal/apiserver/httperr"
	"tourhub/internal/apiserver/jsonapi"
	"tourhub/internal/shared/model"
	"tourhub/pkg/logging"
)

// resetTokenTTL 密码重置令牌时效
const resetTokenTTL = 10 * time.Minute

// UserStore 认证处理器依赖的用户存储能力
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByEmailWithPassword(ctx context.Context, email string) (*model.User, error)
	GetByIDWithPassword(ctx context.Context, id string) (*model.User, error)
	SetPassword(ctx context.Context, id, passwordHash string) error
	SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error
	ClearResetToken(ctx context.Context, id string) error
	GetByResetToken(ctx context.Context, tokenHash string) (*model.User, error)
}

// Mailer 事务邮件发送能力
type Mailer interface {
	SendWelcome(ctx context.Context, to, name string) error
	SendPasswordReset(ctx context.Context, to, name, resetURL string) error
}

// Counter 业务计数器，Prometheus Counter 的最小子集
type Counter interface {
	Inc()
}

// Handler 认证 HTTP 处理器
type Handler struct {
	cfg        Config
	users      UserStore
	mailer     Mailer
	signups    Counter
	guard      *Guard
	translator *httperr.Translator
	logger     *logging.Logger
}

// NewHandler 创建认证处理器
func NewHandler(cfg Config, users UserStore, mailer Mailer, signups Counter, guard *Guard, tr *httperr.Translator, logger *logging.Logger) *Handler {
	return &Handler{cfg: cfg, users: users, mailer: mailer, signups: signups, guard: guard, translator: tr, logger: logger}
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/users/signup", h.Signup)
	mux.HandleFunc("POST /api/v1/users/login", h.Login)
	mux.HandleFunc("GET /api/v1/users/logout", h.Logout)
	mux.HandleFunc("POST /api/v1/users/forgotPassword", h.ForgotPassword)
	mux.HandleFunc("PATCH /api/v1/users/resetPassword/{token}", h.ResetPassword)
	mux.HandleFunc("PATCH /api/v1/users/updateMyPassword", h.guard.RequireSession(h.UpdateMyPassword))
}

// ============================================================================
// 请求类型
// ============================================================================

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type updatePasswordRequest struct {
	PasswordCurrent string `json:"password_current"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// validatePassword 新密码校验，与确认值比对
func validatePassword(password, confirm string) error {
	var msgs []string
	if password == "" {
		msgs = append(msgs, "A user must have a password")
	} else if len(password) < 8 {
		msgs = append(msgs, "A password cant be less than 8 characters")
	}
	if password != confirm {
		msgs = append(msgs, "Passwords are not the same!")
	}
	return model.NewValidationError(msgs)
}

// ============================================================================
// Handlers
// ============================================================================

// Signup 注册
//
// 角色固定为普通用户，注册请求无法自提权限。
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.translator.Write(w, r, err)
		return
	}
	if err := validatePassword(req.Password, req.PasswordConfirm); err != nil {
		h.translator.Write(w, r, err)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}

	user := &model.User{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		Role:      model.UserRoleUser,
		Password:  hash,
		CreatedAt: time.Now(),
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		h.translator.Write(w, r, err)
		return
	}
	h.signups.Inc()

	if err := h.mailer.SendWelcome(r.Context(), user.Email, user.Name); err != nil {
		h.logger.WithError(err).Warn("welcome email failed", "user_id", user.ID)
	}

	h.writeSession(w, r, http.StatusCreated, user)
}

// Login 登录
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.translator.Write(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		h.translator.Write(w, r, httperr.BadRequest("Please provide email and password!"))
		return
	}

	user, err := h.users.GetByEmailWithPassword(r.Context(), req.Email)
	if err != nil || !CheckPassword(req.Password, user.Password) {
		h.translator.Write(w, r, httperr.Unauthorized("Incorrect email or password"))
		return
	}

	h.writeSession(w, r, http.StatusOK, user)
}

// Logout 登出，覆盖会话 Cookie
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookie(w)
	jsonapi.WriteMessage(w, http.StatusOK, "Logged out")
}

// ForgotPassword 签发密码重置令牌并邮件发送
//
// 明文令牌只进邮件，库中存哈希；邮件发送失败时回滚令牌字段。
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.translator.Write(w, r, err)
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		h.translator.Write(w, r, httperr.NotFound("There is no user with email address."))
		return
	}

	token, tokenHash, err := newResetToken()
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}
	if err := h.users.SetResetToken(r.Context(), user.ID, tokenHash, time.Now().Add(resetTokenTTL)); err != nil {
		h.translator.Write(w, r, err)
		return
	}

	resetURL := fmt.Sprintf("%s://%s/api/v1/users/resetPassword/%s", requestScheme(r), r.Host, token)
	if err := h.mailer.SendPasswordReset(r.Context(), user.Email, user.Name, resetURL); err != nil {
		if rbErr := h.users.ClearResetToken(r.Context(), user.ID); rbErr != nil {
			h.logger.WithError(rbErr).Error("reset token rollback failed", "user_id", user.ID)
		}
		h.translator.Write(w, r, httperr.Internal(fmt.Errorf("send reset email: %w", err)))
		return
	}

	jsonapi.WriteMessage(w, http.StatusOK, "Token sent to email!")
}

// ResetPassword 用重置令牌设置新密码
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.translator.Write(w, r, err)
		return
	}
	if err := validatePassword(req.Password, req.PasswordConfirm); err != nil {
		h.translator.Write(w, r, err)
		return
	}

	tokenHash := hashResetToken(r.PathValue("token"))
	user, err := h.users.GetByResetToken(r.Context(), tokenHash)
	if err != nil {
		h.translator.Write(w, r, httperr.BadRequest("Token is invalid or has expired"))
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}
	if err := h.users.SetPassword(r.Context(), user.ID, hash); err != nil {
		h.translator.Write(w, r, err)
		return
	}

	h.writeSession(w, r, http.StatusOK, user)
}

// UpdateMyPassword 已登录用户修改密码，需先验证当前密码
func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.translator.Write(w, r, err)
		return
	}

	session := SessionUser(r.Context())
	user, err := h.users.GetByIDWithPassword(r.Context(), session.ID)
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}
	if !CheckPassword(req.PasswordCurrent, user.Password) {
		h.translator.Write(w, r, httperr.Unauthorized("Your current password is wrong."))
		return
	}
	if err := validatePassword(req.Password, req.PasswordConfirm); err != nil {
		h.translator.Write(w, r, err)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}
	if err := h.users.SetPassword(r.Context(), user.ID, hash); err != nil {
		h.translator.Write(w, r, err)
		return
	}

	h.writeSession(w, r, http.StatusOK, user)
}

// ============================================================================
// 辅助函数
// ============================================================================

// writeSession 签发令牌、写会话 Cookie 并返回用户
func (h *Handler) writeSession(w http.ResponseWriter, r *http.Request, status int, user *model.User) {
	token, err := SignToken(h.cfg, user.ID)
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}
	SetSessionCookie(w, h.cfg, token)
	jsonapi.WriteToken(w, status, token, map[string]interface{}{"user": user})
}

// newResetToken 生成明文重置令牌与存库用哈希
func newResetToken() (token, tokenHash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(buf)
	return token, hashResetToken(token), nil
}

// hashResetToken 重置令牌的存库哈希
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// requestScheme 推断请求协议，尊重反向代理头
func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
