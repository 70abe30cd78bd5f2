// Package server 路由配置与核心基础设施
//
// 本文件把各领域处理器包装配到统一路由上，并套上全局中间件链：
// 安全头 → CORS → 请求体限制 → 限流 → 指标（开发模式外加请求日志）。
package server

import (
	"context"
	"net/http"
	"time"

	"tourhub/internal/apiserver/auth"
	"tourhub/internal/apiserver/booking"
	"tourhub/internal/apiserver/httperr"
	"tourhub/internal/apiserver/review"
	"tourhub/internal/apiserver/tour"
	"tourhub/internal/apiserver/user"
	"tourhub/internal/config"
	"tourhub/internal/mailer"
	"tourhub/internal/payment"
	"tourhub/internal/ratelimit"
	"tourhub/internal/shared/objstore"
	"tourhub/internal/shared/storage/mongostore"
	"tourhub/pkg/logging"
)

// Handler 汇聚所有路由依赖
type Handler struct {
	cfg        *config.Config
	store      *mongostore.Store
	objects    *objstore.Client
	mailer     *mailer.Mailer
	payments   *payment.Client
	limiter    ratelimit.Limiter
	metrics    *Metrics
	translator *httperr.Translator
	logger     *logging.Logger
}

// NewHandler 创建路由处理器
func NewHandler(cfg *config.Config, store *mongostore.Store, objects *objstore.Client,
	ml *mailer.Mailer, payments *payment.Client, limiter ratelimit.Limiter, logger *logging.Logger) *Handler {
	return &Handler{
		cfg:        cfg,
		store:      store,
		objects:    objects,
		mailer:     ml,
		payments:   payments,
		limiter:    limiter,
		metrics:    NewMetrics("tourhub"),
		translator: httperr.NewTranslator(!cfg.IsProduction(), logger),
		logger:     logger,
	}
}

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 行程 (Tour):
//   - GET    /api/v1/tours                  - 列出行程（查询整形）
//   - POST   /api/v1/tours                  - 创建行程（admin/lead-guide）
//   - GET    /api/v1/tours/{id}             - 行程详情
//   - PATCH  /api/v1/tours/{id}             - 更新行程，multipart 时处理图片
//   - DELETE /api/v1/tours/{id}             - 删除行程
//   - GET    /api/v1/tours/top-5-cheap      - 预设查询别名
//   - GET    /api/v1/tours/tour-stats       - 难度统计
//   - GET    /api/v1/tours/monthly-plan/{year}
//   - GET    /api/v1/tours/tours-within/{distance}/center/{latlng}/unit/{unit}
//   - GET    /api/v1/tours/distances/{latlng}/unit/{unit}
//
// 用户与认证 (User/Auth):
//   - POST   /api/v1/users/signup | login | forgotPassword
//   - GET    /api/v1/users/logout
//   - PATCH  /api/v1/users/resetPassword/{token} | updateMyPassword
//   - GET    /api/v1/users/me, PATCH updateMe, DELETE deleteMe
//   - 管理端用户 CRUD（admin）
//
// 评论 (Review)：独立 + 行程嵌套路由，写入后重算行程评分
// 预订 (Booking)：结账会话、Stripe 回调、本人列表、管理端 CRUD
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", h.Health)

	// Prometheus 指标端点
	mux.Handle("GET /metrics", MetricsHandler())

	guard := auth.NewGuard(h.cfg.Auth, h.store.Users, h.translator)

	authHandler := auth.NewHandler(h.cfg.Auth, h.store.Users, h.mailer, h.metrics.SignupsTotal, guard, h.translator, h.logger)
	authHandler.RegisterRoutes(mux)

	tourHandler := tour.NewHandler(h.store.Tours, guard, h.translator, h.objects)
	tourHandler.RegisterRoutes(mux)

	userHandler := user.NewHandler(h.store.Users, guard, h.translator, h.objects)
	userHandler.RegisterRoutes(mux)

	reviewHandler := review.NewHandler(h.store.Reviews, h.store.Tours, guard, h.translator, h.logger)
	reviewHandler.RegisterRoutes(mux)

	bookingHandler := booking.NewHandler(h.store.Bookings, h.store.Tours, h.store.Users,
		h.payments, h.metrics.BookingsCreated, guard, h.translator, h.logger)
	bookingHandler.RegisterRoutes(mux)

	// 全局中间件链
	var handler http.Handler = mux
	handler = h.metrics.MetricsMiddleware(handler)
	handler = rateLimitMiddleware(h.limiter, h.metrics, h.logger)(handler)
	handler = bodyLimit(handler)
	handler = corsMiddleware(handler)
	handler = securityHeaders(handler)
	if !h.cfg.IsProduction() {
		handler = requestLogger(h.logger)(handler)
	}
	return handler
}

// Health 服务健康检查，带 MongoDB 连通性探测
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		h.logger.WithError(err).Warn("mongo ping failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"status":"` + status + `"}`))
}
