// Package booking 预订 HTTP 处理器：结账会话、支付回调、管理端 CRUD
package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"tourhub/internal/apiserver/auth"
	"tourhub/internal/apiserver/crud"
	"tourhub/internal/apiserver/httperr"
	"tourhub/internal/apiserver/jsonapi"
	"tourhub/internal/payment"
	"tourhub/internal/shared/model"
	"tourhub/internal/shared/storage/mongostore"
	"tourhub/pkg/logging"
)

// maxWebhookBytes 支付回调请求体上限
const maxWebhookBytes = 64 << 10

// PaymentProvider 支付集成能力
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, p payment.CheckoutParams) (*payment.Session, error)
	ParseCheckoutCompleted(payload []byte, sigHeader string) (*payment.CheckoutResult, error)
}

// UserLookup 回调落库时按邮箱回查用户
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// BookingStore 预订存储能力集
type BookingStore interface {
	crud.Store[model.Booking]
	ListByUser(ctx context.Context, userID string) ([]*model.Booking, error)
}

// Counter 业务计数器，Prometheus Counter 的最小子集
type Counter interface {
	Inc()
}

// Handler 预订 HTTP 处理器
type Handler struct {
	bookings   BookingStore
	tours      *mongostore.TourStore
	users      UserLookup
	payments   PaymentProvider
	created    Counter
	guard      *auth.Guard
	translator *httperr.Translator
	logger     *logging.Logger
}

// NewHandler 创建预订处理器
func NewHandler(bookings BookingStore, tours *mongostore.TourStore, users UserLookup,
	payments PaymentProvider, created Counter, guard *auth.Guard, tr *httperr.Translator, logger *logging.Logger) *Handler {
	return &Handler{
		bookings: bookings, tours: tours, users: users,
		payments: payments, created: created, guard: guard, translator: tr, logger: logger,
	}
}

// RegisterRoutes 注册预订相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	managers := []model.UserRole{model.UserRoleAdmin, model.UserRoleLeadGuide}

	mux.HandleFunc("GET /api/v1/bookings/checkout-session/{tourId}",
		h.guard.RequireSession(h.CheckoutSession))
	mux.HandleFunc("GET /api/v1/bookings/me", h.guard.RequireSession(h.MyBookings))

	// Stripe 回调走签名验证，不走会话守卫
	mux.HandleFunc("POST /webhook-checkout", h.WebhookCheckout)

	mux.HandleFunc("GET /api/v1/bookings",
		h.guard.Protect(crud.List[model.Booking](h.translator, h.bookings, nil), managers...))
	mux.HandleFunc("POST /api/v1/bookings",
		h.guard.Protect(crud.CreateOne[model.Booking](h.translator, h.bookings, prepareBooking), managers...))
	mux.HandleFunc("GET /api/v1/bookings/{id}",
		h.guard.Protect(crud.GetOne[model.Booking](h.translator, h.bookings), managers...))
	mux.HandleFunc("PATCH /api/v1/bookings/{id}",
		h.guard.Protect(crud.UpdateOne[model.Booking](h.translator, h.bookings), managers...))
	mux.HandleFunc("DELETE /api/v1/bookings/{id}",
		h.guard.Protect(crud.DeleteOne[model.Booking](h.translator, h.bookings), managers...))
}

func prepareBooking(_ *http.Request, b *model.Booking) error {
	b.ID = uuid.NewString()
	b.CreatedAt = time.Now()
	return nil
}

// CheckoutSession 为会话用户创建行程结账会话
func (h *Handler) CheckoutSession(w http.ResponseWriter, r *http.Request) {
	user := auth.SessionUser(r.Context())

	tour, err := h.tours.FindByID(r.Context(), r.PathValue("tourId"))
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}

	origin := fmt.Sprintf("%s://%s", requestScheme(r), r.Host)
	sess, err := h.payments.CreateCheckoutSession(r.Context(), payment.CheckoutParams{
		TourID:        tour.ID,
		TourName:      tour.Name,
		TourSummary:   tour.Summary,
		ImageURL:      fmt.Sprintf("%s/img/tours/%s", origin, tour.ImageCover),
		Price:         tour.Price,
		CustomerEmail: user.Email,
		SuccessURL:    origin + "/my-tours",
		CancelURL:     fmt.Sprintf("%s/tour/%s", origin, tour.Slug),
	})
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}

	jsonapi.WriteData(w, http.StatusOK, map[string]interface{}{"session": sess})
}

// MyBookings 会话用户的预订列表
func (h *Handler) MyBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.ListByUser(r.Context(), auth.SessionUser(r.Context()).ID)
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}
	jsonapi.WriteList(w, bookings, len(bookings))
}

// WebhookCheckout 结账完成回调，验签通过后落库预订
func (h *Handler) WebhookCheckout(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		h.translator.Write(w, r, httperr.BadRequest("Invalid request body"))
		return
	}

	result, err := h.payments.ParseCheckoutCompleted(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payment.ErrIgnoredEvent) {
			jsonapi.WriteMessage(w, http.StatusOK, "Ignored")
			return
		}
		h.translator.Write(w, r, httperr.BadRequest(fmt.Sprintf("Webhook error: %v", err)))
		return
	}

	user, err := h.users.GetByEmail(r.Context(), result.CustomerEmail)
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}

	booking := &model.Booking{
		ID:        uuid.NewString(),
		TourID:    result.TourID,
		UserID:    user.ID,
		Price:     result.Amount,
		Paid:      true,
		CreatedAt: time.Now(),
	}
	if err := h.bookings.Create(r.Context(), booking); err != nil {
		h.translator.Write(w, r, err)
		return
	}
	h.created.Inc()
	h.logger.Info("booking recorded from checkout", "booking_id", booking.ID, "tour_id", booking.TourID)

	jsonapi.WriteMessage(w, http.StatusOK, "Received")
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
