// Package review 评论 HTTP 处理器
//
// 评论写入后同步重算所属行程的评分聚合。
package review

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"tourhub/internal/apiserver/auth"
	"tourhub/internal/apiserver/crud"
	"tourhub/internal/apiserver/httperr"
	"tourhub/internal/apiserver/jsonapi"
	"tourhub/internal/shared/model"
	"tourhub/internal/shared/storage/mongostore"
	"tourhub/pkg/logging"
)

// RatingRecalculator 行程评分聚合重算能力
type RatingRecalculator interface {
	RecalcRatings(ctx context.Context, tourID string) error
}

// Handler 评论 HTTP 处理器
type Handler struct {
	reviews    *mongostore.ReviewStore
	tours      RatingRecalculator
	guard      *auth.Guard
	translator *httperr.Translator
	logger     *logging.Logger
}

// NewHandler 创建评论处理器
func NewHandler(reviews *mongostore.ReviewStore, tours RatingRecalculator, guard *auth.Guard, tr *httperr.Translator, logger *logging.Logger) *Handler {
	return &Handler{reviews: reviews, tours: tours, guard: guard, translator: tr, logger: logger}
}

// RegisterRoutes 注册评论相关路由，全部要求登录
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	list := crud.List[model.Review](h.translator, h.reviews, nil)
	nestedList := crud.List[model.Review](h.translator, h.reviews, func(r *http.Request) map[string]string {
		return map[string]string{"tour_id": r.PathValue("tourId")}
	})

	mux.HandleFunc("GET /api/v1/reviews", h.guard.Protect(list))
	mux.HandleFunc("GET /api/v1/reviews/{id}",
		h.guard.Protect(crud.GetOne[model.Review](h.translator, h.reviews)))
	mux.HandleFunc("POST /api/v1/reviews",
		h.guard.Protect(h.CreateReview, model.UserRoleUser))
	mux.HandleFunc("PATCH /api/v1/reviews/{id}",
		h.guard.Protect(h.UpdateReview, model.UserRoleUser, model.UserRoleAdmin))
	mux.HandleFunc("DELETE /api/v1/reviews/{id}",
		h.guard.Protect(h.DeleteReview, model.UserRoleUser, model.UserRoleAdmin))

	// 行程下的嵌套评论路由
	mux.HandleFunc("GET /api/v1/tours/{tourId}/reviews", h.guard.Protect(nestedList))
	mux.HandleFunc("POST /api/v1/tours/{tourId}/reviews",
		h.guard.Protect(h.CreateReview, model.UserRoleUser))
}

// CreateReview 创建评论
//
// 作者固定为会话用户；嵌套路由下行程 ID 取自路径。
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var review model.Review
	if err := json.NewDecoder(r.Body).Decode(&review); err != nil {
		h.translator.Write(w, r, err)
		return
	}

	review.ID = uuid.NewString()
	review.UserID = auth.SessionUser(r.Context()).ID
	review.CreatedAt = time.Now()
	if tourID := r.PathValue("tourId"); tourID != "" {
		review.TourID = tourID
	}

	if err := h.reviews.Create(r.Context(), &review); err != nil {
		h.translator.Write(w, r, err)
		return
	}
	h.recalc(r.Context(), review.TourID)

	jsonapi.WriteData(w, http.StatusCreated, &review)
}

// UpdateReview 部分更新评论并重算行程评分
func (h *Handler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.translator.Write(w, r, err)
		return
	}

	review, err := h.reviews.UpdateByID(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}
	h.recalc(r.Context(), review.TourID)

	jsonapi.WriteData(w, http.StatusOK, review)
}

// DeleteReview 删除评论并重算行程评分
//
// 删除前先取回评论，否则拿不到所属行程 ID。
func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	review, err := h.reviews.FindByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}
	if err := h.reviews.DeleteByID(r.Context(), review.ID); err != nil {
		h.translator.Write(w, r, err)
		return
	}
	h.recalc(r.Context(), review.TourID)

	jsonapi.WriteNoContent(w)
}

// recalc 评分重算失败只记日志，不影响已完成的写入
func (h *Handler) recalc(ctx context.Context, tourID string) {
	if err := h.tours.RecalcRatings(ctx, tourID); err != nil {
		h.logger.WithError(err).Error("rating recalc failed", "tour_id", tourID)
	}
}
