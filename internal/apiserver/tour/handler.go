// Package tour 行程 HTTP 处理器：CRUD、统计聚合、地理查询、图片上传
package tour

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"tourhub/internal/apiserver/auth"
	"tourhub/internal/apiserver/crud"
	"tourhub/internal/apiserver/httperr"
	"tourhub/internal/apiserver/jsonapi"
	"tourhub/internal/imageproc"
	"tourhub/internal/shared/model"
	"tourhub/internal/shared/storage/mongostore"
)

// 地理计算常量：地球半径（弧度换算用）与距离乘数
const (
	earthRadiusMiles = 3963.2
	earthRadiusKm    = 6378.1
	metersToMiles    = 0.000621371
	metersToKm       = 0.001
)

// maxUploadBytes 多部分图片上传的请求体上限
const maxUploadBytes = 20 << 20

// ObjectStore 处理后图片的存储能力
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// Handler 行程 HTTP 处理器
type Handler struct {
	tours      *mongostore.TourStore
	guard      *auth.Guard
	translator *httperr.Translator
	objects    ObjectStore
}

// NewHandler 创建行程处理器
func NewHandler(tours *mongostore.TourStore, guard *auth.Guard, tr *httperr.Translator, objects ObjectStore) *Handler {
	return &Handler{tours: tours, guard: guard, translator: tr, objects: objects}
}

// RegisterRoutes 注册行程相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	list := crud.List[model.Tour](h.translator, h.tours, nil)
	editors := []model.UserRole{model.UserRoleAdmin, model.UserRoleLeadGuide}

	mux.HandleFunc("GET /api/v1/tours", list)
	mux.HandleFunc("GET /api/v1/tours/{id}", crud.GetOne[model.Tour](h.translator, h.tours))
	mux.HandleFunc("POST /api/v1/tours",
		h.guard.Protect(crud.CreateOne[model.Tour](h.translator, h.tours, prepareTour), editors...))
	mux.HandleFunc("PATCH /api/v1/tours/{id}",
		h.guard.Protect(h.UpdateTour, editors...))
	mux.HandleFunc("DELETE /api/v1/tours/{id}",
		h.guard.Protect(crud.DeleteOne[model.Tour](h.translator, h.tours), editors...))

	mux.HandleFunc("GET /api/v1/tours/top-5-cheap", topFiveCheap(list))
	mux.HandleFunc("GET /api/v1/tours/tour-stats", h.TourStats)
	mux.HandleFunc("GET /api/v1/tours/monthly-plan/{year}",
		h.guard.Protect(h.MonthlyPlan, model.UserRoleAdmin, model.UserRoleLeadGuide, model.UserRoleGuide))
	mux.HandleFunc("GET /api/v1/tours/tours-within/{distance}/center/{latlng}/unit/{unit}", h.ToursWithin)
	mux.HandleFunc("GET /api/v1/tours/distances/{latlng}/unit/{unit}", h.Distances)
}

// prepareTour 创建前写入 ID 与创建时间
func prepareTour(_ *http.Request, t *model.Tour) error {
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now()
	return nil
}

// topFiveCheap 预设查询别名：评分最高的 5 个便宜行程
func topFiveCheap(list http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := url.Values{}
		q.Set("limit", "5")
		q.Set("sort", "-ratings_average,price")
		q.Set("fields", "name,price,ratings_average,summary,difficulty")
		r.URL.RawQuery = q.Encode()
		list(w, r)
	}
}

// TourStats 按难度分组的评分与价格统计
func (h *Handler) TourStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tours.Stats(r.Context())
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}
	jsonapi.WriteData(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

// MonthlyPlan 给定年份按月统计的行程安排
func (h *Handler) MonthlyPlan(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		h.translator.Write(w, r, httperr.Cast("year", r.PathValue("year"), err))
		return
	}
	plan, err := h.tours.MonthlyPlan(r.Context(), year)
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}
	jsonapi.WriteData(w, http.StatusOK, map[string]interface{}{"plan": plan})
}

// ToursWithin 查找给定半径内出发的行程
//
// 半径按单位换算为弧度：distance / 地球半径。
func (h *Handler) ToursWithin(w http.ResponseWriter, r *http.Request) {
	distance, err := strconv.ParseFloat(r.PathValue("distance"), 64)
	if err != nil {
		h.translator.Write(w, r, httperr.Cast("distance", r.PathValue("distance"), err))
		return
	}
	lat, lng, err := parseLatLng(r.PathValue("latlng"))
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}
	radiusDivisor, _, err := unitFactors(r.PathValue("unit"))
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}

	tours, err := h.tours.Within(r.Context(), lng, lat, distance/radiusDivisor)
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}
	jsonapi.WriteList(w, tours, len(tours))
}

// Distances 计算各行程出发点到给定坐标的距离
func (h *Handler) Distances(w http.ResponseWriter, r *http.Request) {
	lat, lng, err := parseLatLng(r.PathValue("latlng"))
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}
	_, multiplier, err := unitFactors(r.PathValue("unit"))
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}

	distances, err := h.tours.Distances(r.Context(), lng, lat, multiplier)
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}
	jsonapi.WriteData(w, http.StatusOK, map[string]interface{}{"distances": distances})
}

// UpdateTour 部分更新
//
// multipart 请求先处理封面与图库图片（封面 2000x1333，最多 3 张图库图），
// 上传后把对象键并入补丁；普通请求按 JSON 补丁处理。
func (h *Handler) UpdateTour(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "multipart/form-data") {
		crud.UpdateOne[model.Tour](h.translator, h.tours)(w, r)
		return
	}

	id := r.PathValue("id")
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.translator.Write(w, r, httperr.BadRequest("Invalid request body"))
		return
	}

	patch := map[string]interface{}{}
	for key, values := range r.MultipartForm.Value {
		if len(values) > 0 {
			patch[key] = coerceFormValue(values[0])
		}
	}

	now := time.Now().UnixMilli()

	if files := r.MultipartForm.File["image_cover"]; len(files) > 0 {
		key := fmt.Sprintf("tours/tour-%s-%d-cover.jpeg", id, now)
		if err := h.storeImage(r.Context(), files[0], key); err != nil {
			h.translator.Write(w, r, err)
			return
		}
		patch["image_cover"] = key
	}

	if files := r.MultipartForm.File["images"]; len(files) > 0 {
		if len(files) > 3 {
			files = files[:3]
		}
		keys := make([]string, 0, len(files))
		for i, fh := range files {
			key := fmt.Sprintf("tours/tour-%s-%d-%d.jpeg", id, now, i+1)
			if err := h.storeImage(r.Context(), fh, key); err != nil {
				h.translator.Write(w, r, err)
				return
			}
			keys = append(keys, key)
		}
		patch["images"] = keys
	}

	doc, err := h.tours.UpdateByID(r.Context(), id, patch)
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}
	jsonapi.WriteData(w, http.StatusOK, doc)
}

// storeImage 解码、裁剪并上传单张行程图片
func (h *Handler) storeImage(ctx context.Context, fh *multipart.FileHeader, key string) error {
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := imageproc.TourImage(f)
	if err != nil {
		return httperr.BadRequest("Not an image! Please upload only images.")
	}
	return h.objects.Upload(ctx, key, data, "image/jpeg")
}

// parseLatLng 解析 "lat,lng" 路径参数
func parseLatLng(s string) (lat, lng float64, err error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, httperr.BadRequest("Please provide latitude and longitude in the format lat,lng.")
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, httperr.BadRequest("Please provide latitude and longitude in the format lat,lng.")
	}
	return lat, lng, nil
}

// unitFactors 单位换算：半径除数与米距离乘数
func unitFactors(unit string) (radiusDivisor, multiplier float64, err error) {
	switch unit {
	case "mi":
		return earthRadiusMiles, metersToMiles, nil
	case "km":
		return earthRadiusKm, metersToKm, nil
	}
	return 0, 0, httperr.BadRequest("Please provide unit as mi or km.")
}

// coerceFormValue 表单值按数值、布尔、字符串依次尝试
func coerceFormValue(s string) interface{} {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
