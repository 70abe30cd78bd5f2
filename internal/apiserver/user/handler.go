// Package user 用户 HTTP 处理器：本人资料维护与管理端 CRUD
package user

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"tourhub/internal/apiserver/auth"
	"tourhub/internal/apiserver/crud"
	"tourhub/internal/apiserver/httperr"
	"tourhub/internal/apiserver/jsonapi"
	"tourhub/internal/imageproc"
	"tourhub/internal/shared/model"
	"tourhub/internal/shared/storage/mongostore"
)

// maxUploadBytes 头像上传的请求体上限
const maxUploadBytes = 10 << 20

// updatableFields 本人资料路由允许修改的字段
var updatableFields = map[string]bool{
	"name":  true,
	"email": true,
}

// ObjectStore 处理后头像的存储能力
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// Handler 用户 HTTP 处理器
type Handler struct {
	users      *mongostore.UserStore
	guard      *auth.Guard
	translator *httperr.Translator
	objects    ObjectStore
}

// NewHandler 创建用户处理器
func NewHandler(users *mongostore.UserStore, guard *auth.Guard, tr *httperr.Translator, objects ObjectStore) *Handler {
	return &Handler{users: users, guard: guard, translator: tr, objects: objects}
}

// RegisterRoutes 注册用户相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// 本人路由
	mux.HandleFunc("GET /api/v1/users/me", h.guard.RequireSession(h.Me))
	mux.HandleFunc("PATCH /api/v1/users/updateMe", h.guard.RequireSession(h.UpdateMe))
	mux.HandleFunc("DELETE /api/v1/users/deleteMe", h.guard.RequireSession(h.DeleteMe))

	// 管理端路由
	mux.HandleFunc("GET /api/v1/users",
		h.guard.Protect(crud.List[model.User](h.translator, h.users, nil), model.UserRoleAdmin))
	mux.HandleFunc("POST /api/v1/users", h.CreateUser)
	mux.HandleFunc("GET /api/v1/users/{id}",
		h.guard.Protect(crud.GetOne[model.User](h.translator, h.users), model.UserRoleAdmin))
	mux.HandleFunc("PATCH /api/v1/users/{id}",
		h.guard.Protect(crud.UpdateOne[model.User](h.translator, h.users), model.UserRoleAdmin))
	mux.HandleFunc("DELETE /api/v1/users/{id}",
		h.guard.Protect(crud.DeleteOne[model.User](h.translator, h.users), model.UserRoleAdmin))
}

// Me 返回会话用户本人
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.FindByID(r.Context(), auth.SessionUser(r.Context()).ID)
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}
	jsonapi.WriteData(w, http.StatusOK, user)
}

// UpdateMe 修改本人资料
//
// 只允许 name / email，密码走专用路由；multipart 请求额外处理头像，
// 裁剪为 500x500 后按 user-{id}-{时间戳}.jpeg 存储。
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionUser(r.Context())

	var patch map[string]interface{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			h.translator.Write(w, r, httperr.BadRequest("Invalid request body"))
			return
		}
		patch = map[string]interface{}{}
		for key, values := range r.MultipartForm.Value {
			if len(values) > 0 {
				patch[key] = values[0]
			}
		}
		if files := r.MultipartForm.File["photo"]; len(files) > 0 {
			key := fmt.Sprintf("users/user-%s-%d.jpeg", session.ID, time.Now().UnixMilli())
			if err := h.storePhoto(r.Context(), files[0], key); err != nil {
				h.translator.Write(w, r, err)
				return
			}
			patch["photo"] = key
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			h.translator.Write(w, r, err)
			return
		}
	}

	_, hasPassword := patch["password"]
	_, hasConfirm := patch["password_confirm"]
	if hasPassword || hasConfirm {
		h.translator.Write(w, r, httperr.BadRequest(
			"This route is not for password updates. Please use /updateMyPassword."))
		return
	}

	for key := range patch {
		if !updatableFields[key] && key != "photo" {
			delete(patch, key)
		}
	}

	user, err := h.users.UpdateByID(r.Context(), session.ID, patch)
	if err != nil {
		h.translator.Write(w, r, err)
		return
	}
	jsonapi.WriteData(w, http.StatusOK, user)
}

// DeleteMe 注销本人账号（软删除）
func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Deactivate(r.Context(), auth.SessionUser(r.Context()).ID); err != nil {
		h.translator.Write(w, r, err)
		return
	}
	jsonapi.WriteNoContent(w)
}

// CreateUser 该路由不提供，注册走 /signup
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	h.translator.Write(w, r, &httperr.Error{
		Kind:    httperr.KindOperational,
		Code:    http.StatusInternalServerError,
		Message: "This route is not defined! Please use /signup instead",
	})
}

// storePhoto 解码、裁剪并上传头像
func (h *Handler) storePhoto(ctx context.Context, fh *multipart.FileHeader, key string) error {
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := imageproc.UserPhoto(f)
	if err != nil {
		return httperr.BadRequest("Not an image! Please upload only images.")
	}
	return h.objects.Upload(ctx, key, data, "image/jpeg")
}
