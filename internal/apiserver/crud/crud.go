// Package crud 通用 CRUD 处理器
//
// 每个实体处理器由能力接口参数化的泛型工厂生成，实体差异
// （祖先范围、创建前写入会话字段）通过显式钩子注入。
package crud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"tourhub/internal/apiserver/httperr"
	"tourhub/internal/apiserver/jsonapi"
)

// Store 通用处理器依赖的实体存储能力集
type Store[T any] interface {
	FindByID(ctx context.Context, id string) (*T, error)
	FindMany(ctx context.Context, scope map[string]string, params url.Values) ([]*T, error)
	Create(ctx context.Context, doc *T) error
	UpdateByID(ctx context.Context, id string, patch map[string]interface{}) (*T, error)
	DeleteByID(ctx context.Context, id string) error
}

// ScopeFunc 从请求提取祖先限定过滤器（嵌套路由），可为 nil
type ScopeFunc func(r *http.Request) map[string]string

// PrepareFunc 创建前改写文档（写入会话用户、路径参数），可为 nil
type PrepareFunc[T any] func(r *http.Request, doc *T) error

// List 列表查询处理器
//
// 查询参数原样交给存储层整形，祖先范围由 scope 提供。
func List[T any](tr *httperr.Translator, store Store[T], scope ScopeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sc map[string]string
		if scope != nil {
			sc = scope(r)
		}
		docs, err := store.FindMany(r.Context(), sc, r.URL.Query())
		if err != nil {
			tr.Write(w, r, err)
			return
		}
		jsonapi.WriteList(w, docs, len(docs))
	}
}

// GetOne 单文档查询处理器，路径参数 {id}
func GetOne[T any](tr *httperr.Translator, store Store[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := store.FindByID(r.Context(), r.PathValue("id"))
		if err != nil {
			tr.Write(w, r, err)
			return
		}
		jsonapi.WriteData(w, http.StatusOK, doc)
	}
}

// CreateOne 创建处理器，写入成功返回 201
func CreateOne[T any](tr *httperr.Translator, store Store[T], prepare PrepareFunc[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc T
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			tr.Write(w, r, err)
			return
		}
		if prepare != nil {
			if err := prepare(r, &doc); err != nil {
				tr.Write(w, r, err)
				return
			}
		}
		if err := store.Create(r.Context(), &doc); err != nil {
			tr.Write(w, r, err)
			return
		}
		jsonapi.WriteData(w, http.StatusCreated, &doc)
	}
}

// UpdateOne 部分更新处理器
//
// 请求体按补丁映射解码，未出现的键保持不变。
func UpdateOne[T any](tr *httperr.Translator, store Store[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			tr.Write(w, r, err)
			return
		}
		doc, err := store.UpdateByID(r.Context(), r.PathValue("id"), patch)
		if err != nil {
			tr.Write(w, r, err)
			return
		}
		jsonapi.WriteData(w, http.StatusOK, doc)
	}
}

// DeleteOne 删除处理器，成功返回 204
func DeleteOne[T any](tr *httperr.Translator, store Store[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteByID(r.Context(), r.PathValue("id")); err != nil {
			tr.Write(w, r, err)
			return
		}
		jsonapi.WriteNoContent(w)
	}
}
