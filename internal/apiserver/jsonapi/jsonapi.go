// Package jsonapi 统一成功响应信封
//
// 成功: {"status":"success","data":...,"results":N}（results 仅列表）
// 失败信封由 httperr 翻译层负责。
package jsonapi

import (
	"encoding/json"
	"net/http"
)

// envelope 成功响应信封
type envelope struct {
	Status  string      `json:"status"`
	Results *int        `json:"results,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Token   string      `json:"token,omitempty"`
	Message string      `json:"message,omitempty"`
}

// WriteData 写出单文档成功信封
func WriteData(w http.ResponseWriter, status int, data interface{}) {
	write(w, status, envelope{Status: "success", Data: data})
}

// WriteList 写出列表成功信封，带结果计数
func WriteList(w http.ResponseWriter, data interface{}, results int) {
	write(w, http.StatusOK, envelope{Status: "success", Results: &results, Data: data})
}

// WriteToken 写出带会话令牌的成功信封（注册/登录/改密）
func WriteToken(w http.ResponseWriter, status int, token string, data interface{}) {
	write(w, status, envelope{Status: "success", Token: token, Data: data})
}

// WriteMessage 写出纯消息成功信封
func WriteMessage(w http.ResponseWriter, status int, message string) {
	write(w, status, envelope{Status: "success", Message: message})
}

// WriteNoContent 写出 204，无响应体
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func write(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
