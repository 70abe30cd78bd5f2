// Package httperr 集中式错误翻译
//
// 内部错误先归类为封闭的标签变体（Kind），再由 Translator 统一决定
// 对客户端的暴露策略。处理器自身从不就地消化错误。
package httperr

import (
	"fmt"
	"net/http"
)

// Kind 错误类别，§httperr 翻译表的封闭变体集
type Kind int

const (
	// KindValidation 字段校验失败（400，拼接全部字段消息）
	KindValidation Kind = iota
	// KindDuplicate 唯一键冲突（400，带冲突值）
	KindDuplicate
	// KindCast 类型不匹配（400，带字段与值）
	KindCast
	// KindTokenMalformed 凭证格式错误（401）
	KindTokenMalformed
	// KindTokenExpired 凭证过期（401）
	KindTokenExpired
	// KindOperational 预期内的业务错误，状态码与消息原样透出
	KindOperational
	// KindInternal 程序性错误，生产模式对客户端隐藏细节
	KindInternal
)

// Error 标签化错误
type Error struct {
	Kind    Kind
	Code    int    // HTTP 状态码
	Message string // 客户端可见消息
	Err     error  // 底层错误，仅开发模式与服务端日志可见
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound 404 业务错误
func NotFound(message string) *Error {
	return &Error{Kind: KindOperational, Code: http.StatusNotFound, Message: message}
}

// Unauthorized 401 业务错误
func Unauthorized(message string) *Error {
	return &Error{Kind: KindOperational, Code: http.StatusUnauthorized, Message: message}
}

// Forbidden 403 业务错误
func Forbidden(message string) *Error {
	return &Error{Kind: KindOperational, Code: http.StatusForbidden, Message: message}
}

// BadRequest 400 业务错误
func BadRequest(message string) *Error {
	return &Error{Kind: KindOperational, Code: http.StatusBadRequest, Message: message}
}

// PayloadTooLarge 413 业务错误
func PayloadTooLarge(message string) *Error {
	return &Error{Kind: KindOperational, Code: http.StatusRequestEntityTooLarge, Message: message}
}

// Validation 字段校验错误
func Validation(message string, err error) *Error {
	return &Error{Kind: KindValidation, Code: http.StatusBadRequest, Message: message, Err: err}
}

// Duplicate 唯一键冲突
func Duplicate(value string, err error) *Error {
	msg := "Duplicate field value. Please use another value!"
	if value != "" {
		msg = fmt.Sprintf("Duplicate field value %s. Please use another value!", value)
	}
	return &Error{Kind: KindDuplicate, Code: http.StatusBadRequest, Message: msg, Err: err}
}

// Cast 类型不匹配
func Cast(field, value string, err error) *Error {
	return &Error{
		Kind:    KindCast,
		Code:    http.StatusBadRequest,
		Message: fmt.Sprintf("Invalid %s: %s.", field, value),
		Err:     err,
	}
}

// TokenMalformed 凭证格式错误
func TokenMalformed(err error) *Error {
	return &Error{
		Kind:    KindTokenMalformed,
		Code:    http.StatusUnauthorized,
		Message: "Invalid token. Please log in again",
		Err:     err,
	}
}

// TokenExpired 凭证过期
func TokenExpired(err error) *Error {
	return &Error{
		Kind:    KindTokenExpired,
		Code:    http.StatusUnauthorized,
		Message: "Expired token! Please log in again",
		Err:     err,
	}
}

// Internal 程序性错误
func Internal(err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    http.StatusInternalServerError,
		Message: "Something went very wrong",
		Err:     err,
	}
}
