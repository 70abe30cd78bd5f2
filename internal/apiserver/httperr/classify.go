package httperr

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"

	"tourhub/internal/shared/model"
	"tourhub/internal/shared/storage"
)

// quotedValue 从驱动冲突消息中提取首个引号包裹的冲突值
var quotedValue = regexp.MustCompile(`"((?:\\.|[^"\\])*)"`)

// Classify 把任意内部错误归类为标签变体
//
// 已是 *Error 的原样返回；存储领域错误、校验错误、JSON 类型错误、
// 请求体读取错误各自映射到对应变体；其余一律视为程序性错误。
func Classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return Validation(ve.Error(), err)
	}

	if errors.Is(err, storage.ErrNotFound) {
		return NotFound("No document found with that ID")
	}
	if errors.Is(err, storage.ErrDuplicate) {
		value := ""
		if m := quotedValue.FindStringSubmatch(err.Error()); m != nil {
			value = m[0]
		}
		return Duplicate(value, err)
	}

	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		return Cast(ute.Field, ute.Value, err)
	}
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return BadRequest("Invalid request body")
	}

	// 空体或截断的请求体是客户端错误，不是程序性错误
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return BadRequest("Invalid request body")
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return PayloadTooLarge("Request body too large")
	}

	return Internal(err)
}
