package model

import "strings"

// ValidationError 文档校验失败，Fields 收集全部字段消息
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "Invalid input data: " + strings.Join(e.Fields, ". ")
}

// NewValidationError 从字段消息构造校验错误，无消息时返回 nil
func NewValidationError(messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{Fields: messages}
}
