// Package storage 定义存储层领域错误
//
// 这些错误用于隔离业务层与底层存储引擎的错误类型，
// mongostore 负责将驱动错误转换为这些领域错误。
package storage

import "errors"

var (
	// ErrNotFound 实体不存在
	// 替代 mongo.ErrNoDocuments
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate 唯一键冲突
	// 包装后保留驱动原始信息，供翻译层提取冲突值
	ErrDuplicate = errors.New("duplicate: entity already exists")
)
