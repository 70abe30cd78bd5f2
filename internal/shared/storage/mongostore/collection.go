package mongostore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// 永远不允许通过部分更新写入的键
var immutablePatchKeys = []string{
	"id", "_id", "created_at",
	"password", "password_confirm", "password_changed_at",
	"password_reset_token", "password_reset_expires",
}

// Collection 实体类型化的集合访问层
//
// 为通用 CRUD 处理器提供 {FindByID, FindMany, Create, UpdateByID, DeleteByID}
// 能力集，每个实体 Store 通过构造参数显式组合跨领域装饰器：
//   - baseFilter:   默认查询过滤器（隐藏行程、停用用户排除）
//   - validate:     写入前字段校验
//   - beforeSave:   写入前派生字段（slug）
//   - beforeUpdate: 部分更新时的补丁改写（同步派生字段）
//   - afterFind:    读取后装配（向导摘要、评论作者）
type Collection[T any] struct {
	col          *mongo.Collection
	baseFilter   bson.D
	projection   bson.D // 默认读取投影（用户敏感字段排除），fields 参数显式指定时失效
	validate     func(*T) error
	beforeSave   func(*T)
	beforeUpdate func(merged *T, patch map[string]interface{})
	afterFind    func(ctx context.Context, docs []*T) error
}

// FindByID 按 ID 查找，默认过滤器同样生效（隐藏记录表现为不存在）
func (c *Collection[T]) FindByID(ctx context.Context, id string) (*T, error) {
	opts := options.FindOne()
	if c.projection != nil {
		opts = opts.SetProjection(c.projection)
	}
	doc, err := findOne[T](ctx, c.col, c.withBase(bson.D{{Key: "_id", Value: id}}), opts)
	if err != nil {
		return nil, err
	}
	if c.afterFind != nil {
		if err := c.afterFind(ctx, []*T{doc}); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// FindMany 经查询整形器执行列表查询
//
// scope 为祖先限定过滤器；空结果返回空切片，不视为错误。
func (c *Collection[T]) FindMany(ctx context.Context, scope map[string]string, params url.Values) ([]*T, error) {
	shaper := NewShaper(params, scope).Shape()
	opts := shaper.FindOptions()
	if c.projection != nil && params.Get("fields") == "" {
		opts = opts.SetProjection(c.projection)
	}
	docs, err := findMany[T](ctx, c.col, c.withBase(shaper.BuildFilter()), opts)
	if err != nil {
		return nil, err
	}
	if c.afterFind != nil && len(docs) > 0 {
		if err := c.afterFind(ctx, docs); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// Create 插入新文档，派生字段先于校验运行
func (c *Collection[T]) Create(ctx context.Context, doc *T) error {
	if c.beforeSave != nil {
		c.beforeSave(doc)
	}
	if c.validate != nil {
		if err := c.validate(doc); err != nil {
			return err
		}
	}
	return insertOne(ctx, c.col, doc)
}

// UpdateByID 按 ID 应用部分更新，重新运行字段校验，返回更新后的文档
//
// 补丁先合并到现有文档的副本上做整体校验，再以 $set 写回。
func (c *Collection[T]) UpdateByID(ctx context.Context, id string, patch map[string]interface{}) (*T, error) {
	for _, k := range immutablePatchKeys {
		delete(patch, k)
	}
	if len(patch) == 0 {
		return c.FindByID(ctx, id)
	}

	current, err := findOne[T](ctx, c.col, c.withBase(bson.D{{Key: "_id", Value: id}}))
	if err != nil {
		return nil, err
	}

	merged, err := mergePatch(current, patch)
	if err != nil {
		return nil, err
	}
	// 补丁改写先于整体校验，规范化后的值才是被校验的值
	if c.beforeUpdate != nil {
		c.beforeUpdate(merged, patch)
	}
	if c.validate != nil {
		if err := c.validate(merged); err != nil {
			return nil, err
		}
	}

	set := bson.D{}
	for k, v := range patch {
		set = append(set, bson.E{Key: k, Value: v})
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated T
	err = c.col.FindOneAndUpdate(ctx,
		c.withBase(bson.D{{Key: "_id", Value: id}}),
		bson.D{{Key: "$set", Value: set}},
		opts,
	).Decode(&updated)
	if err != nil {
		return nil, wrapError(err)
	}
	if c.afterFind != nil {
		if err := c.afterFind(ctx, []*T{&updated}); err != nil {
			return nil, err
		}
	}
	return &updated, nil
}

// DeleteByID 按 ID 删除，无匹配返回 storage.ErrNotFound
func (c *Collection[T]) DeleteByID(ctx context.Context, id string) error {
	res, err := c.col.DeleteOne(ctx, c.withBase(bson.D{{Key: "_id", Value: id}}))
	if err != nil {
		return wrapError(err)
	}
	if res.DeletedCount == 0 {
		return wrapError(mongo.ErrNoDocuments)
	}
	return nil
}

// withBase 将默认过滤器并入给定过滤器
func (c *Collection[T]) withBase(filter bson.D) bson.D {
	if len(c.baseFilter) == 0 {
		return filter
	}
	return append(filter, c.baseFilter...)
}

// mergePatch 通过 JSON 往返把补丁合并到现有文档的副本上
//
// 补丁键与 bson/json tag 同为 snake_case，合并结果只用于整体校验。
func mergePatch[T any](current *T, patch map[string]interface{}) (*T, error) {
	raw, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("merge patch: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("merge patch: %w", err)
	}
	for k, v := range patch {
		m[k] = v
	}
	raw, err = json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("merge patch: %w", err)
	}
	var merged T
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}
