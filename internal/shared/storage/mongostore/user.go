package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"tourhub/internal/shared/model"
	"tourhub/internal/shared/storage"
)

// sensitiveUserFields 默认读取路径投影掉的字段
var sensitiveUserFields = bson.D{
	{Key: "password", Value: 0},
	{Key: "password_reset_token", Value: 0},
	{Key: "password_reset_expires", Value: 0},
}

// activeOnly 停用（软删除）用户在默认查询中表现为不存在
var activeOnly = bson.D{{Key: "active", Value: bson.D{{Key: "$ne", Value: false}}}}

// UserStore 用户存储
//
// 装饰器组合：停用用户排除 + 敏感字段投影 + 邮箱规范化；
// 密码哈希只经 WithPassword 变体和专用写入方法流动。
type UserStore struct {
	*Collection[model.User]
	store *Store
}

func newUserStore(s *Store) *UserStore {
	us := &UserStore{store: s}
	us.Collection = &Collection[model.User]{
		col:        s.col(ColUsers),
		baseFilter: activeOnly,
		projection: sensitiveUserFields,
		validate:   func(u *model.User) error { return u.Validate() },
		beforeSave: func(u *model.User) {
			u.Email = model.NormalizeEmail(u.Email)
			if u.Photo == "" {
				u.Photo = model.DefaultUserPhoto
			}
			if u.Role == "" {
				u.Role = model.UserRoleUser
			}
			u.Active = true
		},
		// 部分更新同样维持邮箱小写不变量，否则登录路径的小写过滤器
		// 再也匹配不到该用户
		beforeUpdate: func(merged *model.User, patch map[string]interface{}) {
			if email, ok := patch["email"].(string); ok {
				normalized := model.NormalizeEmail(email)
				patch["email"] = normalized
				merged.Email = normalized
			}
		},
	}
	return us
}

// GetByEmailWithPassword 登录路径：按邮箱取回含密码哈希的用户
func (us *UserStore) GetByEmailWithPassword(ctx context.Context, email string) (*model.User, error) {
	filter := append(bson.D{{Key: "email", Value: model.NormalizeEmail(email)}}, activeOnly...)
	return findOne[model.User](ctx, us.col, filter)
}

// GetByIDWithPassword 改密路径：按 ID 取回含密码哈希的用户
func (us *UserStore) GetByIDWithPassword(ctx context.Context, id string) (*model.User, error) {
	filter := append(bson.D{{Key: "_id", Value: id}}, activeOnly...)
	return findOne[model.User](ctx, us.col, filter)
}

// GetByEmail 按邮箱查找（不含敏感字段）
func (us *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	filter := append(bson.D{{Key: "email", Value: model.NormalizeEmail(email)}}, activeOnly...)
	opts := options.FindOne().SetProjection(sensitiveUserFields)
	return findOne[model.User](ctx, us.col, filter, opts)
}

// SetPassword 更新密码哈希并清除重置令牌
//
// changed-at 回拨 1 秒，避免与同一请求内随后签发的令牌在同一秒竞争
// （启发式近似，非严格保证）。
func (us *UserStore) SetPassword(ctx context.Context, id, passwordHash string) error {
	changedAt := time.Now().Add(-time.Second)
	res, err := us.col.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "password", Value: passwordHash},
				{Key: "password_changed_at", Value: changedAt},
			}},
			{Key: "$unset", Value: bson.D{
				{Key: "password_reset_token", Value: ""},
				{Key: "password_reset_expires", Value: ""},
			}},
		},
	)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetResetToken 存储重置令牌哈希与过期时间
func (us *UserStore) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	_, err := us.col.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "password_reset_token", Value: tokenHash},
			{Key: "password_reset_expires", Value: expires},
		}}},
	)
	return wrapError(err)
}

// ClearResetToken 清除重置令牌字段（邮件发送失败时回滚）
func (us *UserStore) ClearResetToken(ctx context.Context, id string) error {
	_, err := us.col.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$unset", Value: bson.D{
			{Key: "password_reset_token", Value: ""},
			{Key: "password_reset_expires", Value: ""},
		}}},
	)
	return wrapError(err)
}

// GetByResetToken 按令牌哈希查找且要求未过期
func (us *UserStore) GetByResetToken(ctx context.Context, tokenHash string) (*model.User, error) {
	filter := append(bson.D{
		{Key: "password_reset_token", Value: tokenHash},
		{Key: "password_reset_expires", Value: bson.D{{Key: "$gt", Value: time.Now()}}},
	}, activeOnly...)
	return findOne[model.User](ctx, us.col, filter)
}

// Deactivate 软删除：标记 active=false，之后默认查询不再返回该用户
func (us *UserStore) Deactivate(ctx context.Context, id string) error {
	res, err := us.col.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "active", Value: false}}}},
	)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// userSummaries 批量取用户摘要（向导装配、评论作者）
func (s *Store) userSummaries(ctx context.Context, ids []string) (map[string]*model.UserSummary, error) {
	filter := append(bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}, activeOnly...)
	opts := options.Find().SetProjection(bson.D{
		{Key: "name", Value: 1},
		{Key: "photo", Value: 1},
		{Key: "role", Value: 1},
	})
	users, err := findMany[model.UserSummary](ctx, s.col(ColUsers), filter, opts)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.UserSummary, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}
