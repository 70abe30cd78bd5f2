package mongostore

import (
	"context"
	"fmt"

	"tourhub/internal/shared/model"
)

// ReviewStore 评论存储
//
// 装饰器组合：读取路径装配作者摘要。
// (tour_id, user_id) 唯一索引在 ensureIndexes 中声明，
// 重复评论由驱动冲突错误经 wrapError 转为 storage.ErrDuplicate。
type ReviewStore struct {
	*Collection[model.Review]
	store *Store
}

func newReviewStore(s *Store) *ReviewStore {
	rs := &ReviewStore{store: s}
	rs.Collection = &Collection[model.Review]{
		col:       s.col(ColReviews),
		validate:  func(r *model.Review) error { return r.Validate() },
		afterFind: rs.populateAuthors,
	}
	return rs
}

// populateAuthors 把评论的作者引用装配为用户摘要
func (rs *ReviewStore) populateAuthors(ctx context.Context, reviews []*model.Review) error {
	idSet := map[string]bool{}
	for _, r := range reviews {
		idSet[r.UserID] = true
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	summaries, err := rs.store.userSummaries(ctx, ids)
	if err != nil {
		return fmt.Errorf("populate review authors: %w", err)
	}
	for _, r := range reviews {
		r.User = summaries[r.UserID]
	}
	return nil
}
