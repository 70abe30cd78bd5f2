package model

import (
	"strings"
	"time"
)

// Review 行程评论
//
// (tour_id, user_id) 唯一索引保证每个用户对一条行程只能评论一次。
// User 为读取路径装配的作者摘要，不落库。
type Review struct {
	ID        string       `bson:"_id" json:"id"`
	Review    string       `bson:"review" json:"review"`
	Rating    float64      `bson:"rating" json:"rating"`
	TourID    string       `bson:"tour_id" json:"tour_id"`
	UserID    string       `bson:"user_id" json:"user_id"`
	CreatedAt time.Time    `bson:"created_at" json:"created_at"`
	User      *UserSummary `bson:"-" json:"user,omitempty"`
}

// Validate 字段校验
func (r *Review) Validate() error {
	var msgs []string
	if strings.TrimSpace(r.Review) == "" {
		msgs = append(msgs, "A review cannot be empty")
	}
	if r.Rating < 1 || r.Rating > 5 {
		msgs = append(msgs, "Rating must be between 1 and 5")
	}
	if r.TourID == "" {
		msgs = append(msgs, "A review must belong to a tour")
	}
	if r.UserID == "" {
		msgs = append(msgs, "A review must belong to a user")
	}
	return NewValidationError(msgs)
}
