package model

import "time"

// Booking 行程预订
//
// 支付结账完成后写入，Paid 在线下补录（转账等）时可为 false。
type Booking struct {
	ID        string    `bson:"_id" json:"id"`
	TourID    string    `bson:"tour_id" json:"tour_id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Price     float64   `bson:"price" json:"price"`
	Paid      bool      `bson:"paid" json:"paid"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Validate 字段校验
func (b *Booking) Validate() error {
	var msgs []string
	if b.TourID == "" {
		msgs = append(msgs, "A booking must belong to a tour")
	}
	if b.UserID == "" {
		msgs = append(msgs, "A booking must belong to a user")
	}
	if b.Price <= 0 {
		msgs = append(msgs, "A booking must have a price")
	}
	return NewValidationError(msgs)
}
