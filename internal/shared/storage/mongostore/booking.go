package mongostore

import (
	"context"
	"net/url"

	"tourhub/internal/shared/model"
)

// BookingStore 预订存储
type BookingStore struct {
	*Collection[model.Booking]
	store *Store
}

func newBookingStore(s *Store) *BookingStore {
	bs := &BookingStore{store: s}
	bs.Collection = &Collection[model.Booking]{
		col:      s.col(ColBookings),
		validate: func(b *model.Booking) error { return b.Validate() },
	}
	return bs
}

// ListByUser 某用户的全部预订
func (bs *BookingStore) ListByUser(ctx context.Context, userID string) ([]*model.Booking, error) {
	return bs.FindMany(ctx, map[string]string{"user_id": userID}, url.Values{})
}
