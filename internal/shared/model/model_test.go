package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTour() *Tour {
	return &Tour{
		Name:         "The Forest Hiker Tour",
		Duration:     5,
		MaxGroupSize: 25,
		Difficulty:   DifficultyEasy,
		Price:        397,
		Summary:      "Breathtaking hike through the Canadian Banff",
		ImageCover:   "tour-1-cover.jpg",
	}
}

func TestTourValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validTour().Validate())
	})

	tests := []struct {
		name    string
		mutate  func(*Tour)
		message string
	}{
		{"missing name", func(tr *Tour) { tr.Name = "" }, "A tour must have a name"},
		{"short name", func(tr *Tour) { tr.Name = "Short" }, "less than 10 characters"},
		{"long name", func(tr *Tour) { tr.Name = "An Exceedingly Long Tour Name That Goes On Forever" }, "more than 40 characters"},
		{"bad difficulty", func(tr *Tour) { tr.Difficulty = "extreme" }, "easy, medium or difficult"},
		{"no price", func(tr *Tour) { tr.Price = 0 }, "A tour must have a price"},
		{"discount above price", func(tr *Tour) { tr.PriceDiscount = 500 }, "price discount cannot be greater than price"},
		{"rating too high", func(tr *Tour) { tr.RatingsAverage = 5.5 }, "rating cant be more than 5"},
		{"no cover", func(tr *Tour) { tr.ImageCover = "" }, "A tour must have a cover image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tour := validTour()
			tt.mutate(tour)
			err := tour.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
			assert.Contains(t, err.Error(), "Invalid input data: ")
		})
	}
}

func TestUserValidate(t *testing.T) {
	user := &User{Name: "Leo Gilbert", Email: "leo@example.com", Role: UserRoleUser}
	assert.NoError(t, user.Validate())

	user.Role = "superadmin"
	err := user.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Role is either")

	user = &User{Name: "Leo", Email: "not-an-email"}
	err = user.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "less than 5 characters")
	assert.Contains(t, err.Error(), "invalid email")
}

func TestReviewValidate(t *testing.T) {
	review := &Review{Review: "Amazing trip!", Rating: 5, TourID: "t1", UserID: "u1"}
	assert.NoError(t, review.Validate())

	review.Rating = 0
	review.TourID = ""
	err := review.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Rating must be between 1 and 5")
	assert.Contains(t, err.Error(), "must belong to a tour")
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "leo@example.com", NormalizeEmail("  Leo@Example.COM "))
}

func TestRoundRating(t *testing.T) {
	assert.Equal(t, 4.7, RoundRating(4.66667))
	assert.Equal(t, 4.5, RoundRating(4.5))
	assert.Equal(t, 5.0, RoundRating(4.97))
}

func TestChangedPasswordAfter(t *testing.T) {
	user := &User{}
	assert.False(t, user.ChangedPasswordAfter(time.Now().Unix()), "never changed")

	changed := time.Now()
	user.PasswordChangedAt = &changed
	assert.True(t, user.ChangedPasswordAfter(changed.Add(-time.Hour).Unix()), "token older than change")
	assert.False(t, user.ChangedPasswordAfter(changed.Add(time.Hour).Unix()), "token newer than change")
}
