package mongostore

import (
	"context"
	"errors"
	"net/url"
	"os"
	"testing"
	"time"

	"tourhub/internal/shared/model"
	"tourhub/internal/shared/storage"
)

// testStore 创建测试用 Store，使用独立数据库避免污染
func testStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	s, err := NewStore(uri, "tourhub_test")
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	ctx := context.Background()
	if err := s.db.Drop(ctx); err != nil {
		t.Fatalf("Failed to drop test database: %v", err)
	}
	if err := s.ensureIndexes(ctx); err != nil {
		t.Fatalf("Failed to create indexes: %v", err)
	}

	t.Cleanup(func() {
		s.db.Drop(context.Background())
		s.Close()
	})

	return s
}

func validTour(id, name string) *model.Tour {
	return &model.Tour{
		ID:           id,
		Name:         name,
		Duration:     5,
		MaxGroupSize: 25,
		Difficulty:   model.DifficultyEasy,
		Price:        397,
		Summary:      "Breathtaking hike through the Canadian Banff",
		ImageCover:   "tour-1-cover.jpg",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestTourLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	tour := validTour("tour-001", "The Forest Hiker Tour")
	if err := s.Tours.Create(ctx, tour); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tour.Slug != "the-forest-hiker-tour" {
		t.Errorf("Slug = %q, want derived slug", tour.Slug)
	}
	if tour.RatingsAverage != model.DefaultRatingsAverage {
		t.Errorf("RatingsAverage = %v, want default", tour.RatingsAverage)
	}

	got, err := s.Tours.FindByID(ctx, "tour-001")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Name != tour.Name {
		t.Errorf("Name = %q, want %q", got.Name, tour.Name)
	}

	// 部分更新：改名同步 slug，未提及字段不变
	updated, err := s.Tours.UpdateByID(ctx, "tour-001", map[string]interface{}{
		"name":  "The Snow Adventurer Tour",
		"price": 497.0,
	})
	if err != nil {
		t.Fatalf("UpdateByID: %v", err)
	}
	if updated.Slug != "the-snow-adventurer-tour" {
		t.Errorf("Slug = %q, want resynced slug", updated.Slug)
	}
	if updated.Duration != 5 {
		t.Errorf("Duration = %d, want untouched 5", updated.Duration)
	}

	// 校验失败的补丁被拒绝
	if _, err := s.Tours.UpdateByID(ctx, "tour-001", map[string]interface{}{"price": -5.0}); err == nil {
		t.Fatal("Expected validation error for negative price")
	}

	if err := s.Tours.DeleteByID(ctx, "tour-001"); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	if _, err := s.Tours.FindByID(ctx, "tour-001"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("FindByID after delete = %v, want ErrNotFound", err)
	}
}

func TestSecretTourHidden(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	secret := validTour("tour-secret", "The Secret Expedition")
	secret.SecretTour = true
	if err := s.Tours.Create(ctx, secret); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Tours.Create(ctx, validTour("tour-open", "The Open Expedition")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tours, err := s.Tours.FindMany(ctx, nil, url.Values{})
	if err != nil {
		t.Fatalf("FindMany: %v", err)
	}
	if len(tours) != 1 || tours[0].ID != "tour-open" {
		t.Errorf("FindMany returned %d tours, want only the open one", len(tours))
	}

	if _, err := s.Tours.FindByID(ctx, "tour-secret"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("secret tour lookup = %v, want ErrNotFound", err)
	}
}

func TestUserSensitiveFields(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	user := &model.User{
		ID:        "user-001",
		Name:      "Leo Gilbert",
		Email:     " Leo@Example.COM ",
		Password:  "$2a$12$fakefakefakefakefakefake",
		CreatedAt: time.Now(),
	}
	if err := s.Users.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.Email != "leo@example.com" {
		t.Errorf("Email = %q, want normalized", user.Email)
	}

	// 默认读取路径不带密码哈希
	got, err := s.Users.FindByID(ctx, "user-001")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Password != "" {
		t.Error("FindByID leaked password hash")
	}

	// 登录路径带密码哈希
	got, err = s.Users.GetByEmailWithPassword(ctx, "leo@example.com")
	if err != nil {
		t.Fatalf("GetByEmailWithPassword: %v", err)
	}
	if got.Password == "" {
		t.Error("GetByEmailWithPassword missing password hash")
	}

	// 唯一索引
	dup := &model.User{ID: "user-002", Name: "Other Name", Email: "leo@example.com", CreatedAt: time.Now()}
	if err := s.Users.Create(ctx, dup); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("duplicate email create = %v, want ErrDuplicate", err)
	}

	// 软删除后默认查询不可见
	if err := s.Users.Deactivate(ctx, "user-001"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := s.Users.FindByID(ctx, "user-001"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("deactivated user lookup = %v, want ErrNotFound", err)
	}
}

func TestUserEmailNormalizedOnUpdate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	user := &model.User{
		ID:        "user-001",
		Name:      "Leo Gilbert",
		Email:     "leo@example.com",
		Password:  "$2a$12$fakefakefakefakefakefake",
		CreatedAt: time.Now(),
	}
	if err := s.Users.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := s.Users.UpdateByID(ctx, "user-001", map[string]interface{}{
		"email": " Leo.Gilbert@Example.COM ",
	})
	if err != nil {
		t.Fatalf("UpdateByID: %v", err)
	}
	if updated.Email != "leo.gilbert@example.com" {
		t.Errorf("Email = %q, want normalized", updated.Email)
	}

	// 登录路径的小写过滤器必须仍能匹配
	got, err := s.Users.GetByEmailWithPassword(ctx, "LEO.GILBERT@example.com")
	if err != nil {
		t.Fatalf("GetByEmailWithPassword after update: %v", err)
	}
	if got.ID != "user-001" {
		t.Errorf("lookup returned %q, want user-001", got.ID)
	}

	// 大小写变体不得绕过唯一索引
	dup := &model.User{ID: "user-002", Name: "Other Name", Email: "Leo.Gilbert@EXAMPLE.com", CreatedAt: time.Now()}
	if err := s.Users.Create(ctx, dup); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("case-variant email create = %v, want ErrDuplicate", err)
	}
}

func TestReviewRatingRecalc(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Tours.Create(ctx, validTour("tour-001", "The Forest Hiker Tour")); err != nil {
		t.Fatalf("Create tour: %v", err)
	}
	user := &model.User{ID: "user-001", Name: "Leo Gilbert", Email: "leo@example.com", CreatedAt: time.Now()}
	if err := s.Users.Create(ctx, user); err != nil {
		t.Fatalf("Create user: %v", err)
	}

	reviews := []*model.Review{
		{ID: "rev-1", Review: "Amazing trip!", Rating: 5, TourID: "tour-001", UserID: "user-001", CreatedAt: time.Now()},
		{ID: "rev-2", Review: "Quite good", Rating: 4, TourID: "tour-001", UserID: "user-001", CreatedAt: time.Now()},
	}
	for _, r := range reviews[:1] {
		if err := s.Reviews.Create(ctx, r); err != nil {
			t.Fatalf("Create review: %v", err)
		}
	}
	// 同一用户对同一行程的第二条评论被唯一索引拒绝
	if err := s.Reviews.Create(ctx, reviews[1]); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("second review by same user = %v, want ErrDuplicate", err)
	}

	if err := s.Tours.RecalcRatings(ctx, "tour-001"); err != nil {
		t.Fatalf("RecalcRatings: %v", err)
	}
	tour, err := s.Tours.FindByID(ctx, "tour-001")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if tour.RatingsQuantity != 1 || tour.RatingsAverage != 5 {
		t.Errorf("ratings = (%d, %v), want (1, 5)", tour.RatingsQuantity, tour.RatingsAverage)
	}

	// 评论读取装配作者摘要
	got, err := s.Reviews.FindByID(ctx, "rev-1")
	if err != nil {
		t.Fatalf("FindByID review: %v", err)
	}
	if got.User == nil || got.User.Name != "Leo Gilbert" {
		t.Error("review author summary not populated")
	}
}
