// Package mongostore 实现基于 MongoDB 的持久化存储
//
// 使用 mongo-go-driver v2，通过 bson tag 实现 model 结构体的序列化/反序列化。
// 所有 Collection 名称和索引在 ensureIndexes 中统一管理。
//
// 跨领域不变量（slug 派生、隐藏行程/停用用户排除、向导装配、评分汇总）
// 以显式装饰器的形式组合在各实体 Store 的构造函数里，不依赖隐式钩子。
package mongostore

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection 名称常量
const (
	ColTours    = "tours"
	ColUsers    = "users"
	ColReviews  = "reviews"
	ColBookings = "bookings"
)

// Store MongoDB 存储实例，聚合各实体 Store
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	Tours    *TourStore
	Users    *UserStore
	Reviews  *ReviewStore
	Bookings *BookingStore
}

// NewStore 创建 MongoDB 存储实例
//
// uri: MongoDB 连接 URI，如 "mongodb://localhost:27017"
// dbName: 数据库名称，如 "tourhub"
func NewStore(uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect failed: %w", err)
	}

	// 验证连接
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongostore: ping failed: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{client: client, db: db}

	s.Users = newUserStore(s)
	s.Tours = newTourStore(s)
	s.Reviews = newReviewStore(s)
	s.Bookings = newBookingStore(s)

	// 创建索引
	if err := s.ensureIndexes(ctx); err != nil {
		log.Printf("WARNING: mongostore: ensure indexes failed: %v", err)
	}

	return s, nil
}

// Close 关闭 MongoDB 连接
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping 健康检查
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// col 获取指定 Collection
func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// ensureIndexes 创建所有必要的索引
func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
	}

	indexes := []idx{
		// tours
		{ColTours, bson.D{{Key: "price", Value: 1}, {Key: "ratings_average", Value: -1}}, false},
		{ColTours, bson.D{{Key: "slug", Value: 1}}, false},
		{ColTours, bson.D{{Key: "start_location", Value: "2dsphere"}}, false},

		// users
		{ColUsers, bson.D{{Key: "email", Value: 1}}, true},

		// reviews：每个用户对一条行程只能评论一次
		{ColReviews, bson.D{{Key: "tour_id", Value: 1}, {Key: "user_id", Value: 1}}, true},

		// bookings
		{ColBookings, bson.D{{Key: "user_id", Value: 1}}, false},
		{ColBookings, bson.D{{Key: "tour_id", Value: 1}}, false},
		{ColBookings, bson.D{{Key: "created_at", Value: -1}}, false},
	}

	for _, i := range indexes {
		model := mongo.IndexModel{Keys: i.keys}
		if i.unique {
			model.Options = options.Index().SetUnique(true)
		}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", i.col, err)
		}
	}

	return nil
}
