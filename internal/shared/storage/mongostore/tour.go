package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"tourhub/internal/shared/model"
)

// TourStore 行程存储
//
// 装饰器组合：隐藏行程排除 + slug 派生 + 向导摘要装配。
type TourStore struct {
	*Collection[model.Tour]
	store *Store
}

func newTourStore(s *Store) *TourStore {
	ts := &TourStore{store: s}
	ts.Collection = &Collection[model.Tour]{
		col: s.col(ColTours),
		// 隐藏行程在所有默认查询中表现为不存在
		baseFilter: bson.D{{Key: "secret_tour", Value: bson.D{{Key: "$ne", Value: true}}}},
		validate:   func(t *model.Tour) error { return t.Validate() },
		beforeSave: func(t *model.Tour) {
			t.Slug = slug.Make(t.Name)
			if t.RatingsAverage == 0 {
				t.RatingsAverage = model.DefaultRatingsAverage
			}
		},
		beforeUpdate: func(merged *model.Tour, patch map[string]interface{}) {
			if _, ok := patch["name"]; ok {
				patch["slug"] = slug.Make(merged.Name)
			}
		},
		afterFind: ts.populateGuides,
	}
	return ts
}

// populateGuides 把向导引用装配为用户摘要
func (ts *TourStore) populateGuides(ctx context.Context, tours []*model.Tour) error {
	idSet := map[string]bool{}
	for _, t := range tours {
		for _, id := range t.GuideIDs {
			idSet[id] = true
		}
	}
	if len(idSet) == 0 {
		return nil
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	summaries, err := ts.store.userSummaries(ctx, ids)
	if err != nil {
		return fmt.Errorf("populate guides: %w", err)
	}
	for _, t := range tours {
		t.Guides = t.Guides[:0]
		for _, id := range t.GuideIDs {
			if s, ok := summaries[id]; ok {
				t.Guides = append(t.Guides, s)
			}
		}
	}
	return nil
}

// TourStats 按难度聚合的行程统计
type TourStats struct {
	Difficulty string  `bson:"_id" json:"difficulty"`
	NumTours   int     `bson:"num_tours" json:"num_tours"`
	NumRatings int     `bson:"num_ratings" json:"num_ratings"`
	AvgRating  float64 `bson:"avg_rating" json:"avg_rating"`
	AvgPrice   float64 `bson:"avg_price" json:"avg_price"`
	MinPrice   float64 `bson:"min_price" json:"min_price"`
	MaxPrice   float64 `bson:"max_price" json:"max_price"`
}

// Stats 高分行程（评分 >= 4.5）按难度分组统计，按平均价格升序
func (ts *TourStore) Stats(ctx context.Context) ([]*TourStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "secret_tour", Value: bson.D{{Key: "$ne", Value: true}}},
			{Key: "ratings_average", Value: bson.D{{Key: "$gte", Value: 4.5}}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$toUpper", Value: "$difficulty"}}},
			{Key: "num_tours", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "num_ratings", Value: bson.D{{Key: "$sum", Value: "$ratings_quantity"}}},
			{Key: "avg_rating", Value: bson.D{{Key: "$avg", Value: "$ratings_average"}}},
			{Key: "avg_price", Value: bson.D{{Key: "$avg", Value: "$price"}}},
			{Key: "min_price", Value: bson.D{{Key: "$min", Value: "$price"}}},
			{Key: "max_price", Value: bson.D{{Key: "$max", Value: "$price"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "avg_price", Value: 1}}}},
	}
	return aggregate[TourStats](ctx, ts.col, pipeline)
}

// MonthlyPlanEntry 某月的开团计划
type MonthlyPlanEntry struct {
	Month         int      `bson:"month" json:"month"`
	NumTourStarts int      `bson:"num_tour_starts" json:"num_tour_starts"`
	Tours         []string `bson:"tours" json:"tours"`
}

// MonthlyPlan 指定年份按月统计开团数量，按开团数降序，最多 12 条
func (ts *TourStore) MonthlyPlan(ctx context.Context, year int) ([]*MonthlyPlanEntry, error) {
	from := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, 12, 31, 23, 59, 59, 0, time.UTC)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "secret_tour", Value: bson.D{{Key: "$ne", Value: true}}}}}},
		{{Key: "$unwind", Value: "$start_dates"}},
		{{Key: "$match", Value: bson.D{{Key: "start_dates", Value: bson.D{
			{Key: "$gte", Value: from},
			{Key: "$lte", Value: to},
		}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$month", Value: "$start_dates"}}},
			{Key: "num_tour_starts", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "tours", Value: bson.D{{Key: "$push", Value: "$name"}}},
		}}},
		{{Key: "$addFields", Value: bson.D{{Key: "month", Value: "$_id"}}}},
		{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}}}},
		{{Key: "$sort", Value: bson.D{{Key: "num_tour_starts", Value: -1}}}},
		{{Key: "$limit", Value: 12}},
	}
	return aggregate[MonthlyPlanEntry](ctx, ts.col, pipeline)
}

// Within 出发点落在给定球面圆内的行程
//
// radius 为弧度（调用方负责按单位换算地球半径）。
func (ts *TourStore) Within(ctx context.Context, lng, lat, radius float64) ([]*model.Tour, error) {
	filter := ts.withBase(bson.D{{Key: "start_location", Value: bson.D{
		{Key: "$geoWithin", Value: bson.D{
			{Key: "$centerSphere", Value: bson.A{bson.A{lng, lat}, radius}},
		}},
	}}})
	tours, err := findMany[model.Tour](ctx, ts.col, filter)
	if err != nil {
		return nil, err
	}
	if len(tours) > 0 {
		if err := ts.populateGuides(ctx, tours); err != nil {
			return nil, err
		}
	}
	return tours, nil
}

// TourDistance 行程与给定点的距离
type TourDistance struct {
	ID       string  `bson:"_id" json:"id"`
	Name     string  `bson:"name" json:"name"`
	Distance float64 `bson:"distance" json:"distance"`
}

// Distances 所有行程出发点到给定点的距离
//
// multiplier 把米换算为目标单位（英里 0.000621371 / 千米 0.001）。
// $geoNear 必须是管道的第一阶段，隐藏行程在其 query 中排除。
func (ts *TourStore) Distances(ctx context.Context, lng, lat, multiplier float64) ([]*TourDistance, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: bson.D{
				{Key: "type", Value: "Point"},
				{Key: "coordinates", Value: bson.A{lng, lat}},
			}},
			{Key: "distanceField", Value: "distance"},
			{Key: "distanceMultiplier", Value: multiplier},
			{Key: "query", Value: bson.D{{Key: "secret_tour", Value: bson.D{{Key: "$ne", Value: true}}}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "distance", Value: 1},
			{Key: "name", Value: 1},
		}}},
	}
	return aggregate[TourDistance](ctx, ts.col, pipeline)
}

// ratingStats 评论聚合中间结果
type ratingStats struct {
	NumRatings int     `bson:"num_ratings"`
	AvgRating  float64 `bson:"avg_rating"`
}

// RecalcRatings 依据现有评论重算行程的评分均值与数量
//
// 均值写入时保留 1 位小数；无评论时回退基线 4.5 / 0。
func (ts *TourStore) RecalcRatings(ctx context.Context, tourID string) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "tour_id", Value: tourID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$tour_id"},
			{Key: "num_ratings", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avg_rating", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
		}}},
	}
	stats, err := aggregate[ratingStats](ctx, ts.store.col(ColReviews), pipeline)
	if err != nil {
		return fmt.Errorf("recalc ratings: %w", err)
	}

	avg, qty := model.DefaultRatingsAverage, 0
	if len(stats) > 0 {
		avg, qty = model.RoundRating(stats[0].AvgRating), stats[0].NumRatings
	}

	_, err = ts.col.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: tourID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "ratings_average", Value: avg},
			{Key: "ratings_quantity", Value: qty},
		}}},
	)
	return wrapError(err)
}
