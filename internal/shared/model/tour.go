package model

import (
	"math"
	"strings"
	"time"
)

// Difficulty 行程难度
type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyMedium    Difficulty = "medium"
	DifficultyDifficult Difficulty = "difficult"
)

// ValidDifficulty 难度是否在枚举范围内
func ValidDifficulty(d Difficulty) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyDifficult:
		return true
	}
	return false
}

// Location GeoJSON Point + 地址描述
type Location struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"` // [lng, lat]
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Day         int       `bson:"day,omitempty" json:"day,omitempty"`
}

// Tour 行程
//
// Slug 由 name 派生，存储层写入前统一生成。
// SecretTour 为 true 的行程被默认查询过滤器排除。
// GuideIDs 持久化向导引用，Guides 为读取路径装配的摘要，不落库。
type Tour struct {
	ID              string         `bson:"_id" json:"id"`
	Name            string         `bson:"name" json:"name"`
	Slug            string         `bson:"slug" json:"slug"`
	Duration        int            `bson:"duration" json:"duration"`
	MaxGroupSize    int            `bson:"max_group_size" json:"max_group_size"`
	Difficulty      Difficulty     `bson:"difficulty" json:"difficulty"`
	RatingsAverage  float64        `bson:"ratings_average" json:"ratings_average"`
	RatingsQuantity int            `bson:"ratings_quantity" json:"ratings_quantity"`
	Price           float64        `bson:"price" json:"price"`
	PriceDiscount   float64        `bson:"price_discount,omitempty" json:"price_discount,omitempty"`
	Summary         string         `bson:"summary" json:"summary"`
	Description     string         `bson:"description,omitempty" json:"description,omitempty"`
	ImageCover      string         `bson:"image_cover" json:"image_cover"`
	Images          []string       `bson:"images,omitempty" json:"images,omitempty"`
	CreatedAt       time.Time      `bson:"created_at" json:"created_at"`
	StartDates      []time.Time    `bson:"start_dates,omitempty" json:"start_dates,omitempty"`
	SecretTour      bool           `bson:"secret_tour" json:"-"`
	StartLocation   *Location      `bson:"start_location,omitempty" json:"start_location,omitempty"`
	Locations       []Location     `bson:"locations,omitempty" json:"locations,omitempty"`
	GuideIDs        []string       `bson:"guides,omitempty" json:"guide_ids,omitempty"`
	Guides          []*UserSummary `bson:"-" json:"guides,omitempty"`
}

// DefaultRatingsAverage 无评论时的评分基线
const DefaultRatingsAverage = 4.5

// RoundRating 评分写入时保留 1 位小数
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

// Validate 字段校验
func (t *Tour) Validate() error {
	var msgs []string
	name := strings.TrimSpace(t.Name)
	switch {
	case name == "":
		msgs = append(msgs, "A tour must have a name")
	case len(name) < 10:
		msgs = append(msgs, "A tour name cant be less than 10 characters")
	case len(name) > 40:
		msgs = append(msgs, "A tour name cant be more than 40 characters")
	}
	if t.Duration <= 0 {
		msgs = append(msgs, "A tour must have a duration")
	}
	if t.MaxGroupSize <= 0 {
		msgs = append(msgs, "A tour must have a group size")
	}
	if !ValidDifficulty(t.Difficulty) {
		msgs = append(msgs, "Difficulty is either: easy, medium or difficult")
	}
	if t.RatingsAverage < 0 {
		msgs = append(msgs, "rating cant be less than 0")
	}
	if t.RatingsAverage > 5 {
		msgs = append(msgs, "rating cant be more than 5")
	}
	if t.Price <= 0 {
		msgs = append(msgs, "A tour must have a price")
	}
	if t.PriceDiscount != 0 && t.PriceDiscount >= t.Price {
		msgs = append(msgs, "price discount cannot be greater than price")
	}
	if strings.TrimSpace(t.Summary) == "" {
		msgs = append(msgs, "A tour must have a description")
	}
	if t.ImageCover == "" {
		msgs = append(msgs, "A tour must have a cover image")
	}
	return NewValidationError(msgs)
}
