package mongostore

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func shape(query string, scope map[string]string) *Shaper {
	params, err := url.ParseQuery(query)
	if err != nil {
		panic(err)
	}
	return NewShaper(params, scope).Shape()
}

func TestShaperFilter(t *testing.T) {
	t.Run("equality and operator rewrite", func(t *testing.T) {
		s := shape("difficulty=easy&duration[gte]=5&price[lt]=1500", nil)
		assert.Equal(t, bson.D{
			{Key: "difficulty", Value: "easy"},
			{Key: "duration", Value: bson.D{{Key: "$gte", Value: 5.0}}},
			{Key: "price", Value: bson.D{{Key: "$lt", Value: 1500.0}}},
		}, s.BuildFilter())
	})

	t.Run("reserved params excluded", func(t *testing.T) {
		s := shape("page=2&sort=price&limit=10&fields=name&duration=5", nil)
		assert.Equal(t, bson.D{{Key: "duration", Value: 5.0}}, s.BuildFilter())
	})

	t.Run("multiple operators on one field merge", func(t *testing.T) {
		s := shape("duration[gte]=5&duration[lte]=9", nil)
		assert.Equal(t, bson.D{
			{Key: "duration", Value: bson.D{
				{Key: "$gte", Value: 5.0},
				{Key: "$lte", Value: 9.0},
			}},
		}, s.BuildFilter())
	})

	t.Run("scope appended and not overridable", func(t *testing.T) {
		s := shape("tour_id=spoofed", map[string]string{"tour_id": "t1"})
		filter := s.BuildFilter()
		// 祖先范围排在查询参数之后，后写的键在 Mongo 匹配中生效
		assert.Equal(t, bson.E{Key: "tour_id", Value: "t1"}, filter[len(filter)-1])
	})

	t.Run("operator injection dropped", func(t *testing.T) {
		s := shape(url.Values{"$where": {"1"}, "a.b": {"x"}, "name": {"ok"}}.Encode(), nil)
		assert.Equal(t, bson.D{{Key: "name", Value: "ok"}}, s.BuildFilter())
	})

	t.Run("value coercion", func(t *testing.T) {
		s := shape("price=497&secret=true&name=Forest", nil)
		assert.Equal(t, bson.D{
			{Key: "name", Value: "Forest"},
			{Key: "price", Value: 497.0},
			{Key: "secret", Value: true},
		}, s.BuildFilter())
	})
}

func TestShaperSort(t *testing.T) {
	t.Run("default newest first", func(t *testing.T) {
		s := shape("", nil)
		assert.Equal(t, bson.D{{Key: "created_at", Value: -1}}, s.sortDoc)
	})

	t.Run("multi field with direction", func(t *testing.T) {
		s := shape("sort=-ratings_average,price", nil)
		assert.Equal(t, bson.D{
			{Key: "ratings_average", Value: -1},
			{Key: "price", Value: 1},
		}, s.sortDoc)
	})
}

func TestShaperLimitFields(t *testing.T) {
	t.Run("default excludes version field", func(t *testing.T) {
		s := shape("", nil)
		assert.Equal(t, bson.D{{Key: "__v", Value: 0}}, s.projection)
	})

	t.Run("explicit projection", func(t *testing.T) {
		s := shape("fields=name,price,duration", nil)
		assert.Equal(t, bson.D{
			{Key: "name", Value: 1},
			{Key: "price", Value: 1},
			{Key: "duration", Value: 1},
		}, s.projection)
	})
}

func TestShaperPaginate(t *testing.T) {
	tests := []struct {
		name  string
		query string
		skip  int64
		limit int64
	}{
		{"defaults", "", 0, 100},
		{"explicit", "page=3&limit=10", 20, 10},
		{"bad page falls back", "page=zero&limit=10", 0, 10},
		{"negative limit falls back", "limit=-5", 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := shape(tt.query, nil)
			assert.Equal(t, tt.skip, s.skip)
			assert.Equal(t, tt.limit, s.limit)
		})
	}
}

func TestSafeField(t *testing.T) {
	require.True(t, safeField("price"))
	require.False(t, safeField("$where"))
	require.False(t, safeField("a.b"))
	require.False(t, safeField(""))
}
