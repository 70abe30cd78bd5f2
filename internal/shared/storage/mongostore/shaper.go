package mongostore

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// 保留参数，不进入数据过滤器
var reservedParams = map[string]bool{
	"page":   true,
	"sort":   true,
	"limit":  true,
	"fields": true,
}

// 需要改写为 Mongo 前缀操作符的比较记号
var comparisonOps = map[string]bool{
	"gte": true,
	"gt":  true,
	"lte": true,
	"lt":  true,
}

// bracketKey 匹配 field[op] 形式的过滤键
var bracketKey = regexp.MustCompile(`^([^\[\]]+)\[([^\[\]]+)\]$`)

// 分页默认值
const (
	defaultPage  = 1
	defaultLimit = 100
)

// Shaper 查询整形器
//
// 把一组查询字符串参数按固定顺序整形为过滤 / 排序 / 投影 / 分页四段，
// 每段返回自身以便链式组合。只构建查询对象，不触发执行。
type Shaper struct {
	params url.Values
	scope  map[string]string

	filter     bson.D
	sortDoc    bson.D
	projection bson.D
	skip       int64
	limit      int64
}

// NewShaper 创建整形器
//
// scope 为祖先限定过滤器（如嵌套路由下 tour_id -> 父行程 ID），
// 无条件并入数据过滤器且不可被查询参数覆盖。
func NewShaper(params url.Values, scope map[string]string) *Shaper {
	if params == nil {
		params = url.Values{}
	}
	return &Shaper{params: params, scope: scope}
}

// Shape 按固定顺序执行四段整形
func (s *Shaper) Shape() *Shaper {
	return s.Filter().Sort().LimitFields().Paginate()
}

// Filter 构建数据过滤器
//
// 剔除保留键后，field[op] 键在 op 命中比较记号时改写为 $op 子文档，
// 其它记号原样保留；以 $ 开头或含 . 的字段名直接丢弃（注入防护）。
func (s *Shaper) Filter() *Shaper {
	// field -> 比较子文档（field[op] 形式可能出现多次）
	rangeFilters := map[string]bson.D{}
	eq := bson.D{}

	keys := make([]string, 0, len(s.params))
	for k := range s.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if reservedParams[key] {
			continue
		}
		value := s.params.Get(key)

		field, op := key, ""
		if m := bracketKey.FindStringSubmatch(key); m != nil {
			field, op = m[1], m[2]
		}
		if !safeField(field) || (op != "" && !safeField(op)) {
			continue
		}

		if op == "" {
			eq = append(eq, bson.E{Key: field, Value: coerceValue(value)})
			continue
		}
		if comparisonOps[op] {
			op = "$" + op
		}
		rangeFilters[field] = append(rangeFilters[field], bson.E{Key: op, Value: coerceValue(value)})
	}

	rangeFields := make([]string, 0, len(rangeFilters))
	for f := range rangeFilters {
		rangeFields = append(rangeFields, f)
	}
	sort.Strings(rangeFields)

	filter := eq
	for _, f := range rangeFields {
		filter = append(filter, bson.E{Key: f, Value: rangeFilters[f]})
	}

	scopeFields := make([]string, 0, len(s.scope))
	for f := range s.scope {
		scopeFields = append(scopeFields, f)
	}
	sort.Strings(scopeFields)
	for _, f := range scopeFields {
		filter = append(filter, bson.E{Key: f, Value: s.scope[f]})
	}

	s.filter = filter
	return s
}

// Sort 构建排序
//
// sort 参数为逗号分隔字段列表，- 前缀表示降序；缺省按创建时间降序。
func (s *Shaper) Sort() *Shaper {
	raw := s.params.Get("sort")
	if raw == "" {
		s.sortDoc = bson.D{{Key: "created_at", Value: -1}}
		return s
	}

	sortDoc := bson.D{}
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		order := 1
		if strings.HasPrefix(field, "-") {
			field = field[1:]
			order = -1
		}
		if field == "" || !safeField(field) {
			continue
		}
		sortDoc = append(sortDoc, bson.E{Key: field, Value: order})
	}
	if len(sortDoc) == 0 {
		sortDoc = bson.D{{Key: "created_at", Value: -1}}
	}
	s.sortDoc = sortDoc
	return s
}

// LimitFields 构建投影
//
// fields 参数为逗号分隔字段列表；缺省排除内部版本字段。
func (s *Shaper) LimitFields() *Shaper {
	raw := s.params.Get("fields")
	if raw == "" {
		s.projection = bson.D{{Key: "__v", Value: 0}}
		return s
	}

	projection := bson.D{}
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" || !safeField(field) {
			continue
		}
		projection = append(projection, bson.E{Key: field, Value: 1})
	}
	if len(projection) == 0 {
		projection = bson.D{{Key: "__v", Value: 0}}
	}
	s.projection = projection
	return s
}

// Paginate 计算 skip/limit
//
// page 默认 1，limit 默认 100，非法数字回退默认值而非报错。
func (s *Shaper) Paginate() *Shaper {
	page := intParam(s.params.Get("page"), defaultPage)
	limit := intParam(s.params.Get("limit"), defaultLimit)
	s.skip = int64(page-1) * int64(limit)
	s.limit = int64(limit)
	return s
}

// BuildFilter 返回整形后的数据过滤器
func (s *Shaper) BuildFilter() bson.D {
	if s.filter == nil {
		return bson.D{}
	}
	return s.filter
}

// FindOptions 返回整形后的查询选项
func (s *Shaper) FindOptions() *options.FindOptionsBuilder {
	opts := options.Find()
	if s.sortDoc != nil {
		opts = opts.SetSort(s.sortDoc)
	}
	if s.projection != nil {
		opts = opts.SetProjection(s.projection)
	}
	if s.limit > 0 {
		opts = opts.SetSkip(s.skip).SetLimit(s.limit)
	}
	return opts
}

// safeField 拒绝操作符注入：$ 前缀或含点路径的字段名不进入过滤器
func safeField(field string) bool {
	return field != "" && !strings.HasPrefix(field, "$") && !strings.Contains(field, ".")
}

// coerceValue 参数值类型推断：数字 → 布尔 → 字符串
func coerceValue(raw string) interface{} {
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

// intParam 整数参数解析，非法或非正值回退默认
func intParam(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
