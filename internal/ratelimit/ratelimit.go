// Package ratelimit 按客户端 IP 的请求限流
//
// 多实例部署用 Redis 固定窗口计数，未配置 Redis 时退化为
// 进程内令牌桶。
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Config 限流配置
type Config struct {
	Limit     int           `yaml:"limit"`
	Window    time.Duration `yaml:"window"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
}

// DefaultConfig 返回默认限流配置：每 IP 每小时 100 次
func DefaultConfig() Config {
	return Config{
		Limit:  100,
		Window: time.Hour,
	}
}

// Limiter 限流器
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// New 按配置选择实现
func New(cfg Config) (Limiter, error) {
	if cfg.RedisAddr == "" {
		return newMemoryLimiter(cfg), nil
	}
	return newRedisLimiter(cfg)
}

// ============================================================================
// Redis 固定窗口
// ============================================================================

type redisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

func newRedisLimiter(cfg Config) (*redisLimiter, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &redisLimiter{rdb: rdb, limit: cfg.Limit, window: cfg.Window}, nil
}

// Allow 窗口内计数自增，首次自增时设置窗口过期
func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := "ratelimit:" + key

	n, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit incr: %w", err)
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit expire: %w", err)
		}
	}
	return n <= int64(l.limit), nil
}

// ============================================================================
// 进程内令牌桶
// ============================================================================

type memoryLimiter struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newMemoryLimiter(cfg Config) *memoryLimiter {
	return &memoryLimiter{
		visitors: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(cfg.Limit) / cfg.Window.Seconds()),
		burst:    cfg.Limit,
	}
}

func (l *memoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	limiter, ok := l.visitors[key]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.visitors[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow(), nil
}
