/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-10 17:01:17
 * @FilePath: \prompt-studio\backend\internal\infra\ratelimit\limiter.go
 * @LastEditTime: 2025-10-21 18:12:40
 */
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AllowResult 描述限流请求的结果。Remaining 为 -1 表示未启用限流。
type AllowResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
}

// Limiter 定义限流器的通用能力。
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (AllowResult, error)
}

// RedisLimiter 使用 Redis 实现固定窗口计数限流，多实例部署时共享计数。
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter 根据 Redis 客户端构造限流器，可自定义 key 前缀。
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

// Allow 以 Redis 计数器实现固定窗口限流，窗口从第一次计数开始，后续请求不会续期。
func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (AllowResult, error) {
	if limit <= 0 {
		return AllowResult{Allowed: true, Remaining: -1}, nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if r == nil || r.client == nil {
		return AllowResult{Allowed: true, Remaining: -1}, nil
	}

	namespaced := r.prefix + ":" + key
	count, err := r.client.Incr(ctx, namespaced).Result()
	if err != nil {
		return AllowResult{}, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, namespaced, window).Err(); err != nil {
			return AllowResult{}, err
		}
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	if int(count) <= limit {
		return AllowResult{Allowed: true, Remaining: remaining}, nil
	}

	ttl, err := r.client.TTL(ctx, namespaced).Result()
	if err != nil {
		return AllowResult{}, err
	}
	if ttl < 0 {
		// 计数键丢失过期时间时补上，避免永久封禁。
		_ = r.client.Expire(ctx, namespaced, window).Err()
		ttl = window
	}
	return AllowResult{Allowed: false, RetryAfter: ttl, Remaining: 0}, nil
}

// MemoryLimiter 是 Redis 不可用时的替代方案，仅在单实例内生效。
type MemoryLimiter struct {
	mu    sync.Mutex
	store map[string]entry
	now   func() time.Time
}

type entry struct {
	count   int
	expires time.Time
}

// NewMemoryLimiter 构建内存版限流器，常用于本地模式与单元测试。
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{store: make(map[string]entry), now: time.Now}
}

// Allow 通过内存 map 统计请求次数，模拟 Redis 的固定窗口限流行为。
func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (AllowResult, error) {
	if limit <= 0 {
		return AllowResult{Allowed: true, Remaining: -1}, nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if m == nil {
		return AllowResult{Allowed: true, Remaining: -1}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	ent, ok := m.store[key]
	if !ok || !now.Before(ent.expires) {
		m.sweep(now)
		m.store[key] = entry{count: 1, expires: now.Add(window)}
		return AllowResult{Allowed: true, Remaining: limit - 1}, nil
	}

	ent.count++
	m.store[key] = ent

	if ent.count > limit {
		return AllowResult{Allowed: false, RetryAfter: ent.expires.Sub(now), Remaining: 0}, nil
	}
	return AllowResult{Allowed: true, Remaining: limit - ent.count}, nil
}

// sweep 清理已过期的窗口，调用方需持有锁。
func (m *MemoryLimiter) sweep(now time.Time) {
	for key, ent := range m.store {
		if !now.Before(ent.expires) {
			delete(m.store, key)
		}
	}
}
