package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"prompt-studio/backend/internal/domain/user"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultCachePrefix = "session:identity"

// SessionStore 读取认证服务写入的会话。
type SessionStore interface {
	FindActiveByToken(ctx context.Context, token string, now time.Time) (*user.Session, error)
}

// StoreResolver 通过 session 表解析 Bearer token，可选用 Redis 缓存结果。
type StoreResolver struct {
	sessions SessionStore
	cache    *redis.Client
	cacheTTL time.Duration
	prefix   string
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewStoreResolver 创建会话解析器，cache 为空或 cacheTTL<=0 时每次都查库。
func NewStoreResolver(sessions SessionStore, cache *redis.Client, cacheTTL time.Duration, logger *zap.SugaredLogger) *StoreResolver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &StoreResolver{
		sessions: sessions,
		cache:    cache,
		cacheTTL: cacheTTL,
		prefix:   defaultCachePrefix,
		logger:   logger,
		now:      time.Now,
	}
}

// Resolve 先查缓存，未命中时查询未过期的会话并回写缓存。
func (r *StoreResolver) Resolve(ctx context.Context, bearer string) (*Identity, error) {
	if bearer == "" {
		return nil, ErrUnauthenticated
	}
	key := r.cacheKey(bearer)
	if identity, ok := r.readCache(ctx, key); ok {
		return identity, nil
	}

	now := r.now()
	sess, err := r.sessions.FindActiveByToken(ctx, bearer, now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	if sess.User.ID == "" {
		return nil, ErrUnauthenticated
	}
	identity := FromUser(sess.User)
	r.writeCache(ctx, key, identity, sess.ExpiresAt.Sub(now))
	return identity, nil
}

// cacheKey 使用令牌摘要作为 key，避免把原始令牌写入 Redis。
func (r *StoreResolver) cacheKey(bearer string) string {
	sum := sha256.Sum256([]byte(bearer))
	return r.prefix + ":" + hex.EncodeToString(sum[:])
}

func (r *StoreResolver) readCache(ctx context.Context, key string) (*Identity, bool) {
	if r.cache == nil || r.cacheTTL <= 0 {
		return nil, false
	}
	raw, err := r.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warnw("read session cache failed", "error", err)
		}
		return nil, false
	}
	var identity Identity
	if err := json.Unmarshal(raw, &identity); err != nil || identity.ID == "" {
		return nil, false
	}
	return &identity, true
}

// writeCache 缓存有效期不超过会话剩余时间。
func (r *StoreResolver) writeCache(ctx context.Context, key string, identity *Identity, remaining time.Duration) {
	if r.cache == nil || r.cacheTTL <= 0 {
		return
	}
	ttl := r.cacheTTL
	if remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}
	payload, err := json.Marshal(identity)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, payload, ttl).Err(); err != nil {
		r.logger.Warnw("write session cache failed", "error", err)
	}
}
