/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-13 23:10:00
 * @FilePath: \prompt-studio\backend\internal\middleware\ip_guard_middleware.go
 * @LastEditTime: 2025-10-22 11:40:12
 */
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	response "prompt-studio/backend/internal/infra/common"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IPGuardConfig 描述 IP 限流与黑名单的核心参数。
type IPGuardConfig struct {
	Enabled      bool
	Prefix       string
	Window       time.Duration
	MaxRequests  int
	StrikeWindow time.Duration
	StrikeLimit  int
	BanTTL       time.Duration
	HoneypotPath string
}

// IPGuardMiddleware 基于 Redis 实现 IP 限流与黑名单机制。
// 每个窗口超限记一次 strike，strike 达到上限后封禁 BanTTL。
type IPGuardMiddleware struct {
	client *redis.Client
	cfg    IPGuardConfig
	logger *zap.SugaredLogger
}

// NewIPGuardMiddleware 构建 IPGuardMiddleware，client 为空时中间件直接放行。
func NewIPGuardMiddleware(client *redis.Client, cfg IPGuardConfig, logger *zap.SugaredLogger) *IPGuardMiddleware {
	if cfg.Prefix == "" {
		cfg.Prefix = "ipguard"
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 300
	}
	if cfg.StrikeWindow <= 0 {
		cfg.StrikeWindow = 10 * time.Minute
	}
	if cfg.StrikeLimit <= 0 {
		cfg.StrikeLimit = 5
	}
	if cfg.BanTTL <= 0 {
		cfg.BanTTL = time.Hour
	}
	cfg.HoneypotPath = strings.Trim(cfg.HoneypotPath, "/")
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &IPGuardMiddleware{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "middleware.ipguard"),
	}
}

// HoneypotPath 返回蜜罐接口的相对路径，未配置时为空。
func (m *IPGuardMiddleware) HoneypotPath() string {
	return m.cfg.HoneypotPath
}

func (m *IPGuardMiddleware) active() bool {
	return m != nil && m.cfg.Enabled && m.client != nil
}

// Handle 返回 Gin 中间件，实时拦截恶意 IP。Redis 异常时放行。
func (m *IPGuardMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.active() {
			c.Next()
			return
		}
		ip := strings.TrimSpace(c.ClientIP())
		if ip == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		blocked, ttl, err := m.isBlacklisted(ctx, ip)
		if err != nil {
			m.logger.Warnw("check blacklist failed", "ip", ip, "error", err)
		} else if blocked {
			m.logger.Infow("blocked by ipguard", "ip", ip, "ttl_seconds", int(ttl.Seconds()))
			response.Abort(c, http.StatusForbidden, response.ErrForbidden, "Access temporarily denied")
			return
		}

		allowed, retryAfter, err := m.hit(ctx, ip)
		if err != nil {
			m.logger.Warnw("ip guard allow failed", "ip", ip, "error", err)
			c.Next()
			return
		}
		if !allowed {
			if retryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			}
			response.Abort(c, http.StatusTooManyRequests, response.ErrTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}

// HoneypotHandler 返回蜜罐接口的处理函数，触发后立即拉黑访问者。
func (m *IPGuardMiddleware) HoneypotHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := strings.TrimSpace(c.ClientIP())
		if !m.active() || ip == "" {
			c.Status(http.StatusNoContent)
			return
		}
		if err := m.blacklist(c.Request.Context(), ip); err != nil {
			m.logger.Warnw("honeypot blacklist failed", "ip", ip, "error", err)
		} else {
			m.logger.Warnw("honeypot triggered", "ip", ip)
		}
		// 返回 204，不给出任何提示。
		c.Status(http.StatusNoContent)
	}
}

func (m *IPGuardMiddleware) key(kind, ip string) string {
	return fmt.Sprintf("%s:%s:%s", m.cfg.Prefix, kind, ip)
}

func (m *IPGuardMiddleware) hit(ctx context.Context, ip string) (bool, time.Duration, error) {
	counterKey := m.key("cnt", ip)
	count, err := incrWithWindow(ctx, m.client, counterKey, m.cfg.Window)
	if err != nil {
		return true, 0, err
	}
	if int(count) <= m.cfg.MaxRequests {
		return true, 0, nil
	}

	retryAfter, err := m.client.TTL(ctx, counterKey).Result()
	if err != nil || retryAfter <= 0 {
		retryAfter = m.cfg.Window
	}
	// 每个窗口只在第一次超限时记 strike。
	if int(count) == m.cfg.MaxRequests+1 {
		if strikeErr := m.recordStrike(ctx, ip); strikeErr != nil {
			m.logger.Warnw("record strike failed", "ip", ip, "error", strikeErr)
		}
	}
	return false, retryAfter, nil
}

func (m *IPGuardMiddleware) recordStrike(ctx context.Context, ip string) error {
	strikes, err := incrWithWindow(ctx, m.client, m.key("str", ip), m.cfg.StrikeWindow)
	if err != nil {
		return err
	}
	if int(strikes) >= m.cfg.StrikeLimit {
		m.logger.Warnw("ip banned after repeated strikes", "ip", ip, "strikes", strikes)
		return m.blacklist(ctx, ip)
	}
	return nil
}

// incrWithWindow 计数加一，只在窗口内第一次计数时设置过期时间。
func incrWithWindow(ctx context.Context, client *redis.Client, key string, window time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

func (m *IPGuardMiddleware) blacklist(ctx context.Context, ip string) error {
	return m.client.Set(ctx, m.key("ban", ip), "1", m.cfg.BanTTL).Err()
}

func (m *IPGuardMiddleware) isBlacklisted(ctx context.Context, ip string) (bool, time.Duration, error) {
	ttl, err := m.client.TTL(ctx, m.key("ban", ip)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, 0, nil
		}
		return false, 0, err
	}
	if ttl < 0 {
		return false, 0, nil
	}
	return true, ttl, nil
}
