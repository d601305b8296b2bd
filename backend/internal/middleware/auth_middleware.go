/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 20:41:15
 * @FilePath: \prompt-studio\backend\internal\middleware\auth_middleware.go
 * @LastEditTime: 2025-10-22 11:02:37
 */
package middleware

import (
	"errors"

	"prompt-studio/backend/internal/infra/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContextIdentityKey 是 gin.Context 中保存当前身份的键。
const ContextIdentityKey = "identity"

// Authenticator 抽象鉴权中间件，实现 Handle() 的结构体即可插入路由。
type Authenticator interface {
	Handle() gin.HandlerFunc
}

// AuthMiddleware 解析 Bearer token 并把身份写入上下文。
// 解析失败不会中止请求，由具体接口决定是否要求登录。
type AuthMiddleware struct {
	resolver session.Resolver
	logger   *zap.SugaredLogger
}

// NewAuthMiddleware 创建鉴权中间件实例。
func NewAuthMiddleware(resolver session.Resolver, logger *zap.SugaredLogger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &AuthMiddleware{resolver: resolver, logger: logger.With("component", "middleware.auth")}
}

// Handle 返回 Gin 中间件。
func (m *AuthMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.resolver == nil {
			c.Next()
			return
		}
		bearer := session.BearerToken(c.GetHeader("Authorization"))
		identity, err := m.resolver.Resolve(c.Request.Context(), bearer)
		switch {
		case err == nil && identity != nil:
			c.Set(ContextIdentityKey, identity)
		case err != nil && !errors.Is(err, session.ErrUnauthenticated):
			// 会话存储异常时按匿名处理。
			m.logger.Warnw("resolve identity failed", "path", c.FullPath(), "error", err)
		}
		c.Next()
	}
}

var _ Authenticator = (*AuthMiddleware)(nil)

// IdentityFrom 读取中间件写入的身份，未登录时返回 nil。
func IdentityFrom(c *gin.Context) *session.Identity {
	value, ok := c.Get(ContextIdentityKey)
	if !ok {
		return nil
	}
	identity, _ := value.(*session.Identity)
	return identity
}
