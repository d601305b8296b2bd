package server

import (
	"net/http"
	"strings"
	"time"

	"prompt-studio/backend/internal/handler"
	response "prompt-studio/backend/internal/infra/common"
	"prompt-studio/backend/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterOptions struct {
	SharedPromptHandler  *handler.SharedPromptHandler
	PromptCommentHandler *handler.PromptCommentHandler
	HealthHandler        *handler.HealthHandler
	AuthMW               middleware.Authenticator
	IPGuard              *middleware.IPGuardMiddleware
	AllowedOrigins       []string
	Logger               *zap.SugaredLogger
	// MetricsHandler 为空时使用默认的 promhttp.Handler。
	MetricsHandler http.Handler
}

// NewRouter 构建应用的 Gin Engine，汇总社区接口与公共中间件配置。
func NewRouter(opts RouterOptions) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// IP Guard 中间件会在最前层按照 IP 做限流与黑名单处理。
	if opts.IPGuard != nil {
		r.Use(opts.IPGuard.Handle())
	}

	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		if opts.Logger != nil {
			opts.Logger.Errorw("panic recovered", "path", c.Request.URL.Path, "panic", recovered)
		}
		response.Internal(c)
		c.Abort()
	}))
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))
	if opts.AuthMW != nil {
		r.Use(opts.AuthMW.Handle())
	}
	r.Use(middleware.RequestLog(opts.Logger))

	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))
	if opts.HealthHandler != nil {
		r.GET("/healthz", opts.HealthHandler.Check)
	}

	api := r.Group("/api")
	{
		if opts.IPGuard != nil && opts.IPGuard.HoneypotPath() != "" {
			// 蜜罐接口：正常客户端不会访问，命中即拉黑来源 IP。
			api.Any("/"+opts.IPGuard.HoneypotPath(), opts.IPGuard.HoneypotHandler())
		}

		prompts := api.Group("/community/prompts")
		if h := opts.SharedPromptHandler; h != nil {
			prompts.GET("", h.List)
			prompts.POST("", h.Create)
			prompts.GET("/trending", h.Trending)
			prompts.GET("/:id", h.Get)
			prompts.DELETE("/:id", h.Delete)
			prompts.POST("/:id/rate", h.Rate)
		}
		if h := opts.PromptCommentHandler; h != nil {
			prompts.GET("/:id/comments", h.List)
			prompts.POST("/:id/comments", h.Create)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound, "Not found")
	})
	return r
}

// corsConfig 未配置白名单时只放行本机来源。
func corsConfig(allowed []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Retry-After", "X-RateLimit-Remaining", middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range allowed {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(allowed) > 0 {
		cfg.AllowOrigins = allowed
		return cfg
	}
	cfg.AllowOriginFunc = func(origin string) bool {
		return strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:")
	}
	return cfg
}
