/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-09 20:51:28
 * @FilePath: \prompt-studio\backend\internal\bootstrap\bootstrap.go
 * @LastEditTime: 2025-10-22 16:20:05
 */
package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"prompt-studio/backend/internal/app"
	"prompt-studio/backend/internal/config"
	"prompt-studio/backend/internal/handler"
	"prompt-studio/backend/internal/infra/metrics"
	"prompt-studio/backend/internal/infra/ratelimit"
	"prompt-studio/backend/internal/infra/session"
	"prompt-studio/backend/internal/infra/token"
	"prompt-studio/backend/internal/middleware"
	"prompt-studio/backend/internal/repository"
	"prompt-studio/backend/internal/server"
	promptcommentsvc "prompt-studio/backend/internal/service/promptcomment"
	sharedpromptsvc "prompt-studio/backend/internal/service/sharedprompt"

	"go.uber.org/zap"
)

// Application 汇总启动后需要被 main 管理生命周期的组件。
type Application struct {
	Resources     *app.Resources
	SharedPrompts *sharedpromptsvc.Service
	Comments      *promptcommentsvc.Service
	Router        http.Handler
}

// BuildApplication 根据已连接的资源与运行配置组装仓储、服务、中间件与路由。
func BuildApplication(ctx context.Context, logger *zap.SugaredLogger, resources *app.Resources, cfg config.ServerSettings) (*Application, error) {
	if resources == nil || resources.DB == nil {
		return nil, errors.New("resources not initialised")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	db := resources.DB

	promptRepo := repository.NewSharedPromptRepository(db)
	ratingRepo := repository.NewPromptRatingRepository(db)
	commentRepo := repository.NewPromptCommentRepository(db)
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	sharedPromptService := sharedpromptsvc.NewService(
		promptRepo,
		ratingRepo,
		commentRepo,
		userRepo,
		logger.With("component", "shared_prompt.service"),
		sharedpromptsvc.Config{
			Reconcile: sharedpromptsvc.ReconcileConfig{
				Enabled:  cfg.Reconcile.Enabled,
				Interval: cfg.Reconcile.Interval,
				Batch:    cfg.Reconcile.Batch,
			},
		},
		resources.Redis,
	)
	commentService := promptcommentsvc.NewService(
		commentRepo,
		promptRepo,
		userRepo,
		logger.With("component", "prompt_comment.service"),
	)

	resolver, err := buildResolver(resources, cfg, sessionRepo, logger)
	if err != nil {
		return nil, err
	}

	var limiter ratelimit.Limiter
	if resources.Redis != nil {
		limiter = ratelimit.NewRedisLimiter(resources.Redis, "community")
	} else {
		limiter = ratelimit.NewMemoryLimiter()
		logger.Infow("using in-memory rate limiter; limits are per process")
	}

	var ipGuard *middleware.IPGuardMiddleware
	if cfg.IPGuard.Enabled && resources.Redis != nil {
		ipGuard = middleware.NewIPGuardMiddleware(resources.Redis, middleware.IPGuardConfig{
			Enabled:      true,
			Window:       cfg.IPGuard.Window,
			MaxRequests:  cfg.IPGuard.Limit,
			StrikeWindow: cfg.IPGuard.StrikeWindow,
			StrikeLimit:  cfg.IPGuard.StrikeLimit,
			BanTTL:       cfg.IPGuard.BanTTL,
			HoneypotPath: cfg.IPGuard.HoneypotPath,
		}, logger)
	} else if cfg.IPGuard.Enabled {
		logger.Infow("ip guard disabled because redis is not configured")
	}

	sharedPromptHandler := handler.NewSharedPromptHandler(sharedPromptService, limiter, handler.SharedPromptRateLimit{
		Create: handler.WriteLimit(cfg.CreateLimit),
		Rate:   handler.WriteLimit(cfg.RateLimit),
	}, logger)
	commentHandler := handler.NewPromptCommentHandler(commentService, limiter, handler.WriteLimit(cfg.CommentLimit), logger)
	healthHandler := handler.NewHealthHandler(resources.SQL, logger)

	metrics.MustRegister()

	router := server.NewRouter(server.RouterOptions{
		SharedPromptHandler:  sharedPromptHandler,
		PromptCommentHandler: commentHandler,
		HealthHandler:        healthHandler,
		AuthMW:               middleware.NewAuthMiddleware(resolver, logger),
		IPGuard:              ipGuard,
		AllowedOrigins:       cfg.CORSOrigins,
		Logger:               logger,
	})

	return &Application{
		Resources:     resources,
		SharedPrompts: sharedPromptService,
		Comments:      commentService,
		Router:        router,
	}, nil
}

// buildResolver 按运行模式选择身份解析方式：本地模式固定身份，线上按 AUTH_PROVIDER 选择。
func buildResolver(resources *app.Resources, cfg config.ServerSettings, sessions *repository.SessionRepository, logger *zap.SugaredLogger) (session.Resolver, error) {
	if resources.Runtime.IsLocal() {
		local := resources.Runtime.Local
		identity := session.Identity{ID: local.UserID, Name: local.Name, Email: local.Email}
		if local.Image != "" {
			image := local.Image
			identity.Image = &image
		}
		logger.Infow("local mode: all requests use the offline identity", "user_id", local.UserID)
		return session.NewStaticResolver(identity), nil
	}

	switch strings.ToLower(cfg.AuthProvider) {
	case config.AuthProviderJWT:
		if strings.TrimSpace(cfg.JWTSecret) == "" {
			return nil, errors.New("JWT_SECRET is required when AUTH_PROVIDER=jwt")
		}
		return session.NewJWTResolver(token.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)), nil
	default:
		return session.NewStoreResolver(sessions, resources.Redis, cfg.SessionCacheTTL, logger.With("component", "session.resolver")), nil
	}
}
