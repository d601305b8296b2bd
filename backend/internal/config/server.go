package config

import "time"

const (
	// AuthProviderSession 通过 session 表解析 Bearer token。
	AuthProviderSession = "session"
	// AuthProviderJWT 通过 HS256 JWT 解析 Bearer token。
	AuthProviderJWT = "jwt"
)

// WriteLimit 描述单个写接口的按用户限流规则，Limit<=0 表示不限流。
type WriteLimit struct {
	Limit  int
	Window time.Duration
}

// IPGuardSettings 描述 IP 限流与封禁配置。
type IPGuardSettings struct {
	Enabled      bool
	Limit        int
	Window       time.Duration
	StrikeLimit  int
	StrikeWindow time.Duration
	BanTTL       time.Duration
	HoneypotPath string
}

// ReconcileSettings 描述聚合字段校准任务的配置。
type ReconcileSettings struct {
	Enabled  bool
	Interval time.Duration
	Batch    int
}

// ServerSettings 汇总 HTTP 服务启动所需的配置。
type ServerSettings struct {
	Port            string
	AuthProvider    string
	JWTSecret       string
	JWTIssuer       string
	JWTTTL          time.Duration
	SessionCacheTTL time.Duration
	CORSOrigins     []string
	CreateLimit     WriteLimit
	RateLimit       WriteLimit
	CommentLimit    WriteLimit
	IPGuard         IPGuardSettings
	Reconcile       ReconcileSettings
	ShutdownTimeout time.Duration
}

// LoadServerSettings 从环境变量读取服务配置，缺失项使用默认值。
func LoadServerSettings() ServerSettings {
	LoadEnvFiles()

	provider := EnvString("AUTH_PROVIDER", AuthProviderSession)
	if provider != AuthProviderJWT {
		provider = AuthProviderSession
	}

	return ServerSettings{
		Port:            EnvString("SERVER_PORT", "8080"),
		AuthProvider:    provider,
		JWTSecret:       EnvString("JWT_SECRET", ""),
		JWTIssuer:       EnvString("JWT_ISSUER", "prompt-studio"),
		JWTTTL:          EnvDuration("JWT_TTL", 24*time.Hour),
		SessionCacheTTL: EnvDuration("SESSION_CACHE_TTL", 5*time.Minute),
		CORSOrigins:     EnvList("CORS_ALLOWED_ORIGINS"),
		CreateLimit: WriteLimit{
			Limit:  EnvInt("COMMUNITY_CREATE_LIMIT", 10),
			Window: EnvDuration("COMMUNITY_CREATE_WINDOW", time.Hour),
		},
		RateLimit: WriteLimit{
			Limit:  EnvInt("COMMUNITY_RATE_LIMIT", 60),
			Window: EnvDuration("COMMUNITY_RATE_WINDOW", time.Minute),
		},
		CommentLimit: WriteLimit{
			Limit:  EnvInt("COMMUNITY_COMMENT_LIMIT", 10),
			Window: EnvDuration("COMMUNITY_COMMENT_WINDOW", time.Minute),
		},
		IPGuard: IPGuardSettings{
			Enabled:      EnvBool("IP_GUARD_ENABLED", true),
			Limit:        EnvInt("IP_GUARD_LIMIT", 300),
			Window:       EnvDuration("IP_GUARD_WINDOW", time.Minute),
			StrikeLimit:  EnvInt("IP_GUARD_STRIKE_LIMIT", 5),
			StrikeWindow: EnvDuration("IP_GUARD_STRIKE_WINDOW", 10*time.Minute),
			BanTTL:       EnvDuration("IP_GUARD_BAN_TTL", time.Hour),
			HoneypotPath: EnvString("IP_GUARD_HONEYPOT_PATH", "__internal__/trace"),
		},
		Reconcile: ReconcileSettings{
			Enabled:  EnvBool("COMMUNITY_RECONCILE_ENABLED", true),
			Interval: EnvDuration("COMMUNITY_RECONCILE_INTERVAL", 10*time.Minute),
			Batch:    EnvInt("COMMUNITY_RECONCILE_BATCH", 200),
		},
		ShutdownTimeout: EnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}
