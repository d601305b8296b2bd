/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 19:54:47
 * @FilePath: \prompt-studio\backend\internal\app\app.go
 * @LastEditTime: 2025-10-22 15:06:11
 */
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"prompt-studio/backend/internal/config"
	"prompt-studio/backend/internal/domain/community"
	"prompt-studio/backend/internal/domain/user"
	"prompt-studio/backend/internal/infra/client"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Resources 汇总进程级共享的外部依赖。
type Resources struct {
	Runtime config.RuntimeFlags
	DB      *gorm.DB
	SQL     *sql.DB
	Redis   *redis.Client
}

// InitResources 根据运行模式连接数据库：local 模式使用 SQLite，online 模式使用 MySQL。
// Redis 为可选依赖，未配置 REDIS_ENDPOINT 时为空。
func InitResources(ctx context.Context, flags config.RuntimeFlags, logger *zap.SugaredLogger) (*Resources, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	res := &Resources{Runtime: flags}

	var err error
	if flags.IsLocal() {
		res.DB, res.SQL, err = client.NewGORMSQLite(flags.Local.DBPath)
		if err != nil {
			return nil, fmt.Errorf("connect sqlite: %w", err)
		}
		logger.Infow("sqlite connected", "path", flags.Local.DBPath)
	} else {
		mysqlCfg := client.LoadMySQLConfig()
		res.DB, res.SQL, err = client.NewGORMMySQL(ctx, mysqlCfg)
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		logger.Infow("mysql connected", "host", mysqlCfg.Host, "database", mysqlCfg.Database)
	}

	redisOpts, ok, err := client.LoadRedisOptions()
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	if ok {
		res.Redis, err = client.NewRedisClient(ctx, redisOpts)
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Infow("redis connected", "host", redisOpts.Host, "db", redisOpts.DB)
	} else {
		logger.Infow("redis not configured; using in-memory rate limiting and no distributed locks")
	}
	return res, nil
}

// Models 返回需要迁移的全部表模型，user/session 在本地模式下同样由本服务建表。
func Models() []any {
	return []any{
		&user.User{},
		&user.Session{},
		&community.SharedPrompt{},
		&community.PromptRating{},
		&community.PromptComment{},
	}
}

// Migrate 执行 AutoMigrate。
func Migrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("database not initialised")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Close 释放数据库与 Redis 连接。
func (r *Resources) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	if r.SQL != nil {
		errs = append(errs, r.SQL.Close())
	}
	return errors.Join(errs...)
}
