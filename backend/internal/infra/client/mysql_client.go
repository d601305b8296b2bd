/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 17:16:56
 * @FilePath: \prompt-studio\backend\internal\infra\client\mysql_client.go
 * @LastEditTime: 2025-10-22 14:31:09
 */
package client

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"prompt-studio/backend/internal/config"

	"github.com/go-sql-driver/mysql"
	mysqlDriver "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultMySQLHost     = "127.0.0.1"
	defaultMySQLPort     = 3306
	defaultMySQLDatabase = "prompt_studio"
)

// MySQLConfig 描述数据库连接配置项。
type MySQLConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LoadMySQLConfig 从 MYSQL_* 环境变量读取连接配置。
func LoadMySQLConfig() MySQLConfig {
	config.LoadEnvFiles()
	return MySQLConfig{
		Host:            config.EnvString("MYSQL_HOST", defaultMySQLHost),
		Port:            config.EnvInt("MYSQL_PORT", defaultMySQLPort),
		Username:        config.EnvString("MYSQL_USERNAME", ""),
		Password:        config.EnvString("MYSQL_PASSWORD", ""),
		Database:        config.EnvString("MYSQL_DATABASE", defaultMySQLDatabase),
		MaxOpenConns:    config.EnvInt("MYSQL_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    config.EnvInt("MYSQL_MAX_IDLE_CONNS", 10),
		ConnMaxLifetime: config.EnvDuration("MYSQL_CONN_MAX_LIFETIME", 60*time.Minute),
	}
}

// validateMySQLConfig 校验配置字段是否完整。
func validateMySQLConfig(cfg MySQLConfig) error {
	if cfg.Host == "" {
		return fmt.Errorf("mysql host is required")
	}
	if cfg.Username == "" {
		return fmt.Errorf("mysql username is required")
	}
	if cfg.Database == "" {
		return fmt.Errorf("mysql database is required")
	}
	return nil
}

// BuildMySQLDSN 在通过校验后拼接 MySQL DSN，时间统一按 UTC 解析。
func BuildMySQLDSN(cfg MySQLConfig) (string, error) {
	if err := validateMySQLConfig(cfg); err != nil {
		return "", err
	}
	port := cfg.Port
	if port == 0 {
		port = defaultMySQLPort
	}
	dsn := mysql.NewConfig()
	dsn.User = cfg.Username
	dsn.Passwd = cfg.Password
	dsn.Net = "tcp"
	dsn.Addr = fmt.Sprintf("%s:%d", cfg.Host, port)
	dsn.DBName = cfg.Database
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN(), nil
}

// NewGORMMySQL 创建 GORM 连接并返回 ORM 与底层 *sql.DB，便于控制生命周期。
func NewGORMMySQL(ctx context.Context, cfg MySQLConfig) (*gorm.DB, *sql.DB, error) {
	dsn, err := BuildMySQLDSN(cfg)
	if err != nil {
		return nil, nil, err
	}

	gormDB, err := gorm.Open(mysqlDriver.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: utcNow,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open gorm mysql: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("get sql db: %w", err)
	}
	configurePool(sqlDB, cfg)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("ping mysql: %w", err)
	}
	return gormDB, sqlDB, nil
}

func configurePool(sqlDB *sql.DB, cfg MySQLConfig) {
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
}
