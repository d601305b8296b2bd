package client

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewGORMSQLite 打开本地模式使用的 SQLite 数据库，必要时创建所在目录。
// path 可以是文件路径，也可以是 file: 开头的 DSN。
func NewGORMSQLite(path string) (*gorm.DB, *sql.DB, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path
	if !isSQLiteURI(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		// 外键约束与忙等待需要显式开启。
		dsn = path + "?_foreign_keys=on&_busy_timeout=5000"
	}

	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: utcNow,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("get sql db: %w", err)
	}
	// SQLite 只允许单写者，串行化连接避免 database is locked。
	sqlDB.SetMaxOpenConns(1)
	return gormDB, sqlDB, nil
}

func isSQLiteURI(path string) bool {
	return len(path) >= 5 && path[:5] == "file:"
}

// utcNow 统一以 UTC 写入自动时间戳，SQLite 按文本比较时间，混用时区会打乱排序。
func utcNow() time.Time {
	return time.Now().UTC()
}
