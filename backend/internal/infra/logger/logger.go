/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-09 17:53:57
 * @FilePath: \prompt-studio\backend\internal\infra\logger\logger.go
 * @LastEditTime: 2025-10-22 17:05:41
 */
package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"prompt-studio/backend/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultService = "prompt-studio"

var (
	// global 为进程级 logger，由 Init 构建一次。
	global  *zap.Logger
	initErr error
	once    sync.Once
)

// Options 描述日志输出配置。
type Options struct {
	Service  string
	Level    string
	Encoding string
	// FilePath 为空时不写文件。
	FilePath   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
	Console    bool
}

// Init 按环境变量构建全局 logger，重复调用返回同一实例。
func Init() (*zap.Logger, error) {
	once.Do(func() {
		global, initErr = New(loadOptionsFromEnv())
	})
	if initErr != nil {
		return nil, initErr
	}
	if global == nil {
		return nil, errors.New("logger not initialized")
	}
	return global, nil
}

// Sync 刷新缓冲区，进程退出前调用。
func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}

// loadOptionsFromEnv 读取 LOG_* 变量。LOG_FILE=off 关闭文件输出。
func loadOptionsFromEnv() Options {
	config.LoadEnvFiles()

	opts := Options{
		Service:    config.EnvString("LOG_SERVICE", defaultService),
		Level:      strings.ToLower(config.EnvString("LOG_LEVEL", "info")),
		Encoding:   strings.ToLower(config.EnvString("LOG_ENCODING", "json")),
		FilePath:   config.EnvString("LOG_FILE", filepath.Join("logs", "prompt-studio.log")),
		MaxSize:    positiveOr(config.EnvInt("LOG_MAX_SIZE", 20), 20),
		MaxBackups: positiveOr(config.EnvInt("LOG_MAX_BACKUPS", 5), 5),
		MaxAge:     positiveOr(config.EnvInt("LOG_MAX_AGE", 15), 15),
		Compress:   config.EnvBool("LOG_COMPRESS", true),
		Console:    config.EnvBool("LOG_CONSOLE", true),
	}
	if strings.EqualFold(opts.FilePath, "off") {
		opts.FilePath = ""
	}
	return opts
}

// New 根据 Options 组合文件与控制台两路输出。
// 文件按 Encoding 编码并由 lumberjack 滚动，控制台固定为彩色文本。
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
	encoderCfg.EncodeDuration = zapcore.StringDurationEncoder

	var cores []zapcore.Core
	if opts.FilePath != "" {
		core, err := fileCore(opts, encoderCfg, level)
		if err != nil {
			return nil, err
		}
		cores = append(cores, core)
	}
	if opts.Console {
		consoleCfg := encoderCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stdout), level))
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}

	zapOpts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if opts.Service != "" {
		zapOpts = append(zapOpts, zap.Fields(zap.String("service", opts.Service)))
	}
	return zap.New(zapcore.NewTee(cores...), zapOpts...), nil
}

func fileCore(opts Options, encoderCfg zapcore.EncoderConfig, level zapcore.Level) (zapcore.Core, error) {
	if dir := filepath.Dir(opts.FilePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    opts.MaxSize,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAge,
		Compress:   opts.Compress,
	})
	encoder := zapcore.NewJSONEncoder(encoderCfg)
	if opts.Encoding == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewCore(encoder, writer, level), nil
}

func positiveOr(val, fallback int) int {
	if val <= 0 {
		return fallback
	}
	return val
}
