package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"prompt-studio/backend/internal/config"

	"go.uber.org/zap/zapcore"
)

func TestLoadOptionsFromEnv(t *testing.T) {
	config.SetEnvFileLoadingForTest(false)
	t.Cleanup(func() { config.SetEnvFileLoadingForTest(true) })

	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_ENCODING", "")
	t.Setenv("LOG_FILE", "OFF")
	t.Setenv("LOG_MAX_SIZE", "-3")
	t.Setenv("LOG_MAX_BACKUPS", "9")
	t.Setenv("LOG_MAX_AGE", "")
	t.Setenv("LOG_COMPRESS", "false")
	t.Setenv("LOG_SERVICE", "")
	t.Setenv("LOG_CONSOLE", "0")

	opts := loadOptionsFromEnv()
	want := Options{Service: "prompt-studio", Level: "debug", Encoding: "json", FilePath: "", MaxSize: 20, MaxBackups: 9, MaxAge: 15, Compress: false, Console: false}
	if opts != want {
		t.Fatalf("unexpected options:\n got %+v\nwant %+v", opts, want)
	}
}

func TestBuildLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, err := New(Options{Service: "prompt-studio", Level: "info", Encoding: "json", FilePath: path, MaxSize: 1, MaxBackups: 1, MaxAge: 1})
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	logger.Sugar().Infow("community seed imported", "prompts", 5)
	logger.Debug("dropped below level")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, `"msg":"community seed imported"`) || !strings.Contains(content, `"prompts":5`) || !strings.Contains(content, `"service":"prompt-studio"`) {
		t.Fatalf("unexpected log content: %s", content)
	}
	if strings.Contains(content, "dropped below level") {
		t.Fatalf("debug entry should be filtered: %s", content)
	}

	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestNewWithoutOutputsIsNop(t *testing.T) {
	logger, err := New(Options{Level: "info"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatal("expected a no-op logger when every output is disabled")
	}
}
