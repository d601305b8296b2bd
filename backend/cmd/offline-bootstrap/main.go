package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"prompt-studio/backend/internal/app"
	"prompt-studio/backend/internal/bootstrapdata"
	"prompt-studio/backend/internal/config"
	"prompt-studio/backend/internal/domain/community"
	"prompt-studio/backend/internal/infra/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	outputPath = flag.String("output", "", "指定生成的 SQLite 文件路径")
	dataDir    = flag.String("data-dir", "", "指定预置数据目录，默认读取 LOCAL_BOOTSTRAP_DATA_DIR")
)

// main 是离线引导工具入口，用于生成带有社区示例数据的本地 SQLite 文件。
func main() {
	flag.Parse()

	if err := os.Setenv("APP_MODE", config.ModeLocal); err != nil {
		panic(fmt.Sprintf("set APP_MODE failed: %v", err))
	}
	if *outputPath != "" {
		if err := os.Setenv("LOCAL_SQLITE_PATH", strings.TrimSpace(*outputPath)); err != nil {
			panic(fmt.Sprintf("set LOCAL_SQLITE_PATH failed: %v", err))
		}
	}

	zapLogger, err := logger.Init()
	if err != nil {
		panic(fmt.Sprintf("init logger failed: %v", err))
	}
	defer logger.Sync()
	sugar := zapLogger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags := config.LoadRuntimeFlags()
	resources, err := app.InitResources(ctx, flags, sugar)
	if err != nil {
		sugar.Fatalw("initialise resources failed", "error", err)
	}
	defer func() {
		if closeErr := resources.Close(); closeErr != nil {
			sugar.Warnw("close resources failed", "error", closeErr)
		}
	}()

	if err := app.Migrate(resources.DB); err != nil {
		sugar.Fatalw("migrate failed", "error", err)
	}
	if _, err := bootstrapdata.SeedCommunity(ctx, resources.DB, bootstrapdata.Options{
		DataDir: strings.TrimSpace(*dataDir),
		Logger:  sugar,
	}); err != nil {
		sugar.Fatalw("seed community data failed", "error", err)
	}

	if err := reportSeedSummary(ctx, resources.DB, sugar); err != nil {
		sugar.Warnw("report seed summary failed", "error", err)
	}
	sugar.Infow("offline database ready", "sqlite_path", flags.Local.DBPath)
}

// reportSeedSummary 统计关键表的记录数，便于调用者确认导入结果。
func reportSeedSummary(ctx context.Context, db *gorm.DB, sugar *zap.SugaredLogger) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	counts := make(map[string]int64, 3)
	for name, model := range map[string]any{
		"shared_prompts": &community.SharedPrompt{},
		"ratings":        &community.PromptRating{},
		"comments":       &community.PromptComment{},
	} {
		var n int64
		if err := db.WithContext(ctx).Model(model).Count(&n).Error; err != nil {
			return fmt.Errorf("count %s: %w", name, err)
		}
		counts[name] = n
	}

	sugar.Infow(
		"seed summary",
		"shared_prompts", counts["shared_prompts"],
		"ratings", counts["ratings"],
		"comments", counts["comments"],
	)
	return nil
}
