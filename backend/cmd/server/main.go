/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 19:55:11
 * @FilePath: \prompt-studio\backend\cmd\server\main.go
 * @LastEditTime: 2025-10-22 17:02:31
 */
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prompt-studio/backend/internal/app"
	"prompt-studio/backend/internal/bootstrap"
	"prompt-studio/backend/internal/config"
	"prompt-studio/backend/internal/infra/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	sugar       *zap.SugaredLogger
	autoMigrate bool
)

var rootCmd = &cobra.Command{
	Use:           "prompt-studio",
	Short:         "Prompt Studio community backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapLogger, err := logger.Init()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		sugar = zapLogger.Sugar()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	// 不带子命令时等同于 serve。
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the aggregate reconcile worker",
	RunE:  runServe,
}

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "run AutoMigrate before serving (always on in local mode)")
	}
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, tokenCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// runServe 启动 HTTP 服务与聚合校准任务，收到退出信号后优雅关闭。
func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	flags := config.LoadRuntimeFlags()
	settings := config.LoadServerSettings()

	resources, err := app.InitResources(ctx, flags, sugar)
	if err != nil {
		return fmt.Errorf("initialise resources: %w", err)
	}
	defer func() {
		if closeErr := resources.Close(); closeErr != nil {
			sugar.Warnw("close resources failed", "error", closeErr)
		}
	}()

	if flags.IsLocal() || autoMigrate {
		if err := app.Migrate(resources.DB); err != nil {
			return err
		}
	}
	if flags.IsLocal() {
		if err := prepareLocalData(ctx, resources); err != nil {
			return err
		}
	}

	application, err := bootstrap.BuildApplication(ctx, sugar, resources, settings)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort("", settings.Port),
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		sugar.Infow("http server listening", "addr", srv.Addr, "mode", flags.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		sugar.Infow("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		return application.SharedPrompts.StartReconcileWorker(groupCtx)
	})

	if err := group.Wait(); err != nil {
		return err
	}
	sugar.Infow("server stopped")
	return nil
}
