package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prompt-studio/backend/internal/app"
	"prompt-studio/backend/internal/bootstrapdata"
	"prompt-studio/backend/internal/config"
	"prompt-studio/backend/internal/domain/user"
	"prompt-studio/backend/internal/infra/token"
	"prompt-studio/backend/internal/repository"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	seedDataDir string
	tokenUserID string
	tokenTTL    time.Duration
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the community tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withResources(cmd.Context(), func(resources *app.Resources) error {
			if err := app.Migrate(resources.DB); err != nil {
				return err
			}
			sugar.Infow("migration finished", "mode", resources.Runtime.Mode)
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import demo users, prompts, ratings and comments into an empty database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		return withResources(ctx, func(resources *app.Resources) error {
			if err := app.Migrate(resources.DB); err != nil {
				return err
			}
			summary, err := bootstrapdata.SeedCommunity(ctx, resources.DB, bootstrapdata.Options{
				DataDir:    seedDataDir,
				ExtraUsers: localUsers(resources.Runtime),
				Logger:     sugar,
			})
			if err != nil {
				return err
			}
			if summary.Skipped {
				fmt.Fprintln(cmd.OutOrStdout(), "database already contains prompts; nothing imported")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d users, %d prompts, %d ratings, %d comments\n",
				summary.Users, summary.Prompts, summary.Ratings, summary.Comments)
			return nil
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed bearer token for an existing user (AUTH_PROVIDER=jwt)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		settings := config.LoadServerSettings()
		if settings.JWTSecret == "" {
			return errors.New("JWT_SECRET is not set")
		}
		if tokenUserID == "" {
			return errors.New("--user is required")
		}
		ttl := settings.JWTTTL
		if tokenTTL > 0 {
			ttl = tokenTTL
		}

		return withResources(ctx, func(resources *app.Resources) error {
			u, err := repository.NewUserRepository(resources.DB).FindByID(ctx, tokenUserID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("user %q not found", tokenUserID)
				}
				return fmt.Errorf("find user: %w", err)
			}
			manager := token.NewJWTManager(settings.JWTSecret, settings.JWTIssuer, ttl)
			signed, expiresAt, err := manager.Issue(token.Subject{
				ID:      u.ID,
				Name:    u.Name,
				Email:   u.Email,
				Picture: u.ImageValue(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			sugar.Infow("token issued", "user_id", u.ID, "expires_at", expiresAt)
			return nil
		})
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedDataDir, "data-dir", "", "directory containing community.json (defaults to LOCAL_BOOTSTRAP_DATA_DIR, then the embedded dataset)")
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "user id to issue the token for")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (defaults to JWT_TTL)")
}

// withResources 连接数据库执行 fn，结束后释放连接。
func withResources(ctx context.Context, fn func(*app.Resources) error) error {
	resources, err := app.InitResources(ctx, config.LoadRuntimeFlags(), sugar)
	if err != nil {
		return fmt.Errorf("initialise resources: %w", err)
	}
	defer func() {
		if closeErr := resources.Close(); closeErr != nil {
			sugar.Warnw("close resources failed", "error", closeErr)
		}
	}()
	return fn(resources)
}

// prepareLocalData 在本地模式下登记离线身份，并向空库导入示例数据。
func prepareLocalData(ctx context.Context, resources *app.Resources) error {
	users := localUsers(resources.Runtime)
	if err := repository.NewUserRepository(resources.DB).EnsureUsers(ctx, users); err != nil {
		return err
	}
	_, err := bootstrapdata.SeedCommunity(ctx, resources.DB, bootstrapdata.Options{
		ExtraUsers: users,
		Logger:     sugar,
	})
	return err
}

// localUsers 返回本地模式的离线用户，线上模式为空。
func localUsers(flags config.RuntimeFlags) []user.User {
	if !flags.IsLocal() {
		return nil
	}
	local := flags.Local
	u := user.User{
		ID:            local.UserID,
		Name:          local.Name,
		Email:         local.Email,
		EmailVerified: true,
	}
	if local.Image != "" {
		image := local.Image
		u.Image = &image
	}
	return []user.User{u}
}
