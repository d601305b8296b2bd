package bootstrapdata

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"prompt-studio/backend/internal/domain/community"
	"prompt-studio/backend/internal/domain/user"
	"prompt-studio/backend/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	envDataDir        = "LOCAL_BOOTSTRAP_DATA_DIR"
	communityFilename = "community.json"
)

//go:embed seed/community.json
var embeddedCommunity []byte

// Options 描述预置数据导入所需的可选参数。
type Options struct {
	// DataDir 下存在 community.json 时优先使用，否则回落到内置数据。
	DataDir string
	// ExtraUsers 额外写入的用户，本地模式下用于登记离线身份。
	ExtraUsers []user.User
	Logger     *zap.SugaredLogger
	// Now 用于换算相对时间，为空时取当前时间。
	Now func() time.Time
}

// Dataset 是社区预置数据的文件格式。
type Dataset struct {
	Users    []userSeed    `json:"users"`
	Prompts  []promptSeed  `json:"prompts"`
	Ratings  []ratingSeed  `json:"ratings"`
	Comments []commentSeed `json:"comments"`
}

type userSeed struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Image *string `json:"image"`
}

type promptSeed struct {
	Title           string `json:"title"`
	OriginalText    string `json:"originalText"`
	OptimizedPrompt string `json:"optimizedPrompt"`
	Style           string `json:"style"`
	Tone            string `json:"tone"`
	ResponseType    string `json:"responseType"`
	Context         string `json:"context"`
	AuthorID        string `json:"authorId"`
	DaysAgo         int    `json:"daysAgo"`
}

// ratingSeed 与 commentSeed 中的 Prompt 为 prompts 数组下标（从 1 开始）。
type ratingSeed struct {
	Prompt   int     `json:"prompt"`
	UserID   string  `json:"userId"`
	Value    int     `json:"value"`
	HoursAgo float64 `json:"hoursAgo"`
}

type commentSeed struct {
	Prompt    int       `json:"prompt"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summary 统计一次导入写入的记录数。
type Summary struct {
	Skipped  bool
	Users    int
	Prompts  int
	Ratings  int
	Comments int
}

// ResolveDataDir 解析预置数据所在目录，未配置时返回空串表示使用内置数据。
func ResolveDataDir() string {
	return strings.TrimSpace(os.Getenv(envDataDir))
}

// LoadDataset 读取预置数据：目录中的 community.json 优先，缺失时使用内置副本。
func LoadDataset(dataDir string) (*Dataset, string, error) {
	raw := embeddedCommunity
	source := "embedded"
	if dataDir != "" {
		path := filepath.Join(dataDir, communityFilename)
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			raw, source = data, path
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, "", fmt.Errorf("read community seed: %w", err)
		}
	}

	var dataset Dataset
	if err := json.Unmarshal(raw, &dataset); err != nil {
		return nil, "", fmt.Errorf("decode community seed %s: %w", source, err)
	}
	if err := dataset.validate(); err != nil {
		return nil, "", fmt.Errorf("invalid community seed %s: %w", source, err)
	}
	return &dataset, source, nil
}

func (d *Dataset) validate() error {
	for i, r := range d.Ratings {
		if r.Prompt < 1 || r.Prompt > len(d.Prompts) {
			return fmt.Errorf("rating %d references unknown prompt %d", i, r.Prompt)
		}
		if r.Value < community.MinRatingValue || r.Value > community.MaxRatingValue {
			return fmt.Errorf("rating %d has value %d out of range", i, r.Value)
		}
	}
	for i, c := range d.Comments {
		if c.Prompt < 1 || c.Prompt > len(d.Prompts) {
			return fmt.Errorf("comment %d references unknown prompt %d", i, c.Prompt)
		}
	}
	return nil
}

// SeedCommunity 向空的社区表写入示例用户、Prompt、评分与评论，
// 已有任意 Prompt 时整体跳过。写入完成后按明细重新计算聚合字段。
func SeedCommunity(ctx context.Context, db *gorm.DB, opts Options) (Summary, error) {
	if db == nil {
		return Summary{}, errors.New("db is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	now := time.Now().UTC()
	if opts.Now != nil {
		now = opts.Now().UTC()
	}

	var existing int64
	if err := db.WithContext(ctx).Model(&community.SharedPrompt{}).Count(&existing).Error; err != nil {
		return Summary{}, fmt.Errorf("count shared prompts: %w", err)
	}
	if existing > 0 {
		logger.Infow("community tables not empty, skip seeding", "prompts", existing)
		return Summary{Skipped: true}, nil
	}

	if opts.DataDir == "" {
		opts.DataDir = ResolveDataDir()
	}
	dataset, source, err := LoadDataset(opts.DataDir)
	if err != nil {
		return Summary{}, err
	}

	users := make([]user.User, 0, len(dataset.Users)+len(opts.ExtraUsers))
	for _, u := range dataset.Users {
		users = append(users, user.User{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image, EmailVerified: true})
	}
	users = append(users, opts.ExtraUsers...)

	summary := Summary{Users: len(users)}
	promptIDs := make([]uint, len(dataset.Prompts))

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewUserRepository(tx).EnsureUsers(ctx, users); err != nil {
			return err
		}

		prompts := repository.NewSharedPromptRepository(tx)
		for i, item := range dataset.Prompts {
			createdAt := now.AddDate(0, 0, -item.DaysAgo)
			entity := &community.SharedPrompt{
				Title:           item.Title,
				OriginalText:    item.OriginalText,
				OptimizedPrompt: item.OptimizedPrompt,
				Style:           item.Style,
				Tone:            item.Tone,
				ResponseType:    item.ResponseType,
				Context:         item.Context,
				AuthorID:        item.AuthorID,
				IsActive:        true,
				CreatedAt:       createdAt,
				UpdatedAt:       createdAt,
			}
			if err := prompts.Create(ctx, entity); err != nil {
				return fmt.Errorf("seed prompt %q: %w", item.Title, err)
			}
			promptIDs[i] = entity.ID
		}
		summary.Prompts = len(dataset.Prompts)

		if len(dataset.Ratings) > 0 {
			ratings := make([]community.PromptRating, 0, len(dataset.Ratings))
			for _, item := range dataset.Ratings {
				ratings = append(ratings, community.PromptRating{
					PromptID:  promptIDs[item.Prompt-1],
					UserID:    item.UserID,
					Value:     item.Value,
					CreatedAt: now.Add(-time.Duration(item.HoursAgo * float64(time.Hour))),
				})
			}
			if err := tx.CreateInBatches(&ratings, 100).Error; err != nil {
				return fmt.Errorf("seed ratings: %w", err)
			}
			summary.Ratings = len(ratings)
		}

		if len(dataset.Comments) > 0 {
			comments := make([]community.PromptComment, 0, len(dataset.Comments))
			for _, item := range dataset.Comments {
				createdAt := item.CreatedAt.UTC()
				if createdAt.IsZero() {
					createdAt = now
				}
				comments = append(comments, community.PromptComment{
					PromptID:  promptIDs[item.Prompt-1],
					UserID:    item.UserID,
					Content:   item.Content,
					CreatedAt: createdAt,
				})
			}
			if err := tx.CreateInBatches(&comments, 100).Error; err != nil {
				return fmt.Errorf("seed comments: %w", err)
			}
			summary.Comments = len(comments)
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	// 聚合字段统一由仓储按明细重算，与运行期对账逻辑保持一致。
	repo := repository.NewSharedPromptRepository(db)
	for _, id := range promptIDs {
		if err := repo.RecomputeAggregates(ctx, id); err != nil {
			return summary, fmt.Errorf("recompute aggregates for prompt %d: %w", id, err)
		}
	}

	logger.Infow("community seed imported",
		"source", source,
		"users", summary.Users,
		"prompts", summary.Prompts,
		"ratings", summary.Ratings,
		"comments", summary.Comments,
	)
	return summary, nil
}
