package sharedprompt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prompt-studio/backend/internal/domain/community"
	"prompt-studio/backend/internal/domain/user"
	"prompt-studio/backend/internal/infra/metrics"
	"prompt-studio/backend/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrPromptNotFound 表示 Prompt 不存在或已下架。
var ErrPromptNotFound = errors.New("prompt not found")

// ErrForbidden 表示当前用户不是 Prompt 作者。
var ErrForbidden = errors.New("you are not authorized to delete this prompt")

// Store 抽象 shared_prompt 表的读写，GORM 仓储与测试替身均可注入。
type Store interface {
	List(ctx context.Context, filter repository.SharedPromptListFilter) ([]community.SharedPrompt, int64, error)
	FindByID(ctx context.Context, id uint) (*community.SharedPrompt, error)
	Create(ctx context.Context, entity *community.SharedPrompt) error
	Deactivate(ctx context.Context, id uint, at time.Time) error
	ListIDsAfter(ctx context.Context, afterID uint, limit int) ([]uint, error)
	RecomputeAggregates(ctx context.Context, id uint) error
}

// RatingStore 抽象评分写入，要求写入与聚合回写是原子的。
type RatingStore interface {
	Upsert(ctx context.Context, promptID uint, userID string, value int, at time.Time) (community.RatingSummary, error)
}

// CommentReader 提供详情页需要的最新评论。
type CommentReader interface {
	ListRecent(ctx context.Context, promptID uint, limit int) ([]community.PromptComment, error)
}

// AuthorDirectory 按 ID 批量读取用户，用于拼接作者快照。
type AuthorDirectory interface {
	ListByIDs(ctx context.Context, ids []string) ([]user.User, error)
}

// Config 描述社区 Prompt 服务的可配置参数。
type Config struct {
	Reconcile ReconcileConfig
}

// Service 封装社区 Prompt 的列表、详情、分享、下架与评分逻辑。
type Service struct {
	prompts      Store
	ratings      RatingStore
	comments     CommentReader
	authors      AuthorDirectory
	logger       *zap.SugaredLogger
	redis        *redis.Client
	reconcileCfg ReconcileConfig
	lockValue    string
	now          func() time.Time
}

// NewService 创建社区 Prompt 服务，redisClient 为空时校准任务不加分布式锁。
func NewService(prompts Store, ratings RatingStore, comments CommentReader, authors AuthorDirectory, logger *zap.SugaredLogger, cfg Config, redisClient *redis.Client) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		prompts:      prompts,
		ratings:      ratings,
		comments:     comments,
		authors:      authors,
		logger:       logger,
		redis:        redisClient,
		reconcileCfg: normaliseReconcileConfig(cfg.Reconcile),
		lockValue:    uuid.NewString(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ListParams 描述列表查询参数，Page/PageSize 为 0 时取默认值。
type ListParams struct {
	Query    string
	Page     int
	PageSize int
	Sort     string
}

// ListResult 描述列表查询的返回值。
type ListResult struct {
	Items    []community.SharedPrompt
	Page     int
	PageSize int
	Total    int64
}

// Detail 是详情页数据：Prompt 本体加最新评论。
type Detail struct {
	Prompt   community.SharedPrompt
	Comments []community.PromptComment
}

// NormalizeSort 未识别的排序方式一律按 trending 处理。
func NormalizeSort(sort string) string {
	switch sort {
	case community.SortNew, community.SortTop:
		return sort
	default:
		return community.SortTrending
	}
}

// List 返回上架中的 Prompt 分页列表。
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	page, pageSize := community.NormalizePage(params.Page, params.PageSize)
	sort := NormalizeSort(params.Sort)
	started := time.Now()
	defer func() { metrics.ObserveList(sort, time.Since(started)) }()

	items, total, err := s.prompts.List(ctx, repository.SharedPromptListFilter{
		Query:  params.Query,
		Sort:   sort,
		Limit:  pageSize,
		Offset: community.Offset(page, pageSize),
	})
	if err != nil {
		return nil, err
	}
	if err := s.attachAuthors(ctx, items); err != nil {
		return nil, err
	}
	return &ListResult{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

// Trending 返回固定第一页的热门 Prompt。
func (s *Service) Trending(ctx context.Context) (*ListResult, error) {
	return s.List(ctx, ListParams{
		Page:     1,
		PageSize: community.TrendingSize,
		Sort:     community.SortTrending,
	})
}

// Get 返回上架中的 Prompt 详情与最新评论。
func (s *Service) Get(ctx context.Context, id uint) (*Detail, error) {
	entity, err := s.findPrompt(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entity.IsActive {
		return nil, ErrPromptNotFound
	}
	comments, err := s.comments.ListRecent(ctx, id, community.RecentComments)
	if err != nil {
		return nil, fmt.Errorf("list recent comments: %w", err)
	}

	authors, err := s.loadAuthors(ctx, collectAuthorIDs(entity.AuthorID, comments))
	if err != nil {
		return nil, err
	}
	entity.Author = authorBrief(authors, entity.AuthorID)
	for i := range comments {
		comments[i].Author = authorBrief(authors, comments[i].UserID)
	}
	return &Detail{Prompt: *entity, Comments: comments}, nil
}

// CreateInput 描述分享 Prompt 的入参，Options 为 nil 表示请求未携带 options 对象。
type CreateInput struct {
	AuthorID        string
	Title           string
	OriginalText    string
	OptimizedPrompt string
	Options         *community.PromptOptions
}

// Create 校验并写入新的社区 Prompt，聚合字段从零开始。
func (s *Service) Create(ctx context.Context, input CreateInput) (*community.SharedPrompt, error) {
	if input.AuthorID == "" {
		return nil, errors.New("author id required")
	}
	cleaned, err := validateCreateInput(input)
	if err != nil {
		metrics.RecordShare("invalid")
		return nil, err
	}
	now := s.now()
	entity := &community.SharedPrompt{
		Title:           cleaned.Title,
		OriginalText:    cleaned.OriginalText,
		OptimizedPrompt: cleaned.OptimizedPrompt,
		Style:           cleaned.Options.Style,
		Tone:            cleaned.Options.Tone,
		ResponseType:    cleaned.Options.ResponseType,
		Context:         cleaned.Options.Context,
		AuthorID:        input.AuthorID,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.prompts.Create(ctx, entity); err != nil {
		metrics.RecordShare("error")
		return nil, err
	}
	metrics.RecordShare("success")
	s.logger.Infow("shared prompt created", "prompt_id", entity.ID, "author_id", input.AuthorID)
	return entity, nil
}

// Delete 软删除 Prompt，仅作者本人可操作；已下架的 Prompt 再次删除同样视为成功。
func (s *Service) Delete(ctx context.Context, id uint, requesterID string) error {
	entity, err := s.findPrompt(ctx, id)
	if err != nil {
		metrics.RecordDelete("not_found")
		return err
	}
	if entity.AuthorID != requesterID {
		metrics.RecordDelete("forbidden")
		return ErrForbidden
	}
	if err := s.prompts.Deactivate(ctx, id, s.now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.RecordDelete("not_found")
			return ErrPromptNotFound
		}
		metrics.RecordDelete("error")
		return err
	}
	metrics.RecordDelete("success")
	s.logger.Infow("shared prompt deactivated", "prompt_id", id, "author_id", requesterID)
	return nil
}

// findPrompt 读取 Prompt（不区分上架状态），统一映射不存在错误。
func (s *Service) findPrompt(ctx context.Context, id uint) (*community.SharedPrompt, error) {
	entity, err := s.prompts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("query shared prompt: %w", err)
	}
	return entity, nil
}

// attachAuthors 批量读取作者并回填列表项。
func (s *Service) attachAuthors(ctx context.Context, items []community.SharedPrompt) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.AuthorID)
	}
	authors, err := s.loadAuthors(ctx, ids)
	if err != nil {
		return err
	}
	for i := range items {
		items[i].Author = authorBrief(authors, items[i].AuthorID)
	}
	return nil
}

func (s *Service) loadAuthors(ctx context.Context, ids []string) (map[string]user.User, error) {
	unique := dedupe(ids)
	if len(unique) == 0 || s.authors == nil {
		return map[string]user.User{}, nil
	}
	users, err := s.authors.ListByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("load authors: %w", err)
	}
	result := make(map[string]user.User, len(users))
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

// authorBrief 作者记录缺失时仅保留 ID。
func authorBrief(authors map[string]user.User, id string) *community.AuthorBrief {
	u, ok := authors[id]
	if !ok {
		return &community.AuthorBrief{ID: id}
	}
	return &community.AuthorBrief{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Image: u.Image,
	}
}

func collectAuthorIDs(authorID string, comments []community.PromptComment) []string {
	ids := make([]string, 0, len(comments)+1)
	ids = append(ids, authorID)
	for _, c := range comments {
		ids = append(ids, c.UserID)
	}
	return ids
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
