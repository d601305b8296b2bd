package promptcomment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"prompt-studio/backend/internal/domain/community"
	"prompt-studio/backend/internal/domain/user"
	"prompt-studio/backend/internal/infra/metrics"
	"prompt-studio/backend/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrPromptNotFound 表示目标 Prompt 不存在。
	ErrPromptNotFound = errors.New("prompt not found")
	// ErrPromptInactive 表示目标 Prompt 已下架，不再接受评论。
	ErrPromptInactive = errors.New("prompt is not active")
)

// 评论内容校验错误码。
const (
	CodeMissingContent = "MISSING_CONTENT"
	CodeEmptyContent   = "EMPTY_CONTENT"
	CodeContentTooLong = "CONTENT_TOO_LONG"
)

// ValidationError 携带字段级错误码。
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Store 抽象评论的持久化，CreateAndIncrement 需保证写评论与计数加一原子完成。
type Store interface {
	CreateAndIncrement(ctx context.Context, entity *community.PromptComment) error
	List(ctx context.Context, filter repository.PromptCommentListFilter) ([]community.PromptComment, int64, error)
}

// PromptLookup 只用于判断 Prompt 是否存在。
type PromptLookup interface {
	FindByID(ctx context.Context, id uint) (*community.SharedPrompt, error)
}

// UserDirectory 批量读取评论作者。
type UserDirectory interface {
	ListByIDs(ctx context.Context, ids []string) ([]user.User, error)
}

// Service 负责 Prompt 评论的业务逻辑。
type Service struct {
	comments Store
	prompts  PromptLookup
	users    UserDirectory
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewService 创建评论服务实例。
func NewService(comments Store, prompts PromptLookup, users UserDirectory, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		comments: comments,
		prompts:  prompts,
		users:    users,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput 描述发表评论的参数，Content 为 nil 表示请求未携带字符串类型的 content。
type CreateInput struct {
	PromptID uint
	UserID   string
	Content  *string
}

// ListResult 描述评论分页结果。
type ListResult struct {
	Items    []community.PromptComment
	Page     int
	PageSize int
	Total    int64
}

// ValidateContent 校验并返回去除首尾空白的评论内容，空串与缺失同样视为 MISSING_CONTENT。
func ValidateContent(content *string) (string, error) {
	if content == nil || *content == "" {
		return "", &ValidationError{Code: CodeMissingContent, Message: "Content is required"}
	}
	trimmed := strings.TrimSpace(*content)
	if trimmed == "" {
		return "", &ValidationError{Code: CodeEmptyContent, Message: "Content cannot be empty"}
	}
	if utf8.RuneCountInString(trimmed) > community.MaxCommentLength {
		return "", &ValidationError{Code: CodeContentTooLong, Message: "Content must not exceed 1000 characters"}
	}
	return trimmed, nil
}

// Create 写入评论并把 Prompt 的评论数加一，返回带作者信息的评论。
func (s *Service) Create(ctx context.Context, input CreateInput) (*community.PromptComment, error) {
	if input.UserID == "" {
		return nil, errors.New("user id required")
	}
	content, err := ValidateContent(input.Content)
	if err != nil {
		metrics.RecordComment("invalid")
		return nil, err
	}

	entity := &community.PromptComment{
		PromptID:  input.PromptID,
		UserID:    input.UserID,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.comments.CreateAndIncrement(ctx, entity); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			metrics.RecordComment("not_found")
			return nil, ErrPromptNotFound
		case errors.Is(err, repository.ErrSharedPromptInactive):
			metrics.RecordComment("inactive")
			return nil, ErrPromptInactive
		}
		metrics.RecordComment("error")
		return nil, err
	}
	metrics.RecordComment("success")

	if err := s.attachAuthors(ctx, []*community.PromptComment{entity}); err != nil {
		// 评论已落库，作者信息缺失不影响结果。
		s.logger.Warnw("attach comment author failed", "comment_id", entity.ID, "error", err)
		entity.Author = &community.AuthorBrief{ID: entity.UserID}
	}
	s.logger.Infow("prompt comment created", "prompt_id", entity.PromptID, "comment_id", entity.ID, "user_id", entity.UserID)
	return entity, nil
}

// List 分页返回评论，只校验 Prompt 是否存在，已下架的 Prompt 评论仍可读取。
func (s *Service) List(ctx context.Context, promptID uint, page, pageSize int) (*ListResult, error) {
	page, pageSize = community.NormalizePage(page, pageSize)
	if _, err := s.prompts.FindByID(ctx, promptID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("query shared prompt: %w", err)
	}

	items, total, err := s.comments.List(ctx, repository.PromptCommentListFilter{
		PromptID: promptID,
		Limit:    pageSize,
		Offset:   community.Offset(page, pageSize),
	})
	if err != nil {
		return nil, err
	}
	refs := make([]*community.PromptComment, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	if err := s.attachAuthors(ctx, refs); err != nil {
		return nil, err
	}
	return &ListResult{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

func (s *Service) attachAuthors(ctx context.Context, comments []*community.PromptComment) error {
	if len(comments) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(comments))
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		ids = append(ids, c.UserID)
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load comment authors: %w", err)
	}
	byID := make(map[string]user.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for _, c := range comments {
		brief := &community.AuthorBrief{ID: c.UserID}
		if u, ok := byID[c.UserID]; ok {
			brief.Name = u.Name
			brief.Email = u.Email
			brief.Image = u.Image
		}
		c.Author = brief
	}
	return nil
}
