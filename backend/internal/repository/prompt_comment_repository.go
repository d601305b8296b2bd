package repository

import (
	"context"
	"errors"
	"fmt"

	"prompt-studio/backend/internal/domain/community"

	"gorm.io/gorm"
)

// PromptCommentListFilter 描述评论分页查询的条件。
type PromptCommentListFilter struct {
	PromptID uint
	Limit    int
	Offset   int
}

// PromptCommentRepository 负责评论的持久化操作。
type PromptCommentRepository struct {
	db *gorm.DB
}

// NewPromptCommentRepository 构造评论仓储。
func NewPromptCommentRepository(db *gorm.DB) *PromptCommentRepository {
	return &PromptCommentRepository{db: db}
}

// CreateAndIncrement 写入评论并把 comments_count 原子加一，两步在同一事务内完成。
// Prompt 不存在返回 gorm.ErrRecordNotFound，已下架返回 ErrSharedPromptInactive。
func (r *PromptCommentRepository) CreateAndIncrement(ctx context.Context, entity *community.PromptComment) error {
	if entity == nil {
		return errors.New("comment entity is nil")
	}
	entity.CreatedAt = entity.CreatedAt.UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prompt, err := lockSharedPrompt(tx, entity.PromptID)
		if err != nil {
			return err
		}
		if !prompt.IsActive {
			return ErrSharedPromptInactive
		}
		if err := tx.Create(entity).Error; err != nil {
			return fmt.Errorf("create prompt comment: %w", err)
		}
		if err := tx.Model(&community.SharedPrompt{}).
			Where("id = ?", entity.PromptID).
			UpdateColumns(map[string]any{
				"comments_count": gorm.Expr("comments_count + 1"),
				"updated_at":     entity.CreatedAt,
			}).Error; err != nil {
			return fmt.Errorf("increment comments count: %w", err)
		}
		return nil
	})
}

// List 按时间倒序分页返回评论及总数。
func (r *PromptCommentRepository) List(ctx context.Context, filter PromptCommentListFilter) ([]community.PromptComment, int64, error) {
	query := r.db.WithContext(ctx).Model(&community.PromptComment{}).Where("prompt_id = ?", filter.PromptID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count prompt comments: %w", err)
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var comments []community.PromptComment
	if err := query.Order("created_at DESC").Order("id DESC").Find(&comments).Error; err != nil {
		return nil, 0, fmt.Errorf("list prompt comments: %w", err)
	}
	return comments, total, nil
}

// ListRecent 返回最新的 limit 条评论，用于详情页。
func (r *PromptCommentRepository) ListRecent(ctx context.Context, promptID uint, limit int) ([]community.PromptComment, error) {
	comments, _, err := r.List(ctx, PromptCommentListFilter{PromptID: promptID, Limit: limit})
	if err != nil {
		return nil, err
	}
	return comments, nil
}
