package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"prompt-studio/backend/internal/domain/community"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSharedPromptInactive 表示 Prompt 已被作者下架（软删除）。
var ErrSharedPromptInactive = errors.New("shared prompt inactive")

// SharedPromptListFilter 描述社区列表查询所需的过滤条件。
type SharedPromptListFilter struct {
	Query  string
	Sort   string
	Limit  int
	Offset int
}

// SharedPromptRepository 负责 shared_prompt 表的读写与聚合字段回写。
type SharedPromptRepository struct {
	db *gorm.DB
}

// NewSharedPromptRepository 创建社区 Prompt 仓储。
func NewSharedPromptRepository(db *gorm.DB) *SharedPromptRepository {
	return &SharedPromptRepository{db: db}
}

// List 返回上架中的 Prompt 列表与同条件下的总数。
func (r *SharedPromptRepository) List(ctx context.Context, filter SharedPromptListFilter) ([]community.SharedPrompt, int64, error) {
	query := r.db.WithContext(ctx).Model(&community.SharedPrompt{}).Where("is_active = ?", true)

	if strings.TrimSpace(filter.Query) != "" {
		// 匹配原始输入（不去空白），区分大小写。
		query = query.Where(
			"("+containsExpr(r.db, "title")+" OR "+containsExpr(r.db, "original_text")+")",
			filter.Query, filter.Query,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count shared prompts: %w", err)
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var records []community.SharedPrompt
	if err := applySharedPromptOrder(query, filter.Sort).Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("list shared prompts: %w", err)
	}
	return records, total, nil
}

// applySharedPromptOrder 按排序方式追加 ORDER BY，最后以 created_at、id 兜底保证翻页稳定。
func applySharedPromptOrder(query *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case community.SortNew:
	case community.SortTop:
		query = query.Order("avg_rating DESC").Order("ratings_count DESC")
	default:
		query = query.Order("trending_score DESC")
	}
	return query.Order("created_at DESC").Order("id DESC")
}

// containsExpr 生成区分大小写的子串匹配表达式。
func containsExpr(db *gorm.DB, column string) string {
	if db.Dialector.Name() == "mysql" {
		return "INSTR(BINARY " + column + ", ?) > 0"
	}
	return "instr(" + column + ", ?) > 0"
}

// FindByID 根据 ID 查询 Prompt，不区分上架状态。
func (r *SharedPromptRepository) FindByID(ctx context.Context, id uint) (*community.SharedPrompt, error) {
	var entity community.SharedPrompt
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

// Create 新增社区 Prompt。
func (r *SharedPromptRepository) Create(ctx context.Context, entity *community.SharedPrompt) error {
	if entity == nil {
		return errors.New("shared prompt entity is nil")
	}
	entity.CreatedAt = entity.CreatedAt.UTC()
	entity.UpdatedAt = entity.UpdatedAt.UTC()
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("create shared prompt: %w", err)
	}
	return nil
}

// Deactivate 软删除：仅把 is_active 置为 false，评分与评论保留。
func (r *SharedPromptRepository) Deactivate(ctx context.Context, id uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&community.SharedPrompt{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"is_active":  false,
			"updated_at": at.UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("deactivate shared prompt: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListIDsAfter 以主键游标分页返回 Prompt ID，供聚合校准任务遍历。
func (r *SharedPromptRepository) ListIDsAfter(ctx context.Context, afterID uint, limit int) ([]uint, error) {
	if limit <= 0 {
		limit = 200
	}
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&community.SharedPrompt{}).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list shared prompt ids: %w", err)
	}
	return ids, nil
}

// RecomputeAggregates 从评分、评论明细重新计算聚合字段，不刷新 updated_at。
func (r *SharedPromptRepository) RecomputeAggregates(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockSharedPrompt(tx, id); err != nil {
			return err
		}
		agg, err := ratingAggregate(tx, id)
		if err != nil {
			return err
		}
		var comments int64
		if err := tx.Model(&community.PromptComment{}).Where("prompt_id = ?", id).Count(&comments).Error; err != nil {
			return fmt.Errorf("count prompt comments: %w", err)
		}
		avg := community.RoundRating(agg.AvgValue)
		if err := tx.Model(&community.SharedPrompt{}).
			Where("id = ?", id).
			UpdateColumns(map[string]any{
				"avg_rating":     avg,
				"ratings_count":  agg.Count,
				"trending_score": community.TrendingScore(avg, agg.Count),
				"comments_count": comments,
			}).Error; err != nil {
			return fmt.Errorf("update shared prompt aggregates: %w", err)
		}
		return nil
	})
}

// lockSharedPrompt 在事务内对 Prompt 行加写锁，串行化同一 Prompt 的聚合写入。
// SQLite 方言会忽略 FOR UPDATE，整库写锁已经保证串行。
func lockSharedPrompt(tx *gorm.DB, id uint) (*community.SharedPrompt, error) {
	var entity community.SharedPrompt
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "is_active", "author_id").
		Where("id = ?", id).
		Take(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("lock shared prompt: %w", err)
	}
	return &entity, nil
}

type ratingAggregateRow struct {
	Count    int64
	AvgValue float64
}

// ratingAggregate 统计指定 Prompt 的评分条数与均值。
func ratingAggregate(tx *gorm.DB, promptID uint) (ratingAggregateRow, error) {
	var row ratingAggregateRow
	if err := tx.Model(&community.PromptRating{}).
		Select("COUNT(*) AS count, COALESCE(AVG(value), 0) AS avg_value").
		Where("prompt_id = ?", promptID).
		Scan(&row).Error; err != nil {
		return ratingAggregateRow{}, fmt.Errorf("aggregate prompt ratings: %w", err)
	}
	return row, nil
}
