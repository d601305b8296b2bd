package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prompt-studio/backend/internal/domain/community"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PromptRatingRepository 负责评分的写入与聚合回写。
type PromptRatingRepository struct {
	db *gorm.DB
}

// NewPromptRatingRepository 构造评分仓储。
func NewPromptRatingRepository(db *gorm.DB) *PromptRatingRepository {
	return &PromptRatingRepository{db: db}
}

// Upsert 在同一事务内写入评分并重算 Prompt 的均分、评分数与热度分。
// 同一用户重复评分会覆盖 value 与 created_at，(prompt_id, user_id) 唯一索引兜底并发首评。
func (r *PromptRatingRepository) Upsert(ctx context.Context, promptID uint, userID string, value int, at time.Time) (community.RatingSummary, error) {
	if promptID == 0 {
		return community.RatingSummary{}, gorm.ErrRecordNotFound
	}
	if userID == "" {
		return community.RatingSummary{}, errors.New("user id required")
	}
	at = at.UTC()
	var summary community.RatingSummary
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prompt, err := lockSharedPrompt(tx, promptID)
		if err != nil {
			return err
		}
		if !prompt.IsActive {
			return ErrSharedPromptInactive
		}

		rating := community.PromptRating{
			PromptID:  promptID,
			UserID:    userID,
			Value:     value,
			CreatedAt: at,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "prompt_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "created_at"}),
		}).Create(&rating).Error; err != nil {
			return fmt.Errorf("upsert prompt rating: %w", err)
		}

		agg, err := ratingAggregate(tx, promptID)
		if err != nil {
			return err
		}
		avg := community.RoundRating(agg.AvgValue)
		if err := tx.Model(&community.SharedPrompt{}).
			Where("id = ?", promptID).
			UpdateColumns(map[string]any{
				"avg_rating":     avg,
				"ratings_count":  agg.Count,
				"trending_score": community.TrendingScore(avg, agg.Count),
				"updated_at":     at,
			}).Error; err != nil {
			return fmt.Errorf("update rating aggregates: %w", err)
		}

		summary = community.RatingSummary{
			AvgRating:    avg,
			RatingsCount: agg.Count,
			MyRating:     value,
		}
		return nil
	})
	if err != nil {
		return community.RatingSummary{}, err
	}
	return summary, nil
}
