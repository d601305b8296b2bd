package sharedprompt

import (
	"context"
	"errors"

	"prompt-studio/backend/internal/domain/community"
	"prompt-studio/backend/internal/infra/metrics"
	"prompt-studio/backend/internal/repository"

	"gorm.io/gorm"
)

// RateInput 描述一次评分请求。
type RateInput struct {
	PromptID uint
	UserID   string
	Value    int
}

// Rate 写入（或覆盖）用户评分并返回重算后的聚合结果。
// 评分写入与聚合回写由 RatingStore 在同一事务内完成。
func (s *Service) Rate(ctx context.Context, input RateInput) (community.RatingSummary, error) {
	if input.UserID == "" {
		return community.RatingSummary{}, errors.New("user id required")
	}
	if err := validateRatingValue(input.Value); err != nil {
		metrics.RecordRating("invalid")
		return community.RatingSummary{}, err
	}

	summary, err := s.ratings.Upsert(ctx, input.PromptID, input.UserID, input.Value, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, repository.ErrSharedPromptInactive) {
			metrics.RecordRating("not_found")
			return community.RatingSummary{}, ErrPromptNotFound
		}
		metrics.RecordRating("error")
		return community.RatingSummary{}, err
	}
	metrics.RecordRating("success")
	s.logger.Debugw("prompt rated",
		"prompt_id", input.PromptID,
		"user_id", input.UserID,
		"value", input.Value,
		"avg_rating", summary.AvgRating,
		"ratings_count", summary.RatingsCount,
	)
	return summary, nil
}
