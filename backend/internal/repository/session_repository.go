package repository

import (
	"context"
	"time"

	"prompt-studio/backend/internal/domain/user"

	"gorm.io/gorm"
)

// SessionRepository 只读访问认证服务写入的 session 表。
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建会话仓储。
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindActiveByToken 查找未过期的会话并预加载用户。
// 会话不存在或已过期时返回 gorm.ErrRecordNotFound。
func (r *SessionRepository) FindActiveByToken(ctx context.Context, token string, now time.Time) (*user.Session, error) {
	var sess user.Session
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("token = ? AND expires_at > ?", token, now).
		Take(&sess).Error; err != nil {
		return nil, err
	}
	return &sess, nil
}
