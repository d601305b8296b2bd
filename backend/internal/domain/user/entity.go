/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 20:38:45
 * @FilePath: \prompt-studio\backend\internal\domain\user\entity.go
 * @LastEditTime: 2025-10-21 14:12:09
 */
package user

import "time"

// User 描述外部认证服务维护的用户记录，社区模块只读。
type User struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	Email         string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	EmailVerified bool      `gorm:"not null;default:false" json:"email_verified"`
	Image         *string   `gorm:"size:512" json:"image"` // 头像地址，可为空
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName 与认证服务共用的表名。
func (User) TableName() string {
	return "user"
}

// Session 是认证服务签发的会话，Bearer Token 即 Token 字段。
type Session struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Token     string    `gorm:"size:255;uniqueIndex;not null"`
	UserID    string    `gorm:"size:64;index;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	IPAddress string    `gorm:"size:64"`
	UserAgent string    `gorm:"size:512"`
	CreatedAt time.Time
	UpdatedAt time.Time

	User User `gorm:"constraint:OnDelete:CASCADE"`
}

// TableName 与认证服务共用的表名。
func (Session) TableName() string {
	return "session"
}

// ImageValue 返回头像地址，未设置时为空串。
func (u User) ImageValue() string {
	if u.Image == nil {
		return ""
	}
	return *u.Image
}
