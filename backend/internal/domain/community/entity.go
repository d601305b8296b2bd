package community

import "time"

// 字段长度上限，按去除首尾空白后的字符数计算。
const (
	MaxTitleLength           = 200
	MaxOriginalTextLength    = 2000
	MaxOptimizedPromptLength = 5000
	MaxCommentLength         = 1000
	MinRatingValue           = 1
	MaxRatingValue           = 5
)

// 列表排序方式。
const (
	SortTrending = "trending"
	SortNew      = "new"
	SortTop      = "top"
)

// SharedPrompt 描述社区中分享的一条 Prompt，聚合字段由评分/评论写入时维护。
type SharedPrompt struct {
	ID              uint      `gorm:"primaryKey"`
	Title           string    `gorm:"size:200;not null"`
	OriginalText    string    `gorm:"column:original_text;type:text;not null"`
	OptimizedPrompt string    `gorm:"column:optimized_prompt;type:text;not null"`
	Style           string    `gorm:"size:64;not null"`
	Tone            string    `gorm:"size:64;not null"`
	ResponseType    string    `gorm:"column:response_type;size:64;not null"`
	Context         string    `gorm:"size:128;not null"`
	AuthorID        string    `gorm:"column:author_id;size:64;not null;index:idx_shared_prompt_author"`
	AvgRating       float64   `gorm:"column:avg_rating;not null;default:0"`
	RatingsCount    int64     `gorm:"column:ratings_count;not null;default:0"`
	CommentsCount   int64     `gorm:"column:comments_count;not null;default:0"`
	TrendingScore   float64   `gorm:"column:trending_score;not null;default:0;index:idx_shared_prompt_trending"`
	IsActive        bool      `gorm:"column:is_active;not null;default:true;index:idx_shared_prompt_active_created,priority:1"`
	CreatedAt       time.Time `gorm:"column:created_at;index:idx_shared_prompt_active_created,priority:2"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`

	Author *AuthorBrief `gorm:"-"`
}

// TableName 返回对应的表名。
func (SharedPrompt) TableName() string {
	return "shared_prompt"
}

// PromptRating 记录某个用户对 Prompt 的评分，(prompt_id, user_id) 唯一。
type PromptRating struct {
	ID        uint      `gorm:"primaryKey"`
	PromptID  uint      `gorm:"column:prompt_id;not null;uniqueIndex:idx_prompt_rating_prompt_user,priority:1"`
	UserID    string    `gorm:"column:user_id;size:64;not null;uniqueIndex:idx_prompt_rating_prompt_user,priority:2"`
	Value     int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"column:created_at"`

	Prompt *SharedPrompt `gorm:"foreignKey:PromptID;constraint:OnDelete:CASCADE"`
}

// TableName 返回对应的表名。
func (PromptRating) TableName() string {
	return "prompt_rating"
}

// PromptComment 是只追加的评论记录。
type PromptComment struct {
	ID        uint      `gorm:"primaryKey"`
	PromptID  uint      `gorm:"column:prompt_id;not null;index:idx_prompt_comment_prompt_created,priority:1"`
	UserID    string    `gorm:"column:user_id;size:64;not null;index"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;index:idx_prompt_comment_prompt_created,priority:2"`

	Prompt *SharedPrompt `gorm:"foreignKey:PromptID;constraint:OnDelete:CASCADE"`
	Author *AuthorBrief  `gorm:"-"`
}

// TableName 返回对应的表名。
func (PromptComment) TableName() string {
	return "prompt_comment"
}

// AuthorBrief 是读取时拼接的作者快照，不落库。
type AuthorBrief struct {
	ID    string
	Name  string
	Email string
	Image *string
}

// PromptOptions 是创建 Prompt 时附带的生成参数。
type PromptOptions struct {
	Style        string
	Tone         string
	ResponseType string
	Context      string
}

// RatingSummary 是一次评分写入后的聚合结果。
type RatingSummary struct {
	AvgRating    float64
	RatingsCount int64
	MyRating     int
}
