package handler

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"prompt-studio/backend/internal/domain/community"
	response "prompt-studio/backend/internal/infra/common"
	"prompt-studio/backend/internal/infra/ratelimit"
	"prompt-studio/backend/internal/infra/session"
	"prompt-studio/backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 与浏览器 Date.toISOString 一致的毫秒精度 UTC 时间。
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// WriteLimit 描述单个写接口的按用户限流规则，Limit<=0 表示不限流。
type WriteLimit struct {
	Limit  int
	Window time.Duration
}

// writeGuard 封装写接口共用的限流与日志逻辑。
type writeGuard struct {
	limiter ratelimit.Limiter
	logger  *zap.SugaredLogger
}

// allow 结合限流器检查用户是否可以继续执行操作，限流器异常时放行。
func (g writeGuard) allow(c *gin.Context, key string, rule WriteLimit) bool {
	if g.limiter == nil || rule.Limit <= 0 {
		return true
	}
	res, err := g.limiter.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
	if err != nil {
		g.logger.Warnw("rate limiter failed", "error", err, "key", key)
		return true
	}
	if res.Remaining >= 0 {
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	}
	if res.Allowed {
		return true
	}
	retry := int(res.RetryAfter.Seconds())
	if retry < 1 {
		retry = 1
	}
	c.Header("Retry-After", strconv.Itoa(retry))
	response.Fail(c, http.StatusTooManyRequests, response.ErrTooManyRequests, "Too many requests, please try again later")
	return false
}

// currentIdentity 读取鉴权中间件解析出的身份。
func currentIdentity(c *gin.Context) (*session.Identity, bool) {
	identity := middleware.IdentityFrom(c)
	if identity == nil || identity.ID == "" {
		return nil, false
	}
	return identity, true
}

// leadingInt 读取去除空白后的前导整数（可带正负号），忽略其后的字符，
// 例如 "5abc" 得到 5、"2.5" 得到 2。没有任何数字时返回 false，溢出时取极值。
func leadingInt(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	negative := false
	if raw != "" && (raw[0] == '+' || raw[0] == '-') {
		negative = raw[0] == '-'
		raw = raw[1:]
	}
	digits := 0
	for digits < len(raw) && raw[digits] >= '0' && raw[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	value, err := strconv.ParseInt(raw[:digits], 10, 64)
	if err != nil {
		value = math.MaxInt64
	}
	if negative {
		value = -value
	}
	return value, true
}

// parseID 解析路径 ID，没有数字时返回 false。
// 0、负数与超出范围的值解析为 0，后续查询按不存在处理。
func parseID(raw string) (uint, bool) {
	value, ok := leadingInt(raw)
	if !ok {
		return 0, false
	}
	if value <= 0 || value > math.MaxUint32 {
		return 0, true
	}
	return uint(value), true
}

// parseNonZeroID 与 parseID 相同，但字面量 0 视为无效，用于评分与评论接口。
func parseNonZeroID(raw string) (uint, bool) {
	if value, ok := leadingInt(raw); ok && value == 0 {
		return 0, false
	}
	return parseID(raw)
}

// lenientPage 解析列表分页参数，非数字时回落到默认值，显式传入的值会被钳制。
func lenientPage(c *gin.Context) (int, int) {
	page, ok := leadingInt(c.Query("page"))
	if !ok {
		page = 1
	}
	pageSize, ok := leadingInt(c.Query("pageSize"))
	if !ok {
		pageSize = community.DefaultPageSize
	}
	return clampPage(page), community.ClampPageSize(clampInt(pageSize))
}

// strictPage 与 lenientPage 相同，但参数存在且没有前导整数时返回 false。
func strictPage(c *gin.Context) (int, int, bool) {
	page, pageSize := int64(1), int64(community.DefaultPageSize)
	if raw, ok := c.GetQuery("page"); ok && raw != "" {
		parsed, ok := leadingInt(raw)
		if !ok {
			return 0, 0, false
		}
		page = parsed
	}
	if raw, ok := c.GetQuery("pageSize"); ok && raw != "" {
		parsed, ok := leadingInt(raw)
		if !ok {
			return 0, 0, false
		}
		pageSize = parsed
	}
	return clampPage(page), community.ClampPageSize(clampInt(pageSize)), true
}

func clampPage(page int64) int {
	if page < 1 {
		return 1
	}
	return clampInt(page)
}

// clampInt 把 int64 收敛到 int32 范围，避免计算 offset 时溢出。
func clampInt(v int64) int {
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int(v)
}

// decodeObject 把请求体解析为 JSON 对象，字段类型由调用方按需检查。
func decodeObject(c *gin.Context) (map[string]json.RawMessage, bool) {
	var body map[string]json.RawMessage
	decoder := json.NewDecoder(c.Request.Body)
	if err := decoder.Decode(&body); err != nil || body == nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidBody, "Request body must be a JSON object")
		return nil, false
	}
	return body, true
}

// stringField 读取字符串字段，缺失或类型不符时返回 nil。
func stringField(body map[string]json.RawMessage, key string) *string {
	raw, ok := body[key]
	if !ok {
		return nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return nil
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil
	}
	return &value
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// authorPayload 是列表与详情中的作者快照。
type authorPayload struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Image *string `json:"image"`
}

// authorWithEmailPayload 用于 trending 接口，额外带上邮箱。
type authorWithEmailPayload struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Image *string `json:"image"`
}

func newAuthorPayload(author *community.AuthorBrief, fallbackID string) authorPayload {
	if author == nil {
		return authorPayload{ID: fallbackID}
	}
	return authorPayload{ID: author.ID, Name: author.Name, Image: author.Image}
}

// sharedPromptSummary 是列表接口的条目。
type sharedPromptSummary struct {
	ID            uint          `json:"id"`
	Title         string        `json:"title"`
	Style         string        `json:"style"`
	Tone          string        `json:"tone"`
	ResponseType  string        `json:"responseType"`
	Context       string        `json:"context"`
	Author        authorPayload `json:"author"`
	AvgRating     float64       `json:"avgRating"`
	RatingsCount  int64         `json:"ratingsCount"`
	CommentsCount int64         `json:"commentsCount"`
	CreatedAt     string        `json:"createdAt"`
}

func newSharedPromptSummary(p community.SharedPrompt) sharedPromptSummary {
	return sharedPromptSummary{
		ID:            p.ID,
		Title:         p.Title,
		Style:         p.Style,
		Tone:          p.Tone,
		ResponseType:  p.ResponseType,
		Context:       p.Context,
		Author:        newAuthorPayload(p.Author, p.AuthorID),
		AvgRating:     p.AvgRating,
		RatingsCount:  p.RatingsCount,
		CommentsCount: p.CommentsCount,
		CreatedAt:     formatTimestamp(p.CreatedAt),
	}
}

// trendingItem 是 trending 接口的条目，包含完整字段。
type trendingItem struct {
	ID              uint                   `json:"id"`
	Title           string                 `json:"title"`
	OriginalText    string                 `json:"originalText"`
	OptimizedPrompt string                 `json:"optimizedPrompt"`
	Style           string                 `json:"style"`
	Tone            string                 `json:"tone"`
	ResponseType    string                 `json:"responseType"`
	Context         string                 `json:"context"`
	AuthorID        string                 `json:"authorId"`
	CreatedAt       string                 `json:"createdAt"`
	UpdatedAt       string                 `json:"updatedAt"`
	AvgRating       float64                `json:"avgRating"`
	RatingsCount    int64                  `json:"ratingsCount"`
	CommentsCount   int64                  `json:"commentsCount"`
	IsActive        bool                   `json:"isActive"`
	Author          authorWithEmailPayload `json:"author"`
}

func newTrendingItem(p community.SharedPrompt) trendingItem {
	author := authorWithEmailPayload{ID: p.AuthorID}
	if p.Author != nil {
		author = authorWithEmailPayload{ID: p.Author.ID, Name: p.Author.Name, Email: p.Author.Email, Image: p.Author.Image}
	}
	return trendingItem{
		ID:              p.ID,
		Title:           p.Title,
		OriginalText:    p.OriginalText,
		OptimizedPrompt: p.OptimizedPrompt,
		Style:           p.Style,
		Tone:            p.Tone,
		ResponseType:    p.ResponseType,
		Context:         p.Context,
		AuthorID:        p.AuthorID,
		CreatedAt:       formatTimestamp(p.CreatedAt),
		UpdatedAt:       formatTimestamp(p.UpdatedAt),
		AvgRating:       p.AvgRating,
		RatingsCount:    p.RatingsCount,
		CommentsCount:   p.CommentsCount,
		IsActive:        p.IsActive,
		Author:          author,
	}
}

// commentPayload 是评论在各接口中的统一输出格式。
type commentPayload struct {
	ID        uint          `json:"id"`
	Content   string        `json:"content"`
	CreatedAt string        `json:"createdAt"`
	User      authorPayload `json:"user"`
}

func newCommentPayload(c community.PromptComment) commentPayload {
	return commentPayload{
		ID:        c.ID,
		Content:   c.Content,
		CreatedAt: formatTimestamp(c.CreatedAt),
		User:      newAuthorPayload(c.Author, c.UserID),
	}
}

func newCommentPayloads(items []community.PromptComment) []commentPayload {
	out := make([]commentPayload, 0, len(items))
	for _, item := range items {
		out = append(out, newCommentPayload(item))
	}
	return out
}

// sharedPromptDetail 是详情接口的返回值。
type sharedPromptDetail struct {
	ID              uint             `json:"id"`
	Title           string           `json:"title"`
	OriginalText    string           `json:"originalText"`
	OptimizedPrompt string           `json:"optimizedPrompt"`
	Style           string           `json:"style"`
	Tone            string           `json:"tone"`
	ResponseType    string           `json:"responseType"`
	Context         string           `json:"context"`
	Author          authorPayload    `json:"author"`
	AvgRating       float64          `json:"avgRating"`
	RatingsCount    int64            `json:"ratingsCount"`
	CommentsCount   int64            `json:"commentsCount"`
	CreatedAt       string           `json:"createdAt"`
	Comments        []commentPayload `json:"comments"`
}

// pagePayload 是分页接口的统一外层结构。
type pagePayload[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}
