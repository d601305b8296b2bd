package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"prompt-studio/backend/internal/domain/community"
	response "prompt-studio/backend/internal/infra/common"
	"prompt-studio/backend/internal/infra/ratelimit"
	sharedpromptsvc "prompt-studio/backend/internal/service/sharedprompt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SharedPromptRateLimit 控制分享与评分的频率。
type SharedPromptRateLimit struct {
	Create WriteLimit
	Rate   WriteLimit
}

// SharedPromptHandler 负责社区 Prompt 的列表、详情、分享、删除与评分接口。
type SharedPromptHandler struct {
	service *sharedpromptsvc.Service
	limiter ratelimit.Limiter
	limits  SharedPromptRateLimit
	logger  *zap.SugaredLogger
}

// NewSharedPromptHandler 创建社区 Prompt Handler。
func NewSharedPromptHandler(service *sharedpromptsvc.Service, limiter ratelimit.Limiter, limits SharedPromptRateLimit, logger *zap.SugaredLogger) *SharedPromptHandler {
	return &SharedPromptHandler{
		service: service,
		limiter: limiter,
		limits:  limits,
		logger:  logger,
	}
}

// ensureLogger 确保内部使用的日志记录器已初始化。
func (h *SharedPromptHandler) ensureLogger() *zap.SugaredLogger {
	if h.logger == nil {
		h.logger = zap.NewNop().Sugar()
	}
	return h.logger
}

// scope 为当前操作构造带上下文的日志实例。
func (h *SharedPromptHandler) scope(operation string) *zap.SugaredLogger {
	return h.ensureLogger().With("component", "shared_prompt.handler", "operation", operation)
}

func (h *SharedPromptHandler) guard(operation string) writeGuard {
	return writeGuard{limiter: h.limiter, logger: h.scope(operation)}
}

// List 分页返回上架中的 Prompt，支持 query/sort。
func (h *SharedPromptHandler) List(c *gin.Context) {
	log := h.scope("list")
	page, pageSize := lenientPage(c)
	result, err := h.service.List(c.Request.Context(), sharedpromptsvc.ListParams{
		Query:    c.Query("query"),
		Page:     page,
		PageSize: pageSize,
		Sort:     c.Query("sort"),
	})
	if err != nil {
		log.Errorw("list shared prompts failed", "error", err)
		response.Internal(c)
		return
	}
	items := make([]sharedPromptSummary, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, newSharedPromptSummary(item))
	}
	response.Success(c, http.StatusOK, pagePayload[sharedPromptSummary]{
		Items:    items,
		Page:     result.Page,
		PageSize: result.PageSize,
		Total:    result.Total,
	})
}

// Trending 返回热门 Prompt 的第一页。
func (h *SharedPromptHandler) Trending(c *gin.Context) {
	log := h.scope("trending")
	result, err := h.service.Trending(c.Request.Context())
	if err != nil {
		log.Errorw("list trending prompts failed", "error", err)
		response.Internal(c)
		return
	}
	items := make([]trendingItem, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, newTrendingItem(item))
	}
	response.Success(c, http.StatusOK, pagePayload[trendingItem]{
		Items:    items,
		Page:     result.Page,
		PageSize: result.PageSize,
		Total:    result.Total,
	})
}

// Get 返回 Prompt 详情与最新评论。
func (h *SharedPromptHandler) Get(c *gin.Context) {
	log := h.scope("detail")
	id, ok := parseID(c.Param("id"))
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID, "Valid ID is required")
		return
	}
	detail, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sharedpromptsvc.ErrPromptNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrPromptNotFound, "Prompt not found")
			return
		}
		log.Errorw("get shared prompt failed", "error", err, "prompt_id", id)
		response.Internal(c)
		return
	}
	p := detail.Prompt
	response.Success(c, http.StatusOK, sharedPromptDetail{
		ID:              p.ID,
		Title:           p.Title,
		OriginalText:    p.OriginalText,
		OptimizedPrompt: p.OptimizedPrompt,
		Style:           p.Style,
		Tone:            p.Tone,
		ResponseType:    p.ResponseType,
		Context:         p.Context,
		Author:          newAuthorPayload(p.Author, p.AuthorID),
		AvgRating:       p.AvgRating,
		RatingsCount:    p.RatingsCount,
		CommentsCount:   p.CommentsCount,
		CreatedAt:       formatTimestamp(p.CreatedAt),
		Comments:        newCommentPayloads(detail.Comments),
	})
}

// Create 分享新的 Prompt。字段缺失或类型不符都按缺失处理。
func (h *SharedPromptHandler) Create(c *gin.Context) {
	log := h.scope("create")
	identity, ok := currentIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrAuthRequired, "Authentication required")
		return
	}
	if !h.guard("create").allow(c, "community:create:"+identity.ID, h.limits.Create) {
		return
	}
	body, ok := decodeObject(c)
	if !ok {
		return
	}

	input := sharedpromptsvc.CreateInput{
		AuthorID:        identity.ID,
		Title:           stringValue(stringField(body, "title")),
		OriginalText:    stringValue(stringField(body, "originalText")),
		OptimizedPrompt: stringValue(stringField(body, "optimizedPrompt")),
	}
	if rawOptions, exists := body["options"]; exists {
		var options map[string]json.RawMessage
		if err := json.Unmarshal(rawOptions, &options); err == nil && options != nil {
			input.Options = &community.PromptOptions{
				Style:        stringValue(stringField(options, "style")),
				Tone:         stringValue(stringField(options, "tone")),
				ResponseType: stringValue(stringField(options, "responseType")),
				Context:      stringValue(stringField(options, "context")),
			}
		}
	}

	created, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		var vErr *sharedpromptsvc.ValidationError
		if errors.As(err, &vErr) {
			response.Fail(c, http.StatusBadRequest, response.ErrorCode(vErr.Code), vErr.Message)
			return
		}
		log.Errorw("create shared prompt failed", "error", err, "author_id", identity.ID)
		response.Internal(c)
		return
	}
	response.Created(c, gin.H{"id": created.ID})
}

// Delete 软删除 Prompt，仅作者本人可操作。
func (h *SharedPromptHandler) Delete(c *gin.Context) {
	log := h.scope("delete")
	id, ok := parseID(c.Param("id"))
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID, "Valid ID is required")
		return
	}
	identity, ok := currentIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "Authentication required")
		return
	}
	if err := h.service.Delete(c.Request.Context(), id, identity.ID); err != nil {
		switch {
		case errors.Is(err, sharedpromptsvc.ErrPromptNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrPromptNotFound, "Prompt not found")
		case errors.Is(err, sharedpromptsvc.ErrForbidden):
			response.Fail(c, http.StatusForbidden, response.ErrForbidden, "You are not authorized to delete this prompt")
		default:
			log.Errorw("delete shared prompt failed", "error", err, "prompt_id", id)
			response.Internal(c)
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"success": true,
		"message": "Prompt deleted successfully",
	})
}

// Rate 写入或覆盖当前用户的评分。
func (h *SharedPromptHandler) Rate(c *gin.Context) {
	log := h.scope("rate")
	identity, ok := currentIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "Authentication required")
		return
	}
	id, ok := parseNonZeroID(c.Param("id"))
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID, "Valid prompt ID is required")
		return
	}
	if !h.guard("rate").allow(c, "community:rate:"+identity.ID, h.limits.Rate) {
		return
	}
	body, ok := decodeObject(c)
	if !ok {
		return
	}
	value, err := sharedpromptsvc.ParseRatingValue(body["value"])
	if err != nil {
		var vErr *sharedpromptsvc.ValidationError
		if errors.As(err, &vErr) {
			response.Fail(c, http.StatusBadRequest, response.ErrorCode(vErr.Code), vErr.Message)
			return
		}
		response.Internal(c)
		return
	}

	summary, err := h.service.Rate(c.Request.Context(), sharedpromptsvc.RateInput{
		PromptID: id,
		UserID:   identity.ID,
		Value:    value,
	})
	if err != nil {
		if errors.Is(err, sharedpromptsvc.ErrPromptNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrPromptNotFound, "Prompt not found or inactive")
			return
		}
		log.Errorw("rate shared prompt failed", "error", err, "prompt_id", id, "user_id", identity.ID)
		response.Internal(c)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"avgRating":    summary.AvgRating,
		"ratingsCount": summary.RatingsCount,
		"myRating":     summary.MyRating,
	})
}
