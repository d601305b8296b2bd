package handler

import (
	"errors"
	"net/http"

	response "prompt-studio/backend/internal/infra/common"
	"prompt-studio/backend/internal/infra/ratelimit"
	promptcommentsvc "prompt-studio/backend/internal/service/promptcomment"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PromptCommentHandler 负责 Prompt 评论相关的 HTTP 接口。
type PromptCommentHandler struct {
	service     *promptcommentsvc.Service
	limiter     ratelimit.Limiter
	createLimit WriteLimit
	logger      *zap.SugaredLogger
}

// NewPromptCommentHandler 创建评论 Handler。
func NewPromptCommentHandler(service *promptcommentsvc.Service, limiter ratelimit.Limiter, createLimit WriteLimit, logger *zap.SugaredLogger) *PromptCommentHandler {
	return &PromptCommentHandler{
		service:     service,
		limiter:     limiter,
		createLimit: createLimit,
		logger:      logger,
	}
}

// ensureLogger 确保内部使用的日志记录器已初始化。
func (h *PromptCommentHandler) ensureLogger() *zap.SugaredLogger {
	if h.logger == nil {
		h.logger = zap.NewNop().Sugar()
	}
	return h.logger
}

// scope 为当前操作构造带上下文的日志实例。
func (h *PromptCommentHandler) scope(operation string) *zap.SugaredLogger {
	return h.ensureLogger().With("component", "prompt_comment.handler", "operation", operation)
}

// List 返回目标 Prompt 的评论列表，最新的在前。
func (h *PromptCommentHandler) List(c *gin.Context) {
	log := h.scope("list")
	promptID, ok := parseNonZeroID(c.Param("id"))
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID, "Valid prompt ID is required")
		return
	}
	page, pageSize, ok := strictPage(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPagination, "Invalid pagination parameters")
		return
	}
	result, err := h.service.List(c.Request.Context(), promptID, page, pageSize)
	if err != nil {
		if errors.Is(err, promptcommentsvc.ErrPromptNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrPromptNotFound, "Prompt not found")
			return
		}
		log.Errorw("list comments failed", "error", err, "prompt_id", promptID)
		response.Internal(c)
		return
	}
	response.Success(c, http.StatusOK, pagePayload[commentPayload]{
		Items:    newCommentPayloads(result.Items),
		Page:     result.Page,
		PageSize: result.PageSize,
		Total:    result.Total,
	})
}

// Create 发表新的评论。
func (h *PromptCommentHandler) Create(c *gin.Context) {
	log := h.scope("create")
	promptID, ok := parseNonZeroID(c.Param("id"))
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID, "Valid prompt ID is required")
		return
	}
	identity, ok := currentIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "Authentication required")
		return
	}
	guard := writeGuard{limiter: h.limiter, logger: log}
	if !guard.allow(c, "community:comment:"+identity.ID, h.createLimit) {
		return
	}
	body, ok := decodeObject(c)
	if !ok {
		return
	}

	comment, err := h.service.Create(c.Request.Context(), promptcommentsvc.CreateInput{
		PromptID: promptID,
		UserID:   identity.ID,
		Content:  stringField(body, "content"),
	})
	if err != nil {
		var vErr *promptcommentsvc.ValidationError
		switch {
		case errors.As(err, &vErr):
			response.Fail(c, http.StatusBadRequest, response.ErrorCode(vErr.Code), vErr.Message)
		case errors.Is(err, promptcommentsvc.ErrPromptNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrPromptNotFound, "Prompt not found")
		case errors.Is(err, promptcommentsvc.ErrPromptInactive):
			response.Fail(c, http.StatusBadRequest, response.ErrPromptInactive, "Prompt is not active")
		default:
			log.Errorw("create comment failed", "error", err, "prompt_id", promptID, "user_id", identity.ID)
			response.Internal(c)
		}
		return
	}
	response.Created(c, newCommentPayload(*comment))
}
