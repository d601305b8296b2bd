/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-09 17:02:32
 * @FilePath: \prompt-studio\backend\internal\infra\common\response.go
 * @LastEditTime: 2025-10-09 19:32:12
 */
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorCode 表示统一的错误码，便于客户端识别失败原因。
type ErrorCode string

const (
	ErrInvalidBody       ErrorCode = "INVALID_BODY"
	ErrInvalidID         ErrorCode = "INVALID_ID"
	ErrInvalidPagination ErrorCode = "INVALID_PAGINATION"
	ErrUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrAuthRequired      ErrorCode = "AUTH_REQUIRED"
	ErrForbidden         ErrorCode = "FORBIDDEN"
	ErrPromptNotFound    ErrorCode = "PROMPT_NOT_FOUND"
	ErrPromptInactive    ErrorCode = "PROMPT_INACTIVE"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrTooManyRequests   ErrorCode = "TOO_MANY_REQUESTS"
	ErrInternal          ErrorCode = "INTERNAL_ERROR"
)

// InternalMessage 是 500 响应的固定文案，避免泄露内部细节。
const InternalMessage = "Internal server error"

// Error 描述错误响应的统一结构。
type Error struct {
	Error string    `json:"error"`
	Code  ErrorCode `json:"code"`
}

// Success 直接输出业务载荷，不额外包裹。
func Success(c *gin.Context, status int, data any) {
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, data)
}

// Created 返回 201 Created 的成功响应。
func Created(c *gin.Context, data any) {
	Success(c, http.StatusCreated, data)
}

// Fail 以 {error, code} 格式返回错误结果。
func Fail(c *gin.Context, status int, code ErrorCode, message string) {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, Error{Error: message, Code: code})
}

// Internal 返回统一的 500 响应。
func Internal(c *gin.Context) {
	Fail(c, http.StatusInternalServerError, ErrInternal, InternalMessage)
}

// Abort 输出错误并中止后续 handler，供中间件使用。
func Abort(c *gin.Context, status int, code ErrorCode, message string) {
	Fail(c, status, code, message)
	c.Abort()
}
