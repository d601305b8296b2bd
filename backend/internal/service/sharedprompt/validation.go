package sharedprompt

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"unicode/utf8"

	"prompt-studio/backend/internal/domain/community"
)

// 校验失败时返回给客户端的错误码。
const (
	CodeMissingTitle           = "MISSING_TITLE"
	CodeTitleTooLong           = "TITLE_TOO_LONG"
	CodeMissingOriginalText    = "MISSING_ORIGINAL_TEXT"
	CodeOriginalTextTooLong    = "ORIGINAL_TEXT_TOO_LONG"
	CodeMissingOptimizedPrompt = "MISSING_OPTIMIZED_PROMPT"
	CodeOptimizedPromptTooLong = "OPTIMIZED_PROMPT_TOO_LONG"
	CodeMissingOptions         = "MISSING_OPTIONS"
	CodeMissingStyle           = "MISSING_STYLE"
	CodeMissingTone            = "MISSING_TONE"
	CodeMissingResponseType    = "MISSING_RESPONSE_TYPE"
	CodeMissingContext         = "MISSING_CONTEXT"
	CodeMissingValue           = "MISSING_VALUE"
	CodeInvalidValue           = "INVALID_VALUE"
)

// ValidationError 携带字段级错误码，handler 据此返回 400。
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

// validateCreateInput 按字段顺序校验并返回去除首尾空白后的输入，遇到第一个错误即返回。
func validateCreateInput(input CreateInput) (CreateInput, error) {
	out := CreateInput{AuthorID: input.AuthorID}

	out.Title = strings.TrimSpace(input.Title)
	if out.Title == "" {
		return CreateInput{}, invalid(CodeMissingTitle, "Title is required")
	}
	if utf8.RuneCountInString(out.Title) > community.MaxTitleLength {
		return CreateInput{}, invalid(CodeTitleTooLong, "Title must be 200 characters or less")
	}

	out.OriginalText = strings.TrimSpace(input.OriginalText)
	if out.OriginalText == "" {
		return CreateInput{}, invalid(CodeMissingOriginalText, "Original text is required")
	}
	if utf8.RuneCountInString(out.OriginalText) > community.MaxOriginalTextLength {
		return CreateInput{}, invalid(CodeOriginalTextTooLong, "Original text must be 2000 characters or less")
	}

	out.OptimizedPrompt = strings.TrimSpace(input.OptimizedPrompt)
	if out.OptimizedPrompt == "" {
		return CreateInput{}, invalid(CodeMissingOptimizedPrompt, "Optimized prompt is required")
	}
	if utf8.RuneCountInString(out.OptimizedPrompt) > community.MaxOptimizedPromptLength {
		return CreateInput{}, invalid(CodeOptimizedPromptTooLong, "Optimized prompt must be 5000 characters or less")
	}

	if input.Options == nil {
		return CreateInput{}, invalid(CodeMissingOptions, "Options object is required")
	}
	opts := community.PromptOptions{
		Style:        strings.TrimSpace(input.Options.Style),
		Tone:         strings.TrimSpace(input.Options.Tone),
		ResponseType: strings.TrimSpace(input.Options.ResponseType),
		Context:      strings.TrimSpace(input.Options.Context),
	}
	switch {
	case opts.Style == "":
		return CreateInput{}, invalid(CodeMissingStyle, "Style is required in options")
	case opts.Tone == "":
		return CreateInput{}, invalid(CodeMissingTone, "Tone is required in options")
	case opts.ResponseType == "":
		return CreateInput{}, invalid(CodeMissingResponseType, "Response type is required in options")
	case opts.Context == "":
		return CreateInput{}, invalid(CodeMissingContext, "Context is required in options")
	}
	out.Options = &opts
	return out, nil
}

// ParseRatingValue 解析请求体中的原始 value：缺失或 null 为 MISSING_VALUE，
// 非数字、非整数或不在 [1,5] 内为 INVALID_VALUE。5.0 这类整值浮点视为合法。
func ParseRatingValue(raw json.RawMessage) (int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, invalid(CodeMissingValue, "Rating value is required")
	}
	var number float64
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return 0, invalid(CodeInvalidValue, "Rating value must be an integer between 1 and 5")
	}
	if number != math.Trunc(number) ||
		number < community.MinRatingValue || number > community.MaxRatingValue {
		return 0, invalid(CodeInvalidValue, "Rating value must be an integer between 1 and 5")
	}
	return int(number), nil
}

func validateRatingValue(value int) error {
	if value < community.MinRatingValue || value > community.MaxRatingValue {
		return invalid(CodeInvalidValue, "Rating value must be an integer between 1 and 5")
	}
	return nil
}
