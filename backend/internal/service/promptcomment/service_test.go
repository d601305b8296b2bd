package promptcomment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"prompt-studio/backend/internal/domain/community"
	"prompt-studio/backend/internal/domain/user"
	"prompt-studio/backend/internal/infra/client"
	"prompt-studio/backend/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupPromptCommentService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, sqlDB, err := client.NewGORMSQLite("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&user.User{}, &community.SharedPrompt{}, &community.PromptComment{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	image := "https://example.com/alice.png"
	if err := db.Create(&user.User{ID: "alice", Name: "Alice", Email: "alice@example.com", Image: &image}).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	svc := NewService(
		repository.NewPromptCommentRepository(db),
		repository.NewSharedPromptRepository(db),
		repository.NewUserRepository(db),
		zap.NewNop().Sugar(),
	)
	return svc, db
}

func createPrompt(t *testing.T, db *gorm.DB) *community.SharedPrompt {
	t.Helper()
	now := time.Now().UTC()
	prompt := &community.SharedPrompt{
		Title:           "话题",
		OriginalText:    "原文",
		OptimizedPrompt: "优化后",
		Style:           "concise",
		Tone:            "friendly",
		ResponseType:    "text",
		Context:         "general",
		AuthorID:        "alice",
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := db.Create(prompt).Error; err != nil {
		t.Fatalf("create prompt: %v", err)
	}
	return prompt
}

func ptr(s string) *string { return &s }

func TestPromptCommentServiceCreate(t *testing.T) {
	service, db := setupPromptCommentService(t)
	ctx := context.Background()
	prompt := createPrompt(t, db)

	comment, err := service.Create(ctx, CreateInput{PromptID: prompt.ID, UserID: "alice", Content: ptr("  很有用  ")})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if comment.Content != "很有用" {
		t.Fatalf("content not trimmed: %q", comment.Content)
	}
	if comment.Author == nil || comment.Author.Name != "Alice" || comment.Author.Image == nil {
		t.Fatalf("author not attached: %+v", comment.Author)
	}

	if _, err := service.Create(ctx, CreateInput{PromptID: prompt.ID, UserID: "ghost", Content: ptr("second")}); err != nil {
		t.Fatalf("create second comment: %v", err)
	}

	var stored community.SharedPrompt
	if err := db.First(&stored, prompt.ID).Error; err != nil {
		t.Fatalf("reload prompt: %v", err)
	}
	if stored.CommentsCount != 2 {
		t.Fatalf("expected comments_count 2, got %d", stored.CommentsCount)
	}
}

func TestPromptCommentServiceValidation(t *testing.T) {
	cases := []struct {
		name    string
		content *string
		code    string
	}{
		{"nil", nil, CodeMissingContent},
		{"empty", ptr(""), CodeMissingContent},
		{"whitespace", ptr(" \n\t "), CodeEmptyContent},
		{"too long", ptr(strings.Repeat("长", 1001)), CodeContentTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateContent(tc.content)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if vErr.Code != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, vErr.Code)
			}
		})
	}

	if got, err := ValidateContent(ptr(" " + strings.Repeat("a", 1000) + " ")); err != nil || len(got) != 1000 {
		t.Fatalf("1000 characters should pass, got len=%d err=%v", len(got), err)
	}
}

func TestPromptCommentServiceMissingAndInactive(t *testing.T) {
	service, db := setupPromptCommentService(t)
	ctx := context.Background()

	if _, err := service.Create(ctx, CreateInput{PromptID: 404, UserID: "alice", Content: ptr("hi")}); !errors.Is(err, ErrPromptNotFound) {
		t.Fatalf("expected ErrPromptNotFound, got %v", err)
	}
	if _, err := service.List(ctx, 404, 1, 20); !errors.Is(err, ErrPromptNotFound) {
		t.Fatalf("expected ErrPromptNotFound from list, got %v", err)
	}

	prompt := createPrompt(t, db)
	if _, err := service.Create(ctx, CreateInput{PromptID: prompt.ID, UserID: "alice", Content: ptr("before")}); err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if err := repository.NewSharedPromptRepository(db).Deactivate(ctx, prompt.ID, time.Now()); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := service.Create(ctx, CreateInput{PromptID: prompt.ID, UserID: "alice", Content: ptr("after")}); !errors.Is(err, ErrPromptInactive) {
		t.Fatalf("expected ErrPromptInactive, got %v", err)
	}

	// 已下架的 Prompt 评论仍然可读。
	result, err := service.List(ctx, prompt.ID, 1, 20)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if result.Total != 1 || len(result.Items) != 1 {
		t.Fatalf("expected 1 comment, got total=%d items=%d", result.Total, len(result.Items))
	}
}

func TestPromptCommentServiceListPaging(t *testing.T) {
	service, db := setupPromptCommentService(t)
	ctx := context.Background()
	prompt := createPrompt(t, db)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		service.now = func() time.Time { return at }
		if _, err := service.Create(ctx, CreateInput{PromptID: prompt.ID, UserID: "alice", Content: ptr(string(rune('a' + i)))}); err != nil {
			t.Fatalf("create comment %d: %v", i, err)
		}
	}

	result, err := service.List(ctx, prompt.ID, 2, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Page != 2 || result.PageSize != 2 || result.Total != 5 {
		t.Fatalf("unexpected paging: %+v", result)
	}
	if got := []string{result.Items[0].Content, result.Items[1].Content}; got[0] != "c" || got[1] != "b" {
		t.Fatalf("unexpected order: %v", got)
	}

	clamped, err := service.List(ctx, prompt.ID, -1, 1000)
	if err != nil {
		t.Fatalf("list clamped: %v", err)
	}
	if clamped.Page != 1 || clamped.PageSize != community.MaxPageSize {
		t.Fatalf("expected clamp to page 1 size %d, got %d/%d", community.MaxPageSize, clamped.Page, clamped.PageSize)
	}
}
