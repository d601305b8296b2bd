package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"prompt-studio/backend/internal/domain/community"
	"prompt-studio/backend/internal/domain/user"
	"prompt-studio/backend/internal/infra/client"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, sqlDB, err := client.NewGORMSQLite("file:" + name + "?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(
		&user.User{},
		&user.Session{},
		&community.SharedPrompt{},
		&community.PromptRating{},
		&community.PromptComment{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func seedPrompt(t *testing.T, db *gorm.DB, title string, createdAt time.Time, mutate func(*community.SharedPrompt)) *community.SharedPrompt {
	t.Helper()
	entity := &community.SharedPrompt{
		Title:           title,
		OriginalText:    "original " + title,
		OptimizedPrompt: "optimized " + title,
		Style:           "detailed",
		Tone:            "professional",
		ResponseType:    "code",
		Context:         "web",
		AuthorID:        "author-1",
		IsActive:        true,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	if mutate != nil {
		mutate(entity)
	}
	if err := NewSharedPromptRepository(db).Create(context.Background(), entity); err != nil {
		t.Fatalf("create prompt: %v", err)
	}
	return entity
}

func titles(items []community.SharedPrompt) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Title)
	}
	return out
}

func TestSharedPromptRepositoryListSorts(t *testing.T) {
	db := newTestDB(t)
	repo := NewSharedPromptRepository(db)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	seedPrompt(t, db, "old-popular", base, func(p *community.SharedPrompt) {
		p.AvgRating, p.RatingsCount = 4, 50
		p.TrendingScore = community.TrendingScore(4, 50)
	})
	seedPrompt(t, db, "new-single", base.Add(48*time.Hour), func(p *community.SharedPrompt) {
		p.AvgRating, p.RatingsCount = 5, 1
		p.TrendingScore = community.TrendingScore(5, 1)
	})
	seedPrompt(t, db, "middle-unrated", base.Add(24*time.Hour), nil)

	trending, total, err := repo.List(ctx, SharedPromptListFilter{Sort: community.SortTrending, Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Equal(t, []string{"old-popular", "new-single", "middle-unrated"}, titles(trending))

	newest, _, err := repo.List(ctx, SharedPromptListFilter{Sort: community.SortNew, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, []string{"new-single", "middle-unrated", "old-popular"}, titles(newest))

	top, _, err := repo.List(ctx, SharedPromptListFilter{Sort: community.SortTop, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, []string{"new-single", "old-popular", "middle-unrated"}, titles(top))
}

func TestSharedPromptRepositoryListTieBreaksByNewest(t *testing.T) {
	db := newTestDB(t)
	repo := NewSharedPromptRepository(db)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	seedPrompt(t, db, "first", base, nil)
	seedPrompt(t, db, "second", base.Add(time.Minute), nil)
	seedPrompt(t, db, "same-time", base.Add(time.Minute), nil)

	items, _, err := repo.List(context.Background(), SharedPromptListFilter{Sort: community.SortTop, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, []string{"same-time", "second", "first"}, titles(items))
}

func TestSharedPromptRepositoryListPagingAndSearch(t *testing.T) {
	db := newTestDB(t)
	repo := NewSharedPromptRepository(db)
	ctx := context.Background()
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		seedPrompt(t, db, "React tip "+string(rune('A'+i)), base.Add(time.Duration(i)*time.Hour), nil)
	}
	seedPrompt(t, db, "Go concurrency", base, func(p *community.SharedPrompt) {
		p.OriginalText = "channels and React-like state"
	})
	hidden := seedPrompt(t, db, "hidden React", base, nil)
	require.NoError(t, repo.Deactivate(ctx, hidden.ID, base))

	page2, total, err := repo.List(ctx, SharedPromptListFilter{Query: "React", Sort: community.SortNew, Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.EqualValues(t, 6, total, "deactivated prompt must not be counted")
	require.Equal(t, []string{"React tip C", "React tip B"}, titles(page2))

	lower, lowerTotal, err := repo.List(ctx, SharedPromptListFilter{Query: "react", Limit: 10})
	require.NoError(t, err)
	require.Zero(t, lowerTotal, "search is case sensitive")
	require.Empty(t, lower)

	byText, _, err := repo.List(ctx, SharedPromptListFilter{Query: "channels", Limit: 10})
	require.NoError(t, err)
	require.Equal(t, []string{"Go concurrency"}, titles(byText))
}

func TestSharedPromptRepositoryDeactivateKeepsRow(t *testing.T) {
	db := newTestDB(t)
	repo := NewSharedPromptRepository(db)
	ctx := context.Background()
	created := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	prompt := seedPrompt(t, db, "to-hide", created, nil)

	at := created.Add(time.Hour)
	require.NoError(t, repo.Deactivate(ctx, prompt.ID, at))

	stored, err := repo.FindByID(ctx, prompt.ID)
	require.NoError(t, err)
	require.False(t, stored.IsActive)
	require.True(t, stored.UpdatedAt.Equal(at))

	err = repo.Deactivate(ctx, 999, at)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestSharedPromptRepositoryRecomputeAggregates(t *testing.T) {
	db := newTestDB(t)
	repo := NewSharedPromptRepository(db)
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	prompt := seedPrompt(t, db, "drifted", now, func(p *community.SharedPrompt) {
		p.AvgRating, p.RatingsCount, p.CommentsCount = 1, 99, 42
	})

	ratings := []community.PromptRating{
		{PromptID: prompt.ID, UserID: "u1", Value: 4, CreatedAt: now},
		{PromptID: prompt.ID, UserID: "u2", Value: 3, CreatedAt: now},
	}
	require.NoError(t, db.Create(&ratings).Error)
	require.NoError(t, db.Create(&community.PromptComment{PromptID: prompt.ID, UserID: "u1", Content: "hi", CreatedAt: now}).Error)

	require.NoError(t, repo.RecomputeAggregates(ctx, prompt.ID))

	stored, err := repo.FindByID(ctx, prompt.ID)
	require.NoError(t, err)
	require.InDelta(t, 3.5, stored.AvgRating, 1e-9)
	require.EqualValues(t, 2, stored.RatingsCount)
	require.EqualValues(t, 1, stored.CommentsCount)
	require.InDelta(t, community.TrendingScore(3.5, 2), stored.TrendingScore, 1e-9)
	require.True(t, stored.UpdatedAt.Equal(now), "recompute must not touch updated_at")

	ids, err := repo.ListIDsAfter(ctx, 0, 10)
	require.NoError(t, err)
	require.Equal(t, []uint{prompt.ID}, ids)
}

func TestSharedPromptRepositoryOrdersAcrossTimeZones(t *testing.T) {
	db := newTestDB(t)
	repo := NewSharedPromptRepository(db)
	ctx := context.Background()
	eastern := time.FixedZone("EDT", -4*60*60)

	// 05:00Z 以 -04:00 表示时文本为 01:00，按字符串比较会排在 04:00Z 之前。
	seedPrompt(t, db, "seeded-older", time.Date(2025, 10, 18, 4, 0, 0, 0, time.UTC), nil)
	seedPrompt(t, db, "created-newer", time.Date(2025, 10, 18, 1, 0, 0, 0, eastern), nil)

	items, _, err := repo.List(ctx, SharedPromptListFilter{Sort: community.SortNew, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, []string{"created-newer", "seeded-older"}, titles(items))

	deactivatedAt := time.Date(2025, 10, 18, 2, 0, 0, 0, eastern)
	require.NoError(t, repo.Deactivate(ctx, items[0].ID, deactivatedAt))
	hidden, err := repo.FindByID(ctx, items[0].ID)
	require.NoError(t, err)
	require.True(t, hidden.UpdatedAt.Equal(deactivatedAt))

	var raw []string
	require.NoError(t, db.Raw("SELECT CAST(created_at AS TEXT) || ' ' || CAST(updated_at AS TEXT) FROM shared_prompt ORDER BY id").Scan(&raw).Error)
	require.Len(t, raw, 2)
	for _, value := range raw {
		require.NotContains(t, value, "-04:00")
	}
}
