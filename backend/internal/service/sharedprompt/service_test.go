package sharedprompt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"prompt-studio/backend/internal/domain/community"
	"prompt-studio/backend/internal/domain/user"
	"prompt-studio/backend/internal/infra/client"
	"prompt-studio/backend/internal/repository"

	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	service *Service
	prompts *repository.SharedPromptRepository
}

func setupService(t *testing.T, cfg Config, redisClient *redis.Client) *fixture {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, sqlDB, err := client.NewGORMSQLite("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&user.User{}, &community.SharedPrompt{}, &community.PromptRating{}, &community.PromptComment{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	prompts := repository.NewSharedPromptRepository(db)
	comments := repository.NewPromptCommentRepository(db)
	users := repository.NewUserRepository(db)
	if err := users.EnsureUsers(context.Background(), []user.User{
		{ID: "author", Name: "Author", Email: "author@example.com"},
		{ID: "reader", Name: "Reader", Email: "reader@example.com"},
	}); err != nil {
		t.Fatalf("seed users: %v", err)
	}

	svc := NewService(prompts, repository.NewPromptRatingRepository(db), comments, users, zap.NewNop().Sugar(), cfg, redisClient)
	return &fixture{db: db, service: svc, prompts: prompts}
}

func validInput() CreateInput {
	return CreateInput{
		AuthorID:        "author",
		Title:           "  Dashboard helper  ",
		OriginalText:    "make me a dashboard",
		OptimizedPrompt: "Create a responsive admin dashboard",
		Options: &community.PromptOptions{
			Style:        "detailed",
			Tone:         "professional",
			ResponseType: "code",
			Context:      "web",
		},
	}
}

func (f *fixture) create(t *testing.T, mutate func(*CreateInput)) *community.SharedPrompt {
	t.Helper()
	input := validInput()
	if mutate != nil {
		mutate(&input)
	}
	entity, err := f.service.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("create prompt: %v", err)
	}
	return entity
}

func TestCreateTrimsAndStartsEmpty(t *testing.T) {
	f := setupService(t, Config{}, nil)
	entity := f.create(t, nil)

	require.Equal(t, "Dashboard helper", entity.Title)
	require.True(t, entity.IsActive)
	require.Zero(t, entity.RatingsCount)
	require.Zero(t, entity.CommentsCount)
	require.Zero(t, entity.AvgRating)
}

func TestCreateValidation(t *testing.T) {
	f := setupService(t, Config{}, nil)
	cases := []struct {
		name   string
		mutate func(*CreateInput)
		code   string
	}{
		{"missing title", func(in *CreateInput) { in.Title = "   " }, CodeMissingTitle},
		{"title too long", func(in *CreateInput) { in.Title = strings.Repeat("a", 201) }, CodeTitleTooLong},
		{"missing original", func(in *CreateInput) { in.OriginalText = "" }, CodeMissingOriginalText},
		{"original too long", func(in *CreateInput) { in.OriginalText = strings.Repeat("字", 2001) }, CodeOriginalTextTooLong},
		{"missing optimized", func(in *CreateInput) { in.OptimizedPrompt = "\n" }, CodeMissingOptimizedPrompt},
		{"optimized too long", func(in *CreateInput) { in.OptimizedPrompt = strings.Repeat("b", 5001) }, CodeOptimizedPromptTooLong},
		{"missing options", func(in *CreateInput) { in.Options = nil }, CodeMissingOptions},
		{"missing style", func(in *CreateInput) { in.Options.Style = "" }, CodeMissingStyle},
		{"missing tone", func(in *CreateInput) { in.Options.Tone = " " }, CodeMissingTone},
		{"missing response type", func(in *CreateInput) { in.Options.ResponseType = "" }, CodeMissingResponseType},
		{"missing context", func(in *CreateInput) { in.Options.Context = "" }, CodeMissingContext},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutate(&input)
			_, err := f.service.Create(context.Background(), input)
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "expected validation error, got %v", err)
			require.Equal(t, tc.code, vErr.Code)
		})
	}

	// 边界值：恰好 200 个字符（含首尾空白时按去空白后计算）可以通过。
	ok := f.create(t, func(in *CreateInput) { in.Title = " " + strings.Repeat("t", 200) + " " })
	require.Len(t, ok.Title, 200)
}

func TestRateAveragesAndOverwrites(t *testing.T) {
	f := setupService(t, Config{}, nil)
	ctx := context.Background()
	prompt := f.create(t, nil)

	summary, err := f.service.Rate(ctx, RateInput{PromptID: prompt.ID, UserID: "u1", Value: 4})
	require.NoError(t, err)
	require.Equal(t, community.RatingSummary{AvgRating: 4, RatingsCount: 1, MyRating: 4}, summary)

	summary, err = f.service.Rate(ctx, RateInput{PromptID: prompt.ID, UserID: "u2", Value: 3})
	require.NoError(t, err)
	require.InDelta(t, 3.5, summary.AvgRating, 1e-9)

	summary, err = f.service.Rate(ctx, RateInput{PromptID: prompt.ID, UserID: "u1", Value: 5})
	require.NoError(t, err)
	require.EqualValues(t, 2, summary.RatingsCount)
	require.InDelta(t, 4.0, summary.AvgRating, 1e-9)
	require.Equal(t, 5, summary.MyRating)

	_, err = f.service.Rate(ctx, RateInput{PromptID: prompt.ID, UserID: "u1", Value: 6})
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	require.Equal(t, CodeInvalidValue, vErr.Code)

	_, err = f.service.Rate(ctx, RateInput{PromptID: 9999, UserID: "u1", Value: 5})
	require.ErrorIs(t, err, ErrPromptNotFound)
}

func TestRateSameValueIsIdempotent(t *testing.T) {
	f := setupService(t, Config{}, nil)
	ctx := context.Background()
	prompt := f.create(t, nil)

	_, err := f.service.Rate(ctx, RateInput{PromptID: prompt.ID, UserID: "u1", Value: 4})
	require.NoError(t, err)
	first, err := f.service.Rate(ctx, RateInput{PromptID: prompt.ID, UserID: "u2", Value: 3})
	require.NoError(t, err)

	again, err := f.service.Rate(ctx, RateInput{PromptID: prompt.ID, UserID: "u1", Value: 4})
	require.NoError(t, err)
	require.Equal(t, first.RatingsCount, again.RatingsCount)
	require.InDelta(t, first.AvgRating, again.AvgRating, 1e-9)

	stored, err := f.prompts.FindByID(ctx, prompt.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, stored.RatingsCount)
	require.InDelta(t, 3.5, stored.AvgRating, 1e-9)

	var rows int64
	require.NoError(t, f.db.Model(&community.PromptRating{}).Where("prompt_id = ?", prompt.ID).Count(&rows).Error)
	require.EqualValues(t, 2, rows)
}

func TestTrendingPrefersVolumeOverSingleFive(t *testing.T) {
	f := setupService(t, Config{}, nil)
	ctx := context.Background()
	popular := f.create(t, func(in *CreateInput) { in.Title = "popular" })
	single := f.create(t, func(in *CreateInput) { in.Title = "single" })

	for i := 0; i < 50; i++ {
		_, err := f.service.Rate(ctx, RateInput{PromptID: popular.ID, UserID: "fan-" + string(rune('a'+i%26)) + string(rune('a'+i/26)), Value: 4})
		require.NoError(t, err)
	}
	_, err := f.service.Rate(ctx, RateInput{PromptID: single.ID, UserID: "solo", Value: 5})
	require.NoError(t, err)

	result, err := f.service.Trending(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Page)
	require.Equal(t, community.TrendingSize, result.PageSize)
	require.Len(t, result.Items, 2)
	require.Equal(t, "popular", result.Items[0].Title)
	require.EqualValues(t, 50, result.Items[0].RatingsCount)
	require.Equal(t, "author", result.Items[0].Author.ID)
	require.Equal(t, "Author", result.Items[0].Author.Name)
}

func TestListClampsAndDefaultsSort(t *testing.T) {
	f := setupService(t, Config{}, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.create(t, nil)
	}

	result, err := f.service.List(ctx, ListParams{Page: 0, PageSize: 500, Sort: "bogus"})
	require.NoError(t, err)
	require.Equal(t, 1, result.Page)
	require.Equal(t, community.MaxPageSize, result.PageSize)
	require.EqualValues(t, 3, result.Total)

	result, err = f.service.List(ctx, ListParams{Page: 2, PageSize: 2, Sort: community.SortNew})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	require.Equal(t, community.SortTrending, NormalizeSort(""))
	require.Equal(t, community.SortTop, NormalizeSort("top"))
}

func TestListPagesCoverEveryPromptOnce(t *testing.T) {
	f := setupService(t, Config{}, nil)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	// 每三个 Prompt 共用一个 created_at，评分也成组相同，制造各排序下的并列。
	const count = 11
	want := make(map[uint]bool, count)
	for i := 0; i < count; i++ {
		at := base.Add(time.Duration(i/3) * time.Minute)
		f.service.now = func() time.Time { return at }
		prompt := f.create(t, nil)
		want[prompt.ID] = true
		if i%2 == 0 {
			_, err := f.service.Rate(ctx, RateInput{PromptID: prompt.ID, UserID: "reader", Value: 4})
			require.NoError(t, err)
		}
	}

	for _, sort := range []string{community.SortTrending, community.SortNew, community.SortTop} {
		t.Run(sort, func(t *testing.T) {
			seen := make(map[uint]bool, count)
			var total int64
			for page := 1; ; page++ {
				result, err := f.service.List(ctx, ListParams{Page: page, PageSize: 3, Sort: sort})
				require.NoError(t, err)
				total = result.Total
				if len(result.Items) == 0 {
					break
				}
				for _, item := range result.Items {
					require.False(t, seen[item.ID], "prompt %d returned twice", item.ID)
					seen[item.ID] = true
				}
			}
			require.EqualValues(t, count, total)
			require.Len(t, seen, count)
			if diff := cmp.Diff(want, seen); diff != "" {
				t.Fatalf("paged ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetIncludesRecentCommentsNewestFirst(t *testing.T) {
	f := setupService(t, Config{}, nil)
	ctx := context.Background()
	prompt := f.create(t, nil)

	comments := repository.NewPromptCommentRepository(f.db)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < community.RecentComments+3; i++ {
		require.NoError(t, comments.CreateAndIncrement(ctx, &community.PromptComment{
			PromptID:  prompt.ID,
			UserID:    "reader",
			Content:   "comment",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	detail, err := f.service.Get(ctx, prompt.ID)
	require.NoError(t, err)
	require.EqualValues(t, community.RecentComments+3, detail.Prompt.CommentsCount)
	require.Len(t, detail.Comments, community.RecentComments)
	require.True(t, detail.Comments[0].CreatedAt.After(detail.Comments[1].CreatedAt))
	require.Equal(t, "Reader", detail.Comments[0].Author.Name)
	require.Equal(t, "Author", detail.Prompt.Author.Name)
}

func TestDeleteIsAuthorOnlyAndSoft(t *testing.T) {
	f := setupService(t, Config{}, nil)
	ctx := context.Background()
	prompt := f.create(t, nil)
	require.NoError(t, f.db.Create(&community.PromptRating{PromptID: prompt.ID, UserID: "reader", Value: 5, CreatedAt: time.Now()}).Error)

	require.ErrorIs(t, f.service.Delete(ctx, prompt.ID, "reader"), ErrForbidden)
	require.ErrorIs(t, f.service.Delete(ctx, 4242, "author"), ErrPromptNotFound)
	require.NoError(t, f.service.Delete(ctx, prompt.ID, "author"))
	// 重复删除同样成功。
	require.NoError(t, f.service.Delete(ctx, prompt.ID, "author"))

	_, err := f.service.Get(ctx, prompt.ID)
	require.ErrorIs(t, err, ErrPromptNotFound)

	list, err := f.service.List(ctx, ListParams{})
	require.NoError(t, err)
	require.Zero(t, list.Total)

	_, err = f.service.Rate(ctx, RateInput{PromptID: prompt.ID, UserID: "reader", Value: 4})
	require.ErrorIs(t, err, ErrPromptNotFound)

	var ratings int64
	require.NoError(t, f.db.Model(&community.PromptRating{}).Where("prompt_id = ?", prompt.ID).Count(&ratings).Error)
	require.EqualValues(t, 1, ratings, "soft delete keeps ratings")
}

func TestParseRatingValue(t *testing.T) {
	cases := []struct {
		raw  string
		want int
		code string
	}{
		{"", 0, CodeMissingValue},
		{"null", 0, CodeMissingValue},
		{"3", 3, ""},
		{"5.0", 5, ""},
		{"3.5", 0, CodeInvalidValue},
		{"0", 0, CodeInvalidValue},
		{"6", 0, CodeInvalidValue},
		{`"4"`, 0, CodeInvalidValue},
		{"true", 0, CodeInvalidValue},
	}
	for _, tc := range cases {
		got, err := ParseRatingValue(json.RawMessage(tc.raw))
		if tc.code == "" {
			require.NoError(t, err, "raw=%q", tc.raw)
			require.Equal(t, tc.want, got)
			continue
		}
		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr), "raw=%q", tc.raw)
		require.Equal(t, tc.code, vErr.Code, "raw=%q", tc.raw)
	}
}

// stubStore 只实现列表查询，验证服务层只依赖接口。
type stubStore struct {
	Store
	gotFilter repository.SharedPromptListFilter
}

func (s *stubStore) List(_ context.Context, filter repository.SharedPromptListFilter) ([]community.SharedPrompt, int64, error) {
	s.gotFilter = filter
	return []community.SharedPrompt{{ID: 1, AuthorID: "ghost"}}, 1, nil
}

func TestListPassesFilterAndFallsBackToBareAuthor(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store, nil, nil, nil, nil, Config{}, nil)

	result, err := svc.List(context.Background(), ListParams{Query: " Go ", Page: 3, PageSize: 10, Sort: "new"})
	require.NoError(t, err)

	want := repository.SharedPromptListFilter{Query: " Go ", Sort: community.SortNew, Limit: 10, Offset: 20}
	if diff := cmp.Diff(want, store.gotFilter); diff != "" {
		t.Fatalf("filter mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, &community.AuthorBrief{ID: "ghost"}, result.Items[0].Author)
}
