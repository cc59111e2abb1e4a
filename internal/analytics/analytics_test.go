// AngelaMos | 2026
// analytics_test.go

package analytics_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorser/backend/internal/analytics"
	"github.com/sorser/backend/internal/analytics/analyticstest"
	"github.com/sorser/backend/internal/config"
	"github.com/sorser/backend/internal/middleware"
)

const learner = "5d2f3c4b-6a7e-4f81-9b0c-1d2e3f4a5b6c"

func day(t time.Time, offset int) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestComputeStreak(t *testing.T) {
	today := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		dates   []time.Time
		current int
		longest int
	}{
		{"no activity", nil, 0, 0},
		{"only today", []time.Time{day(today, 0)}, 1, 1},
		{"ends yesterday", []time.Time{day(today, -3), day(today, -2), day(today, -1)}, 3, 3},
		{"broken streak", []time.Time{day(today, -10), day(today, -9), day(today, -8), day(today, -2)}, 0, 3},
		{"duplicates and order", []time.Time{day(today, 0), day(today, -1), day(today, 0).Add(5 * time.Hour)}, 2, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := analytics.ComputeStreak(tc.dates, today)
			assert.Equal(t, tc.current, s.Current)
			assert.Equal(t, tc.longest, s.Longest)
		})
	}
}

func TestSummarizeEmptyUserHasNoDivisionFaults(t *testing.T) {
	src := analyticstest.New()
	s, err := analytics.NewAggregator(src).Summarize(context.Background(), learner, 7)
	require.NoError(t, err)

	assert.True(t, s.Empty())
	assert.Zero(t, s.Articles.CompletionRate)
	assert.Zero(t, s.Articles.AverageAccuracy)
	assert.Zero(t, s.Homophones.WordAccuracy)
	assert.Zero(t, s.Quizzes.AveragePercentage)
	assert.Zero(t, s.Typing.AverageWPM)
	assert.Len(t, s.History, 7)
	for _, d := range s.History {
		assert.Zero(t, d.Total())
	}
}

func TestSummarizeDerivesAverages(t *testing.T) {
	now := time.Now().UTC()
	src := analyticstest.New()
	src.Articles = 8
	src.SetTotals(learner, analytics.Totals{
		ArticlesCompleted:    2,
		ArticleAccuracySum:   170,
		TimeSpent:            600,
		HomophoneSessions:    3,
		HomophoneWords:       40,
		HomophoneCorrect:     30,
		HomophoneAccuracySum: 240,
		QuizAttempts:         4,
		QuizPercentageSum:    300,
		QuizBest:             100,
		TypingSessions:       2,
		TypingWPMSum:         70,
		TypingAccuracySum:    190,
		TypingSeconds:        240,
	})
	src.Dates[learner] = []time.Time{day(now, -1), day(now, 0)}
	src.Daily[learner] = []analytics.DayActivity{
		{Date: day(now, -1).Format("2006-01-02"), Articles: 1, Quizzes: 2},
		{Date: day(now, 0).Format("2006-01-02"), Articles: 1, Homophones: 3},
	}

	s, err := analytics.NewAggregator(src).Summarize(context.Background(), learner, 3)
	require.NoError(t, err)

	assert.Equal(t, 25.0, s.Articles.CompletionRate)
	assert.Equal(t, 85.0, s.Articles.AverageAccuracy)
	assert.Equal(t, 80.0, s.Homophones.AverageAccuracy)
	assert.Equal(t, 75.0, s.Homophones.WordAccuracy)
	assert.Equal(t, 75.0, s.Quizzes.AveragePercentage)
	assert.Equal(t, 100.0, s.Quizzes.BestPercentage)
	assert.Equal(t, 35.0, s.Typing.AverageWPM)
	assert.Equal(t, 95.0, s.Typing.AverageAccuracy)
	assert.Equal(t, 2, s.Streak.Current)

	require.Len(t, s.History, 3)
	assert.Zero(t, s.History[0].Total())
	assert.Equal(t, 3, s.History[1].Total())
	assert.Equal(t, 4, s.History[2].Total())

	codes := []string{}
	for _, a := range analytics.Achievements(s) {
		codes = append(codes, a.Code)
	}
	assert.Equal(t, []string{"first_article", "perfect_quiz"}, codes)

	report := analytics.BuildReport(analytics.ReportWeekly, s)
	assert.Equal(t, 2, report.ActiveDays)
	assert.Equal(t, s.History[0].Date, report.From)
}

func TestClampDaysAndReportWindow(t *testing.T) {
	assert.Equal(t, analytics.DefaultHistoryDays, analytics.ClampDays(0))
	assert.Equal(t, analytics.MaxHistoryDays, analytics.ClampDays(1000))
	assert.Equal(t, 14, analytics.ClampDays(14))

	n, err := analytics.ReportWindow(analytics.ReportWeekly)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	n, err = analytics.ReportWindow(analytics.ReportMonthly)
	require.NoError(t, err)
	assert.Equal(t, 30, n)
	_, err = analytics.ReportWindow("daily")
	assert.Error(t, err)
}

func newService(t *testing.T) (*analytics.Service, *analyticstest.Source, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	src := analyticstest.New()
	cache := analytics.NewCache(rdb, "test:analytics", time.Hour)
	return analytics.NewService(src, cache, config.AnalyticsConfig{HistoryDays: 7}, nil), src, mr
}

func TestUserSummaryReadThrough(t *testing.T) {
	ctx := context.Background()
	svc, src, mr := newService(t)
	src.SetTotals(learner, analytics.Totals{ArticlesCompleted: 1, ArticleAccuracySum: 90})

	first, err := svc.UserSummary(ctx, learner, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, first.HistoryDays)
	assert.Equal(t, 1, src.Calls)
	assert.True(t, mr.Exists("test:analytics:user:"+learner))
	assert.Greater(t, mr.TTL("test:analytics:user:"+learner), time.Duration(0))

	second, err := svc.UserSummary(ctx, learner, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, src.Calls, "second read is served from cache")
	assert.Equal(t, first.Articles, second.Articles)

	_, err = svc.UserSummary(ctx, learner, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Calls, "each window is cached separately")
}

func TestReadAfterInvalidateIsFresh(t *testing.T) {
	ctx := context.Background()
	svc, src, _ := newService(t)

	src.SetTotals(learner, analytics.Totals{ArticlesCompleted: 1, ArticleAccuracySum: 60})
	_, err := svc.UserSummary(ctx, learner, 0)
	require.NoError(t, err)

	src.SetTotals(learner, analytics.Totals{ArticlesCompleted: 2, ArticleAccuracySum: 150})
	stale, err := svc.UserSummary(ctx, learner, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stale.Articles.Completed)

	require.NoError(t, svc.Invalidate(ctx, learner))

	fresh, err := svc.UserSummary(ctx, learner, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Articles.Completed)
	assert.Equal(t, 75.0, fresh.Articles.AverageAccuracy)
}

func TestCacheFailureDegradesToCompute(t *testing.T) {
	ctx := context.Background()
	svc, src, mr := newService(t)
	src.SetTotals(learner, analytics.Totals{QuizAttempts: 1, QuizPercentageSum: 50, QuizBest: 50})
	mr.Close()

	s, err := svc.UserSummary(ctx, learner, 0)
	require.NoError(t, err)
	assert.Equal(t, 50.0, s.Quizzes.AveragePercentage)

	_, err = svc.Refresh(ctx, learner)
	assert.Error(t, err)
}

func TestExporterEmptyDatasets(t *testing.T) {
	ctx := context.Background()
	src := analyticstest.New()
	ex := analytics.NewExporter(src)

	for _, typ := range []string{analytics.ExportStudents, analytics.ExportPlatform} {
		ds, err := ex.Build(ctx, analytics.ExportRequest{Type: typ})
		require.NoError(t, err)
		assert.Zero(t, ds.Rows, typ)
	}

	ds, err := ex.Build(ctx, analytics.ExportRequest{Type: analytics.ExportUser, UserID: learner})
	require.NoError(t, err)
	assert.Zero(t, ds.Rows)

	src.StudentRows = []analytics.StudentRow{
		{UserID: "a", ArticlesCompleted: 3},
		{UserID: "b", ArticlesCompleted: 0},
	}
	src.PlatformRow = analytics.PlatformTotals{Users: 2}

	ds, err = ex.Build(ctx, analytics.ExportRequest{
		Type:    analytics.ExportStudents,
		Filters: analytics.StudentFilter{MinArticles: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Rows)

	ds, err = ex.Build(ctx, analytics.ExportRequest{Type: analytics.ExportPlatform})
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Rows)

	_, err = ex.Build(ctx, analytics.ExportRequest{Type: analytics.ExportUser})
	assert.Error(t, err)
}

type allowAll struct{}

func (allowAll) Authorize(context.Context, string, string, string) error { return nil }

type fakeScheduler struct {
	export analytics.ExportRequest
	by     string
	report [2]string
}

func (f *fakeScheduler) ScheduleExport(_ context.Context, req analytics.ExportRequest, by string) (string, error) {
	f.export, f.by = req, by
	return "job-1", nil
}

func (f *fakeScheduler) ScheduleReport(_ context.Context, userID, reportType string) (string, error) {
	f.report = [2]string{userID, reportType}
	return "job-2", nil
}

func TestHandlerRoutes(t *testing.T) {
	svc, _, _ := newService(t)
	sched := &fakeScheduler{}

	r := chi.NewRouter()
	authn := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithClaims(req.Context(), &middleware.AccessTokenClaims{UserID: learner})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
	analytics.NewHandler(svc, sched).RegisterRoutes(r, authn, allowAll{})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, path, nil)
		} else {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodGet, "/progress/me/history?days=14", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		Data analytics.HistoryResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&hist))
	assert.Equal(t, 14, hist.Data.Days)
	assert.Len(t, hist.Data.History, 14)

	assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/progress/me/history?days=0", "").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/progress/me", "").Code)

	rec = do(http.MethodPost, "/admin/analytics/exports", `{"type":"students","filters":{"min_articles":2}}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 2, sched.export.Filters.MinArticles)
	assert.Equal(t, learner, sched.by)

	assert.Equal(t, http.StatusBadRequest,
		do(http.MethodPost, "/admin/analytics/exports", `{"type":"everything"}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(http.MethodPost, "/admin/analytics/exports", `{"type":"user"}`).Code)

	rec = do(http.MethodPost, "/admin/reports", `{"user_id":"u-9","report_type":"monthly"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, [2]string{"u-9", "monthly"}, sched.report)
}
