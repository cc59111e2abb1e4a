// AngelaMos | 2026
// listeners_test.go

package listeners_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorser/backend/internal/analytics"
	"github.com/sorser/backend/internal/analytics/analyticstest"
	"github.com/sorser/backend/internal/article"
	"github.com/sorser/backend/internal/article/articletest"
	"github.com/sorser/backend/internal/config"
	"github.com/sorser/backend/internal/core"
	"github.com/sorser/backend/internal/events"
	"github.com/sorser/backend/internal/jobs"
	"github.com/sorser/backend/internal/listeners"
	"github.com/sorser/backend/internal/mail"
	"github.com/sorser/backend/internal/progress"
	"github.com/sorser/backend/internal/progress/progresstest"
	"github.com/sorser/backend/internal/queue"
	"github.com/sorser/backend/internal/user"
)

const learner = "0c1d2e3f-4a5b-4c6d-8e7f-9a0b1c2d3e4f"

type users map[string]*user.User

func (u users) GetUser(_ context.Context, id string) (*user.User, error) {
	if found, ok := u[id]; ok {
		return found, nil
	}
	return nil, core.ErrNotFound
}

type pipeline struct {
	progress  *progress.Service
	repo      *progresstest.Repository
	producer  *queue.Producer
	worker    *queue.Worker
	mailer    *mail.LogMailer
	cache     *analytics.Cache
	analytics *analytics.Service
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	producer := queue.NewProducer(rdb, nil, "sorser:test:jobs", 0)
	worker := queue.NewWorker(rdb, producer, queue.WorkerConfig{
		Group:     "workers",
		Consumer:  "test-1",
		BlockTime: 10 * time.Millisecond,
	}, nil)
	require.NoError(t, worker.EnsureGroup(context.Background()))

	articles := articletest.New(
		article.Article{ID: 1, CategoryID: 1, Sequence: 1, Title: "The Lighthouse", Body: "their there they're"},
		article.Article{ID: 2, CategoryID: 1, Sequence: 2, Title: "Harbour Lights", Body: "to too two"},
	)
	progression := article.NewProgression(articles, article.DefaultMinAccuracy)

	source := analyticstest.New()
	cache := analytics.NewCache(rdb, "sorser:test:analytics", time.Hour)
	analyticsSvc := analytics.NewService(source, cache, config.AnalyticsConfig{HistoryDays: 30}, nil)

	client := jobs.NewClient(producer, nil)
	bus := events.NewBus(client, nil)
	repo := progresstest.New()
	mailer := mail.NewLogMailer(nil)

	listeners.Register(bus, listeners.Deps{
		Progress:    repo,
		Analytics:   analyticsSvc,
		Jobs:        client,
		Users:       users{learner: {ID: learner, Email: "lee@example.com", Name: "Lee"}},
		Articles:    articles,
		Progression: progression,
		Mailer:      mailer,
		Email:       listeners.CompletionEmailConfig{Threshold: 80, FrontendURL: "https://sorser.test/"},
	})

	jobs.Register(worker, jobs.Deps{
		Analytics: analyticsSvc,
		Exporter:  analytics.NewExporter(source),
		Bus:       bus,
	})

	return &pipeline{
		progress:  progress.NewService(repo, articles, bus, nil),
		repo:      repo,
		producer:  producer,
		worker:    worker,
		mailer:    mailer,
		cache:     cache,
		analytics: analyticsSvc,
	}
}

func (p *pipeline) drain(t *testing.T) {
	t.Helper()
	for range 5 {
		n, err := p.worker.Poll(context.Background())
		require.NoError(t, err)
		if n == 0 {
			return
		}
	}
}

func TestStrongCompletionQueuesEmailAndRecompute(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	_, err := p.analytics.Refresh(ctx, learner)
	require.NoError(t, err)

	_, err = p.progress.CompleteArticle(ctx, learner, 1, progress.CompleteArticleRequest{Accuracy: 85, TimeSpent: 40})
	require.NoError(t, err)

	assert.Equal(t, 1, p.repo.Rows())
	_, hit, err := p.cache.Get(ctx, learner, p.analytics.DefaultDays())
	require.NoError(t, err)
	assert.False(t, hit, "completion must drop the cached summary")

	depth, err := p.producer.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth.Stream)
	assert.Empty(t, p.mailer.Sent())

	p.drain(t)

	sent := p.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "lee@example.com", sent[0].To)
	assert.Equal(t, mail.TemplateArticleCompleted, sent[0].Template)
	assert.Contains(t, sent[0].HTML, "The Lighthouse")
	assert.Contains(t, sent[0].HTML, "85% accuracy")

	_, hit, err = p.cache.Get(ctx, learner, p.analytics.DefaultDays())
	require.NoError(t, err)
	assert.True(t, hit, "recompute job refills the cache")
}

func TestWeakCompletionSkipsEmail(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	_, err := p.progress.CompleteArticle(ctx, learner, 1, progress.CompleteArticleRequest{Accuracy: 60, TimeSpent: 40})
	require.NoError(t, err)

	depth, err := p.producer.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth.Stream)

	p.drain(t)
	assert.Empty(t, p.mailer.Sent())
}

func TestRepeatedHomophoneChecksKeepOneRow(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	for range 2 {
		_, err := p.progress.SaveHomophoneCheck(ctx, learner, progress.HomophoneCheckRequest{
			ArticleID: 2,
			Text:      "to two two",
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, p.repo.Rows())
	assert.Len(t, p.repo.Checks(), 2)

	row, err := p.repo.Get(ctx, learner, 2)
	require.NoError(t, err)
	require.NotNil(t, row.HomophoneAccuracy)
	assert.Equal(t, 3, row.HomophoneTotalWords)
	assert.Equal(t, 2, row.HomophoneCorrectWords)
}

func TestRoutesCoverEveryEvent(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range listeners.Routes {
		seen[r.Event] = true
	}
	for _, name := range []string{
		events.NameArticleCompleted,
		events.NameHomophoneCheckSaved,
		events.NameQuizAttemptFinished,
		events.NameUserProgressUpdated,
	} {
		assert.True(t, seen[name], name)
	}
}
