// AngelaMos | 2026
// service_test.go

package progress_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorser/backend/internal/article"
	"github.com/sorser/backend/internal/article/articletest"
	"github.com/sorser/backend/internal/core"
	"github.com/sorser/backend/internal/events"
	"github.com/sorser/backend/internal/progress"
	"github.com/sorser/backend/internal/progress/progresstest"
)

const learner = "b8a7c1d2-0e5f-4a3b-9c6d-7e8f9a0b1c2d"

type recorder struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recorder) Dispatch(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventName())
	}
	return out
}

func setup() (*progress.Service, *progresstest.Repository, *recorder) {
	repo := progresstest.New()
	repo.AddQuiz(5, 10)
	repo.AddQuiz(6, 0)
	articles := articletest.New(article.Article{ID: 1, CategoryID: 1, Sequence: 1, Body: "a b c d"})
	rec := &recorder{}
	return progress.NewService(repo, articles, rec, nil), repo, rec
}

func TestCompleteArticleDispatchesInOrder(t *testing.T) {
	svc, _, rec := setup()

	resp, err := svc.CompleteArticle(context.Background(), learner, 1, progress.CompleteArticleRequest{
		Accuracy:  85,
		TimeSpent: 120,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.ArticleID)

	assert.Equal(t, []string{events.NameArticleCompleted, events.NameUserProgressUpdated}, rec.names())
	completed := rec.events[0].(events.ArticleCompleted)
	assert.Equal(t, 85.0, completed.Accuracy)
	assert.Equal(t, events.ProgressArticle, rec.events[1].(events.UserProgressUpdated).ProgressType)
}

func TestCompletionIsRecordedWhenListenersFail(t *testing.T) {
	svc, repo, rec := setup()
	rec.err = errors.New("update_user_progress: upsert failed")
	ctx := context.Background()

	first, err := svc.CompleteArticle(ctx, learner, 1, progress.CompleteArticleRequest{Accuracy: 85, TimeSpent: 10})
	require.NoError(t, err)
	second, err := svc.CompleteArticle(ctx, learner, 1, progress.CompleteArticleRequest{Accuracy: 92, TimeSpent: 20})
	require.NoError(t, err)

	done := repo.Completions()
	require.Len(t, done, 2)
	assert.Equal(t, first.ID, done[0].ID)
	assert.Equal(t, second.ID, done[1].ID)
	assert.Equal(t, 92.0, done[1].Accuracy)
	assert.Zero(t, repo.Rows())

	completed := rec.events[2].(events.ArticleCompleted)
	assert.Equal(t, second.ID, completed.CompletionID)
	assert.Equal(t, done[1].CreatedAt.UTC(), completed.OccurredAt)
}

func TestCompleteArticleFailsWhenRecordFails(t *testing.T) {
	svc, repo, rec := setup()
	repo.InsertErr = errors.New("connection reset")

	resp, err := svc.CompleteArticle(context.Background(), learner, 1, progress.CompleteArticleRequest{Accuracy: 85})

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Empty(t, rec.names())
	assert.Empty(t, repo.Completions())
}

func TestValidationRejectsBeforeAnyEvent(t *testing.T) {
	svc, repo, rec := setup()
	ctx := context.Background()

	_, err := svc.CompleteArticle(ctx, learner, 1, progress.CompleteArticleRequest{Accuracy: 101})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.CompleteArticle(ctx, learner, 99, progress.CompleteArticleRequest{Accuracy: 50})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.SubmitQuiz(ctx, learner, 5, progress.SubmitQuizRequest{Score: 11})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.SubmitQuiz(ctx, learner, 404, progress.SubmitQuizRequest{Score: 1})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.SaveHomophoneCheck(ctx, learner, progress.HomophoneCheckRequest{ArticleID: 1})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.RecordTyping(ctx, learner, progress.TypingSessionRequest{WPM: 40, Accuracy: 90})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	assert.Empty(t, rec.names())
	assert.Empty(t, repo.Completions())
	assert.Empty(t, repo.Attempts())
	assert.Empty(t, repo.Checks())
	assert.Empty(t, repo.TypingSessions())
}

func TestSubmitQuiz(t *testing.T) {
	svc, repo, rec := setup()
	ctx := context.Background()

	attempt, err := svc.SubmitQuiz(ctx, learner, 5, progress.SubmitQuizRequest{Score: 7})
	require.NoError(t, err)
	assert.Equal(t, 70.0, attempt.Percentage)
	assert.Equal(t, 10, attempt.TotalQuestions)
	require.Len(t, repo.Attempts(), 1)

	finished := rec.events[0].(events.QuizAttemptFinished)
	assert.Equal(t, 70.0, finished.Percentage)
	assert.Equal(t, attempt.ID, finished.Attempt.ID)

	empty, err := svc.SubmitQuiz(ctx, learner, 6, progress.SubmitQuizRequest{Score: 0})
	require.NoError(t, err)
	assert.Zero(t, empty.Percentage, "quiz without questions scores zero")
}

func TestSaveHomophoneCheck(t *testing.T) {
	svc, repo, rec := setup()

	resp, err := svc.SaveHomophoneCheck(context.Background(), learner, progress.HomophoneCheckRequest{
		ArticleID: 1,
		Text:      "a b x d",
	})
	require.NoError(t, err)
	assert.Equal(t, 75.0, resp.Comparison.Accuracy)
	require.Len(t, repo.Checks(), 1)

	saved := rec.events[0].(events.HomophoneCheckSaved)
	assert.Equal(t, resp.Check.ID, saved.CheckID)
	assert.Equal(t, 3, saved.CorrectWords)
	assert.Equal(t, 1, saved.IncorrectWords)
	assert.Equal(t, events.ProgressHomophone, rec.events[1].(events.UserProgressUpdated).ProgressType)
}

func TestRecordTypingSurvivesListenerFailure(t *testing.T) {
	svc, repo, rec := setup()
	rec.err = errors.New("cache down")
	articleID := int64(1)

	session, err := svc.RecordTyping(context.Background(), learner, progress.TypingSessionRequest{
		ArticleID:       &articleID,
		WPM:             42,
		Accuracy:        96,
		DurationSeconds: 60,
	})
	require.NoError(t, err)
	assert.NotZero(t, session.ID)
	assert.Len(t, repo.TypingSessions(), 1)
	assert.Equal(t, []string{events.NameUserProgressUpdated}, rec.names())
}
