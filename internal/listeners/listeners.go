// AngelaMos | 2026
// listeners.go

package listeners

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sorser/backend/internal/article"
	"github.com/sorser/backend/internal/events"
	"github.com/sorser/backend/internal/mail"
	"github.com/sorser/backend/internal/progress"
	"github.com/sorser/backend/internal/user"
)

const DefaultEmailThreshold = 80

type ProgressWriter interface {
	UpsertCompletion(ctx context.Context, c progress.Completion) error
	UpsertHomophone(ctx context.Context, h progress.HomophoneProgress) error
}

type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

type Recalculator interface {
	CalculateUserAnalytics(ctx context.Context, userID string) error
}

type ArticleReader interface {
	GetByID(ctx context.Context, id int64) (*article.Article, error)
}

type UserReader interface {
	GetUser(ctx context.Context, id string) (*user.User, error)
}

// UpdateUserProgress folds activity into the per-article progress row and
// drops the cached analytics for the user.
type UpdateUserProgress struct {
	progress ProgressWriter
	cache    Invalidator
	now      func() time.Time
}

func NewUpdateUserProgress(pw ProgressWriter, cache Invalidator) *UpdateUserProgress {
	return &UpdateUserProgress{progress: pw, cache: cache, now: time.Now}
}

func (l *UpdateUserProgress) Name() string { return "update_user_progress" }

func (l *UpdateUserProgress) Handle(ctx context.Context, ev events.Event) error {
	switch e := ev.(type) {
	case events.ArticleCompleted:
		at := e.OccurredAt
		if at.IsZero() {
			at = l.now()
		}
		err := l.progress.UpsertCompletion(ctx, progress.Completion{
			UserID:      e.UserID,
			ArticleID:   e.ArticleID,
			Accuracy:    e.Accuracy,
			TimeSpent:   e.TimeSpent,
			Data:        e.CompletionData,
			CompletedAt: at,
		})
		if err != nil {
			return fmt.Errorf("upsert completion: %w", err)
		}

	case events.HomophoneCheckSaved:
		err := l.progress.UpsertHomophone(ctx, progress.HomophoneProgress{
			UserID:         e.UserID,
			ArticleID:      e.ArticleID,
			Accuracy:       e.Accuracy,
			TotalWords:     e.TotalWords,
			CorrectWords:   e.CorrectWords,
			IncorrectWords: e.IncorrectWords,
			CheckedAt:      l.now(),
		})
		if err != nil {
			return fmt.Errorf("upsert homophone progress: %w", err)
		}

	case events.QuizAttemptFinished:
		// Quiz attempts are their own rows; only the cache is stale.

	default:
		return nil
	}

	return l.cache.Invalidate(ctx, ev.UserKey())
}

// UnlockNextArticle reports whether the completion opened the next article.
// Access is recomputed on every read, so nothing is written here.
type UnlockNextArticle struct {
	progression *article.Progression
	logger      *slog.Logger
}

func NewUnlockNextArticle(p *article.Progression, logger *slog.Logger) *UnlockNextArticle {
	return &UnlockNextArticle{progression: p, logger: logger}
}

func (l *UnlockNextArticle) Name() string { return "unlock_next_article" }

func (l *UnlockNextArticle) Handle(ctx context.Context, ev events.Event) error {
	e, ok := ev.(events.ArticleCompleted)
	if !ok {
		return nil
	}

	next, access, err := l.progression.NextFor(ctx, e.UserID, e.ArticleID)
	if err != nil {
		return fmt.Errorf("next article: %w", err)
	}
	if next == nil {
		l.logger.DebugContext(ctx, "category finished",
			"user_id", e.UserID,
			"article_id", e.ArticleID,
		)
		return nil
	}

	l.logger.InfoContext(ctx, "next article evaluated",
		"user_id", e.UserID,
		"article_id", e.ArticleID,
		"next_article_id", next.ID,
		"unlocked", access.Unlocked,
		"required_accuracy", access.RequiredAccuracy,
	)
	return nil
}

// SendCompletionEmail congratulates the user on a strong completion. It runs
// queued, so a mail failure is retried by the job rather than the request.
type SendCompletionEmail struct {
	users       UserReader
	articles    ArticleReader
	progression *article.Progression
	mailer      mail.Mailer
	threshold   float64
	frontendURL string
	logger      *slog.Logger
}

type CompletionEmailConfig struct {
	Threshold   float64
	FrontendURL string
}

func NewSendCompletionEmail(
	users UserReader,
	articles ArticleReader,
	progression *article.Progression,
	mailer mail.Mailer,
	cfg CompletionEmailConfig,
	logger *slog.Logger,
) *SendCompletionEmail {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultEmailThreshold
	}
	return &SendCompletionEmail{
		users:       users,
		articles:    articles,
		progression: progression,
		mailer:      mailer,
		threshold:   cfg.Threshold,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		logger:      logger,
	}
}

func (l *SendCompletionEmail) Name() string { return "send_completion_email" }

func (l *SendCompletionEmail) ShouldHandle(ev events.Event) bool {
	e, ok := ev.(events.ArticleCompleted)
	return ok && e.Accuracy >= l.threshold
}

func (l *SendCompletionEmail) Handle(ctx context.Context, ev events.Event) error {
	e, ok := ev.(events.ArticleCompleted)
	if !ok {
		return nil
	}

	u, err := l.users.GetUser(ctx, e.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	a, err := l.articles.GetByID(ctx, e.ArticleID)
	if err != nil {
		return fmt.Errorf("load article: %w", err)
	}

	data := mail.CompletionData{
		Name:         u.Name,
		ArticleTitle: a.Title,
		Accuracy:     e.Accuracy,
	}
	if next, access, err := l.progression.NextFor(ctx, e.UserID, e.ArticleID); err == nil &&
		next != nil && access.Unlocked && l.frontendURL != "" {
		data.NextURL = l.frontendURL + "/articles/" + strconv.FormatInt(next.ID, 10)
	}

	msg, err := mail.CompletionMessage(u.Email, data)
	if err != nil {
		return err
	}
	if err := l.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send completion email: %w", err)
	}

	l.logger.InfoContext(ctx, "completion email sent",
		"user_id", e.UserID,
		"article_id", e.ArticleID,
	)
	return nil
}

// RecalculateAnalytics never computes inline: it drops the cache and queues
// the recompute.
type RecalculateAnalytics struct {
	cache Invalidator
	jobs  Recalculator
}

func NewRecalculateAnalytics(cache Invalidator, jobs Recalculator) *RecalculateAnalytics {
	return &RecalculateAnalytics{cache: cache, jobs: jobs}
}

func (l *RecalculateAnalytics) Name() string { return "recalculate_analytics" }

func (l *RecalculateAnalytics) Handle(ctx context.Context, ev events.Event) error {
	if err := l.cache.Invalidate(ctx, ev.UserKey()); err != nil {
		return fmt.Errorf("invalidate analytics: %w", err)
	}
	return l.jobs.CalculateUserAnalytics(ctx, ev.UserKey())
}
