// AngelaMos | 2026
// repository.go

package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/sorser/backend/internal/core"
)

// Source reads the raw activity tables. Nothing here writes.
type Source interface {
	Totals(ctx context.Context, userID string) (*Totals, error)
	ActiveDates(ctx context.Context, userID string) ([]time.Time, error)
	DailyActivity(ctx context.Context, userID string, since time.Time) ([]DayActivity, error)
	PublishedArticles(ctx context.Context) (int, error)
	Students(ctx context.Context, f StudentFilter) ([]StudentRow, error)
	Platform(ctx context.Context) (*PlatformTotals, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Source {
	return &repository{db: db}
}

func (r *repository) Totals(ctx context.Context, userID string) (*Totals, error) {
	query := `
		SELECT
			p.articles_completed, p.article_accuracy_sum, p.time_spent,
			h.homophone_sessions, h.homophone_words, h.homophone_correct, h.homophone_accuracy_sum,
			q.quiz_attempts, q.quiz_percentage_sum, q.quiz_best,
			t.typing_sessions, t.typing_wpm_sum, t.typing_accuracy_sum, t.typing_seconds
		FROM
			(SELECT COUNT(*) FILTER (WHERE completed_at IS NOT NULL)                          AS articles_completed,
			        COALESCE(SUM(completion_accuracy) FILTER (WHERE completed_at IS NOT NULL), 0) AS article_accuracy_sum,
			        COALESCE(SUM(time_spent), 0)                                              AS time_spent
			 FROM user_article_progress WHERE user_id = $1) p,
			(SELECT COUNT(*)                         AS homophone_sessions,
			        COALESCE(SUM(total_words), 0)    AS homophone_words,
			        COALESCE(SUM(correct_words), 0)  AS homophone_correct,
			        COALESCE(SUM(accuracy), 0)       AS homophone_accuracy_sum
			 FROM homophone_checks WHERE user_id = $1) h,
			(SELECT COUNT(*)                         AS quiz_attempts,
			        COALESCE(SUM(percentage), 0)     AS quiz_percentage_sum,
			        COALESCE(MAX(percentage), 0)     AS quiz_best
			 FROM quiz_attempts WHERE user_id = $1) q,
			(SELECT COUNT(*)                           AS typing_sessions,
			        COALESCE(SUM(wpm), 0)              AS typing_wpm_sum,
			        COALESCE(SUM(accuracy), 0)         AS typing_accuracy_sum,
			        COALESCE(SUM(duration_seconds), 0) AS typing_seconds
			 FROM typing_sessions WHERE user_id = $1) t`

	var t Totals
	if err := r.db.GetContext(ctx, &t, query, userID); err != nil {
		return nil, fmt.Errorf("analytics totals: %w", err)
	}
	return &t, nil
}

const activityUnion = `
	SELECT created_at::date AS day, 1 AS articles, 0 AS homophones, 0 AS quizzes, 0 AS typing
	FROM article_completions WHERE user_id = $1
	UNION ALL
	SELECT created_at::date, 0, 1, 0, 0 FROM homophone_checks WHERE user_id = $1
	UNION ALL
	SELECT created_at::date, 0, 0, 1, 0 FROM quiz_attempts WHERE user_id = $1
	UNION ALL
	SELECT created_at::date, 0, 0, 0, 1 FROM typing_sessions WHERE user_id = $1`

func (r *repository) ActiveDates(ctx context.Context, userID string) ([]time.Time, error) {
	query := `SELECT DISTINCT day FROM (` + activityUnion + `) a ORDER BY day`

	var days []time.Time
	if err := r.db.SelectContext(ctx, &days, query, userID); err != nil {
		return nil, fmt.Errorf("active dates: %w", err)
	}
	return days, nil
}

func (r *repository) DailyActivity(
	ctx context.Context,
	userID string,
	since time.Time,
) ([]DayActivity, error) {
	query := `
		SELECT to_char(day, 'YYYY-MM-DD') AS day,
		       SUM(articles)   AS articles,
		       SUM(homophones) AS homophones,
		       SUM(quizzes)    AS quizzes,
		       SUM(typing)     AS typing
		FROM (` + activityUnion + `) a
		WHERE day >= $2::date
		GROUP BY day
		ORDER BY day`

	var out []DayActivity
	if err := r.db.SelectContext(ctx, &out, query, userID, since); err != nil {
		return nil, fmt.Errorf("daily activity: %w", err)
	}
	return out, nil
}

func (r *repository) PublishedArticles(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM articles WHERE published`); err != nil {
		return 0, fmt.Errorf("published articles: %w", err)
	}
	return n, nil
}

func (r *repository) Students(ctx context.Context, f StudentFilter) ([]StudentRow, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 1000
	}

	query := `
		SELECT u.id AS user_id, u.name, u.email,
		       COALESCE(p.completed, 0)    AS articles_completed,
		       COALESCE(p.avg_accuracy, 0) AS average_accuracy,
		       COALESCE(q.attempts, 0)     AS quiz_attempts,
		       COALESCE(h.sessions, 0)     AS homophone_sessions,
		       GREATEST(p.last_at, q.last_at, h.last_at) AS last_active
		FROM users u
		LEFT JOIN (
			SELECT user_id, COUNT(*) AS completed, AVG(completion_accuracy) AS avg_accuracy,
			       MAX(completed_at) AS last_at
			FROM user_article_progress WHERE completed_at IS NOT NULL GROUP BY user_id
		) p ON p.user_id = u.id
		LEFT JOIN (
			SELECT user_id, COUNT(*) AS attempts, MAX(created_at) AS last_at
			FROM quiz_attempts GROUP BY user_id
		) q ON q.user_id = u.id
		LEFT JOIN (
			SELECT user_id, COUNT(*) AS sessions, MAX(created_at) AS last_at
			FROM homophone_checks GROUP BY user_id
		) h ON h.user_id = u.id
		WHERE u.deleted_at IS NULL
		  AND COALESCE(p.completed, 0) >= $1
		  AND ($2::timestamptz IS NULL OR GREATEST(p.last_at, q.last_at, h.last_at) >= $2)
		ORDER BY u.created_at
		LIMIT $3`

	var rows []StudentRow
	if err := r.db.SelectContext(ctx, &rows, query, f.MinArticles, f.ActiveSince, limit); err != nil {
		return nil, fmt.Errorf("students export: %w", err)
	}
	return rows, nil
}

func (r *repository) Platform(ctx context.Context) (*PlatformTotals, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users WHERE deleted_at IS NULL) AS users,
			(SELECT COUNT(DISTINCT user_id) FROM (
				SELECT user_id FROM user_article_progress WHERE updated_at >= NOW() - INTERVAL '7 days'
				UNION SELECT user_id FROM quiz_attempts WHERE created_at >= NOW() - INTERVAL '7 days'
				UNION SELECT user_id FROM homophone_checks WHERE created_at >= NOW() - INTERVAL '7 days'
				UNION SELECT user_id FROM typing_sessions WHERE created_at >= NOW() - INTERVAL '7 days'
			) a) AS active_users_7d,
			(SELECT COUNT(*) FROM articles WHERE published) AS articles_published,
			(SELECT COUNT(*) FROM user_article_progress WHERE completed_at IS NOT NULL) AS completions,
			(SELECT COALESCE(AVG(completion_accuracy), 0) FROM user_article_progress
			  WHERE completed_at IS NOT NULL) AS average_accuracy,
			(SELECT COUNT(*) FROM quiz_attempts) AS quiz_attempts,
			(SELECT COUNT(*) FROM homophone_checks) AS homophone_checks,
			(SELECT COUNT(*) FROM typing_sessions) AS typing_sessions`

	var p PlatformTotals
	if err := r.db.GetContext(ctx, &p, query); err != nil {
		return nil, fmt.Errorf("platform totals: %w", err)
	}
	return &p, nil
}
