// AngelaMos | 2026
// repository.go

package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sorser/backend/internal/core"
)

type Repository interface {
	UpsertCompletion(ctx context.Context, c Completion) error
	UpsertHomophone(ctx context.Context, h HomophoneProgress) error
	Get(ctx context.Context, userID string, articleID int64) (*ArticleProgress, error)
	InsertArticleCompletion(ctx context.Context, c *ArticleCompletion) error
	InsertHomophoneCheck(ctx context.Context, check *HomophoneCheck) error
	InsertTypingSession(ctx context.Context, s *TypingSession) error
	InsertQuizAttempt(ctx context.Context, a *QuizAttempt) error
	QuizQuestionCount(ctx context.Context, quizID int64) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// UpsertCompletion keeps one row per (user, article). Repeat completions
// overwrite the latest accuracy, raise the best, add the time spent and
// keep the first completion date.
func (r *repository) UpsertCompletion(ctx context.Context, c Completion) error {
	query := `
		INSERT INTO user_article_progress
			(user_id, article_id, completion_accuracy, best_accuracy,
			 time_spent, attempts, completion_data, completed_at)
		VALUES ($1, $2, $3, $3, $4, 1, $5, $6)
		ON CONFLICT (user_id, article_id) DO UPDATE SET
			completion_accuracy = EXCLUDED.completion_accuracy,
			best_accuracy       = GREATEST(user_article_progress.best_accuracy, EXCLUDED.best_accuracy),
			time_spent          = user_article_progress.time_spent + EXCLUDED.time_spent,
			attempts            = user_article_progress.attempts + 1,
			completion_data     = EXCLUDED.completion_data,
			completed_at        = COALESCE(user_article_progress.completed_at, EXCLUDED.completed_at),
			updated_at          = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		c.UserID,
		c.ArticleID,
		c.Accuracy,
		c.TimeSpent,
		c.Data,
		c.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert completion: %w", err)
	}
	return nil
}

func (r *repository) UpsertHomophone(ctx context.Context, h HomophoneProgress) error {
	query := `
		INSERT INTO user_article_progress
			(user_id, article_id, homophone_accuracy, homophone_total_words,
			 homophone_correct_words, homophone_incorrect_words, homophone_checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, article_id) DO UPDATE SET
			homophone_accuracy        = EXCLUDED.homophone_accuracy,
			homophone_total_words     = EXCLUDED.homophone_total_words,
			homophone_correct_words   = EXCLUDED.homophone_correct_words,
			homophone_incorrect_words = EXCLUDED.homophone_incorrect_words,
			homophone_checked_at      = EXCLUDED.homophone_checked_at,
			updated_at                = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		h.UserID,
		h.ArticleID,
		h.Accuracy,
		h.TotalWords,
		h.CorrectWords,
		h.IncorrectWords,
		h.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert homophone progress: %w", err)
	}
	return nil
}

func (r *repository) Get(ctx context.Context, userID string, articleID int64) (*ArticleProgress, error) {
	query := `
		SELECT user_id, article_id, completion_accuracy, best_accuracy, time_spent,
		       attempts, completion_data, completed_at, homophone_accuracy,
		       homophone_total_words, homophone_correct_words,
		       homophone_incorrect_words, homophone_checked_at, created_at, updated_at
		FROM user_article_progress
		WHERE user_id = $1 AND article_id = $2`

	var p ArticleProgress
	err := r.db.GetContext(ctx, &p, query, userID, articleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get progress: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return &p, nil
}

func (r *repository) InsertArticleCompletion(ctx context.Context, c *ArticleCompletion) error {
	query := `
		INSERT INTO article_completions (user_id, article_id, accuracy, time_spent, completion_data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		c.UserID,
		c.ArticleID,
		c.Accuracy,
		c.TimeSpent,
		c.CompletionData,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert article completion: %w", err)
	}
	return nil
}

func (r *repository) InsertHomophoneCheck(ctx context.Context, check *HomophoneCheck) error {
	query := `
		INSERT INTO homophone_checks
			(user_id, article_id, submitted_text, accuracy, total_words,
			 correct_words, incorrect_words, metrics)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		check.UserID,
		check.ArticleID,
		check.SubmittedText,
		check.Accuracy,
		check.TotalWords,
		check.CorrectWords,
		check.IncorrectWords,
		check.Metrics,
	).Scan(&check.ID, &check.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert homophone check: %w", err)
	}
	return nil
}

func (r *repository) InsertTypingSession(ctx context.Context, s *TypingSession) error {
	query := `
		INSERT INTO typing_sessions (user_id, article_id, wpm, accuracy, duration_seconds)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		s.UserID,
		s.ArticleID,
		s.WPM,
		s.Accuracy,
		s.DurationSeconds,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert typing session: %w", err)
	}
	return nil
}

func (r *repository) InsertQuizAttempt(ctx context.Context, a *QuizAttempt) error {
	query := `
		INSERT INTO quiz_attempts (user_id, quiz_id, score, total_questions, percentage, answers)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		a.UserID,
		a.QuizID,
		a.Score,
		a.TotalQuestions,
		a.Percentage,
		a.Answers,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert quiz attempt: %w", err)
	}
	return nil
}

func (r *repository) QuizQuestionCount(ctx context.Context, quizID int64) (int, error) {
	query := `
		SELECT COUNT(q.id)
		FROM quizzes z
		LEFT JOIN quiz_questions q ON q.quiz_id = z.id
		WHERE z.id = $1
		GROUP BY z.id`

	var n int
	err := r.db.GetContext(ctx, &n, query, quizID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("quiz question count: %w", core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("quiz question count: %w", err)
	}
	return n, nil
}
