// AngelaMos | 2026
// service.go

package progress

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/sorser/backend/internal/article"
	"github.com/sorser/backend/internal/core"
	"github.com/sorser/backend/internal/events"
)

type ArticleReader interface {
	GetByID(ctx context.Context, id int64) (*article.Article, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, ev events.Event) error
}

// Service validates a learner's activity, records the raw session and
// announces it. Derived state (progress rows, caches, analytics) is owned
// by the listeners.
type Service struct {
	repo      Repository
	articles  ArticleReader
	bus       Dispatcher
	validator *validator.Validate
	logger    *slog.Logger
}

func NewService(repo Repository, articles ArticleReader, bus Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		articles:  articles,
		bus:       bus,
		validator: core.NewValidator(),
		logger:    logger.With("component", "progress"),
	}
}

func (s *Service) CompleteArticle(
	ctx context.Context,
	userID string,
	articleID int64,
	req CompleteArticleRequest,
) (*CompletionResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	if _, err := s.articles.GetByID(ctx, articleID); err != nil {
		return nil, fmt.Errorf("complete article: %w", err)
	}

	row := &ArticleCompletion{
		UserID:         userID,
		ArticleID:      articleID,
		Accuracy:       req.Accuracy,
		TimeSpent:      req.TimeSpent,
		CompletionData: req.CompletionData,
	}
	if err := s.repo.InsertArticleCompletion(ctx, row); err != nil {
		return nil, fmt.Errorf("complete article: %w", err)
	}

	s.dispatch(ctx,
		events.ArticleCompleted{
			CompletionID:   row.ID,
			UserID:         userID,
			ArticleID:      articleID,
			Accuracy:       req.Accuracy,
			TimeSpent:      req.TimeSpent,
			CompletionData: req.CompletionData,
			OccurredAt:     row.CreatedAt.UTC(),
		},
		events.UserProgressUpdated{
			UserID:       userID,
			ProgressType: events.ProgressArticle,
			Data: map[string]any{
				"article_id":    articleID,
				"completion_id": row.ID,
				"accuracy":      req.Accuracy,
			},
		},
	)

	return &CompletionResponse{
		ID:        row.ID,
		ArticleID: articleID,
		Accuracy:  req.Accuracy,
		TimeSpent: req.TimeSpent,
	}, nil
}

func (s *Service) SubmitQuiz(
	ctx context.Context,
	userID string,
	quizID int64,
	req SubmitQuizRequest,
) (*QuizAttempt, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	total, err := s.repo.QuizQuestionCount(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("submit quiz: %w", err)
	}
	if req.Score > total {
		return nil, fmt.Errorf("%w: score %d exceeds %d questions", core.ErrInvalidInput, req.Score, total)
	}

	attempt := events.QuizAttempt{
		UserID:         userID,
		QuizID:         quizID,
		Score:          req.Score,
		TotalQuestions: total,
	}
	row := &QuizAttempt{
		UserID:         userID,
		QuizID:         quizID,
		Score:          req.Score,
		TotalQuestions: total,
		Percentage:     attempt.Percentage(),
		Answers:        req.Answers,
	}
	if err := s.repo.InsertQuizAttempt(ctx, row); err != nil {
		return nil, fmt.Errorf("submit quiz: %w", err)
	}
	attempt.ID = row.ID
	attempt.CreatedAt = row.CreatedAt

	finished := events.NewQuizAttemptFinished(attempt)
	s.dispatch(ctx,
		finished,
		events.UserProgressUpdated{
			UserID:       userID,
			ProgressType: events.ProgressQuiz,
			Data: map[string]any{
				"quiz_id":    quizID,
				"attempt_id": row.ID,
				"percentage": finished.Percentage,
			},
		},
	)

	return row, nil
}

func (s *Service) SaveHomophoneCheck(
	ctx context.Context,
	userID string,
	req HomophoneCheckRequest,
) (*HomophoneCheckResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	a, err := s.articles.GetByID(ctx, req.ArticleID)
	if err != nil {
		return nil, fmt.Errorf("homophone check: %w", err)
	}

	cmp := Compare(a.Body, req.Text)
	check := &HomophoneCheck{
		UserID:         userID,
		ArticleID:      a.ID,
		SubmittedText:  req.Text,
		Accuracy:       cmp.Accuracy,
		TotalWords:     cmp.TotalWords,
		CorrectWords:   cmp.CorrectWords,
		IncorrectWords: cmp.IncorrectWords,
		Metrics:        cmp.Metrics(),
	}
	if err := s.repo.InsertHomophoneCheck(ctx, check); err != nil {
		return nil, fmt.Errorf("homophone check: %w", err)
	}

	s.dispatch(ctx,
		events.HomophoneCheckSaved{
			UserID:         userID,
			ArticleID:      a.ID,
			CheckID:        check.ID,
			Accuracy:       cmp.Accuracy,
			TotalWords:     cmp.TotalWords,
			CorrectWords:   cmp.CorrectWords,
			IncorrectWords: cmp.IncorrectWords,
			Metrics:        check.Metrics,
		},
		events.UserProgressUpdated{
			UserID:       userID,
			ProgressType: events.ProgressHomophone,
			Data: map[string]any{
				"article_id": a.ID,
				"check_id":   check.ID,
				"accuracy":   cmp.Accuracy,
			},
		},
	)

	return &HomophoneCheckResponse{Check: check, Comparison: cmp}, nil
}

func (s *Service) RecordTyping(
	ctx context.Context,
	userID string,
	req TypingSessionRequest,
) (*TypingSession, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	if req.ArticleID != nil {
		if _, err := s.articles.GetByID(ctx, *req.ArticleID); err != nil {
			return nil, fmt.Errorf("typing session: %w", err)
		}
	}

	session := &TypingSession{
		UserID:          userID,
		ArticleID:       req.ArticleID,
		WPM:             req.WPM,
		Accuracy:        req.Accuracy,
		DurationSeconds: req.DurationSeconds,
	}
	if err := s.repo.InsertTypingSession(ctx, session); err != nil {
		return nil, fmt.Errorf("typing session: %w", err)
	}

	s.dispatch(ctx, events.UserProgressUpdated{
		UserID:       userID,
		ProgressType: events.ProgressTyping,
		Data: map[string]any{
			"session_id": session.ID,
			"wpm":        req.WPM,
			"accuracy":   req.Accuracy,
		},
	})

	return session, nil
}

func (s *Service) check(req any) error {
	if err := s.validator.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", core.ErrInvalidInput, core.FormatValidationError(err))
	}
	return nil
}

// dispatch fires events in order. The activity is already accepted at this
// point, so listener failures are left to the bus's logs and metrics.
func (s *Service) dispatch(ctx context.Context, evs ...events.Event) {
	for _, ev := range evs {
		if err := s.bus.Dispatch(ctx, ev); err != nil {
			s.logger.WarnContext(ctx, "progress listeners reported errors",
				"event", ev.EventName(),
				"user_id", ev.UserKey(),
				"error", err,
			)
		}
	}
}
