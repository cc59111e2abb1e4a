// AngelaMos | 2026
// memory.go

// Package progresstest provides an in-memory progress.Repository that
// applies the same upsert rules as the SQL one.
package progresstest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sorser/backend/internal/core"
	"github.com/sorser/backend/internal/progress"
)

type key struct {
	user    string
	article int64
}

type Repository struct {
	mu       sync.Mutex
	rows     map[key]*progress.ArticleProgress
	quizzes  map[int64]int
	done     []progress.ArticleCompletion
	checks   []progress.HomophoneCheck
	typing   []progress.TypingSession
	attempts []progress.QuizAttempt
	nextID   int64

	// Err, when set, is returned by every upsert.
	Err error
	// InsertErr, when set, is returned by every raw insert.
	InsertErr error
}

var _ progress.Repository = (*Repository)(nil)

func New() *Repository {
	return &Repository{
		rows:    make(map[key]*progress.ArticleProgress),
		quizzes: make(map[int64]int),
	}
}

func (r *Repository) AddQuiz(id int64, questions int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quizzes[id] = questions
}

func (r *Repository) UpsertCompletion(_ context.Context, c progress.Completion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}

	row := r.row(c.UserID, c.ArticleID)
	acc := c.Accuracy
	row.CompletionAccuracy = &acc
	if row.BestAccuracy == nil || *row.BestAccuracy < acc {
		best := acc
		row.BestAccuracy = &best
	}
	row.TimeSpent += c.TimeSpent
	row.Attempts++
	row.CompletionData = c.Data
	if row.CompletedAt == nil {
		at := c.CompletedAt
		row.CompletedAt = &at
	}
	row.UpdatedAt = time.Now()
	return nil
}

func (r *Repository) UpsertHomophone(_ context.Context, h progress.HomophoneProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}

	row := r.row(h.UserID, h.ArticleID)
	acc := h.Accuracy
	at := h.CheckedAt
	row.HomophoneAccuracy = &acc
	row.HomophoneTotalWords = h.TotalWords
	row.HomophoneCorrectWords = h.CorrectWords
	row.HomophoneIncorrectWords = h.IncorrectWords
	row.HomophoneCheckedAt = &at
	row.UpdatedAt = time.Now()
	return nil
}

func (r *Repository) Get(_ context.Context, userID string, articleID int64) (*progress.ArticleProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[key{userID, articleID}]
	if !ok {
		return nil, fmt.Errorf("get progress: %w", core.ErrNotFound)
	}
	cp := *row
	return &cp, nil
}

func (r *Repository) InsertArticleCompletion(_ context.Context, c *progress.ArticleCompletion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.InsertErr != nil {
		return r.InsertErr
	}

	r.nextID++
	c.ID = r.nextID
	c.CreatedAt = time.Now()
	r.done = append(r.done, *c)
	return nil
}

func (r *Repository) InsertHomophoneCheck(_ context.Context, check *progress.HomophoneCheck) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.InsertErr != nil {
		return r.InsertErr
	}

	r.nextID++
	check.ID = r.nextID
	check.CreatedAt = time.Now()
	r.checks = append(r.checks, *check)
	return nil
}

func (r *Repository) InsertTypingSession(_ context.Context, s *progress.TypingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.InsertErr != nil {
		return r.InsertErr
	}

	r.nextID++
	s.ID = r.nextID
	s.CreatedAt = time.Now()
	r.typing = append(r.typing, *s)
	return nil
}

func (r *Repository) InsertQuizAttempt(_ context.Context, a *progress.QuizAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.InsertErr != nil {
		return r.InsertErr
	}

	r.nextID++
	a.ID = r.nextID
	a.CreatedAt = time.Now()
	r.attempts = append(r.attempts, *a)
	return nil
}

func (r *Repository) QuizQuestionCount(_ context.Context, quizID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.quizzes[quizID]
	if !ok {
		return 0, fmt.Errorf("quiz question count: %w", core.ErrNotFound)
	}
	return n, nil
}

// Rows is the number of (user, article) progress rows.
func (r *Repository) Rows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *Repository) Completions() []progress.ArticleCompletion {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progress.ArticleCompletion(nil), r.done...)
}

func (r *Repository) Attempts() []progress.QuizAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progress.QuizAttempt(nil), r.attempts...)
}

func (r *Repository) Checks() []progress.HomophoneCheck {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progress.HomophoneCheck(nil), r.checks...)
}

func (r *Repository) TypingSessions() []progress.TypingSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progress.TypingSession(nil), r.typing...)
}

func (r *Repository) row(userID string, articleID int64) *progress.ArticleProgress {
	k := key{userID, articleID}
	row, ok := r.rows[k]
	if !ok {
		now := time.Now()
		row = &progress.ArticleProgress{UserID: userID, ArticleID: articleID, CreatedAt: now}
		r.rows[k] = row
	}
	return row
}
