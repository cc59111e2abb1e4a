// AngelaMos | 2026
// events.go

package events

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

const (
	NameArticleCompleted    = "article.completed"
	NameQuizAttemptFinished = "quiz.attempt_finished"
	NameHomophoneCheckSaved = "homophone.check_saved"
	NameUserProgressUpdated = "progress.updated"
)

const (
	ProgressArticle   = "article"
	ProgressQuiz      = "quiz"
	ProgressHomophone = "homophone"
	ProgressTyping    = "typing"
)

// Event is an immutable fact about a user's activity. Events are only kept
// for the length of a dispatch, except when a queued listener needs one, in
// which case the JSON form rides along with the job.
type Event interface {
	EventName() string
	UserKey() string
}

type ArticleCompleted struct {
	CompletionID   int64          `json:"completion_id"`
	UserID         string         `json:"user_id"`
	ArticleID      int64          `json:"article_id"`
	Accuracy       float64        `json:"accuracy"`
	TimeSpent      int            `json:"time_spent"`
	CompletionData map[string]any `json:"completion_data,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

func (e ArticleCompleted) EventName() string { return NameArticleCompleted }
func (e ArticleCompleted) UserKey() string   { return e.UserID }

type QuizAttempt struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"user_id"`
	QuizID         int64     `json:"quiz_id"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	CreatedAt      time.Time `json:"created_at"`
}

// Percentage is score over total questions as a 0..100 value rounded to two
// decimals. A quiz without questions scores 0.
func (a QuizAttempt) Percentage() float64 {
	if a.TotalQuestions <= 0 {
		return 0
	}
	p := float64(a.Score) / float64(a.TotalQuestions) * 100
	return math.Round(p*100) / 100
}

type QuizAttemptFinished struct {
	Attempt    QuizAttempt `json:"attempt"`
	Percentage float64     `json:"percentage"`
}

func NewQuizAttemptFinished(a QuizAttempt) QuizAttemptFinished {
	return QuizAttemptFinished{Attempt: a, Percentage: a.Percentage()}
}

func (e QuizAttemptFinished) EventName() string { return NameQuizAttemptFinished }
func (e QuizAttemptFinished) UserKey() string   { return e.Attempt.UserID }

type HomophoneCheckSaved struct {
	UserID         string         `json:"user_id"`
	ArticleID      int64          `json:"article_id"`
	CheckID        int64          `json:"check_id"`
	Accuracy       float64        `json:"accuracy"`
	TotalWords     int            `json:"total_words"`
	CorrectWords   int            `json:"correct_words"`
	IncorrectWords int            `json:"incorrect_words"`
	Metrics        map[string]any `json:"metrics,omitempty"`
}

func (e HomophoneCheckSaved) EventName() string { return NameHomophoneCheckSaved }
func (e HomophoneCheckSaved) UserKey() string   { return e.UserID }

type UserProgressUpdated struct {
	UserID       string         `json:"user_id"`
	ProgressType string         `json:"progress_type"`
	Data         map[string]any `json:"data,omitempty"`
}

func (e UserProgressUpdated) EventName() string { return NameUserProgressUpdated }
func (e UserProgressUpdated) UserKey() string   { return e.UserID }

// Decode rebuilds an event from its name and JSON body.
func Decode(name string, raw json.RawMessage) (Event, error) {
	var (
		ev  Event
		err error
	)

	switch name {
	case NameArticleCompleted:
		var e ArticleCompleted
		err = json.Unmarshal(raw, &e)
		ev = e
	case NameQuizAttemptFinished:
		var e QuizAttemptFinished
		err = json.Unmarshal(raw, &e)
		ev = e
	case NameHomophoneCheckSaved:
		var e HomophoneCheckSaved
		err = json.Unmarshal(raw, &e)
		ev = e
	case NameUserProgressUpdated:
		var e UserProgressUpdated
		err = json.Unmarshal(raw, &e)
		ev = e
	default:
		return nil, fmt.Errorf("decode event: unknown event %q", name)
	}

	if err != nil {
		return nil, fmt.Errorf("decode event %s: %w", name, err)
	}
	return ev, nil
}
