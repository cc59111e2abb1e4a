// AngelaMos | 2026
// entity.go

package progress

import (
	"time"

	"github.com/sorser/backend/internal/core"
)

// ArticleProgress is the single row kept per (user, article). Completion
// and homophone results are merged into it by upsert.
type ArticleProgress struct {
	UserID                  string       `db:"user_id"                   json:"user_id"`
	ArticleID               int64        `db:"article_id"                json:"article_id"`
	CompletionAccuracy      *float64     `db:"completion_accuracy"       json:"completion_accuracy,omitempty"`
	BestAccuracy            *float64     `db:"best_accuracy"             json:"best_accuracy,omitempty"`
	TimeSpent               int          `db:"time_spent"                json:"time_spent"`
	Attempts                int          `db:"attempts"                  json:"attempts"`
	CompletionData          core.JSONMap `db:"completion_data"           json:"completion_data,omitempty"`
	CompletedAt             *time.Time   `db:"completed_at"              json:"completed_at,omitempty"`
	HomophoneAccuracy       *float64     `db:"homophone_accuracy"        json:"homophone_accuracy,omitempty"`
	HomophoneTotalWords     int          `db:"homophone_total_words"     json:"homophone_total_words"`
	HomophoneCorrectWords   int          `db:"homophone_correct_words"   json:"homophone_correct_words"`
	HomophoneIncorrectWords int          `db:"homophone_incorrect_words" json:"homophone_incorrect_words"`
	HomophoneCheckedAt      *time.Time   `db:"homophone_checked_at"      json:"homophone_checked_at,omitempty"`
	CreatedAt               time.Time    `db:"created_at"                json:"created_at"`
	UpdatedAt               time.Time    `db:"updated_at"                json:"updated_at"`
}

// ArticleCompletion is the raw record of one completion. Every repeat is
// kept, unlike the merged progress row.
type ArticleCompletion struct {
	ID             int64        `db:"id"              json:"id"`
	UserID         string       `db:"user_id"         json:"user_id"`
	ArticleID      int64        `db:"article_id"      json:"article_id"`
	Accuracy       float64      `db:"accuracy"        json:"accuracy"`
	TimeSpent      int          `db:"time_spent"      json:"time_spent"`
	CompletionData core.JSONMap `db:"completion_data" json:"completion_data,omitempty"`
	CreatedAt      time.Time    `db:"created_at"      json:"created_at"`
}

type Completion struct {
	UserID      string
	ArticleID   int64
	Accuracy    float64
	TimeSpent   int
	Data        core.JSONMap
	CompletedAt time.Time
}

type HomophoneProgress struct {
	UserID         string
	ArticleID      int64
	Accuracy       float64
	TotalWords     int
	CorrectWords   int
	IncorrectWords int
	CheckedAt      time.Time
}

type HomophoneCheck struct {
	ID             int64        `db:"id"              json:"id"`
	UserID         string       `db:"user_id"         json:"user_id"`
	ArticleID      int64        `db:"article_id"      json:"article_id"`
	SubmittedText  string       `db:"submitted_text"  json:"submitted_text"`
	Accuracy       float64      `db:"accuracy"        json:"accuracy"`
	TotalWords     int          `db:"total_words"     json:"total_words"`
	CorrectWords   int          `db:"correct_words"   json:"correct_words"`
	IncorrectWords int          `db:"incorrect_words" json:"incorrect_words"`
	Metrics        core.JSONMap `db:"metrics"         json:"metrics,omitempty"`
	CreatedAt      time.Time    `db:"created_at"      json:"created_at"`
}

type TypingSession struct {
	ID              int64     `db:"id"               json:"id"`
	UserID          string    `db:"user_id"          json:"user_id"`
	ArticleID       *int64    `db:"article_id"       json:"article_id,omitempty"`
	WPM             float64   `db:"wpm"              json:"wpm"`
	Accuracy        float64   `db:"accuracy"         json:"accuracy"`
	DurationSeconds int       `db:"duration_seconds" json:"duration_seconds"`
	CreatedAt       time.Time `db:"created_at"       json:"created_at"`
}

type QuizAttempt struct {
	ID             int64        `db:"id"              json:"id"`
	UserID         string       `db:"user_id"         json:"user_id"`
	QuizID         int64        `db:"quiz_id"         json:"quiz_id"`
	Score          int          `db:"score"           json:"score"`
	TotalQuestions int          `db:"total_questions" json:"total_questions"`
	Percentage     float64      `db:"percentage"      json:"percentage"`
	Answers        core.JSONMap `db:"answers"         json:"answers,omitempty"`
	CreatedAt      time.Time    `db:"created_at"      json:"created_at"`
}
