// AngelaMos | 2026
// entity.go

package analytics

import (
	"time"
)

const (
	DefaultHistoryDays = 30
	MaxHistoryDays     = 365
)

const dayLayout = "2006-01-02"

// Totals are the raw sums and counts behind a Summary. Averages are
// derived later so a user with no rows in a table still aggregates cleanly.
type Totals struct {
	ArticlesCompleted    int     `db:"articles_completed"`
	ArticleAccuracySum   float64 `db:"article_accuracy_sum"`
	TimeSpent            int     `db:"time_spent"`
	HomophoneSessions    int     `db:"homophone_sessions"`
	HomophoneWords       int     `db:"homophone_words"`
	HomophoneCorrect     int     `db:"homophone_correct"`
	HomophoneAccuracySum float64 `db:"homophone_accuracy_sum"`
	QuizAttempts         int     `db:"quiz_attempts"`
	QuizPercentageSum    float64 `db:"quiz_percentage_sum"`
	QuizBest             float64 `db:"quiz_best"`
	TypingSessions       int     `db:"typing_sessions"`
	TypingWPMSum         float64 `db:"typing_wpm_sum"`
	TypingAccuracySum    float64 `db:"typing_accuracy_sum"`
	TypingSeconds        int     `db:"typing_seconds"`
}

type DayActivity struct {
	Date       string `db:"day"        json:"date"`
	Articles   int    `db:"articles"   json:"articles"`
	Homophones int    `db:"homophones" json:"homophones"`
	Quizzes    int    `db:"quizzes"    json:"quizzes"`
	Typing     int    `db:"typing"     json:"typing"`
}

func (d DayActivity) Total() int {
	return d.Articles + d.Homophones + d.Quizzes + d.Typing
}

type ArticleStats struct {
	Completed       int     `json:"completed"`
	Available       int     `json:"available"`
	CompletionRate  float64 `json:"completion_rate"`
	AverageAccuracy float64 `json:"average_accuracy"`
	TimeSpent       int     `json:"time_spent"`
}

type HomophoneStats struct {
	Sessions        int     `json:"sessions"`
	TotalWords      int     `json:"total_words"`
	CorrectWords    int     `json:"correct_words"`
	AverageAccuracy float64 `json:"average_accuracy"`
	WordAccuracy    float64 `json:"word_accuracy"`
}

type QuizStats struct {
	Attempts          int     `json:"attempts"`
	AveragePercentage float64 `json:"average_percentage"`
	BestPercentage    float64 `json:"best_percentage"`
}

type TypingStats struct {
	Sessions        int     `json:"sessions"`
	AverageWPM      float64 `json:"average_wpm"`
	AverageAccuracy float64 `json:"average_accuracy"`
	TotalSeconds    int     `json:"total_seconds"`
}

type Streak struct {
	Current    int    `json:"current"`
	Longest    int    `json:"longest"`
	LastActive string `json:"last_active,omitempty"`
}

type Summary struct {
	UserID      string         `json:"user_id"`
	Articles    ArticleStats   `json:"articles"`
	Homophones  HomophoneStats `json:"homophones"`
	Quizzes     QuizStats      `json:"quizzes"`
	Typing      TypingStats    `json:"typing"`
	Streak      Streak         `json:"streak"`
	HistoryDays int            `json:"history_days"`
	History     []DayActivity  `json:"history"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Empty reports whether the user has no recorded activity at all.
func (s *Summary) Empty() bool {
	return s.Articles.Completed == 0 &&
		s.Homophones.Sessions == 0 &&
		s.Quizzes.Attempts == 0 &&
		s.Typing.Sessions == 0
}

type StudentFilter struct {
	ActiveSince *time.Time `json:"active_since,omitempty"`
	MinArticles int        `json:"min_articles"           validate:"gte=0"`
	Limit       int        `json:"limit"                  validate:"gte=0,lte=10000"`
}

type StudentRow struct {
	UserID            string     `db:"user_id"            json:"user_id"`
	Name              string     `db:"name"               json:"name"`
	Email             string     `db:"email"              json:"email"`
	ArticlesCompleted int        `db:"articles_completed" json:"articles_completed"`
	AverageAccuracy   float64    `db:"average_accuracy"   json:"average_accuracy"`
	QuizAttempts      int        `db:"quiz_attempts"      json:"quiz_attempts"`
	HomophoneSessions int        `db:"homophone_sessions" json:"homophone_sessions"`
	LastActive        *time.Time `db:"last_active"        json:"last_active,omitempty"`
}

type PlatformTotals struct {
	Users             int     `db:"users"              json:"users"`
	ActiveUsers7d     int     `db:"active_users_7d"    json:"active_users_7d"`
	ArticlesPublished int     `db:"articles_published" json:"articles_published"`
	Completions       int     `db:"completions"        json:"completions"`
	AverageAccuracy   float64 `db:"average_accuracy"   json:"average_accuracy"`
	QuizAttempts      int     `db:"quiz_attempts"      json:"quiz_attempts"`
	HomophoneChecks   int     `db:"homophone_checks"   json:"homophone_checks"`
	TypingSessions    int     `db:"typing_sessions"    json:"typing_sessions"`
}
