// AngelaMos | 2026
// achievements.go

package analytics

import (
	"fmt"
	"slices"
	"time"
)

const (
	ReportWeekly  = "weekly"
	ReportMonthly = "monthly"
)

type Achievement struct {
	Code  string `json:"code"`
	Title string `json:"title"`
}

var achievementRules = []struct {
	Achievement
	earned func(*Summary) bool
}{
	{Achievement{"first_article", "Completed a first article"}, func(s *Summary) bool { return s.Articles.Completed >= 1 }},
	{Achievement{"ten_articles", "Completed ten articles"}, func(s *Summary) bool { return s.Articles.Completed >= 10 }},
	{Achievement{"all_articles", "Completed every article"}, func(s *Summary) bool {
		return s.Articles.Available > 0 && s.Articles.Completed >= s.Articles.Available
	}},
	{Achievement{"perfect_quiz", "Scored 100% on a quiz"}, func(s *Summary) bool { return s.Quizzes.BestPercentage >= 100 }},
	{Achievement{"homophone_hunter", "Ten homophone checks above 90% on average"}, func(s *Summary) bool {
		return s.Homophones.Sessions >= 10 && s.Homophones.AverageAccuracy >= 90
	}},
	{Achievement{"week_streak", "Practised seven days in a row"}, func(s *Summary) bool { return s.Streak.Longest >= 7 }},
	{Achievement{"month_streak", "Practised thirty days in a row"}, func(s *Summary) bool { return s.Streak.Longest >= 30 }},
}

func Achievements(s *Summary) []Achievement {
	out := []Achievement{}
	for _, rule := range achievementRules {
		if rule.earned(s) {
			out = append(out, rule.Achievement)
		}
	}
	return out
}

// ReportWindow is the history length, in days, for a report type.
func ReportWindow(reportType string) (int, error) {
	switch reportType {
	case ReportWeekly:
		return 7, nil
	case ReportMonthly:
		return 30, nil
	}
	return 0, fmt.Errorf("unknown report type %q", reportType)
}

type Report struct {
	UserID       string        `json:"user_id"`
	Type         string        `json:"type"`
	From         string        `json:"from"`
	To           string        `json:"to"`
	Summary      *Summary      `json:"summary"`
	Achievements []Achievement `json:"achievements"`
	ActiveDays   int           `json:"active_days"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

func BuildReport(reportType string, s *Summary) *Report {
	r := &Report{
		UserID:       s.UserID,
		Type:         reportType,
		Summary:      s,
		Achievements: Achievements(s),
		GeneratedAt:  s.GeneratedAt,
	}
	if len(s.History) > 0 {
		r.From = s.History[0].Date
		r.To = s.History[len(s.History)-1].Date
	}
	r.ActiveDays = len(slices.DeleteFunc(slices.Clone(s.History), func(d DayActivity) bool { return d.Total() == 0 }))
	return r
}
