// AngelaMos | 2026
// aggregator.go

package analytics

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// Aggregator derives a Summary from the raw activity tables. It never
// caches; see Service for the read-through path.
type Aggregator struct {
	source Source
	now    func() time.Time
}

func NewAggregator(source Source) *Aggregator {
	return &Aggregator{source: source, now: time.Now}
}

func (a *Aggregator) Summarize(ctx context.Context, userID string, historyDays int) (*Summary, error) {
	historyDays = ClampDays(historyDays)
	now := a.now().UTC()
	today := truncateDay(now)
	since := today.AddDate(0, 0, -(historyDays - 1))

	var (
		totals    *Totals
		available int
		dates     []time.Time
		daily     []DayActivity
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals, err = a.source.Totals(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		available, err = a.source.PublishedArticles(gctx)
		return err
	})
	g.Go(func() (err error) {
		dates, err = a.source.ActiveDates(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		daily, err = a.source.DailyActivity(gctx, userID, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("summarize %s: %w", userID, err)
	}

	t := *totals
	return &Summary{
		UserID: userID,
		Articles: ArticleStats{
			Completed:       t.ArticlesCompleted,
			Available:       available,
			CompletionRate:  ratio(float64(t.ArticlesCompleted)*100, float64(available)),
			AverageAccuracy: ratio(t.ArticleAccuracySum, float64(t.ArticlesCompleted)),
			TimeSpent:       t.TimeSpent,
		},
		Homophones: HomophoneStats{
			Sessions:        t.HomophoneSessions,
			TotalWords:      t.HomophoneWords,
			CorrectWords:    t.HomophoneCorrect,
			AverageAccuracy: ratio(t.HomophoneAccuracySum, float64(t.HomophoneSessions)),
			WordAccuracy:    ratio(float64(t.HomophoneCorrect)*100, float64(t.HomophoneWords)),
		},
		Quizzes: QuizStats{
			Attempts:          t.QuizAttempts,
			AveragePercentage: ratio(t.QuizPercentageSum, float64(t.QuizAttempts)),
			BestPercentage:    round2(t.QuizBest),
		},
		Typing: TypingStats{
			Sessions:        t.TypingSessions,
			AverageWPM:      ratio(t.TypingWPMSum, float64(t.TypingSessions)),
			AverageAccuracy: ratio(t.TypingAccuracySum, float64(t.TypingSessions)),
			TotalSeconds:    t.TypingSeconds,
		},
		Streak:      ComputeStreak(dates, today),
		HistoryDays: historyDays,
		History:     fillHistory(daily, since, historyDays),
		GeneratedAt: now,
	}, nil
}

func ClampDays(days int) int {
	switch {
	case days <= 0:
		return DefaultHistoryDays
	case days > MaxHistoryDays:
		return MaxHistoryDays
	}
	return days
}

// ComputeStreak counts consecutive active days. The current streak stays
// alive through today as long as yesterday was active.
func ComputeStreak(dates []time.Time, today time.Time) Streak {
	if len(dates) == 0 {
		return Streak{}
	}

	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		days = append(days, truncateDay(d))
	}
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })
	days = slices.CompactFunc(days, func(a, b time.Time) bool { return a.Equal(b) })

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
	}

	last := days[len(days)-1]
	current := 0
	if gap := truncateDay(today).Sub(last); gap >= 0 && gap <= 24*time.Hour {
		current = run
	}

	return Streak{Current: current, Longest: longest, LastActive: last.Format(dayLayout)}
}

func fillHistory(daily []DayActivity, since time.Time, days int) []DayActivity {
	byDay := make(map[string]DayActivity, len(daily))
	for _, d := range daily {
		byDay[d.Date] = d
	}

	out := make([]DayActivity, 0, days)
	for i := range days {
		key := since.AddDate(0, 0, i).Format(dayLayout)
		d, ok := byDay[key]
		if !ok {
			d = DayActivity{Date: key}
		}
		out = append(out, d)
	}
	return out
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return round2(num / den)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
