// AngelaMos | 2026
// memory.go

// Package analyticstest provides a fixed, in-memory analytics.Source.
package analyticstest

import (
	"context"
	"sync"
	"time"

	"github.com/sorser/backend/internal/analytics"
)

type Source struct {
	mu sync.Mutex

	TotalsByUser map[string]analytics.Totals
	Dates        map[string][]time.Time
	Daily        map[string][]analytics.DayActivity
	Articles     int
	StudentRows  []analytics.StudentRow
	PlatformRow  analytics.PlatformTotals

	// Calls counts Totals lookups, i.e. real recomputations.
	Calls int
}

var _ analytics.Source = (*Source)(nil)

func New() *Source {
	return &Source{
		TotalsByUser: make(map[string]analytics.Totals),
		Dates:        make(map[string][]time.Time),
		Daily:        make(map[string][]analytics.DayActivity),
	}
}

func (s *Source) SetTotals(userID string, t analytics.Totals) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalsByUser[userID] = t
}

func (s *Source) Totals(_ context.Context, userID string) (*analytics.Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	t := s.TotalsByUser[userID]
	return &t, nil
}

func (s *Source) ActiveDates(_ context.Context, userID string) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Dates[userID], nil
}

func (s *Source) DailyActivity(_ context.Context, userID string, since time.Time) ([]analytics.DayActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []analytics.DayActivity
	cutoff := since.Format("2006-01-02")
	for _, d := range s.Daily[userID] {
		if d.Date >= cutoff {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Source) PublishedArticles(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Articles, nil
}

func (s *Source) Students(_ context.Context, f analytics.StudentFilter) ([]analytics.StudentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []analytics.StudentRow
	for _, row := range s.StudentRows {
		if row.ArticlesCompleted < f.MinArticles {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Source) Platform(context.Context) (*analytics.PlatformTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.PlatformRow
	return &p, nil
}
