// AngelaMos | 2026
// memory.go

// Package articletest provides an in-memory article.Repository.
package articletest

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/sorser/backend/internal/article"
	"github.com/sorser/backend/internal/core"
)

type Repository struct {
	mu       sync.Mutex
	articles map[int64]article.Article
	best     map[string]float64
}

var _ article.Repository = (*Repository)(nil)

func New(articles ...article.Article) *Repository {
	r := &Repository{
		articles: make(map[int64]article.Article),
		best:     make(map[string]float64),
	}
	for _, a := range articles {
		a.Published = true
		r.articles[a.ID] = a
	}
	return r
}

// SetBest records a completed article's best accuracy for a user.
func (r *Repository) SetBest(userID string, articleID int64, accuracy float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.best[bestKey(userID, articleID)] = accuracy
}

func (r *Repository) GetByID(_ context.Context, id int64) (*article.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.articles[id]
	if !ok || !a.Published {
		return nil, fmt.Errorf("get article: %w", core.ErrNotFound)
	}
	return &a, nil
}

func (r *Repository) Previous(_ context.Context, a *article.Article) (*article.Article, error) {
	seq := r.category(a.CategoryID)
	i := slices.IndexFunc(seq, func(x article.Article) bool { return x.ID == a.ID })
	if i <= 0 {
		return nil, nil
	}
	return &seq[i-1], nil
}

func (r *Repository) Next(_ context.Context, a *article.Article) (*article.Article, error) {
	seq := r.category(a.CategoryID)
	i := slices.IndexFunc(seq, func(x article.Article) bool { return x.ID == a.ID })
	if i < 0 || i+1 >= len(seq) {
		return nil, nil
	}
	return &seq[i+1], nil
}

func (r *Repository) CountPublished(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, a := range r.articles {
		if a.Published {
			n++
		}
	}
	return n, nil
}

func (r *Repository) BestAccuracy(_ context.Context, userID string, articleID int64) (float64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.best[bestKey(userID, articleID)]
	return v, ok, nil
}

func (r *Repository) category(id int64) []article.Article {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []article.Article
	for _, a := range r.articles {
		if a.CategoryID == id && a.Published {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(x, y article.Article) int {
		if c := cmp.Compare(x.Sequence, y.Sequence); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})
	return out
}

func bestKey(userID string, articleID int64) string {
	return fmt.Sprintf("%s/%d", userID, articleID)
}
