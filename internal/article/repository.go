// AngelaMos | 2026
// repository.go

package article

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sorser/backend/internal/core"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Article, error)
	Previous(ctx context.Context, a *Article) (*Article, error)
	Next(ctx context.Context, a *Article) (*Article, error)
	CountPublished(ctx context.Context) (int, error)
	BestAccuracy(ctx context.Context, userID string, articleID int64) (float64, bool, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const articleColumns = `id, category_id, title, body, sequence, published, created_at, updated_at`

func (r *repository) GetByID(ctx context.Context, id int64) (*Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1 AND published`

	var a Article
	err := r.db.GetContext(ctx, &a, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get article: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	return &a, nil
}

// Previous returns the published article right before a in its category's
// sequence, or nil when a opens the category.
func (r *repository) Previous(ctx context.Context, a *Article) (*Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE category_id = $1 AND published
		  AND (sequence, id) < ($2, $3)
		ORDER BY sequence DESC, id DESC
		LIMIT 1`

	return r.neighbour(ctx, "previous article", query, a)
}

func (r *repository) Next(ctx context.Context, a *Article) (*Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE category_id = $1 AND published
		  AND (sequence, id) > ($2, $3)
		ORDER BY sequence, id
		LIMIT 1`

	return r.neighbour(ctx, "next article", query, a)
}

func (r *repository) neighbour(ctx context.Context, op, query string, a *Article) (*Article, error) {
	var out Article
	err := r.db.GetContext(ctx, &out, query, a.CategoryID, a.Sequence, a.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

func (r *repository) CountPublished(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM articles WHERE published`); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

func (r *repository) BestAccuracy(
	ctx context.Context,
	userID string,
	articleID int64,
) (float64, bool, error) {
	query := `
		SELECT best_accuracy
		FROM user_article_progress
		WHERE user_id = $1 AND article_id = $2 AND completed_at IS NOT NULL`

	var best sql.NullFloat64
	err := r.db.GetContext(ctx, &best, query, userID, articleID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("best accuracy: %w", err)
	}
	return best.Float64, best.Valid, nil
}
