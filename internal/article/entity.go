// AngelaMos | 2026
// entity.go

package article

import (
	"time"
)

type Article struct {
	ID         int64     `db:"id"`
	CategoryID int64     `db:"category_id"`
	Title      string    `db:"title"`
	Body       string    `db:"body"`
	Sequence   int       `db:"sequence"`
	Published  bool      `db:"published"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Access is the progression verdict for one user and article. It is
// computed on every request and never stored.
type Access struct {
	ArticleID         int64    `json:"article_id"`
	Unlocked          bool     `json:"unlocked"`
	RequiredAccuracy  float64  `json:"required_accuracy"`
	PreviousArticleID *int64   `json:"previous_article_id,omitempty"`
	PreviousBest      *float64 `json:"previous_best_accuracy,omitempty"`
}
