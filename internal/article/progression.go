// AngelaMos | 2026
// progression.go

package article

import (
	"context"
	"fmt"
)

const DefaultMinAccuracy = 70

// Progression decides whether a user may open an article. The first
// article of a category is always open; every other one needs a completed
// previous article whose best accuracy reaches the threshold.
type Progression struct {
	repo        Repository
	minAccuracy float64
}

func NewProgression(repo Repository, minAccuracy float64) *Progression {
	if minAccuracy <= 0 {
		minAccuracy = DefaultMinAccuracy
	}
	return &Progression{repo: repo, minAccuracy: minAccuracy}
}

func (p *Progression) MinAccuracy() float64 {
	return p.minAccuracy
}

func (p *Progression) Access(ctx context.Context, userID string, articleID int64) (*Access, error) {
	a, err := p.repo.GetByID(ctx, articleID)
	if err != nil {
		return nil, err
	}
	return p.accessFor(ctx, userID, a)
}

func (p *Progression) accessFor(ctx context.Context, userID string, a *Article) (*Access, error) {
	access := &Access{ArticleID: a.ID, RequiredAccuracy: p.minAccuracy}

	prev, err := p.repo.Previous(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("article access: %w", err)
	}
	if prev == nil {
		access.Unlocked = true
		return access, nil
	}

	access.PreviousArticleID = &prev.ID

	best, ok, err := p.repo.BestAccuracy(ctx, userID, prev.ID)
	if err != nil {
		return nil, fmt.Errorf("article access: %w", err)
	}
	if ok {
		access.PreviousBest = &best
		access.Unlocked = best >= p.minAccuracy
	}
	return access, nil
}

func (p *Progression) IsUnlocked(ctx context.Context, userID string, articleID int64) (bool, error) {
	access, err := p.Access(ctx, userID, articleID)
	if err != nil {
		return false, err
	}
	return access.Unlocked, nil
}

// NextFor returns the article after articleID in its category with the
// user's access to it. Both are nil at the end of a category.
func (p *Progression) NextFor(
	ctx context.Context,
	userID string,
	articleID int64,
) (*Article, *Access, error) {
	current, err := p.repo.GetByID(ctx, articleID)
	if err != nil {
		return nil, nil, err
	}

	next, err := p.repo.Next(ctx, current)
	if err != nil {
		return nil, nil, fmt.Errorf("next article: %w", err)
	}
	if next == nil {
		return nil, nil, nil
	}

	access, err := p.accessFor(ctx, userID, next)
	if err != nil {
		return nil, nil, err
	}
	return next, access, nil
}
