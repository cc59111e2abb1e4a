// AngelaMos | 2026
// progression_test.go

package article_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorser/backend/internal/article"
	"github.com/sorser/backend/internal/article/articletest"
	"github.com/sorser/backend/internal/middleware"
)

const student = "3f1c7f0e-2a1b-4c55-9a61-0d6f1e2a7b10"

func lessons() *articletest.Repository {
	return articletest.New(
		article.Article{ID: 1, CategoryID: 10, Title: "Intro", Sequence: 1},
		article.Article{ID: 2, CategoryID: 10, Title: "Vowels", Sequence: 2},
		article.Article{ID: 3, CategoryID: 10, Title: "Consonants", Sequence: 3},
		article.Article{ID: 4, CategoryID: 20, Title: "Other track", Sequence: 1},
	)
}

func TestProgressionUnlocking(t *testing.T) {
	ctx := context.Background()
	repo := lessons()
	p := article.NewProgression(repo, 0)
	assert.Equal(t, float64(article.DefaultMinAccuracy), p.MinAccuracy())

	ok, err := p.IsUnlocked(ctx, student, 1)
	require.NoError(t, err)
	assert.True(t, ok, "first article of a category is open")

	ok, err = p.IsUnlocked(ctx, student, 4)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.IsUnlocked(ctx, student, 2)
	require.NoError(t, err)
	assert.False(t, ok, "previous article not completed")

	repo.SetBest(student, 1, 69.99)
	ok, err = p.IsUnlocked(ctx, student, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	repo.SetBest(student, 1, 70)
	access, err := p.Access(ctx, student, 2)
	require.NoError(t, err)
	assert.True(t, access.Unlocked)
	require.NotNil(t, access.PreviousArticleID)
	assert.Equal(t, int64(1), *access.PreviousArticleID)

	ok, err = p.IsUnlocked(ctx, "someone-else", 2)
	require.NoError(t, err)
	assert.False(t, ok, "progress is per user")
}

func TestProgressionNextFor(t *testing.T) {
	ctx := context.Background()
	repo := lessons()
	repo.SetBest(student, 2, 90)
	p := article.NewProgression(repo, 80)

	next, access, err := p.NextFor(ctx, student, 2)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, int64(3), next.ID)
	assert.True(t, access.Unlocked)

	next, access, err = p.NextFor(ctx, student, 3)
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Nil(t, access)

	_, _, err = p.NextFor(ctx, student, 99)
	assert.Error(t, err)
}

func TestAccessHandler(t *testing.T) {
	r := chi.NewRouter()
	authn := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithClaims(req.Context(), &middleware.AccessTokenClaims{UserID: student})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
	article.NewHandler(article.NewProgression(lessons(), 70)).RegisterRoutes(r, authn)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/articles/2/access", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data article.Access `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Data.Unlocked)
	assert.Equal(t, float64(70), body.Data.RequiredAccuracy)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/articles/99/access", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/articles/abc/access", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
