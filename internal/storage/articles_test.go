package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexFolio/internal/apperr"
	"github.com/dyike/CortexFolio/internal/logger"
	"github.com/dyike/CortexFolio/models"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func article(title string, published time.Time) models.Article {
	return models.Article{
		SourceID:    "cnn",
		SourceName:  "CNN",
		Title:       title,
		URL:         "https://example.com/" + title,
		PublishedAt: published,
	}
}

func TestInsertAndGetArticle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	published := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	id, err := s.InsertArticle(ctx, models.Article{
		SourceID:    "cnn",
		SourceName:  "CNN",
		Title:       "X",
		PublishedAt: published,
	})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	got, err := s.GetArticle(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "X", got.Title)
	assert.True(t, got.PublishedAt.Equal(published), "published_at %s", got.PublishedAt)
	assert.Equal(t, "cnn", got.SourceID)
	assert.Empty(t, got.Author)
	assert.False(t, got.FetchedAt.IsZero())

	tbl, err := s.Query(ctx, "SELECT title FROM articles WHERE id = ?", id)
	require.NoError(t, err)
	assert.Equal(t, []string{"title"}, tbl.Columns)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "X", tbl.Rows[0][0])
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.InitSchema(context.Background()))
	require.NoError(t, s.InitSchema(context.Background()))
}

func TestGetArticleMissing(t *testing.T) {
	s := setupStore(t)
	got, err := s.GetArticle(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsertArticleRequiresFields(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		a    models.Article
	}{
		{"missing title", models.Article{SourceName: "CNN", PublishedAt: time.Now()}},
		{"missing source", models.Article{Title: "T", PublishedAt: time.Now()}},
		{"missing published_at", models.Article{SourceName: "CNN", Title: "T"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.InsertArticle(ctx, tt.a)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrPersistence)
		})
	}

	n, err := s.CountArticles(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsertArticlesIsAtomic(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.InsertArticles(ctx, []models.Article{
		article("a", now),
		{SourceName: "CNN", PublishedAt: now},
		article("c", now),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrPersistence)
	assert.Contains(t, err.Error(), "#1")

	n, err := s.CountArticles(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "failed batch must not leave rows behind")

	ids, err := s.InsertArticles(ctx, []models.Article{article("a", now), article("b", now)})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Less(t, ids[0], ids[1])

	n, err = s.CountArticles(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestInsertArticlesAllowsDuplicates(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	a := article("same", time.Now().UTC())

	_, err := s.InsertArticles(ctx, []models.Article{a, a})
	require.NoError(t, err)

	n, err := s.CountArticles(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestListArticles(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	reuters := article("r1", base.Add(2*time.Hour))
	reuters.SourceName = "Reuters"
	_, err := s.InsertArticles(ctx, []models.Article{
		article("old", base.Add(-48*time.Hour)),
		article("mid", base),
		article("new", base.Add(time.Hour)),
		reuters,
	})
	require.NoError(t, err)

	all, err := s.ListArticles(ctx, ArticleFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "r1", all[0].Title)
	assert.Equal(t, "old", all[3].Title)

	cnn, err := s.ListArticles(ctx, ArticleFilter{Source: "CNN", Since: base.Add(-time.Hour), Limit: 10})
	require.NoError(t, err)
	require.Len(t, cnn, 2)
	assert.Equal(t, "new", cnn[0].Title)
	assert.Equal(t, "mid", cnn[1].Title)

	limited, err := s.ListArticles(ctx, ArticleFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestURLExists(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	_, err := s.InsertArticle(ctx, article("known", time.Now()))
	require.NoError(t, err)

	ok, err := s.URLExists(ctx, "https://example.com/known")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.URLExists(ctx, "https://example.com/unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.URLExists(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueryRejectsBadSQL(t *testing.T) {
	s := setupStore(t)
	_, err := s.Query(context.Background(), "SELECT nope FROM missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrPersistence)

	_, err = s.Query(context.Background(), "  ")
	assert.ErrorIs(t, err, apperr.ErrPersistence)
}
