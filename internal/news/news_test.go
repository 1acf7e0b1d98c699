package news

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexFolio/internal/logger"
	"github.com/dyike/CortexFolio/internal/sentiment"
	"github.com/dyike/CortexFolio/internal/storage"
	"github.com/dyike/CortexFolio/models"
)

type fakeProvider struct {
	payloads []models.NewsPayload
	err      error
	queries  []models.NewsQuery
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Search(_ context.Context, q models.NewsQuery) ([]models.NewsPayload, error) {
	f.queries = append(f.queries, q)
	return f.payloads, f.err
}

var fixedNow = time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)

func payload(title, url string) models.NewsPayload {
	return models.NewsPayload{
		SourceID:    "reuters",
		SourceName:  "Reuters",
		Title:       title,
		Description: "<p>Shares <b>rose</b>\n today</p>",
		URL:         url,
		PublishedAt: "2024-06-09T12:30:00Z",
	}
}

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(context.Background(), ":memory:", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNormalize(t *testing.T) {
	a, err := Normalize(payload("  Apple  beats estimates ", " https://x/1 "))
	require.NoError(t, err)
	assert.Equal(t, "Apple beats estimates", a.Title)
	assert.Equal(t, "Shares rose today", a.Description)
	assert.Equal(t, "https://x/1", a.URL)
	assert.Equal(t, time.Date(2024, 6, 9, 12, 30, 0, 0, time.UTC), a.PublishedAt)
}

func TestNormalizeFallbackLayouts(t *testing.T) {
	p := payload("t", "")
	p.PublishedAt = "2024-06-09 08:00:00"
	a, err := Normalize(p)
	require.NoError(t, err)
	assert.Equal(t, 8, a.PublishedAt.Hour())

	p.PublishedAt = "2024-06-09T10:00:00+02:00"
	a, err = Normalize(p)
	require.NoError(t, err)
	assert.Equal(t, 8, a.PublishedAt.Hour())
	assert.Equal(t, time.UTC, a.PublishedAt.Location())
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.NewsPayload)
	}{
		{"empty title", func(p *models.NewsPayload) { p.Title = "  " }},
		{"removed", func(p *models.NewsPayload) { p.Title = "[Removed]" }},
		{"no source", func(p *models.NewsPayload) { p.SourceName = "" }},
		{"no date", func(p *models.NewsPayload) { p.PublishedAt = "" }},
		{"bad date", func(p *models.NewsPayload) { p.PublishedAt = "yesterday" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := payload("title", "u")
			tt.mutate(&p)
			_, err := Normalize(p)
			assert.ErrorIs(t, err, ErrRejected)
		})
	}
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "", StripHTML(""))
	assert.Equal(t, "plain text", StripHTML("  plain \n text "))
	assert.Equal(t, "a & b", StripHTML("a &amp; b"))
	assert.Equal(t, "Hello world", StripHTML("<div>Hello <script>x()</script><i>world</i></div>"))
}

func TestIngestStoresValidArticles(t *testing.T) {
	store := newStore(t)
	prov := &fakeProvider{payloads: []models.NewsPayload{
		payload("one", "https://x/1"),
		{Title: "no source", PublishedAt: "2024-06-09T00:00:00Z"},
		payload("two", "https://x/2"),
	}}
	svc := NewService(prov, store, nil, Options{LookbackDays: 3, Language: "en", PageSize: 20, Now: func() time.Time { return fixedNow }})

	res, err := svc.Ingest(context.Background(), " apple ")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 2, res.Inserted)
	assert.Len(t, res.IDs, 2)

	require.Len(t, prov.queries, 1)
	q := prov.queries[0]
	assert.Equal(t, "apple", q.Keyword)
	assert.Equal(t, fixedNow.AddDate(0, 0, -3), q.From)
	assert.Equal(t, fixedNow, q.To)
	assert.Equal(t, "en", q.Language)
	assert.Equal(t, 20, q.PageSize)

	n, err := store.CountArticles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestIngestKeepsDuplicatesByDefault(t *testing.T) {
	store := newStore(t)
	prov := &fakeProvider{payloads: []models.NewsPayload{payload("one", "https://x/1")}}
	svc := NewService(prov, store, nil, Options{Now: func() time.Time { return fixedNow }})

	for i := 0; i < 2; i++ {
		_, err := svc.Ingest(context.Background(), "apple")
		require.NoError(t, err)
	}
	n, err := store.CountArticles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestIngestSkipsKnownURLs(t *testing.T) {
	store := newStore(t)
	prov := &fakeProvider{payloads: []models.NewsPayload{
		payload("one", "https://x/1"),
		payload("one again", "https://x/1"),
		payload("two", "https://x/2"),
	}}
	svc := NewService(prov, store, nil, Options{SkipKnownURLs: true, Now: func() time.Time { return fixedNow }})

	res, err := svc.Ingest(context.Background(), "apple")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 1, res.Duplicates)

	res, err = svc.Ingest(context.Background(), "apple")
	require.NoError(t, err)
	assert.Zero(t, res.Inserted)
	assert.Equal(t, 3, res.Duplicates)
}

func TestIngestErrors(t *testing.T) {
	store := newStore(t)
	upstream := errors.New("boom")
	svc := NewService(&fakeProvider{err: upstream}, store, nil, Options{})

	_, err := svc.Ingest(context.Background(), "apple")
	assert.ErrorIs(t, err, upstream)

	_, err = svc.Ingest(context.Background(), "   ")
	assert.Error(t, err)

	noStore := NewService(&fakeProvider{}, nil, nil, Options{})
	_, err = noStore.Ingest(context.Background(), "apple")
	assert.Error(t, err)
}

func TestHeadlinesScoresAndLimits(t *testing.T) {
	prov := &fakeProvider{payloads: []models.NewsPayload{
		payload("good", "https://x/1"),
		{Title: "[Removed]", SourceName: "[Removed]"},
		payload("bad", "https://x/2"),
		payload("meh", "https://x/3"),
	}}
	scorer := sentiment.ScorerFunc(func(_ context.Context, text string) (float64, error) {
		switch {
		case len(text) >= 4 && text[:4] == "good":
			return 0.8, nil
		case len(text) >= 3 && text[:3] == "bad":
			return -0.6, nil
		}
		return 0, errors.New("model unavailable")
	})
	svc := NewService(prov, nil, scorer, Options{Now: func() time.Time { return fixedNow }})

	items, err := svc.Headlines(context.Background(), "AAPL", 3)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, 3, prov.queries[0].PageSize)

	assert.Equal(t, "good", items[0].Title)
	assert.Equal(t, "Reuters", items[0].Source)
	assert.InDelta(t, 0.8, items[0].SentimentScore, 1e-12)
	assert.Equal(t, sentiment.Label(0.8), items[0].SentimentLabel)

	assert.Equal(t, "bad", items[1].Title)
	assert.Equal(t, sentiment.Label(-0.6), items[1].SentimentLabel)

	assert.Equal(t, "meh", items[2].Title)
	assert.Zero(t, items[2].SentimentScore)
	assert.Equal(t, sentiment.Label(0), items[2].SentimentLabel)
}

func TestHeadlinesDefaultLimit(t *testing.T) {
	var payloads []models.NewsPayload
	for i := 0; i < 8; i++ {
		payloads = append(payloads, payload("t", ""))
	}
	svc := NewService(&fakeProvider{payloads: payloads}, nil, nil, Options{})
	items, err := svc.Headlines(context.Background(), "AAPL", 0)
	require.NoError(t, err)
	assert.Len(t, items, DefaultHeadlineLimit)
}
