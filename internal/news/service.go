// Package news fetches articles from a news-search provider, stores them
// and summarises recent headlines with a sentiment score.
package news

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/CortexFolio/internal/sentiment"
	"github.com/dyike/CortexFolio/models"
)

const DefaultHeadlineLimit = 5

// Provider searches a news source.
type Provider interface {
	Name() string
	Search(ctx context.Context, q models.NewsQuery) ([]models.NewsPayload, error)
}

// ArticleStore is the persistence the service writes to.
type ArticleStore interface {
	InsertArticles(ctx context.Context, articles []models.Article) ([]int64, error)
	URLExists(ctx context.Context, url string) (bool, error)
}

type Options struct {
	LookbackDays  int
	Language      string
	PageSize      int
	SkipKnownURLs bool
	Logger        zerolog.Logger
	Now           func() time.Time
}

type Service struct {
	provider Provider
	store    ArticleStore
	scorer   sentiment.Scorer
	opts     Options
	log      zerolog.Logger
}

// IngestResult reports what happened to each fetched payload.
type IngestResult struct {
	Provider   string  `json:"provider"`
	Keyword    string  `json:"keyword"`
	Fetched    int     `json:"fetched"`
	Rejected   int     `json:"rejected"`
	Duplicates int     `json:"duplicates"`
	Inserted   int     `json:"inserted"`
	IDs        []int64 `json:"ids"`
}

func NewService(provider Provider, store ArticleStore, scorer sentiment.Scorer, opts Options) *Service {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 7
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if scorer == nil {
		scorer = sentiment.Neutral{}
	}
	return &Service{
		provider: provider,
		store:    store,
		scorer:   scorer,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "news").Str("provider", provider.Name()).Logger(),
	}
}

func (s *Service) query(keyword string, pageSize int) models.NewsQuery {
	now := s.opts.Now().UTC()
	if pageSize <= 0 {
		pageSize = s.opts.PageSize
	}
	return models.NewsQuery{
		Keyword:  strings.TrimSpace(keyword),
		From:     now.AddDate(0, 0, -s.opts.LookbackDays),
		To:       now,
		Language: s.opts.Language,
		PageSize: pageSize,
	}
}

// Ingest fetches articles for keyword over the lookback window and stores
// every valid one in a single batch.
func (s *Service) Ingest(ctx context.Context, keyword string) (*IngestResult, error) {
	if s.store == nil {
		return nil, errors.New("news ingest: no article store configured")
	}
	q := s.query(keyword, 0)
	if q.Keyword == "" {
		return nil, errors.New("news ingest: keyword is required")
	}

	payloads, err := s.provider.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	res := &IngestResult{Provider: s.provider.Name(), Keyword: q.Keyword, Fetched: len(payloads)}

	articles := make([]models.Article, 0, len(payloads))
	seen := make(map[string]struct{}, len(payloads))
	for _, p := range payloads {
		a, err := Normalize(p)
		if err != nil {
			res.Rejected++
			s.log.Debug().Err(err).Msg("payload rejected")
			continue
		}
		if s.opts.SkipKnownURLs && a.URL != "" {
			if _, dup := seen[a.URL]; dup {
				res.Duplicates++
				continue
			}
			known, err := s.store.URLExists(ctx, a.URL)
			if err != nil {
				return nil, err
			}
			if known {
				res.Duplicates++
				continue
			}
			seen[a.URL] = struct{}{}
		}
		articles = append(articles, a)
	}

	ids, err := s.store.InsertArticles(ctx, articles)
	if err != nil {
		return nil, fmt.Errorf("news ingest %q: %w", q.Keyword, err)
	}
	res.IDs = ids
	res.Inserted = len(ids)

	s.log.Info().
		Str("keyword", q.Keyword).
		Int("fetched", res.Fetched).
		Int("rejected", res.Rejected).
		Int("duplicates", res.Duplicates).
		Int("inserted", res.Inserted).
		Msg("news ingested")
	return res, nil
}

// Headlines returns up to limit recent headlines for keyword, each scored
// by the configured scorer.
func (s *Service) Headlines(ctx context.Context, keyword string, limit int) ([]models.NewsItem, error) {
	if limit <= 0 {
		limit = DefaultHeadlineLimit
	}
	q := s.query(keyword, limit)
	if q.Keyword == "" {
		return nil, errors.New("news headlines: keyword is required")
	}

	payloads, err := s.provider.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	items := make([]models.NewsItem, 0, limit)
	for _, p := range payloads {
		if len(items) == limit {
			break
		}
		a, err := Normalize(p)
		if err != nil {
			continue
		}
		text := a.Title
		if a.Description != "" {
			text += "\n" + a.Description
		}
		score, err := s.scorer.Score(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn().Err(err).Str("title", a.Title).Msg("sentiment scoring failed, using neutral")
			score = 0
		}
		items = append(items, models.NewsItem{
			Title:          a.Title,
			Source:         a.SourceName,
			URL:            a.URL,
			PublishedAt:    a.PublishedAt,
			SentimentScore: score,
			SentimentLabel: sentiment.Label(score),
		})
	}
	return items, nil
}
