package dataflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dyike/CortexFolio/internal/apperr"
	"github.com/dyike/CortexFolio/models"
)

const DefaultFinnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubClient handles Finnhub API operations
type FinnhubClient struct {
	client *resty.Client
	apiKey string
	retry  RetryConfig
}

func NewFinnhubClient(baseURL, apiKey string, retry RetryConfig) *FinnhubClient {
	if baseURL == "" {
		baseURL = DefaultFinnhubBaseURL
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)

	return &FinnhubClient{client: client, apiKey: apiKey, retry: retry}
}

func (fc *FinnhubClient) Name() string { return "finnhub" }

// FinnhubNews represents news from Finnhub API
type FinnhubNews struct {
	Category string `json:"category"`
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Image    string `json:"image"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// Search treats the keyword as a ticker and returns its company news.
func (fc *FinnhubClient) Search(ctx context.Context, q models.NewsQuery) ([]models.NewsPayload, error) {
	if fc.apiKey == "" {
		return nil, apperr.Rejected("finnhub news", q.Keyword, errors.New("Finnhub API key not configured"))
	}
	symbol, err := ValidateSymbol(q.Keyword)
	if err != nil {
		return nil, apperr.DataUnavailable("finnhub news", q.Keyword, err)
	}

	to := q.To
	if to.IsZero() {
		to = time.Now()
	}
	from := q.From
	if from.IsZero() {
		from = to.AddDate(0, 0, -7)
	}

	var result []models.NewsPayload
	err = WithRetry(ctx, fc.retry, func(ctx context.Context) error {
		resp, err := fc.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"symbol": symbol,
				"from":   from.Format("2006-01-02"),
				"to":     to.Format("2006-01-02"),
				"token":  fc.apiKey,
			}).
			Get("/company-news")
		if err != nil {
			return apperr.Upstream("finnhub news", symbol, err)
		}
		if resp.IsError() {
			return statusError("finnhub news", symbol, resp.StatusCode(), resp.String())
		}

		var items []FinnhubNews
		if err := json.Unmarshal(resp.Body(), &items); err != nil {
			return apperr.Upstream("finnhub news", symbol, fmt.Errorf("parse news response: %w", err))
		}

		result = make([]models.NewsPayload, 0, len(items))
		for _, n := range items {
			var published string
			if n.DateTime > 0 {
				published = time.Unix(n.DateTime, 0).UTC().Format(time.RFC3339)
			}
			result = append(result, models.NewsPayload{
				SourceID:    strings.ToLower(n.Source),
				SourceName:  n.Source,
				Title:       n.Headline,
				Description: n.Summary,
				URL:         n.URL,
				ImageURL:    n.Image,
				PublishedAt: published,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if q.PageSize > 0 && len(result) > q.PageSize {
		result = result[:q.PageSize]
	}
	return result, nil
}
