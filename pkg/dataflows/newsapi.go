package dataflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dyike/CortexFolio/internal/apperr"
	"github.com/dyike/CortexFolio/models"
)

const DefaultNewsAPIBaseURL = "https://newsapi.org"

// NewsAPIClient queries the NewsAPI "everything" endpoint.
type NewsAPIClient struct {
	client *resty.Client
	apiKey string
	retry  RetryConfig
}

func NewNewsAPIClient(baseURL, apiKey string, retry RetryConfig) *NewsAPIClient {
	if baseURL == "" {
		baseURL = DefaultNewsAPIBaseURL
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("X-Api-Key", apiKey)

	return &NewsAPIClient{client: client, apiKey: apiKey, retry: retry}
}

func (nc *NewsAPIClient) Name() string { return "newsapi" }

type newsAPIResponse struct {
	Status       string           `json:"status"`
	Code         string           `json:"code"`
	Message      string           `json:"message"`
	TotalResults int              `json:"totalResults"`
	Articles     []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

// Search returns the articles matching q, newest first.
func (nc *NewsAPIClient) Search(ctx context.Context, q models.NewsQuery) ([]models.NewsPayload, error) {
	if nc.apiKey == "" {
		return nil, apperr.Rejected("newsapi search", q.Keyword, errors.New("NewsAPI key not configured"))
	}

	params := map[string]string{
		"q":      q.Keyword,
		"sortBy": "publishedAt",
	}
	if !q.From.IsZero() {
		params["from"] = q.From.UTC().Format(time.RFC3339)
	}
	if !q.To.IsZero() {
		params["to"] = q.To.UTC().Format(time.RFC3339)
	}
	if q.Language != "" {
		params["language"] = q.Language
	}
	if q.PageSize > 0 {
		params["pageSize"] = strconv.Itoa(q.PageSize)
	}

	var result []models.NewsPayload
	err := WithRetry(ctx, nc.retry, func(ctx context.Context) error {
		resp, err := nc.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get("/v2/everything")
		if err != nil {
			return apperr.Upstream("newsapi search", q.Keyword, err)
		}

		var body newsAPIResponse
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			if resp.IsError() {
				return statusError("newsapi search", q.Keyword, resp.StatusCode(), resp.String())
			}
			return apperr.Upstream("newsapi search", q.Keyword, fmt.Errorf("parse response: %w", err))
		}
		// 401 apiKeyInvalid and 426 on plan limits are final; only 429 and
		// 5xx are worth another attempt.
		if resp.IsError() {
			return statusError("newsapi search", q.Keyword, resp.StatusCode(), body.Code+" "+body.Message)
		}
		if body.Status == "error" {
			return apperr.Upstream("newsapi search", q.Keyword, fmt.Errorf("API error: %s %s", body.Code, body.Message))
		}

		result = make([]models.NewsPayload, 0, len(body.Articles))
		for _, a := range body.Articles {
			result = append(result, models.NewsPayload{
				SourceID:    a.Source.ID,
				SourceName:  a.Source.Name,
				Author:      a.Author,
				Title:       a.Title,
				Description: a.Description,
				URL:         a.URL,
				ImageURL:    a.URLToImage,
				PublishedAt: a.PublishedAt,
				Content:     a.Content,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
