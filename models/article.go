package models

import "time"

// Article is a row of the articles table. ID and FetchedAt are assigned by
// the store.
type Article struct {
	ID          int64     `json:"id"`
	SourceID    string    `json:"source_id,omitempty"`
	SourceName  string    `json:"source_name"`
	Author      string    `json:"author,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	ImageURL    string    `json:"url_to_image,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Content     string    `json:"content,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// NewsPayload is an article as returned by a news-search provider, before
// normalisation.
type NewsPayload struct {
	SourceID    string `json:"source_id"`
	SourceName  string `json:"source_name"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	ImageURL    string `json:"url_to_image"`
	PublishedAt string `json:"published_at"`
	Content     string `json:"content"`
}

// NewsQuery selects articles from a news-search provider.
type NewsQuery struct {
	Keyword  string    `json:"keyword"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Language string    `json:"language,omitempty"`
	PageSize int       `json:"page_size,omitempty"`
}

// NewsItem is a scored headline.
type NewsItem struct {
	Title          string    `json:"title"`
	Source         string    `json:"source"`
	URL            string    `json:"url"`
	PublishedAt    time.Time `json:"published_at"`
	SentimentScore float64   `json:"sentiment_score"`
	SentimentLabel string    `json:"sentiment_label"`
}
