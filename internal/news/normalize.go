package news

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dyike/CortexFolio/models"
)

// removedMarker is what NewsAPI puts in every field of a withdrawn article.
const removedMarker = "[Removed]"

var ErrRejected = errors.New("payload rejected")

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize converts a provider payload into an Article ready to store.
// Payloads without a title, source name or parseable timestamp are
// rejected with ErrRejected.
func Normalize(p models.NewsPayload) (models.Article, error) {
	title := collapse(p.Title)
	if title == "" || title == removedMarker {
		return models.Article{}, fmt.Errorf("%w: missing title", ErrRejected)
	}
	source := collapse(p.SourceName)
	if source == "" || source == removedMarker {
		return models.Article{}, fmt.Errorf("%w: %q has no source name", ErrRejected, title)
	}
	published, err := parseTime(p.PublishedAt)
	if err != nil {
		return models.Article{}, fmt.Errorf("%w: %q: %v", ErrRejected, title, err)
	}

	return models.Article{
		SourceID:    strings.TrimSpace(p.SourceID),
		SourceName:  source,
		Author:      collapse(p.Author),
		Title:       title,
		Description: StripHTML(p.Description),
		URL:         strings.TrimSpace(p.URL),
		ImageURL:    strings.TrimSpace(p.ImageURL),
		PublishedAt: published,
		Content:     StripHTML(p.Content),
	}, nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("missing published_at")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", raw)
}

// StripHTML returns the text content of an HTML fragment with whitespace
// collapsed. Plain text passes through unchanged apart from whitespace.
func StripHTML(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.ContainsAny(s, "<&") {
		return collapse(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapse(s)
	}
	doc.Find("script, style").Remove()
	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
