// Package storage persists news articles in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/CortexFolio/internal/apperr"
	"github.com/dyike/CortexFolio/models"
	"github.com/dyike/CortexFolio/pkg/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id TEXT,
    source_name TEXT NOT NULL,
    author TEXT,
    title TEXT NOT NULL,
    description TEXT,
    url TEXT,
    url_to_image TEXT,
    published_at DATETIME NOT NULL,
    content TEXT,
    fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at);
CREATE INDEX IF NOT EXISTS idx_articles_source_name ON articles(source_name);
`

const insertArticleSQL = `
INSERT INTO articles (source_id, source_name, author, title, description, url, url_to_image, published_at, content)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectArticleColumns = `
SELECT id, source_id, source_name, author, title, description, url, url_to_image, published_at, content, fetched_at
FROM articles
`

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Store owns the articles table. It is safe for concurrent use; the
// underlying handle serialises writers.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Table is the result of an ad-hoc query.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// ArticleFilter narrows ListArticles. Zero values mean "no constraint".
type ArticleFilter struct {
	Source string
	Since  time.Time
	Until  time.Time
	Limit  int
}

func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("component", "storage").Logger()}
}

// Open opens the database at path and initialises the schema.
func Open(ctx context.Context, path string, log zerolog.Logger) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, apperr.Persistence("open", path, err)
	}
	s := NewStore(db, log)
	if err := s.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InitSchema creates the articles table and its indexes if missing.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return apperr.Persistence("init schema", "articles", err)
	}
	return nil
}

// InsertArticle stores one article and returns its id.
func (s *Store) InsertArticle(ctx context.Context, a models.Article) (int64, error) {
	res, err := s.db.ExecContext(ctx, insertArticleSQL, articleArgs(a)...)
	if err != nil {
		return 0, apperr.Persistence("insert article", quoteTitle(a.Title), err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Persistence("insert article", quoteTitle(a.Title), err)
	}
	s.log.Debug().Int64("id", id).Str("source", a.SourceName).Msg("article stored")
	return id, nil
}

// InsertArticles stores the batch in one transaction. Either every article
// is stored or none is.
func (s *Store) InsertArticles(ctx context.Context, articles []models.Article) ([]int64, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Persistence("begin batch", "", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertArticleSQL)
	if err != nil {
		return nil, apperr.Persistence("prepare batch", "", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(articles))
	for i, a := range articles {
		res, err := stmt.ExecContext(ctx, articleArgs(a)...)
		if err != nil {
			return nil, apperr.Persistence("insert batch", fmt.Sprintf("#%d %s", i, quoteTitle(a.Title)), err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, apperr.Persistence("insert batch", fmt.Sprintf("#%d %s", i, quoteTitle(a.Title)), err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Persistence("commit batch", "", err)
	}
	s.log.Debug().Int("count", len(ids)).Msg("article batch stored")
	return ids, nil
}

// Query runs an arbitrary read statement. The statement is executed as
// given.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*Table, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.Persistence("query", "", errors.New("empty statement"))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Persistence("query", "", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, apperr.Persistence("query columns", "", err)
	}
	table := &Table{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperr.Persistence("query scan", "", err)
		}
		for i, v := range vals {
			// TEXT comes back as []byte from the driver.
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		table.Rows = append(table.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("query rows", "", err)
	}
	return table, nil
}

// GetArticle returns nil, nil when no article has the id.
func (s *Store) GetArticle(ctx context.Context, id int64) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx, selectArticleColumns+"WHERE id = ?\nLIMIT 1", id)
	a, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Persistence("get article", strconv.FormatInt(id, 10), err)
	}
	return a, nil
}

// ListArticles returns the newest articles first.
func (s *Store) ListArticles(ctx context.Context, f ArticleFilter) ([]models.Article, error) {
	var (
		where []string
		args  []any
	)
	if src := strings.TrimSpace(f.Source); src != "" {
		where = append(where, "source_name = ?")
		args = append(args, src)
	}
	if !f.Since.IsZero() {
		where = append(where, "published_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if !f.Until.IsZero() {
		where = append(where, "published_at <= ?")
		args = append(args, f.Until.UTC())
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	q := selectArticleColumns
	if len(where) > 0 {
		q += "WHERE " + strings.Join(where, " AND ") + "\n"
	}
	q += "ORDER BY published_at DESC, id DESC\nLIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperr.Persistence("list articles", f.Source, err)
	}
	defer rows.Close()

	var out []models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, apperr.Persistence("scan article", "", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list articles rows", "", err)
	}
	return out, nil
}

func (s *Store) CountArticles(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&n); err != nil {
		return 0, apperr.Persistence("count articles", "", err)
	}
	return n, nil
}

func (s *Store) URLExists(ctx context.Context, url string) (bool, error) {
	if strings.TrimSpace(url) == "" {
		return false, nil
	}
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM articles WHERE url = ? LIMIT 1", url).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Persistence("url exists", url, err)
	}
	return true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(sc scanner) (*models.Article, error) {
	var (
		a                                           models.Article
		sourceID, author, desc, url, image, content sql.NullString
		fetchedAt                                   sql.NullTime
	)
	err := sc.Scan(&a.ID, &sourceID, &a.SourceName, &author, &a.Title, &desc, &url, &image, &a.PublishedAt, &content, &fetchedAt)
	if err != nil {
		return nil, err
	}
	a.SourceID = sourceID.String
	a.Author = author.String
	a.Description = desc.String
	a.URL = url.String
	a.ImageURL = image.String
	a.Content = content.String
	a.PublishedAt = a.PublishedAt.UTC()
	if fetchedAt.Valid {
		a.FetchedAt = fetchedAt.Time.UTC()
	}
	return &a, nil
}

// articleArgs binds empty strings and zero times as NULL so the NOT NULL
// columns reject incomplete articles.
func articleArgs(a models.Article) []any {
	var published any
	if !a.PublishedAt.IsZero() {
		published = a.PublishedAt.UTC()
	}
	return []any{
		nullString(a.SourceID),
		nullString(a.SourceName),
		nullString(a.Author),
		nullString(a.Title),
		nullString(a.Description),
		nullString(a.URL),
		nullString(a.ImageURL),
		published,
		nullString(a.Content),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func quoteTitle(title string) string {
	if title == "" {
		return "<untitled>"
	}
	return strconv.Quote(title)
}
