package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexFolio/internal/news"
	"github.com/dyike/CortexFolio/internal/storage"
)

func NewMarketNewsTool(svc NewsService) tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "get_market_news",
			Desc: "Get recent news headlines for a symbol or keyword with a sentiment score for each",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"keyword": {
					Type:     "string",
					Desc:     "Symbol or search keyword",
					Required: true,
				},
				"limit": {
					Type:     "integer",
					Desc:     fmt.Sprintf("Maximum number of headlines (default: %d)", news.DefaultHeadlineLimit),
					Required: false,
				},
			}),
		},
		func(ctx context.Context, input NewsInput) (*NewsOutput, error) {
			if strings.TrimSpace(input.Keyword) == "" {
				return nil, fmt.Errorf("keyword parameter is required")
			}
			items, err := svc.Headlines(ctx, input.Keyword, input.Limit)
			if err != nil {
				return nil, err
			}
			return &NewsOutput{Keyword: input.Keyword, Items: items}, nil
		},
	)
}

func NewIngestNewsTool(svc NewsService) tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "ingest_news",
			Desc: "Fetch recent articles for a keyword and save them to the article database",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"keyword": {
					Type:     "string",
					Desc:     "Search keyword",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, input NewsInput) (*news.IngestResult, error) {
			if strings.TrimSpace(input.Keyword) == "" {
				return nil, fmt.Errorf("keyword parameter is required")
			}
			return svc.Ingest(ctx, input.Keyword)
		},
	)
}

// NewQueryArticlesTool runs a read-only SELECT against the article
// database.
func NewQueryArticlesTool(q ArticleQuerier) tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "query_articles",
			Desc: "Run a SQL SELECT against the articles table (columns: id, source_id, source_name, author, title, description, url, url_to_image, published_at, content, fetched_at)",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"sql": {
					Type:     "string",
					Desc:     "A single SELECT statement",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, input QueryInput) (*storage.Table, error) {
			stmt := strings.TrimSpace(input.SQL)
			if !isSelect(stmt) {
				return nil, fmt.Errorf("only SELECT statements are allowed")
			}
			return q.Query(ctx, stmt)
		},
	)
}

func isSelect(stmt string) bool {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return false
	}
	verb := strings.ToUpper(fields[0])
	if verb != "SELECT" && verb != "WITH" {
		return false
	}
	// reject stacked statements
	return !strings.Contains(strings.TrimRight(stmt, "; \n\t"), ";")
}
