// Package tools exposes the portfolio assistant's operations as eino tools
// so a chat model can call them.
package tools

import (
	"context"

	"github.com/cloudwego/eino/components/tool"

	"github.com/dyike/CortexFolio/internal/news"
	"github.com/dyike/CortexFolio/internal/storage"
	"github.com/dyike/CortexFolio/models"
)

type MarketData interface {
	CurrentQuote(ctx context.Context, symbol string) (*models.Quote, error)
	HistoricalSeries(ctx context.Context, symbol, period string) (models.PriceSeries, error)
	CompanyProfile(ctx context.Context, symbol string) (*models.CompanyProfile, error)
}

type Analyzer interface {
	Risk(ctx context.Context, p models.Portfolio) (models.RiskMetrics, error)
	Performance(ctx context.Context, p models.Portfolio) (models.PerformanceMetrics, error)
	Holdings(ctx context.Context, p models.Portfolio) ([]models.Holding, error)
}

type NewsService interface {
	Headlines(ctx context.Context, keyword string, limit int) ([]models.NewsItem, error)
	Ingest(ctx context.Context, keyword string) (*news.IngestResult, error)
}

type ArticleQuerier interface {
	Query(ctx context.Context, query string, args ...any) (*storage.Table, error)
}

// Toolkit holds the components the tools call into. Nil components are
// skipped by Tools.
type Toolkit struct {
	Market   MarketData
	Analyzer Analyzer
	News     NewsService
	Articles ArticleQuerier
}

// Tools returns every tool whose backing component is configured.
func (k *Toolkit) Tools() []tool.BaseTool {
	var out []tool.BaseTool
	if k.Market != nil {
		out = append(out,
			NewStockPriceTool(k.Market),
			NewMarketDataTool(k.Market),
			NewCompanyProfileTool(k.Market),
		)
	}
	if k.Analyzer != nil {
		out = append(out,
			NewPortfolioRiskTool(k.Analyzer),
			NewPortfolioPerformanceTool(k.Analyzer),
			NewHoldingsTool(k.Analyzer),
		)
	}
	if k.News != nil {
		out = append(out, NewMarketNewsTool(k.News), NewIngestNewsTool(k.News))
	}
	if k.Articles != nil {
		out = append(out, NewQueryArticlesTool(k.Articles))
	}
	return out
}
