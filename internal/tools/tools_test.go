package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexFolio/internal/news"
	"github.com/dyike/CortexFolio/internal/storage"
	"github.com/dyike/CortexFolio/models"
)

type fakeMarket struct{}

func (fakeMarket) CurrentQuote(_ context.Context, symbol string) (*models.Quote, error) {
	return &models.Quote{Symbol: symbol, Price: decimal.NewFromFloat(101.5)}, nil
}

func (fakeMarket) HistoricalSeries(_ context.Context, symbol, period string) (models.PriceSeries, error) {
	day := time.Date(2024, 1, 2, 21, 0, 0, 0, time.UTC)
	return models.PriceSeries{Symbol: symbol, Period: period, Points: []models.PricePoint{
		{Time: day, Close: decimal.NewFromInt(100)},
		{Time: day.AddDate(0, 0, 1), Close: decimal.NewFromInt(102)},
	}}, nil
}

func (fakeMarket) CompanyProfile(_ context.Context, symbol string) (*models.CompanyProfile, error) {
	return &models.CompanyProfile{Symbol: symbol, Name: "Apple Inc."}, nil
}

type fakeAnalyzer struct{ got models.Portfolio }

func (f *fakeAnalyzer) Risk(_ context.Context, p models.Portfolio) (models.RiskMetrics, error) {
	f.got = p
	return models.RiskMetrics{Volatility: 0.2, Observations: 250}, nil
}

func (f *fakeAnalyzer) Performance(_ context.Context, p models.Portfolio) (models.PerformanceMetrics, error) {
	f.got = p
	return models.PerformanceMetrics{Alpha: 0.01}, nil
}

func (f *fakeAnalyzer) Holdings(_ context.Context, p models.Portfolio) ([]models.Holding, error) {
	f.got = p
	return []models.Holding{{Symbol: "AAPL", Quantity: p["AAPL"], Weight: 1}}, nil
}

type fakeNews struct{}

func (fakeNews) Headlines(_ context.Context, keyword string, limit int) ([]models.NewsItem, error) {
	return []models.NewsItem{{Title: keyword + " up", SentimentLabel: "positive", SentimentScore: 0.5}}, nil
}

func (fakeNews) Ingest(_ context.Context, keyword string) (*news.IngestResult, error) {
	return &news.IngestResult{Keyword: keyword, Fetched: 2, Inserted: 2, IDs: []int64{1, 2}}, nil
}

type fakeQuerier struct{ stmt string }

func (f *fakeQuerier) Query(_ context.Context, q string, _ ...any) (*storage.Table, error) {
	f.stmt = q
	return &storage.Table{Columns: []string{"n"}, Rows: [][]any{{int64(3)}}}, nil
}

func run(t *testing.T, bt tool.BaseTool, args string) (string, error) {
	t.Helper()
	it, ok := bt.(tool.InvokableTool)
	require.True(t, ok)
	return it.InvokableRun(context.Background(), args)
}

func TestToolsSkipsMissingComponents(t *testing.T) {
	k := &Toolkit{Market: fakeMarket{}}
	assert.Len(t, k.Tools(), 3)

	full := &Toolkit{Market: fakeMarket{}, Analyzer: &fakeAnalyzer{}, News: fakeNews{}, Articles: &fakeQuerier{}}
	tools := full.Tools()
	require.Len(t, tools, 9)

	names := make(map[string]bool)
	for _, bt := range tools {
		info, err := bt.Info(context.Background())
		require.NoError(t, err)
		names[info.Name] = true
	}
	for _, n := range []string{
		"get_stock_price", "get_market_data", "get_company_profile",
		"calculate_portfolio_risk", "analyze_portfolio_performance", "get_holdings_info",
		"get_market_news", "ingest_news", "query_articles",
	} {
		assert.True(t, names[n], n)
	}
}

func TestStockPriceTool(t *testing.T) {
	out, err := run(t, NewStockPriceTool(fakeMarket{}), `{"symbol":"AAPL"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"AAPL"`)
	assert.Contains(t, out, "101.5")

	_, err = run(t, NewStockPriceTool(fakeMarket{}), `{}`)
	assert.Error(t, err)
}

func TestMarketDataTool(t *testing.T) {
	out, err := run(t, NewMarketDataTool(fakeMarket{}), `{"symbol":"AAPL"}`)
	require.NoError(t, err)

	var got MarketDataOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "1y", got.Period)
	require.Len(t, got.Data, 2)
	assert.Equal(t, DailyClose{Date: "2024-01-02", Close: 100}, got.Data[0])
	assert.Equal(t, 102.0, got.Data[1].Close)
}

func TestPortfolioTools(t *testing.T) {
	a := &fakeAnalyzer{}

	out, err := run(t, NewPortfolioRiskTool(a), `{"portfolio":{"AAPL":10,"MSFT":5}}`)
	require.NoError(t, err)
	assert.Equal(t, models.Portfolio{"AAPL": 10, "MSFT": 5}, a.got)
	var rm models.RiskMetrics
	require.NoError(t, json.Unmarshal([]byte(out), &rm))
	assert.Equal(t, 0.2, rm.Volatility)
	assert.Equal(t, 250, rm.Observations)

	out, err = run(t, NewPortfolioPerformanceTool(a), `{"portfolio":{"AAPL":1}}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"alpha":0.01`)

	out, err = run(t, NewHoldingsTool(a), `{"portfolio":{"AAPL":3}}`)
	require.NoError(t, err)
	var h HoldingsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &h))
	require.Len(t, h.Holdings, 1)
	assert.Equal(t, 3.0, h.Holdings[0].Quantity)

	_, err = run(t, NewPortfolioRiskTool(a), `{"portfolio":{}}`)
	assert.Error(t, err)
}

func TestNewsTools(t *testing.T) {
	out, err := run(t, NewMarketNewsTool(fakeNews{}), `{"keyword":"AAPL"}`)
	require.NoError(t, err)
	var got NewsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "AAPL up", got.Items[0].Title)

	out, err = run(t, NewIngestNewsTool(fakeNews{}), `{"keyword":"apple"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"inserted":2`)

	_, err = run(t, NewIngestNewsTool(fakeNews{}), `{"keyword":" "}`)
	assert.Error(t, err)
}

func TestQueryArticlesTool(t *testing.T) {
	q := &fakeQuerier{}
	out, err := run(t, NewQueryArticlesTool(q), `{"sql":"SELECT COUNT(*) AS n FROM articles;"}`)
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) AS n FROM articles;", q.stmt)
	assert.Contains(t, out, `"columns":["n"]`)

	for _, stmt := range []string{"", "DELETE FROM articles", "SELECT 1; DROP TABLE articles"} {
		_, err := run(t, NewQueryArticlesTool(q), `{"sql":"`+stmt+`"}`)
		assert.Error(t, err, stmt)
	}
}
