package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"github.com/dyike/CortexFolio/config"
	"github.com/dyike/CortexFolio/internal/storage"
	"github.com/dyike/CortexFolio/models"
	"github.com/dyike/CortexFolio/pkg/app"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2)

	headerCellStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(24)

	positiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	negativeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
)

// DisplayWelcomeBanner shows the welcome banner
func DisplayWelcomeBanner(w io.Writer) {
	fmt.Fprintln(w, titleStyle.Render("CortexFolio "+app.Version))
	fmt.Fprintln(w, infoStyle.Render("Portfolio risk, performance and market news"))
	fmt.Fprintln(w)
}

func DisplayError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("Error: "+err.Error()))
}

func DisplayWarning(w io.Writer, message string) {
	fmt.Fprintln(w, warningStyle.Render("Warning: "+message))
}

func DisplayInfo(w io.Writer, message string) {
	fmt.Fprintln(w, infoStyle.Render(message))
}

func DisplaySuccess(w io.Writer, message string) {
	fmt.Fprintln(w, successStyle.Render(message))
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#4B5563"))).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCellStyle
			}
			return cellStyle
		})
}

func kv(label, value string) string {
	return labelStyle.Render(label) + value
}

func signed(v decimal.Decimal, suffix string) string {
	s := v.StringFixed(2) + suffix
	switch v.Sign() {
	case 1:
		return positiveStyle.Render("+" + s)
	case -1:
		return negativeStyle.Render(s)
	}
	return s
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func RenderQuotes(w io.Writer, quotes []*models.Quote) {
	t := newTable("Symbol", "Price", "Change", "Open", "High", "Low", "Prev Close", "Volume")
	for _, q := range quotes {
		t.Row(
			q.Symbol,
			q.Price.StringFixed(2),
			signed(q.ChangePercent, "%"),
			q.Open.StringFixed(2),
			q.High.StringFixed(2),
			q.Low.StringFixed(2),
			q.PreviousClose.StringFixed(2),
			fmt.Sprintf("%d", q.Volume),
		)
	}
	fmt.Fprintln(w, t.Render())
}

// RenderSeries prints the first and last closes and the period change.
// Long series are abbreviated to keep the output on one screen.
func RenderSeries(w io.Writer, s models.PriceSeries) {
	const edge = 5
	t := newTable("Date", "Close")
	for i, p := range s.Points {
		if s.Len() > 2*edge && i == edge {
			t.Row("...", "...")
		}
		if s.Len() > 2*edge && i >= edge && i < s.Len()-edge {
			continue
		}
		t.Row(p.Time.UTC().Format("2006-01-02"), p.Close.StringFixed(2))
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (%s, %d closes)", s.Symbol, s.Period, s.Len())))
	fmt.Fprintln(w, t.Render())
	if s.Len() >= 2 {
		first, last := s.Points[0].Close, s.Points[s.Len()-1].Close
		if first.IsPositive() {
			change := last.Sub(first).Div(first).Mul(decimal.NewFromInt(100))
			fmt.Fprintln(w, kv("Period change", signed(change, "%")))
		}
	}
}

func RenderProfile(w io.Writer, p *models.CompanyProfile) {
	lines := []string{
		kv("Symbol", p.Symbol),
		kv("Name", p.Name),
		kv("Exchange", p.Exchange),
		kv("Currency", p.Currency),
	}
	if p.Sector != "" {
		lines = append(lines, kv("Sector", p.Sector))
	}
	if p.Industry != "" {
		lines = append(lines, kv("Industry", p.Industry))
	}
	if p.MarketCap.IsPositive() {
		lines = append(lines, kv("Market cap", p.MarketCap.StringFixed(0)))
	}
	if p.PERatio != nil {
		lines = append(lines, kv("P/E", fmt.Sprintf("%.2f", *p.PERatio)))
	}
	if p.DividendYield != nil {
		lines = append(lines, kv("Dividend yield", pct(*p.DividendYield)))
	}
	fmt.Fprintln(w, panelStyle.Render(strings.Join(lines, "\n")))
}

func RenderRisk(w io.Writer, m models.RiskMetrics) {
	fmt.Fprintln(w, panelStyle.Render(strings.Join([]string{
		titleStyle.Render("Risk"),
		kv("Total value", fmt.Sprintf("%.2f", m.TotalValue)),
		kv("Volatility (annual)", pct(m.Volatility)),
		kv("Beta", fmt.Sprintf("%.3f", m.Beta)),
		kv("Sharpe ratio", fmt.Sprintf("%.3f", m.SharpeRatio)),
		kv("VaR 95% (daily)", pct(m.VaR95)),
		kv("Max drawdown", pct(m.MaxDrawdown)),
		kv("Diversification", fmt.Sprintf("%.3f", m.DiversificationScore)),
		kv("Observations", fmt.Sprintf("%d", m.Observations)),
	}, "\n")))
}

func RenderPerformance(w io.Writer, benchmark string, m models.PerformanceMetrics) {
	fmt.Fprintln(w, panelStyle.Render(strings.Join([]string{
		titleStyle.Render("Performance vs " + benchmark),
		kv("Total value", fmt.Sprintf("%.2f", m.TotalValue)),
		kv("Daily return (mean)", pct(m.DailyReturn)),
		kv("Annualized return", pct(m.AnnualizedReturn)),
		kv("Alpha (daily)", fmt.Sprintf("%.5f", m.Alpha)),
		kv("Beta", fmt.Sprintf("%.3f", m.Beta)),
		kv("Sharpe ratio", fmt.Sprintf("%.3f", m.SharpeRatio)),
		kv("Tracking error", pct(m.TrackingError)),
	}, "\n")))
}

func RenderHoldings(w io.Writer, holdings []models.Holding) {
	t := newTable("Symbol", "Quantity", "Price", "Value", "Weight", "Day P/L", "Day P/L %")
	for _, h := range holdings {
		t.Row(
			h.Symbol,
			fmt.Sprintf("%g", h.Quantity),
			h.Price.StringFixed(2),
			h.MarketValue.StringFixed(2),
			pct(h.Weight),
			signed(h.GainLoss, ""),
			signed(decimal.NewFromFloat(h.GainLossPercent), "%"),
		)
	}
	fmt.Fprintln(w, t.Render())
}

func RenderReport(w io.Writer, r *models.PortfolioReport) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Portfolio report: %d holdings, benchmark %s, period %s",
		len(r.Portfolio), r.Benchmark, r.Period)))
	RenderHoldings(w, r.Holdings)
	RenderRisk(w, r.Risk)
	RenderPerformance(w, r.Benchmark, r.Performance)
	fmt.Fprintln(w, kv("Generated", r.GeneratedAt.Local().Format(time.RFC1123)))
}

func RenderReportList(w io.Writer, list []ReportSummary) {
	if len(list) == 0 {
		DisplayInfo(w, "No saved reports")
		return
	}
	t := newTable("Name", "Symbols", "Benchmark", "Generated")
	for _, r := range list {
		t.Row(r.Name, strings.Join(r.Symbols, ","), r.Benchmark, r.GeneratedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(w, t.Render())
}

func RenderNews(w io.Writer, keyword string, items []models.NewsItem) {
	if len(items) == 0 {
		DisplayInfo(w, "No recent headlines for "+keyword)
		return
	}
	fmt.Fprintln(w, titleStyle.Render("Headlines: "+keyword))
	for _, it := range items {
		label := it.SentimentLabel
		switch {
		case it.SentimentScore > 0:
			label = positiveStyle.Render(label)
		case it.SentimentScore < 0:
			label = negativeStyle.Render(label)
		}
		fmt.Fprintf(w, "%s  %s [%s %+.2f]\n", it.PublishedAt.Local().Format("Jan 02 15:04"), it.Title, label, it.SentimentScore)
		fmt.Fprintf(w, "    %s  %s\n", it.Source, it.URL)
	}
}

func RenderArticles(w io.Writer, articles []models.Article) {
	if len(articles) == 0 {
		DisplayInfo(w, "No stored articles")
		return
	}
	t := newTable("ID", "Published", "Source", "Title")
	for _, a := range articles {
		t.Row(fmt.Sprintf("%d", a.ID), a.PublishedAt.Local().Format("2006-01-02 15:04"), a.SourceName, truncateString(a.Title, 70))
	}
	fmt.Fprintln(w, t.Render())
}

func RenderTable(w io.Writer, tbl *storage.Table) {
	t := newTable(tbl.Columns...)
	for _, row := range tbl.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = truncateString(fmt.Sprint(v), 80)
		}
		t.Row(cells...)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%d row(s)\n", len(tbl.Rows))
}

func RenderConfig(w io.Writer, path string, cfg config.Config) {
	configured := func(s string) string {
		if s == "" {
			return negativeStyle.Render("not configured")
		}
		return positiveStyle.Render("configured")
	}
	fmt.Fprintln(w, panelStyle.Render(strings.Join([]string{
		titleStyle.Render("Configuration"),
		kv("Config file", path),
		kv("Database", cfg.DatabasePath),
		kv("Market provider", cfg.MarketProvider),
		kv("Benchmark", cfg.BenchmarkSymbol),
		kv("History period", cfg.HistoryPeriod),
		kv("Risk-free rate", pct(cfg.RiskFreeRate)),
		kv("Trading days", fmt.Sprintf("%d", cfg.TradingDays)),
		kv("Weighting", cfg.WeightScheme),
		kv("Cache", fmt.Sprintf("%t (%ds, %d entries)", cfg.CacheEnabled, cfg.CacheTTLSeconds, cfg.CacheCapacity)),
		kv("News provider", cfg.NewsProvider),
		kv("Sentiment scorer", cfg.SentimentScorer),
		"",
		kv("NewsAPI key", configured(cfg.NewsAPIKey)),
		kv("Finnhub key", configured(cfg.FinnhubAPIKey)),
		kv("Longport credentials", configured(cfg.LongportAccessToken)),
		kv("LLM key", configured(cfg.LLMAPIKey)),
		kv("Eino debug", fmt.Sprintf("%t (port %d)", cfg.EinoDebugEnabled, cfg.EinoDebugPort)),
	}, "\n")))
}

// configWarnings lists credentials the selected providers need but lack.
func configWarnings(cfg config.Config) []string {
	var out []string
	switch cfg.NewsProvider {
	case config.NewsProviderNewsAPI:
		if cfg.NewsAPIKey == "" {
			out = append(out, "news_provider is newsapi but NEWS_API_KEY is not set")
		}
	case config.NewsProviderFinnhub:
		if cfg.FinnhubAPIKey == "" {
			out = append(out, "news_provider is finnhub but CORTEXFOLIO_FINNHUB_API_KEY is not set")
		}
	}
	if cfg.MarketProvider == config.MarketProviderLongport &&
		(cfg.LongportAppKey == "" || cfg.LongportAppSecret == "" || cfg.LongportAccessToken == "") {
		out = append(out, "market_provider is longport but LONGPORT_* credentials are incomplete")
	}
	if cfg.SentimentScorer == config.ScorerLLM && cfg.LLMAPIKey == "" {
		out = append(out, "sentiment_scorer is llm but LLM_API_KEY is not set")
	}
	sort.Strings(out)
	return out
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
