package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio maps a symbol to the quantity held.
type Portfolio map[string]float64

// Symbols returns the symbols in a stable order.
func (p Portfolio) Symbols() []string {
	out := make([]string, 0, len(p))
	for s := range p {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (p Portfolio) TotalQuantity() float64 {
	var total float64
	for _, q := range p {
		total += q
	}
	return total
}

// ParsePortfolio reads "AAPL=10" style arguments. Symbols are upper-cased
// and repeated symbols are summed.
func ParsePortfolio(args []string) (Portfolio, error) {
	p := make(Portfolio, len(args))
	for _, arg := range args {
		sym, qty, ok := strings.Cut(arg, "=")
		if !ok {
			sym, qty, ok = strings.Cut(arg, ":")
		}
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if !ok || sym == "" {
			return nil, fmt.Errorf("holding %q: expected SYMBOL=QUANTITY", arg)
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(qty), 64)
		if err != nil {
			return nil, fmt.Errorf("holding %q: parse quantity: %w", arg, err)
		}
		p[sym] += q
	}
	return p, nil
}

// RiskMetrics are the portfolio-level risk statistics.
type RiskMetrics struct {
	TotalValue           float64 `json:"total_value"`
	Volatility           float64 `json:"volatility"`
	Beta                 float64 `json:"beta"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	VaR95                float64 `json:"var_95"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	DiversificationScore float64 `json:"diversification_score"`
	Observations         int     `json:"observations"`
}

// PerformanceMetrics describe returns relative to the benchmark.
type PerformanceMetrics struct {
	TotalValue       float64 `json:"total_value"`
	DailyReturn      float64 `json:"daily_return"`
	AnnualizedReturn float64 `json:"ytd_return"`
	Alpha            float64 `json:"alpha"`
	Beta             float64 `json:"beta"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	TrackingError    float64 `json:"tracking_error"`
}

// Holding is the per-position view of a portfolio at current prices.
type Holding struct {
	Symbol          string          `json:"symbol"`
	Quantity        float64         `json:"quantity"`
	Price           decimal.Decimal `json:"current_price"`
	MarketValue     decimal.Decimal `json:"market_value"`
	Weight          float64         `json:"weight"`
	CostBasis       decimal.Decimal `json:"cost_basis"`
	GainLoss        decimal.Decimal `json:"gain_loss"`
	GainLossPercent float64         `json:"gain_loss_percent"`
}

// PortfolioReport bundles everything the analyzer computes in one call.
type PortfolioReport struct {
	Portfolio   Portfolio          `json:"portfolio"`
	Benchmark   string             `json:"benchmark"`
	Period      string             `json:"period"`
	Risk        RiskMetrics        `json:"risk_metrics"`
	Performance PerformanceMetrics `json:"performance"`
	Holdings    []Holding          `json:"holdings"`
	GeneratedAt time.Time          `json:"last_updated"`
}
