// Package risk computes portfolio risk and performance statistics from
// daily close series. Everything here is pure; callers fetch the data.
package risk

import (
	"fmt"
	"math"
	"sort"

	"github.com/dyike/CortexFolio/internal/apperr"
	"github.com/dyike/CortexFolio/models"
)

const (
	WeightByQuantity = "quantity"
	WeightByValue    = "value"
)

type Params struct {
	RiskFreeRate  float64 // annual
	TradingDays   int
	VaRConfidence float64
	WeightScheme  string
}

func DefaultParams() Params {
	return Params{
		RiskFreeRate:  0.03,
		TradingDays:   252,
		VaRConfidence: 0.95,
		WeightScheme:  WeightByQuantity,
	}
}

// RiskFreeDaily is the annual risk-free rate spread over the trading year.
func (p Params) RiskFreeDaily() float64 {
	if p.TradingDays <= 0 {
		return 0
	}
	return p.RiskFreeRate / float64(p.TradingDays)
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.TradingDays <= 0 {
		p.TradingDays = d.TradingDays
	}
	if p.VaRConfidence <= 0 || p.VaRConfidence >= 1 {
		p.VaRConfidence = d.VaRConfidence
	}
	if p.WeightScheme == "" {
		p.WeightScheme = d.WeightScheme
	}
	return p
}

// Input is a portfolio with one close series per holding plus the
// benchmark series.
type Input struct {
	Portfolio models.Portfolio
	Series    map[string]models.PriceSeries
	Benchmark models.PriceSeries
}

// Calculator applies Params to Inputs.
type Calculator struct {
	params Params
}

func NewCalculator(p Params) *Calculator {
	return &Calculator{params: p.withDefaults()}
}

func (c *Calculator) Params() Params { return c.params }

// ValidatePortfolio rejects empty portfolios, negative quantities and a
// zero total quantity.
func ValidatePortfolio(p models.Portfolio) error {
	if len(p) == 0 {
		return apperr.InvalidPortfolio("validate", "", fmt.Errorf("portfolio is empty"))
	}
	var total float64
	for sym, q := range p {
		if q < 0 || math.IsNaN(q) || math.IsInf(q, 0) {
			return apperr.InvalidPortfolio("validate", sym, fmt.Errorf("quantity %v is not a non-negative number", q))
		}
		total += q
	}
	if total <= 0 {
		return apperr.InvalidPortfolio("validate", "", fmt.Errorf("total quantity is zero"))
	}
	return nil
}

// prepared holds the aligned data shared by Risk and Performance.
type prepared struct {
	symbols    []string
	holdings   [][]float64 // returns per holding
	market     []float64
	portfolio  []float64
	weights    []float64
	totalValue float64
}

func (c *Calculator) prepare(in Input) (*prepared, error) {
	if err := ValidatePortfolio(in.Portfolio); err != nil {
		return nil, err
	}
	symbols := in.Portfolio.Symbols()

	series := make([]models.PriceSeries, 0, len(symbols)+1)
	for _, sym := range symbols {
		s, ok := in.Series[sym]
		if !ok {
			return nil, apperr.InvalidPortfolio("prepare", sym, fmt.Errorf("missing price series"))
		}
		series = append(series, s)
	}
	series = append(series, in.Benchmark)

	_, closes, err := Align(series)
	if err != nil {
		return nil, err
	}

	pr := &prepared{symbols: symbols, holdings: make([][]float64, len(symbols))}
	raw := make([]float64, len(symbols))
	for i, sym := range symbols {
		r, err := Returns(closes[i])
		if err != nil {
			return nil, withSubject(err, sym)
		}
		pr.holdings[i] = r
		// Value at each holding's own latest close, which may be newer
		// than the last date shared with the benchmark.
		latest, _ := in.Series[sym].Latest()
		last := latest.Close.InexactFloat64()
		qty := in.Portfolio[sym]
		pr.totalValue += qty * last
		if c.params.WeightScheme == WeightByValue {
			raw[i] = qty * last
		} else {
			raw[i] = qty
		}
	}
	pr.market, err = Returns(closes[len(closes)-1])
	if err != nil {
		return nil, withSubject(err, in.Benchmark.Symbol)
	}
	if pr.weights, err = NormalizeWeights(raw); err != nil {
		return nil, err
	}
	if pr.portfolio, err = PortfolioReturns(pr.holdings, pr.weights); err != nil {
		return nil, err
	}
	return pr, nil
}

// Risk computes volatility, beta, Sharpe, VaR, max drawdown and the
// diversification score.
func (c *Calculator) Risk(in Input) (models.RiskMetrics, error) {
	pr, err := c.prepare(in)
	if err != nil {
		return models.RiskMetrics{}, err
	}
	p := c.params

	var m models.RiskMetrics
	m.TotalValue = pr.totalValue
	m.Observations = len(pr.portfolio)
	if m.Volatility, err = Volatility(pr.holdings, pr.weights, p.TradingDays); err != nil {
		return models.RiskMetrics{}, err
	}
	if m.Beta, err = Beta(pr.portfolio, pr.market); err != nil {
		return models.RiskMetrics{}, err
	}
	if m.SharpeRatio, err = Sharpe(pr.portfolio, p.RiskFreeDaily(), p.TradingDays); err != nil {
		return models.RiskMetrics{}, err
	}
	if m.VaR95, err = ValueAtRisk(pr.portfolio, p.VaRConfidence); err != nil {
		return models.RiskMetrics{}, err
	}
	if m.MaxDrawdown, err = MaxDrawdown(pr.portfolio); err != nil {
		return models.RiskMetrics{}, err
	}
	if m.DiversificationScore, err = DiversificationScore(pr.holdings); err != nil {
		return models.RiskMetrics{}, err
	}
	return m, nil
}

// Performance computes returns, alpha, beta, Sharpe and tracking error
// against the benchmark.
func (c *Calculator) Performance(in Input) (models.PerformanceMetrics, error) {
	pr, err := c.prepare(in)
	if err != nil {
		return models.PerformanceMetrics{}, err
	}
	p := c.params
	rfd := p.RiskFreeDaily()

	var m models.PerformanceMetrics
	m.TotalValue = pr.totalValue
	m.DailyReturn = pr.portfolio[len(pr.portfolio)-1]
	var mean float64
	for _, r := range pr.portfolio {
		mean += r
	}
	mean /= float64(len(pr.portfolio))
	m.AnnualizedReturn = mean * float64(p.TradingDays)

	if m.Beta, err = Beta(pr.portfolio, pr.market); err != nil {
		return models.PerformanceMetrics{}, err
	}
	if m.Alpha, err = Alpha(pr.portfolio, pr.market, m.Beta, p.RiskFreeRate); err != nil {
		return models.PerformanceMetrics{}, err
	}
	if m.SharpeRatio, err = Sharpe(pr.portfolio, rfd, p.TradingDays); err != nil {
		return models.PerformanceMetrics{}, err
	}
	if m.TrackingError, err = TrackingError(pr.portfolio, pr.market, p.TradingDays); err != nil {
		return models.PerformanceMetrics{}, err
	}
	return m, nil
}

const dateKey = "2006-01-02"

// Align keeps the calendar dates (UTC) present in every series and returns
// them ascending with the matching closes per series. Fewer than two common
// dates is an error.
func Align(series []models.PriceSeries) ([]string, [][]float64, error) {
	if len(series) == 0 {
		return nil, nil, apperr.InvalidPortfolio("align", "", fmt.Errorf("no series"))
	}

	byDate := make([]map[string]float64, len(series))
	for i, s := range series {
		m := make(map[string]float64, len(s.Points))
		for _, p := range s.Points {
			m[p.Time.UTC().Format(dateKey)] = p.Close.InexactFloat64()
		}
		byDate[i] = m
	}

	var dates []string
	for d := range byDate[0] {
		shared := true
		for _, m := range byDate[1:] {
			if _, ok := m[d]; !ok {
				shared = false
				break
			}
		}
		if shared {
			dates = append(dates, d)
		}
	}
	if len(dates) < 2 {
		return nil, nil, apperr.InvalidPortfolio("align", "", fmt.Errorf("only %d common dates across %d series", len(dates), len(series)))
	}
	sort.Strings(dates)

	closes := make([][]float64, len(series))
	for i, m := range byDate {
		c := make([]float64, len(dates))
		for j, d := range dates {
			c[j] = m[d]
		}
		closes[i] = c
	}
	return dates, closes, nil
}

func withSubject(err error, subject string) error {
	if e, ok := err.(*apperr.Error); ok && e.Subject == "" {
		cp := *e
		cp.Subject = subject
		return &cp
	}
	return err
}
