// Package portfolio fetches the data a portfolio needs and hands it to the
// risk calculator.
package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dyike/CortexFolio/internal/apperr"
	"github.com/dyike/CortexFolio/internal/risk"
	"github.com/dyike/CortexFolio/models"
	"github.com/dyike/CortexFolio/pkg/dataflows"
)

// MarketData is what the analyzer reads from the market data layer.
type MarketData interface {
	CurrentQuote(ctx context.Context, symbol string) (*models.Quote, error)
	HistoricalSeries(ctx context.Context, symbol, period string) (models.PriceSeries, error)
}

type Options struct {
	Benchmark   string
	Period      string
	Concurrency int
	Logger      zerolog.Logger
	Now         func() time.Time
}

type Analyzer struct {
	md          MarketData
	calc        *risk.Calculator
	benchmark   string
	period      string
	concurrency int
	log         zerolog.Logger
	now         func() time.Time
}

func NewAnalyzer(md MarketData, calc *risk.Calculator, opts Options) *Analyzer {
	a := &Analyzer{
		md:          md,
		calc:        calc,
		benchmark:   opts.Benchmark,
		period:      opts.Period,
		concurrency: opts.Concurrency,
		log:         opts.Logger.With().Str("component", "portfolio").Logger(),
		now:         opts.Now,
	}
	a.benchmark = dataflows.NormalizeSymbol(a.benchmark)
	if a.benchmark == "" {
		a.benchmark = "^GSPC"
	}
	if a.period == "" {
		a.period = "1y"
	}
	if a.concurrency <= 0 {
		a.concurrency = 4
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

func (a *Analyzer) Benchmark() string { return a.benchmark }
func (a *Analyzer) Period() string    { return a.period }

// Normalize upper-cases symbols, merges duplicates and validates the
// result. Nothing is fetched for an invalid portfolio.
func Normalize(p models.Portfolio) (models.Portfolio, error) {
	out := make(models.Portfolio, len(p))
	for sym, qty := range p {
		s, err := dataflows.ValidateSymbol(sym)
		if err != nil {
			return nil, apperr.InvalidPortfolio("validate", sym, err)
		}
		out[s] += qty
	}
	if err := risk.ValidatePortfolio(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Analyzer) Risk(ctx context.Context, p models.Portfolio) (models.RiskMetrics, error) {
	in, err := a.input(ctx, p)
	if err != nil {
		return models.RiskMetrics{}, err
	}
	return a.calc.Risk(in)
}

func (a *Analyzer) Performance(ctx context.Context, p models.Portfolio) (models.PerformanceMetrics, error) {
	in, err := a.input(ctx, p)
	if err != nil {
		return models.PerformanceMetrics{}, err
	}
	return a.calc.Performance(in)
}

// Report computes risk, performance and holdings from one round of fetches.
func (a *Analyzer) Report(ctx context.Context, p models.Portfolio) (*models.PortfolioReport, error) {
	in, err := a.input(ctx, p)
	if err != nil {
		return nil, err
	}
	rm, err := a.calc.Risk(in)
	if err != nil {
		return nil, err
	}
	pm, err := a.calc.Performance(in)
	if err != nil {
		return nil, err
	}
	holdings, err := a.holdings(ctx, in.Portfolio)
	if err != nil {
		return nil, err
	}
	return &models.PortfolioReport{
		Portfolio:   in.Portfolio,
		Benchmark:   a.benchmark,
		Period:      a.period,
		Risk:        rm,
		Performance: pm,
		Holdings:    holdings,
		GeneratedAt: a.now().UTC(),
	}, nil
}

// Holdings values each position at the current quote. Cost basis is the
// previous close.
func (a *Analyzer) Holdings(ctx context.Context, p models.Portfolio) ([]models.Holding, error) {
	norm, err := Normalize(p)
	if err != nil {
		return nil, err
	}
	return a.holdings(ctx, norm)
}

func (a *Analyzer) holdings(ctx context.Context, p models.Portfolio) ([]models.Holding, error) {
	symbols := p.Symbols()
	quotes := make([]*models.Quote, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, sym := range symbols {
		g.Go(func() error {
			q, err := a.md.CurrentQuote(gctx, sym)
			if err != nil {
				return err
			}
			quotes[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.Holding, len(symbols))
	total := decimal.Zero
	for i, sym := range symbols {
		q := quotes[i]
		qty := decimal.NewFromFloat(p[sym])
		value := q.Price.Mul(qty)
		cost := q.PreviousClose.Mul(qty)
		h := models.Holding{
			Symbol:      sym,
			Quantity:    p[sym],
			Price:       q.Price,
			MarketValue: value,
			CostBasis:   cost,
			GainLoss:    value.Sub(cost),
		}
		if cost.IsPositive() {
			h.GainLossPercent = h.GainLoss.Div(cost).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
		out[i] = h
		total = total.Add(value)
	}
	if !total.IsPositive() {
		return nil, apperr.InvalidPortfolio("holdings", "", fmt.Errorf("total market value is zero"))
	}
	for i := range out {
		out[i].Weight = out[i].MarketValue.Div(total).InexactFloat64()
	}
	return out, nil
}

// input validates p and fetches every holding's series and the benchmark
// in parallel. Any failed fetch fails the whole call.
func (a *Analyzer) input(ctx context.Context, p models.Portfolio) (risk.Input, error) {
	norm, err := Normalize(p)
	if err != nil {
		return risk.Input{}, err
	}

	symbols := norm.Symbols()
	if _, held := norm[a.benchmark]; !held {
		symbols = append(symbols, a.benchmark)
	}
	var (
		mu     sync.Mutex
		series = make(map[string]models.PriceSeries, len(symbols))
	)
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, sym := range symbols {
		g.Go(func() error {
			s, err := a.md.HistoricalSeries(gctx, sym, a.period)
			if err != nil {
				return err
			}
			mu.Lock()
			series[sym] = s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.log.Warn().Err(err).Strs("symbols", symbols).Msg("series fetch failed")
		return risk.Input{}, err
	}

	holdings := make(map[string]models.PriceSeries, len(norm))
	for sym := range norm {
		holdings[sym] = series[sym]
	}

	a.log.Debug().
		Int("symbols", len(symbols)).
		Dur("elapsed", time.Since(started)).
		Msg("series fetched")
	return risk.Input{Portfolio: norm, Series: holdings, Benchmark: series[a.benchmark]}, nil
}
