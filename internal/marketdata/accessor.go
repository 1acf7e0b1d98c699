// Package marketdata turns a quote provider into validated quotes and
// clean daily close series.
package marketdata

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dyike/CortexFolio/internal/apperr"
	"github.com/dyike/CortexFolio/internal/cache"
	"github.com/dyike/CortexFolio/models"
	"github.com/dyike/CortexFolio/pkg/dataflows"
)

// Provider is a market-data source. Implementations report "no data" with
// apperr.ErrDataUnavailable and transport failures with apperr.ErrUpstream.
type Provider interface {
	Name() string
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
	History(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error)
	Profile(ctx context.Context, symbol string) (*models.CompanyProfile, error)
}

type Options struct {
	Retry         dataflows.RetryConfig
	CacheEnabled  bool
	CacheTTL      time.Duration
	CacheCapacity int
	Logger        zerolog.Logger
	Now           func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Retry:         dataflows.DefaultRetryConfig(),
		CacheEnabled:  true,
		CacheTTL:      15 * time.Minute,
		CacheCapacity: 256,
		Logger:        zerolog.Nop(),
	}
}

type Accessor struct {
	provider Provider
	retry    dataflows.RetryConfig
	series   *cache.TTL[string, models.PriceSeries]
	log      zerolog.Logger
	now      func() time.Time
}

func NewAccessor(provider Provider, opts Options) *Accessor {
	a := &Accessor{
		provider: provider,
		retry:    opts.Retry,
		log:      opts.Logger.With().Str("component", "marketdata").Str("provider", provider.Name()).Logger(),
		now:      opts.Now,
	}
	if a.now == nil {
		a.now = time.Now
	}
	if opts.CacheEnabled {
		a.series = cache.New[string, models.PriceSeries](opts.CacheCapacity, opts.CacheTTL)
	}
	return a
}

func (a *Accessor) ProviderName() string { return a.provider.Name() }

// CurrentQuote returns the latest snapshot with the intraday change against
// the day's open.
func (a *Accessor) CurrentQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	sym, err := dataflows.ValidateSymbol(symbol)
	if err != nil {
		return nil, apperr.DataUnavailable("quote", symbol, err)
	}

	var q *models.Quote
	err = dataflows.WithRetry(ctx, a.retry, func(ctx context.Context) error {
		var err error
		q, err = a.provider.Quote(ctx, sym)
		return err
	})
	if err != nil {
		return nil, err
	}
	if q == nil || !q.Price.IsPositive() {
		return nil, apperr.DataUnavailable("quote", sym, nil)
	}

	q.Symbol = sym
	q.Change, q.ChangePercent = intradayChange(q.Price, q.Open)
	if q.UpdatedAt.IsZero() {
		q.UpdatedAt = a.now().UTC()
	}
	return q, nil
}

// HistoricalSeries returns closes for the lookback period, ascending by
// time with duplicates collapsed and non-positive closes dropped.
func (a *Accessor) HistoricalSeries(ctx context.Context, symbol, period string) (models.PriceSeries, error) {
	sym, err := dataflows.ValidateSymbol(symbol)
	if err != nil {
		return models.PriceSeries{}, apperr.DataUnavailable("history", symbol, err)
	}
	period = dataflows.NormalizePeriod(period)
	end := a.now().UTC()
	start, err := dataflows.ParsePeriod(period, end)
	if err != nil {
		return models.PriceSeries{}, apperr.DataUnavailable("history", sym, err)
	}

	key := sym + "|" + period
	if a.series != nil {
		if s, ok := a.series.Get(key); ok {
			a.log.Debug().Str("symbol", sym).Str("period", period).Msg("series cache hit")
			return s, nil
		}
	}

	var raw []models.PricePoint
	err = dataflows.WithRetry(ctx, a.retry, func(ctx context.Context) error {
		var err error
		raw, err = a.provider.History(ctx, sym, start, end)
		return err
	})
	if err != nil {
		return models.PriceSeries{}, err
	}

	points := NormalizePoints(raw)
	if len(points) == 0 {
		return models.PriceSeries{}, apperr.DataUnavailable("history", sym, nil)
	}
	s := models.PriceSeries{Symbol: sym, Period: period, Points: points}
	if a.series != nil {
		a.series.Set(key, s)
	}
	a.log.Debug().
		Str("symbol", sym).
		Str("period", period).
		Int("points", len(points)).
		Str("range", dataflows.FormatDateRange(start, end)).
		Msg("series fetched")
	return s, nil
}

func (a *Accessor) CompanyProfile(ctx context.Context, symbol string) (*models.CompanyProfile, error) {
	sym, err := dataflows.ValidateSymbol(symbol)
	if err != nil {
		return nil, apperr.DataUnavailable("profile", symbol, err)
	}
	var p *models.CompanyProfile
	err = dataflows.WithRetry(ctx, a.retry, func(ctx context.Context) error {
		var err error
		p, err = a.provider.Profile(ctx, sym)
		return err
	})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.DataUnavailable("profile", sym, nil)
	}
	p.Symbol = sym
	return p, nil
}

// CacheStats reports series cache usage; ok is false when caching is off.
func (a *Accessor) CacheStats() (cache.Stats, bool) {
	if a.series == nil {
		return cache.Stats{}, false
	}
	return a.series.Stats(), true
}

// NormalizePoints sorts by time, keeps the last point for a repeated
// timestamp and drops non-positive closes. The input is not modified.
func NormalizePoints(raw []models.PricePoint) []models.PricePoint {
	pts := make([]models.PricePoint, 0, len(raw))
	for _, p := range raw {
		if p.Close.IsPositive() && !p.Time.IsZero() {
			pts = append(pts, p)
		}
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Time.Before(pts[j].Time) })

	out := pts[:0]
	for _, p := range pts {
		if n := len(out); n > 0 && out[n-1].Time.Equal(p.Time) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

var hundred = decimal.NewFromInt(100)

func intradayChange(price, open decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	change := price.Sub(open)
	if open.IsZero() {
		return change, decimal.Zero
	}
	return change, change.Div(open).Mul(hundred).Round(4)
}
