package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexFolio/internal/apperr"
	"github.com/dyike/CortexFolio/models"
	"github.com/dyike/CortexFolio/pkg/dataflows"
)

type fakeProvider struct {
	mu           sync.Mutex
	quotes       map[string]*models.Quote
	history      map[string][]models.PricePoint
	historyErrs  []error
	historyCalls int
	quoteCalls   int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Quote(_ context.Context, symbol string) (*models.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quoteCalls++
	q, ok := f.quotes[symbol]
	if !ok {
		return nil, apperr.DataUnavailable("fake quote", symbol, nil)
	}
	cp := *q
	return &cp, nil
}

func (f *fakeProvider) History(_ context.Context, symbol string, _, _ time.Time) ([]models.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	if len(f.historyErrs) > 0 {
		err := f.historyErrs[0]
		f.historyErrs = f.historyErrs[1:]
		return nil, err
	}
	return f.history[symbol], nil
}

func (f *fakeProvider) Profile(_ context.Context, symbol string) (*models.CompanyProfile, error) {
	return &models.CompanyProfile{Name: symbol + " Inc"}, nil
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func pt(d int, c float64) models.PricePoint {
	return models.PricePoint{Time: day(d), Close: decimal.NewFromFloat(c)}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Retry = dataflows.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	opts.Now = func() time.Time { return day(31) }
	return opts
}

func TestCurrentQuoteComputesChange(t *testing.T) {
	p := &fakeProvider{quotes: map[string]*models.Quote{
		"AAPL": {Price: decimal.NewFromFloat(102), Open: decimal.NewFromFloat(100), Volume: 10},
	}}
	a := NewAccessor(p, testOptions())

	q, err := a.CurrentQuote(context.Background(), " aapl ")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.True(t, q.Change.Equal(decimal.NewFromInt(2)), q.Change.String())
	assert.True(t, q.ChangePercent.Equal(decimal.NewFromInt(2)), q.ChangePercent.String())
	assert.False(t, q.UpdatedAt.IsZero())
}

func TestCurrentQuoteZeroOpen(t *testing.T) {
	p := &fakeProvider{quotes: map[string]*models.Quote{
		"NEW": {Price: decimal.NewFromFloat(5)},
	}}
	q, err := NewAccessor(p, testOptions()).CurrentQuote(context.Background(), "NEW")
	require.NoError(t, err)
	assert.True(t, q.ChangePercent.IsZero())
}

func TestCurrentQuoteUnavailable(t *testing.T) {
	p := &fakeProvider{quotes: map[string]*models.Quote{}}
	a := NewAccessor(p, testOptions())

	_, err := a.CurrentQuote(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, apperr.ErrDataUnavailable)
	assert.Equal(t, 1, p.quoteCalls, "no data is not retried")

	_, err = a.CurrentQuote(context.Background(), "")
	assert.ErrorIs(t, err, apperr.ErrDataUnavailable)
	assert.ErrorIs(t, err, dataflows.ErrInvalidSymbol)
}

func TestCurrentQuoteUnknownYahooSymbol(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"quoteResponse":{"result":[],"error":null}}`))
	}))
	defer srv.Close()

	a := NewAccessor(dataflows.NewYahooFinanceClient(dataflows.WithYahooBaseURL(srv.URL)), testOptions())
	_, err := a.CurrentQuote(context.Background(), "ZZZZNOTREAL")
	assert.ErrorIs(t, err, apperr.ErrDataUnavailable)
	assert.NotErrorIs(t, err, apperr.ErrUpstream)
	assert.NotContains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(1), hits.Load())
}

func TestHistoricalSeriesNormalizes(t *testing.T) {
	p := &fakeProvider{history: map[string][]models.PricePoint{
		"MSFT": {pt(3, 12), pt(1, 10), pt(2, 0), pt(3, 13), pt(4, -1), pt(5, 14)},
	}}
	a := NewAccessor(p, testOptions())

	s, err := a.HistoricalSeries(context.Background(), "msft", "1mo")
	require.NoError(t, err)
	assert.Equal(t, "MSFT", s.Symbol)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{10, 13, 14}, s.Closes())
	for i := 1; i < s.Len(); i++ {
		assert.True(t, s.Points[i-1].Time.Before(s.Points[i].Time))
	}
}

func TestHistoricalSeriesEmpty(t *testing.T) {
	p := &fakeProvider{history: map[string][]models.PricePoint{"X": {pt(1, 0)}}}
	_, err := NewAccessor(p, testOptions()).HistoricalSeries(context.Background(), "X", "1y")
	assert.ErrorIs(t, err, apperr.ErrDataUnavailable)
}

func TestHistoricalSeriesBadPeriod(t *testing.T) {
	p := &fakeProvider{}
	_, err := NewAccessor(p, testOptions()).HistoricalSeries(context.Background(), "AAPL", "7w")
	assert.ErrorIs(t, err, dataflows.ErrInvalidPeriod)
	assert.Zero(t, p.historyCalls)
}

func TestHistoricalSeriesRetriesUpstream(t *testing.T) {
	p := &fakeProvider{
		history:     map[string][]models.PricePoint{"AAPL": {pt(1, 1), pt(2, 2)}},
		historyErrs: []error{apperr.Upstream("fake", "AAPL", errors.New("503")), apperr.Upstream("fake", "AAPL", errors.New("503"))},
	}
	s, err := NewAccessor(p, testOptions()).HistoricalSeries(context.Background(), "AAPL", "1mo")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 3, p.historyCalls)
}

func TestHistoricalSeriesCache(t *testing.T) {
	p := &fakeProvider{history: map[string][]models.PricePoint{"AAPL": {pt(1, 1), pt(2, 2)}}}
	a := NewAccessor(p, testOptions())

	for i := 0; i < 3; i++ {
		_, err := a.HistoricalSeries(context.Background(), "AAPL", "1mo")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, p.historyCalls)

	_, err := a.HistoricalSeries(context.Background(), "AAPL", "1y")
	require.NoError(t, err)
	assert.Equal(t, 2, p.historyCalls, "period is part of the key")

	st, ok := a.CacheStats()
	require.True(t, ok)
	assert.Equal(t, uint64(2), st.Hits)
}

func TestHistoricalSeriesCacheKeyIgnoresPeriodCase(t *testing.T) {
	p := &fakeProvider{history: map[string][]models.PricePoint{"AAPL": {pt(1, 1), pt(2, 2)}}}
	a := NewAccessor(p, testOptions())

	for _, period := range []string{"1Y", "1y", " 1y "} {
		s, err := a.HistoricalSeries(context.Background(), "AAPL", period)
		require.NoError(t, err)
		assert.Equal(t, "1y", s.Period)
	}
	assert.Equal(t, 1, p.historyCalls)
}

func TestHistoricalSeriesCacheDisabled(t *testing.T) {
	p := &fakeProvider{history: map[string][]models.PricePoint{"AAPL": {pt(1, 1), pt(2, 2)}}}
	opts := testOptions()
	opts.CacheEnabled = false
	a := NewAccessor(p, opts)

	for i := 0; i < 2; i++ {
		_, err := a.HistoricalSeries(context.Background(), "AAPL", "1mo")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, p.historyCalls)
	_, ok := a.CacheStats()
	assert.False(t, ok)
}

func TestCompanyProfile(t *testing.T) {
	p, err := NewAccessor(&fakeProvider{}, testOptions()).CompanyProfile(context.Background(), "ibm")
	require.NoError(t, err)
	assert.Equal(t, "IBM", p.Symbol)
	assert.Equal(t, "IBM Inc", p.Name)
}
