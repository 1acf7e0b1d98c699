package risk

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/dyike/CortexFolio/internal/apperr"
	"github.com/dyike/CortexFolio/models"
)

// synthetic builds n business-day closes starting at start with a drift and
// a deterministic wiggle.
func synthetic(symbol string, n int, start, drift, amp, phase float64) models.PriceSeries {
	s := models.PriceSeries{Symbol: symbol, Period: "1y"}
	t := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	price := start
	for i := 0; i < n; i++ {
		for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
			t = t.AddDate(0, 0, 1)
		}
		s.Points = append(s.Points, models.PricePoint{Time: t, Close: decimal.NewFromFloat(price)})
		price *= 1 + drift + amp*math.Sin(float64(i)*0.7+phase)
		t = t.AddDate(0, 0, 1)
	}
	return s
}

func scenario() Input {
	aapl := synthetic("AAPL", 252, 150, 0.0008, 0.015, 0)
	msft := synthetic("MSFT", 252, 300, 0.0006, 0.012, 1.3)
	spx := synthetic("^GSPC", 252, 4000, 0.0004, 0.009, 0.4)
	return Input{
		Portfolio: models.Portfolio{"AAPL": 10, "MSFT": 5},
		Series:    map[string]models.PriceSeries{"AAPL": aapl, "MSFT": msft},
		Benchmark: spx,
	}
}

func finiteAll(t *testing.T, vals ...float64) {
	t.Helper()
	for i, v := range vals {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "value %d is %v", i, v)
	}
}

func TestRiskScenario(t *testing.T) {
	in := scenario()
	m, err := NewCalculator(DefaultParams()).Risk(in)
	require.NoError(t, err)

	finiteAll(t, m.Volatility, m.Beta, m.SharpeRatio, m.VaR95, m.MaxDrawdown, m.DiversificationScore)
	assert.Greater(t, m.Volatility, 0.0)
	assert.LessOrEqual(t, m.MaxDrawdown, 0.0)
	assert.Equal(t, 251, m.Observations)

	aaplLast, _ := in.Series["AAPL"].Latest()
	msftLast, _ := in.Series["MSFT"].Latest()
	want := 10*aaplLast.Close.InexactFloat64() + 5*msftLast.Close.InexactFloat64()
	assert.InDelta(t, want, m.TotalValue, 1e-6)
}

func TestPerformanceScenario(t *testing.T) {
	m, err := NewCalculator(DefaultParams()).Performance(scenario())
	require.NoError(t, err)
	finiteAll(t, m.DailyReturn, m.AnnualizedReturn, m.Alpha, m.Beta, m.SharpeRatio, m.TrackingError)
	assert.GreaterOrEqual(t, m.TrackingError, 0.0)
}

func TestZeroQuantityIsInvalid(t *testing.T) {
	in := scenario()
	in.Portfolio = models.Portfolio{"AAPL": 0, "MSFT": 0}
	_, err := NewCalculator(DefaultParams()).Risk(in)
	assert.ErrorIs(t, err, apperr.ErrInvalidPortfolio)
}

func TestValidatePortfolio(t *testing.T) {
	tests := []struct {
		name string
		p    models.Portfolio
		ok   bool
	}{
		{"empty", models.Portfolio{}, false},
		{"negative", models.Portfolio{"AAPL": -1, "MSFT": 5}, false},
		{"nan", models.Portfolio{"AAPL": math.NaN()}, false},
		{"zero total", models.Portfolio{"AAPL": 0}, false},
		{"one zero one positive", models.Portfolio{"AAPL": 0, "MSFT": 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePortfolio(tt.p)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, apperr.ErrInvalidPortfolio)
			}
		})
	}
}

func TestNormalizeWeightsSumToOne(t *testing.T) {
	for _, raw := range [][]float64{{1}, {10, 5}, {0.1, 0.2, 0.3}, {1e9, 1, 3}} {
		w, err := NormalizeWeights(raw)
		require.NoError(t, err)
		var sum float64
		for _, v := range w {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}

	_, err := NormalizeWeights([]float64{0, 0})
	assert.ErrorIs(t, err, apperr.ErrInvalidPortfolio)
	_, err = NormalizeWeights(nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidPortfolio)
}

func TestReturns(t *testing.T) {
	r, err := Returns([]float64{100, 110, 99})
	require.NoError(t, err)
	require.Len(t, r, 2)
	assert.InDelta(t, 0.1, r[0], 1e-12)
	assert.InDelta(t, -0.1, r[1], 1e-12)

	_, err = Returns([]float64{100})
	assert.ErrorIs(t, err, apperr.ErrInvalidPortfolio)
	_, err = Returns([]float64{0, 1})
	assert.ErrorIs(t, err, apperr.ErrInvalidPortfolio)
}

func TestBetaOfAssetAgainstItself(t *testing.T) {
	s := synthetic("AAPL", 60, 100, 0.001, 0.02, 0)
	r, err := Returns(s.Closes())
	require.NoError(t, err)

	b, err := Beta(r, r)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, b, 1e-12)

	in := Input{
		Portfolio: models.Portfolio{"AAPL": 3},
		Series:    map[string]models.PriceSeries{"AAPL": s},
		Benchmark: s,
	}
	m, err := NewCalculator(DefaultParams()).Risk(in)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m.Beta, 1e-12)

	perf, err := NewCalculator(DefaultParams()).Performance(in)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, perf.TrackingError, 1e-12)
	assert.InDelta(t, 0.0, perf.Alpha, 1e-12)
}

func TestBetaZeroVarianceBenchmark(t *testing.T) {
	_, err := Beta([]float64{0.01, -0.02, 0.03}, []float64{0, 0, 0})
	assert.ErrorIs(t, err, apperr.ErrInvalidPortfolio)
}

func TestAlphaSubtractsRateAsGiven(t *testing.T) {
	p := []float64{0.01, 0.01, 0.01}
	m := []float64{0.0, 0.01, 0.02}
	a, err := Alpha(p, m, 0.5, 0.03)
	require.NoError(t, err)
	// 0.01 - (0.03 + 0.5*(0.01 - 0.03))
	assert.InDelta(t, -0.01, a, 1e-12)
}

func TestPerformanceAlphaUsesAnnualRate(t *testing.T) {
	in := scenario()
	params := DefaultParams()
	params.RiskFreeRate = 0.03
	c := NewCalculator(params)

	m, err := c.Performance(in)
	require.NoError(t, err)

	pr, err := c.prepare(in)
	require.NoError(t, err)
	mp := stat.Mean(pr.portfolio, nil)
	mm := stat.Mean(pr.market, nil)
	assert.InDelta(t, mp-(0.03+m.Beta*(mm-0.03)), m.Alpha, 1e-12)
}

func TestSharpe(t *testing.T) {
	r := []float64{0.01, -0.005, 0.02, 0.0}
	s, err := Sharpe(r, 0, 252)
	require.NoError(t, err)

	mean := (0.01 - 0.005 + 0.02) / 4
	var ss float64
	for _, v := range r {
		ss += (v - mean) * (v - mean)
	}
	sd := math.Sqrt(ss / 3)
	assert.InDelta(t, math.Sqrt(252)*mean/sd, s, 1e-9)

	_, err = Sharpe([]float64{0.01, 0.01, 0.01}, 0, 252)
	assert.ErrorIs(t, err, apperr.ErrInvalidPortfolio)
}

func TestVolatilitySingleHoldingMatchesStdDev(t *testing.T) {
	r := []float64{0.01, -0.02, 0.015, 0.003, -0.007}
	v, err := Volatility([][]float64{r}, []float64{1}, 252)
	require.NoError(t, err)

	var mean float64
	for _, x := range r {
		mean += x
	}
	mean /= float64(len(r))
	var ss float64
	for _, x := range r {
		ss += (x - mean) * (x - mean)
	}
	assert.InDelta(t, math.Sqrt(ss/float64(len(r)-1))*math.Sqrt(252), v, 1e-12)
}

func TestVolatilityOfPerfectHedgeIsZero(t *testing.T) {
	r := []float64{0.01, -0.02, 0.015, 0.003}
	neg := make([]float64, len(r))
	for i, x := range r {
		neg[i] = -x
	}
	v, err := Volatility([][]float64{r, neg}, []float64{0.5, 0.5}, 252)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, v, 1e-9)
}

func TestValueAtRisk(t *testing.T) {
	r := make([]float64, 100)
	for i := range r {
		r[i] = float64(i-50) / 1000
	}
	v, err := ValueAtRisk(r, 0.95)
	require.NoError(t, err)
	assert.InDelta(t, -0.04505, v, 1e-12)

	// Matches pandas Series.quantile(0.05).
	v, err = ValueAtRisk([]float64{0.02, -0.05, 0.01, -0.03, -0.01, 0.015, 0.005, -0.02, 0.03, 0}, 0.95)
	require.NoError(t, err)
	assert.InDelta(t, -0.041, v, 1e-12)

	v, err = ValueAtRisk([]float64{-0.02}, 0.95)
	require.NoError(t, err)
	assert.Equal(t, -0.02, v)

	_, err = ValueAtRisk(nil, 0.95)
	assert.ErrorIs(t, err, apperr.ErrInvalidPortfolio)
	_, err = ValueAtRisk(r, 1)
	assert.ErrorIs(t, err, apperr.ErrInvalidPortfolio)
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name    string
		returns []float64
		want    float64
	}{
		{"monotonic", []float64{0.01, 0, 0.02}, 0},
		{"single drop", []float64{0.1, -0.5, 0.2}, -0.5},
		{"recovers", []float64{0.0, -0.1, 0.2, -0.05}, -0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MaxDrawdown(tt.returns)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.LessOrEqual(t, got, 0.0)
		})
	}
}

func TestDiversificationScore(t *testing.T) {
	a := []float64{0.01, -0.02, 0.015, 0.003}
	score, err := DiversificationScore([][]float64{a})
	require.NoError(t, err)
	assert.Equal(t, SingleHoldingDiversification, score)

	score, err = DiversificationScore([][]float64{a, a})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, score, 1e-12)

	neg := make([]float64, len(a))
	for i, x := range a {
		neg[i] = -x
	}
	score, err = DiversificationScore([][]float64{a, neg})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, score, 1e-12)

	_, err = DiversificationScore([][]float64{a, {0, 0, 0, 0}})
	assert.ErrorIs(t, err, apperr.ErrInvalidPortfolio)
}

func TestAlignIntersectsDates(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2024, 1, day, 16, 0, 0, 0, time.UTC) }
	mk := func(days ...int) models.PriceSeries {
		var s models.PriceSeries
		for _, day := range days {
			s.Points = append(s.Points, models.PricePoint{Time: d(day), Close: decimal.NewFromInt(int64(day))})
		}
		return s
	}

	dates, closes, err := Align([]models.PriceSeries{mk(1, 2, 3, 4), mk(2, 3, 4, 5), mk(1, 2, 4)})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-02", "2024-01-04"}, dates)
	assert.Equal(t, []float64{2, 4}, closes[0])
	assert.Equal(t, []float64{2, 4}, closes[2])

	_, _, err = Align([]models.PriceSeries{mk(1, 2), mk(3, 4)})
	assert.ErrorIs(t, err, apperr.ErrInvalidPortfolio)
}

func TestShortHistoryIsInvalid(t *testing.T) {
	in := scenario()
	short := in.Series["AAPL"]
	short.Points = short.Points[:1]
	in.Series["AAPL"] = short
	_, err := NewCalculator(DefaultParams()).Risk(in)
	assert.ErrorIs(t, err, apperr.ErrInvalidPortfolio)
}

func TestMissingSeriesIsInvalid(t *testing.T) {
	in := scenario()
	delete(in.Series, "MSFT")
	_, err := NewCalculator(DefaultParams()).Performance(in)
	assert.ErrorIs(t, err, apperr.ErrInvalidPortfolio)
	assert.Contains(t, err.Error(), "MSFT")
}

func TestValueWeighting(t *testing.T) {
	in := scenario()
	qty, err := NewCalculator(DefaultParams()).Risk(in)
	require.NoError(t, err)

	p := DefaultParams()
	p.WeightScheme = WeightByValue
	val, err := NewCalculator(p).Risk(in)
	require.NoError(t, err)

	assert.InDelta(t, qty.TotalValue, val.TotalValue, 1e-9)
	assert.NotEqual(t, qty.Volatility, val.Volatility)
}

func TestTotalValueUsesLatestHoldingClose(t *testing.T) {
	in := scenario()
	bench := in.Benchmark
	bench.Points = bench.Points[:len(bench.Points)-1]
	in.Benchmark = bench

	m, err := NewCalculator(DefaultParams()).Risk(in)
	require.NoError(t, err)
	assert.Equal(t, 250, m.Observations)

	aaplLast, _ := in.Series["AAPL"].Latest()
	msftLast, _ := in.Series["MSFT"].Latest()
	want := 10*aaplLast.Close.InexactFloat64() + 5*msftLast.Close.InexactFloat64()
	assert.InDelta(t, want, m.TotalValue, 1e-6)
}
