package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/dyike/CortexFolio/internal/apperr"
)

// SingleHoldingDiversification is reported when a portfolio has one
// holding and pairwise correlation is undefined.
const SingleHoldingDiversification = 0.0

func invalid(op string, format string, args ...any) error {
	return apperr.InvalidPortfolio(op, "", fmt.Errorf(format, args...))
}

// Returns converts closes to simple daily returns.
// Returns[i] = (closes[i+1] - closes[i]) / closes[i]
func Returns(closes []float64) ([]float64, error) {
	if len(closes) < 2 {
		return nil, invalid("returns", "need at least 2 prices, got %d", len(closes))
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev <= 0 || math.IsNaN(prev) || math.IsInf(prev, 0) {
			return nil, invalid("returns", "non-positive price %v at index %d", prev, i-1)
		}
		out[i-1] = (closes[i] - prev) / prev
	}
	return out, nil
}

// NormalizeWeights scales raw non-negative weights so they sum to 1.
func NormalizeWeights(raw []float64) ([]float64, error) {
	if len(raw) == 0 {
		return nil, invalid("weights", "no holdings")
	}
	var total float64
	for i, v := range raw {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, invalid("weights", "weight %d is %v", i, v)
		}
		total += v
	}
	if total <= 0 {
		return nil, invalid("weights", "total is zero")
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = v / total
	}
	return out, nil
}

// PortfolioReturns is the weighted sum of per-holding returns. Every
// holding's series must have the same length.
func PortfolioReturns(returns [][]float64, weights []float64) ([]float64, error) {
	if err := checkMatrix(returns, weights); err != nil {
		return nil, err
	}
	n := len(returns[0])
	out := make([]float64, n)
	for j, r := range returns {
		w := weights[j]
		for t := 0; t < n; t++ {
			out[t] += w * r[t]
		}
	}
	return out, nil
}

// Volatility is sqrt(w' Σ w) annualized by sqrt(tradingDays), with Σ the
// sample covariance of the holdings' returns.
func Volatility(returns [][]float64, weights []float64, tradingDays int) (float64, error) {
	if err := checkMatrix(returns, weights); err != nil {
		return 0, err
	}
	x := observations(returns)
	if r, _ := x.Dims(); r < 2 {
		return 0, invalid("volatility", "need at least 2 observations")
	}
	sigma := mat.NewSymDense(len(returns), nil)
	stat.CovarianceMatrix(sigma, x, nil)
	w := mat.NewVecDense(len(weights), append([]float64(nil), weights...))
	variance := mat.Inner(w, sigma, w)
	if variance < 0 {
		// rounding on a near-singular matrix
		variance = 0
	}
	return finite("volatility", math.Sqrt(variance)*math.Sqrt(float64(tradingDays)))
}

// Beta is cov(p, m) / var(m).
func Beta(portfolio, market []float64) (float64, error) {
	if err := samePairLength(portfolio, market); err != nil {
		return 0, err
	}
	v := stat.Variance(market, nil)
	if v == 0 || math.IsNaN(v) {
		return 0, invalid("beta", "benchmark returns have zero variance")
	}
	return finite("beta", stat.Covariance(portfolio, market, nil)/v)
}

// Alpha is mean(p) - (rf + beta*(mean(m) - rf)). The rate is subtracted
// as given; callers pass the configured annual rate.
func Alpha(portfolio, market []float64, beta, riskFree float64) (float64, error) {
	if err := samePairLength(portfolio, market); err != nil {
		return 0, err
	}
	mp := stat.Mean(portfolio, nil)
	mm := stat.Mean(market, nil)
	return finite("alpha", mp-(riskFree+beta*(mm-riskFree)))
}

// Sharpe is sqrt(tradingDays) * mean(p - rf) / std(p).
func Sharpe(portfolio []float64, riskFreeDaily float64, tradingDays int) (float64, error) {
	if len(portfolio) < 2 {
		return 0, invalid("sharpe", "need at least 2 returns")
	}
	sd := stat.StdDev(portfolio, nil)
	if sd == 0 || math.IsNaN(sd) {
		return 0, invalid("sharpe", "portfolio returns have zero variance")
	}
	excess := stat.Mean(portfolio, nil) - riskFreeDaily
	return finite("sharpe", math.Sqrt(float64(tradingDays))*excess/sd)
}

// TrackingError is the annualized standard deviation of p - m.
func TrackingError(portfolio, market []float64, tradingDays int) (float64, error) {
	if err := samePairLength(portfolio, market); err != nil {
		return 0, err
	}
	diff := make([]float64, len(portfolio))
	for i := range portfolio {
		diff[i] = portfolio[i] - market[i]
	}
	return finite("tracking error", stat.StdDev(diff, nil)*math.Sqrt(float64(tradingDays)))
}

// ValueAtRisk is the (1-confidence) quantile of the historical returns,
// interpolated between order statistics at h = (n-1)*(1-confidence)
// (Hyndman-Fan type 7). The result is a return, so losses are negative.
func ValueAtRisk(returns []float64, confidence float64) (float64, error) {
	if len(returns) == 0 {
		return 0, invalid("var", "no returns")
	}
	if confidence <= 0 || confidence >= 1 {
		return 0, invalid("var", "confidence %v outside (0, 1)", confidence)
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	return finite("var", quantileType7(sorted, 1-confidence))
}

// quantileType7 expects sorted input and q in [0, 1].
func quantileType7(sorted []float64, q float64) float64 {
	h := float64(len(sorted)-1) * q
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// MaxDrawdown is min(cum / runningMax(cum) - 1) over the compounded growth
// of returns. It is never positive.
func MaxDrawdown(returns []float64) (float64, error) {
	if len(returns) == 0 {
		return 0, invalid("max drawdown", "no returns")
	}
	cum, peak, worst := 1.0, 0.0, 0.0
	for i, r := range returns {
		cum *= 1 + r
		if i == 0 || cum > peak {
			peak = cum
		}
		if peak <= 0 {
			return 0, invalid("max drawdown", "cumulative value fell to %v", cum)
		}
		if dd := cum/peak - 1; dd < worst {
			worst = dd
		}
	}
	return finite("max drawdown", worst)
}

// DiversificationScore is 1 minus the mean pairwise correlation between
// holdings. A single holding yields SingleHoldingDiversification.
func DiversificationScore(returns [][]float64) (float64, error) {
	k := len(returns)
	if k == 0 {
		return 0, invalid("diversification", "no holdings")
	}
	if k == 1 {
		return SingleHoldingDiversification, nil
	}
	if err := checkMatrix(returns, make([]float64, k)); err != nil {
		return 0, err
	}
	for i, r := range returns {
		if v := stat.Variance(r, nil); v == 0 || math.IsNaN(v) {
			return 0, invalid("diversification", "holding %d has zero variance", i)
		}
	}

	corr := mat.NewSymDense(k, nil)
	stat.CorrelationMatrix(corr, observations(returns), nil)
	var sum float64
	var pairs int
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			sum += corr.At(i, j)
			pairs++
		}
	}
	return finite("diversification", 1-sum/float64(pairs))
}

// observations lays the per-holding series out as a T x K matrix, one row
// per day.
func observations(returns [][]float64) *mat.Dense {
	k := len(returns)
	n := len(returns[0])
	x := mat.NewDense(n, k, nil)
	for j, r := range returns {
		x.SetCol(j, r)
	}
	return x
}

var errShape = errors.New("return series have mismatched lengths")

func checkMatrix(returns [][]float64, weights []float64) error {
	if len(returns) == 0 {
		return invalid("returns", "no holdings")
	}
	if len(weights) != len(returns) {
		return apperr.InvalidPortfolio("returns", "", fmt.Errorf("%d weights for %d holdings", len(weights), len(returns)))
	}
	n := len(returns[0])
	if n == 0 {
		return invalid("returns", "empty return series")
	}
	for _, r := range returns[1:] {
		if len(r) != n {
			return apperr.InvalidPortfolio("returns", "", errShape)
		}
	}
	return nil
}

func samePairLength(a, b []float64) error {
	if len(a) < 2 || len(a) != len(b) {
		return apperr.InvalidPortfolio("returns", "", fmt.Errorf("%w: %d vs %d", errShape, len(a), len(b)))
	}
	return nil
}

func finite(op string, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalid(op, "result is not finite")
	}
	return v, nil
}
