package dataflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
	"github.com/piquette/finance-go/form"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"github.com/dyike/CortexFolio/internal/apperr"
	"github.com/dyike/CortexFolio/models"
)

// yahooStatusError keeps the HTTP status of a failed Yahoo call.
// finance-go's own backend reduces every non-2xx answer to one string.
type yahooStatusError struct {
	Status int
	Body   string
}

func (e *yahooStatusError) Error() string {
	return fmt.Sprintf("yahoo responded %d: %s", e.Status, e.Body)
}

// yahooBackend implements finance.Backend on resty.
type yahooBackend struct {
	client *resty.Client
}

func (b *yahooBackend) Call(path string, body *form.Values, ctx *context.Context, v interface{}) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req := b.client.R()
	if ctx != nil {
		req.SetContext(*ctx)
	}
	if body != nil && !body.Empty() {
		req.SetQueryParamsFromValues(body.ToValues())
	}
	resp, err := req.Get(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		text := resp.String()
		if len(text) > 200 {
			text = text[:200]
		}
		return &yahooStatusError{Status: resp.StatusCode(), Body: text}
	}
	if v == nil {
		return nil
	}
	return json.Unmarshal(resp.Body(), v)
}

// callRecorder remembers the backend error of one request before
// finance-go wraps it.
type callRecorder struct {
	next finance.Backend
	err  error
}

func (r *callRecorder) Call(path string, body *form.Values, ctx *context.Context, v interface{}) error {
	r.err = r.next.Call(path, body, ctx, v)
	return r.err
}

type YahooOption func(*yahooBackend)

// WithYahooBaseURL points the client at another host, such as a local
// mirror or a test server.
func WithYahooBaseURL(baseURL string) YahooOption {
	return func(b *yahooBackend) {
		if baseURL != "" {
			b.client.SetBaseURL(baseURL)
		}
	}
}

// YahooFinanceClient reads quotes, daily bars and equity details through
// the finance-go quote, chart and equity clients.
type YahooFinanceClient struct {
	backend finance.Backend
}

func NewYahooFinanceClient(opts ...YahooOption) *YahooFinanceClient {
	b := &yahooBackend{client: resty.New()}
	b.client.SetBaseURL(finance.YFinURL)
	b.client.SetTimeout(30 * time.Second)
	for _, opt := range opts {
		opt(b)
	}
	return &YahooFinanceClient{backend: b}
}

func (yf *YahooFinanceClient) Name() string { return "yahoo" }

// Quote returns the raw market snapshot. Change fields are left for the
// caller to derive. Yahoo answers an unknown symbol with an empty result
// list, which is reported as DataUnavailable.
func (yf *YahooFinanceClient) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec := &callRecorder{next: yf.backend}
	iter := quote.Client{B: rec}.ListP(&quote.Params{
		Params:  finance.Params{Context: &ctx},
		Symbols: []string{symbol},
	})

	var q *finance.Quote
	for iter.Next() {
		if cur := iter.Quote(); cur != nil && strings.EqualFold(cur.Symbol, symbol) {
			q = cur
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, yahooError("yahoo quote", symbol, rec.err, err)
	}
	if q == nil {
		return nil, apperr.DataUnavailable("yahoo quote", symbol, nil)
	}

	updated := time.Now().UTC()
	if q.RegularMarketTime > 0 {
		updated = time.Unix(int64(q.RegularMarketTime), 0).UTC()
	}
	return &models.Quote{
		Symbol:        symbol,
		Price:         decimal.NewFromFloat(q.RegularMarketPrice),
		Open:          decimal.NewFromFloat(q.RegularMarketOpen),
		High:          decimal.NewFromFloat(q.RegularMarketDayHigh),
		Low:           decimal.NewFromFloat(q.RegularMarketDayLow),
		PreviousClose: decimal.NewFromFloat(q.RegularMarketPreviousClose),
		Volume:        int64(q.RegularMarketVolume),
		Currency:      q.CurrencyID,
		UpdatedAt:     updated,
	}, nil
}

// History returns daily closes between start and end in provider order.
func (yf *YahooFinanceClient) History(ctx context.Context, symbol string, start, end time.Time) (points []models.PricePoint, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// finance-go indexes chart results and bar arrays without bounds checks.
	defer func() {
		if r := recover(); r != nil {
			points, err = nil, apperr.DataUnavailable("yahoo history", symbol, fmt.Errorf("empty chart response: %v", r))
		}
	}()

	rec := &callRecorder{next: yf.backend}
	iter := chart.Client{B: rec}.Get(&chart.Params{
		Params:   finance.Params{Context: &ctx},
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})

	points = make([]models.PricePoint, 0, 256)
	for iter.Next() {
		bar := iter.Bar()
		if bar == nil {
			continue
		}
		points = append(points, models.PricePoint{
			Time:  time.Unix(int64(bar.Timestamp), 0).UTC(),
			Close: bar.Close,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, yahooError("yahoo history", symbol, rec.err, err)
	}
	return points, nil
}

func (yf *YahooFinanceClient) Profile(ctx context.Context, symbol string) (*models.CompanyProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec := &callRecorder{next: yf.backend}
	iter := equity.Client{B: rec}.ListP(&equity.Params{
		Params:  finance.Params{Context: &ctx},
		Symbols: []string{symbol},
	})

	var eq *finance.Equity
	if iter.Next() {
		eq = iter.Equity()
	}
	if err := iter.Err(); err != nil {
		return nil, yahooError("yahoo profile", symbol, rec.err, err)
	}
	if eq == nil {
		return nil, apperr.DataUnavailable("yahoo profile", symbol, nil)
	}

	name := eq.LongName
	if name == "" {
		name = eq.ShortName
	}
	p := &models.CompanyProfile{
		Symbol:    symbol,
		Name:      name,
		Exchange:  eq.FullExchangeName,
		Currency:  eq.CurrencyID,
		MarketCap: decimal.NewFromInt(eq.MarketCap),
	}
	if eq.ForwardPE > 0 {
		pe := eq.ForwardPE
		p.PERatio = &pe
	}
	if eq.TrailingAnnualDividendYield > 0 {
		y := eq.TrailingAnnualDividendYield
		p.DividendYield = &y
	}
	return p, nil
}

// yahooError classifies a failed finance-go call. cause is the backend
// error as returned, before finance-go flattened it into iterErr.
func yahooError(op, symbol string, cause, iterErr error) error {
	var status *yahooStatusError
	if errors.As(cause, &status) {
		return statusError(op, symbol, status.Status, status.Body)
	}
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return cause
	}
	var yfErr *finance.YfinError
	if errors.As(iterErr, &yfErr) && strings.EqualFold(yfErr.Code, "Not Found") {
		return apperr.DataUnavailable(op, symbol, iterErr)
	}
	return apperr.Upstream(op, symbol, iterErr)
}
