package dataflows

import (
	"context"
	"errors"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/shopspring/decimal"

	"github.com/dyike/CortexFolio/internal/apperr"
	"github.com/dyike/CortexFolio/models"
)

// Longport serves at most this many daily candlesticks per request.
const longportMaxCandles = 1000

type LongportConfig struct {
	AppKey      string
	AppSecret   string
	AccessToken string
}

type LongportClient struct {
	quoteCtx *quote.QuoteContext
}

func NewLongportClient(cfg LongportConfig) (*LongportClient, error) {
	if cfg.AppKey == "" || cfg.AppSecret == "" || cfg.AccessToken == "" {
		return nil, errors.New("longport API credentials not configured")
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.AppKey, cfg.AppSecret, cfg.AccessToken))
	if err != nil {
		return nil, err
	}

	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}

	return &LongportClient{quoteCtx: quoteContext}, nil
}

func (lpc *LongportClient) Name() string { return "longport" }

func (lpc *LongportClient) Close() error {
	if lpc.quoteCtx != nil {
		return lpc.quoteCtx.Close()
	}
	return nil
}

func (lpc *LongportClient) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	quotes, err := lpc.quoteCtx.Quote(ctx, []string{symbol})
	if err != nil {
		return nil, apperr.Upstream("longport quote", symbol, err)
	}
	if len(quotes) == 0 {
		return nil, apperr.DataUnavailable("longport quote", symbol, nil)
	}
	return longportQuote(symbol, quotes[0])
}

// longportQuote converts an SDK quote. LastDone is nil for a symbol that
// has never traded; the other price fields may be nil on halted ones.
func longportQuote(symbol string, q *quote.SecurityQuote) (*models.Quote, error) {
	if q == nil || q.LastDone == nil {
		return nil, apperr.DataUnavailable("longport quote", symbol, nil)
	}
	return &models.Quote{
		Symbol:        symbol,
		Price:         decimalOrZero(q.LastDone),
		Open:          decimalOrZero(q.Open),
		High:          decimalOrZero(q.High),
		Low:           decimalOrZero(q.Low),
		PreviousClose: decimalOrZero(q.PrevClose),
		Volume:        q.Volume,
		UpdatedAt:     time.Unix(q.Timestamp, 0).UTC(),
	}, nil
}

// History requests enough daily sticks to cover start..end and trims the
// ones before start.
func (lpc *LongportClient) History(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error) {
	count := int(end.Sub(start).Hours()/24) + 1
	if count > longportMaxCandles {
		count = longportMaxCandles
	}
	sticks, err := lpc.quoteCtx.Candlesticks(ctx, symbol, quote.PeriodDay, int32(count), quote.AdjustTypeNo)
	if err != nil {
		return nil, apperr.Upstream("longport history", symbol, err)
	}
	return longportPoints(sticks, start, end), nil
}

// longportPoints keeps the sticks inside start..end. A stick without a
// close yields a zero close, which series normalization drops.
func longportPoints(sticks []*quote.Candlestick, start, end time.Time) []models.PricePoint {
	points := make([]models.PricePoint, 0, len(sticks))
	for _, stick := range sticks {
		if stick == nil {
			continue
		}
		ts := time.Unix(stick.Timestamp, 0).UTC()
		if ts.Before(start) || ts.After(end) {
			continue
		}
		points = append(points, models.PricePoint{
			Time:  ts,
			Close: decimalOrZero(stick.Close),
		})
	}
	return points
}

func (lpc *LongportClient) Profile(ctx context.Context, symbol string) (*models.CompanyProfile, error) {
	infos, err := lpc.quoteCtx.StaticInfo(ctx, []string{symbol})
	if err != nil {
		return nil, apperr.Upstream("longport profile", symbol, err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return nil, apperr.DataUnavailable("longport profile", symbol, nil)
	}
	info := infos[0]
	name := info.NameEn
	if name == "" {
		name = info.NameCn
	}
	return &models.CompanyProfile{
		Symbol:   symbol,
		Name:     name,
		Exchange: info.Exchange,
		Currency: info.Currency,
	}, nil
}

func decimalOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
