package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a point-in-time price snapshot for one symbol.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"current_price"`
	Open          decimal.Decimal `json:"open_price"`
	High          decimal.Decimal `json:"high_price"`
	Low           decimal.Decimal `json:"low_price"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Volume        int64           `json:"volume"`
	Change        decimal.Decimal `json:"price_change"`
	ChangePercent decimal.Decimal `json:"price_change_percent"`
	Currency      string          `json:"currency,omitempty"`
	UpdatedAt     time.Time       `json:"last_updated"`
}

// PricePoint is one daily close.
type PricePoint struct {
	Time  time.Time       `json:"time"`
	Close decimal.Decimal `json:"close"`
}

// PriceSeries is ordered by Time ascending with no duplicate timestamps.
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Period string       `json:"period"`
	Points []PricePoint `json:"points"`
}

func (s PriceSeries) Len() int {
	return len(s.Points)
}

func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close.InexactFloat64()
	}
	return out
}

// Latest returns the most recent point; ok is false for an empty series.
func (s PriceSeries) Latest() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// CompanyProfile holds the descriptive market data for a listing.
type CompanyProfile struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Exchange      string          `json:"exchange"`
	Currency      string          `json:"currency"`
	Sector        string          `json:"sector,omitempty"`
	Industry      string          `json:"industry,omitempty"`
	MarketCap     decimal.Decimal `json:"market_cap"`
	PERatio       *float64        `json:"pe_ratio,omitempty"`
	DividendYield *float64        `json:"dividend_yield,omitempty"`
}
