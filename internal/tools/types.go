package tools

import (
	"github.com/dyike/CortexFolio/models"
)

type SymbolInput struct {
	Symbol string `json:"symbol"`
}

type MarketDataInput struct {
	Symbol string `json:"symbol"`
	Period string `json:"period"`
}

type DailyClose struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

type MarketDataOutput struct {
	Symbol string       `json:"symbol"`
	Period string       `json:"period"`
	Data   []DailyClose `json:"data"`
}

type PortfolioInput struct {
	Portfolio models.Portfolio `json:"portfolio"`
}

type HoldingsOutput struct {
	Holdings []models.Holding `json:"holdings"`
}

type NewsInput struct {
	Keyword string `json:"keyword"`
	Limit   int    `json:"limit"`
}

type NewsOutput struct {
	Keyword string            `json:"keyword"`
	Items   []models.NewsItem `json:"items"`
}

type QueryInput struct {
	SQL string `json:"sql"`
}
