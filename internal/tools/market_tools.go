package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexFolio/models"
)

var symbolParam = &schema.ParameterInfo{
	Type:     "string",
	Desc:     "Ticker symbol, e.g. AAPL or ^GSPC",
	Required: true,
}

// NewStockPriceTool returns the latest quote for a symbol.
func NewStockPriceTool(md MarketData) tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "get_stock_price",
			Desc: "Get the current price, day range and intraday change for a stock symbol",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": symbolParam,
			}),
		},
		func(ctx context.Context, input SymbolInput) (*models.Quote, error) {
			if strings.TrimSpace(input.Symbol) == "" {
				return nil, fmt.Errorf("symbol parameter is required")
			}
			return md.CurrentQuote(ctx, input.Symbol)
		},
	)
}

// NewMarketDataTool returns daily closes for a symbol over a period.
func NewMarketDataTool(md MarketData) tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "get_market_data",
			Desc: "Get daily closing prices for a symbol over a period",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": symbolParam,
				"period": {
					Type:     "string",
					Desc:     "History period: 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, 10y or ytd (default: 1y)",
					Required: false,
				},
			}),
		},
		func(ctx context.Context, input MarketDataInput) (*MarketDataOutput, error) {
			if strings.TrimSpace(input.Symbol) == "" {
				return nil, fmt.Errorf("symbol parameter is required")
			}
			period := input.Period
			if period == "" {
				period = "1y"
			}
			series, err := md.HistoricalSeries(ctx, input.Symbol, period)
			if err != nil {
				return nil, err
			}
			out := &MarketDataOutput{
				Symbol: series.Symbol,
				Period: period,
				Data:   make([]DailyClose, 0, series.Len()),
			}
			for _, p := range series.Points {
				c, _ := p.Close.Float64()
				out.Data = append(out.Data, DailyClose{Date: p.Time.UTC().Format("2006-01-02"), Close: c})
			}
			return out, nil
		},
	)
}

func NewCompanyProfileTool(md MarketData) tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "get_company_profile",
			Desc: "Get company name, exchange, sector, market cap and valuation ratios for a symbol",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": symbolParam,
			}),
		},
		func(ctx context.Context, input SymbolInput) (*models.CompanyProfile, error) {
			if strings.TrimSpace(input.Symbol) == "" {
				return nil, fmt.Errorf("symbol parameter is required")
			}
			return md.CompanyProfile(ctx, input.Symbol)
		},
	)
}
