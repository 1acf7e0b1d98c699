package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexFolio/models"
)

func portfolioParams() map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"portfolio": {
			Type:     "object",
			Desc:     `Holdings as a map of symbol to quantity, e.g. {"AAPL": 10, "MSFT": 5}`,
			Required: true,
		},
	}
}

func requirePortfolio(p models.Portfolio) error {
	if len(p) == 0 {
		return fmt.Errorf("portfolio parameter is required")
	}
	return nil
}

func NewPortfolioRiskTool(a Analyzer) tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name:        "calculate_portfolio_risk",
			Desc:        "Calculate volatility, beta, Sharpe ratio, 95% VaR, max drawdown and diversification for a portfolio",
			ParamsOneOf: schema.NewParamsOneOfByParams(portfolioParams()),
		},
		func(ctx context.Context, input PortfolioInput) (*models.RiskMetrics, error) {
			if err := requirePortfolio(input.Portfolio); err != nil {
				return nil, err
			}
			m, err := a.Risk(ctx, input.Portfolio)
			if err != nil {
				return nil, err
			}
			return &m, nil
		},
	)
}

func NewPortfolioPerformanceTool(a Analyzer) tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name:        "analyze_portfolio_performance",
			Desc:        "Analyze portfolio returns, alpha, beta, Sharpe ratio and tracking error against the benchmark",
			ParamsOneOf: schema.NewParamsOneOfByParams(portfolioParams()),
		},
		func(ctx context.Context, input PortfolioInput) (*models.PerformanceMetrics, error) {
			if err := requirePortfolio(input.Portfolio); err != nil {
				return nil, err
			}
			m, err := a.Performance(ctx, input.Portfolio)
			if err != nil {
				return nil, err
			}
			return &m, nil
		},
	)
}

func NewHoldingsTool(a Analyzer) tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name:        "get_holdings_info",
			Desc:        "Get current price, market value, weight and day gain/loss for each holding",
			ParamsOneOf: schema.NewParamsOneOfByParams(portfolioParams()),
		},
		func(ctx context.Context, input PortfolioInput) (*HoldingsOutput, error) {
			if err := requirePortfolio(input.Portfolio); err != nil {
				return nil, err
			}
			h, err := a.Holdings(ctx, input.Portfolio)
			if err != nil {
				return nil, err
			}
			return &HoldingsOutput{Holdings: h}, nil
		},
	)
}
