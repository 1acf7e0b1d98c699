package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/dyike/CortexFolio/models"
)

// runInteractiveMode loops over menu prompts until the user exits. Errors
// from individual actions are shown and the loop continues.
func runInteractiveMode(ctx context.Context, s *state, w io.Writer) error {
	DisplayWelcomeBanner(w)

	e, err := s.engine()
	if err != nil {
		return err
	}

	var portfolio models.Portfolio
	for {
		if ctx.Err() != nil {
			return nil
		}
		action, err := PromptForAction(len(portfolio) > 0)
		if errors.Is(err, terminal.InterruptErr) {
			return nil
		}
		if err != nil {
			return err
		}

		switch action {
		case actionExit:
			fmt.Fprintln(w, "Bye.")
			return nil
		case actionPortfolio:
			p, err := PromptForPortfolio(portfolio)
			if err != nil {
				DisplayError(w, err)
				continue
			}
			portfolio = p
		case actionQuote:
			sym, err := PromptForTicker()
			if err != nil {
				DisplayError(w, err)
				continue
			}
			q, err := e.Market.CurrentQuote(ctx, sym)
			if err != nil {
				DisplayError(w, err)
				continue
			}
			RenderQuotes(w, []*models.Quote{q})
		case actionHoldings, actionRisk, actionPerformance:
			name := map[string]string{
				actionHoldings:    "holdings",
				actionRisk:        "risk",
				actionPerformance: "performance",
			}[action]
			if err := runPortfolioCommand(ctx, s, e, name, portfolio, w); err != nil {
				DisplayError(w, err)
			}
		case actionReport:
			r, err := e.Analyzer.Report(ctx, portfolio)
			if err != nil {
				DisplayError(w, err)
				continue
			}
			RenderReport(w, r)
		case actionNews:
			kw, err := PromptForKeyword()
			if err != nil {
				DisplayError(w, err)
				continue
			}
			items, err := e.News.Headlines(ctx, kw, 0)
			if err != nil {
				DisplayError(w, err)
				continue
			}
			RenderNews(w, kw, items)
		case actionIngest:
			kw, err := PromptForKeyword()
			if err != nil {
				DisplayError(w, err)
				continue
			}
			res, err := e.News.Ingest(ctx, kw)
			if err != nil {
				DisplayError(w, err)
				continue
			}
			DisplaySuccess(w, fmt.Sprintf("Stored %d of %d fetched articles", res.Inserted, res.Fetched))
		}
		fmt.Fprintln(w)
	}
}
