package cli

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/CortexFolio/models"
	"github.com/dyike/CortexFolio/pkg/dataflows"
)

const (
	actionQuote       = "Quote a symbol"
	actionHoldings    = "Holdings"
	actionRisk        = "Portfolio risk"
	actionPerformance = "Portfolio performance"
	actionReport      = "Full report"
	actionNews        = "News headlines"
	actionIngest      = "Ingest news into the database"
	actionPortfolio   = "Change portfolio"
	actionExit        = "Exit"
)

// PromptForAction asks what to do next. Portfolio actions are only
// offered once a portfolio is set.
func PromptForAction(hasPortfolio bool) (string, error) {
	options := []string{actionQuote}
	if hasPortfolio {
		options = append(options, actionHoldings, actionRisk, actionPerformance, actionReport)
	}
	options = append(options, actionNews, actionIngest, actionPortfolio, actionExit)

	var choice string
	err := survey.AskOne(&survey.Select{
		Message: "What would you like to do?",
		Options: options,
	}, &choice)
	return choice, err
}

// PromptForTicker prompts the user to enter a stock ticker symbol
func PromptForTicker() (string, error) {
	var ticker string
	prompt := &survey.Input{
		Message: "Enter the stock ticker symbol (e.g., AAPL, MSFT, ^GSPC):",
	}
	err := survey.AskOne(prompt, &ticker, survey.WithValidator(func(val interface{}) error {
		_, err := dataflows.ValidateSymbol(val.(string))
		return err
	}))
	if err != nil {
		return "", err
	}
	return dataflows.NormalizeSymbol(ticker), nil
}

// PromptForPortfolio reads holdings such as "AAPL=10 MSFT=5".
func PromptForPortfolio(current models.Portfolio) (models.Portfolio, error) {
	var raw string
	prompt := &survey.Input{
		Message: "Enter holdings as SYMBOL=QTY separated by spaces:",
		Help:    "Example: AAPL=10 MSFT=5 GOOGL=3",
		Default: formatPortfolio(current),
	}
	err := survey.AskOne(prompt, &raw, survey.WithValidator(func(val interface{}) error {
		fields := strings.Fields(val.(string))
		if len(fields) == 0 {
			return fmt.Errorf("enter at least one holding")
		}
		_, err := models.ParsePortfolio(fields)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return models.ParsePortfolio(strings.Fields(raw))
}

func PromptForKeyword() (string, error) {
	var kw string
	err := survey.AskOne(&survey.Input{Message: "Search keyword or symbol:"}, &kw, survey.WithValidator(survey.Required))
	return strings.TrimSpace(kw), err
}

func formatPortfolio(p models.Portfolio) string {
	parts := make([]string, 0, len(p))
	for _, sym := range p.Symbols() {
		parts = append(parts, fmt.Sprintf("%s=%g", sym, p[sym]))
	}
	return strings.Join(parts, " ")
}
