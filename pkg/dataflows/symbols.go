package dataflows

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const maxSymbolLength = 12

var ErrInvalidSymbol = errors.New("invalid symbol")

// NormalizeSymbol converts symbol to standard format
func NormalizeSymbol(symbol string) string {
	return strings.TrimSpace(strings.ToUpper(symbol))
}

// ValidateSymbol normalizes symbol and rejects empty or overlong tickers.
func ValidateSymbol(symbol string) (string, error) {
	s := NormalizeSymbol(symbol)
	if s == "" {
		return "", fmt.Errorf("%w: symbol cannot be empty", ErrInvalidSymbol)
	}
	if len(s) > maxSymbolLength {
		return "", fmt.Errorf("%w: symbol too long: %s", ErrInvalidSymbol, s)
	}
	return s, nil
}

// Periods lists the lookback windows understood by ParsePeriod.
var Periods = []string{"5d", "1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd"}

var ErrInvalidPeriod = errors.New("invalid period")

// ParsePeriod returns the start of the lookback window ending at now.
func ParsePeriod(period string, now time.Time) (time.Time, error) {
	switch NormalizePeriod(period) {
	case "5d":
		return now.AddDate(0, 0, -5), nil
	case "1mo":
		return now.AddDate(0, -1, 0), nil
	case "3mo":
		return now.AddDate(0, -3, 0), nil
	case "6mo":
		return now.AddDate(0, -6, 0), nil
	case "1y":
		return now.AddDate(-1, 0, 0), nil
	case "2y":
		return now.AddDate(-2, 0, 0), nil
	case "5y":
		return now.AddDate(-5, 0, 0), nil
	case "10y":
		return now.AddDate(-10, 0, 0), nil
	case "ytd":
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()), nil
	default:
		return time.Time{}, fmt.Errorf("%w %q (want one of %s)", ErrInvalidPeriod, period, strings.Join(Periods, ", "))
	}
}

// FormatDateRange creates a human-readable date range string
// NormalizePeriod is the canonical spelling of a lookback period: "1Y " and
// "1y" name the same window.
func NormalizePeriod(period string) string {
	return strings.ToLower(strings.TrimSpace(period))
}

func FormatDateRange(start, end time.Time) string {
	return fmt.Sprintf("%s to %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
}
