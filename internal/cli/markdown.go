package cli

import (
	"fmt"
	"strings"

	"github.com/dyike/CortexFolio/models"
	"github.com/dyike/CortexFolio/pkg/utils"
)

// ReportMarkdown renders r as a markdown document.
func ReportMarkdown(r *models.PortfolioReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Portfolio report\n\n")
	fmt.Fprintf(&b, "- Generated: %s\n", r.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Benchmark: %s\n", r.Benchmark)
	fmt.Fprintf(&b, "- Period: %s\n\n", r.Period)

	m := r.Risk
	b.WriteString("## Risk\n\n| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Total value | %.2f |\n", m.TotalValue)
	fmt.Fprintf(&b, "| Volatility | %s |\n", pct(m.Volatility))
	fmt.Fprintf(&b, "| Beta | %.3f |\n", m.Beta)
	fmt.Fprintf(&b, "| Sharpe ratio | %.3f |\n", m.SharpeRatio)
	fmt.Fprintf(&b, "| VaR (95%%, daily) | %s |\n", pct(m.VaR95))
	fmt.Fprintf(&b, "| Max drawdown | %s |\n", pct(m.MaxDrawdown))
	fmt.Fprintf(&b, "| Diversification | %.3f |\n\n", m.DiversificationScore)

	p := r.Performance
	b.WriteString("## Performance\n\n| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Daily return | %s |\n", pct(p.DailyReturn))
	fmt.Fprintf(&b, "| Annualized return | %s |\n", pct(p.AnnualizedReturn))
	fmt.Fprintf(&b, "| Alpha | %s |\n", pct(p.Alpha))
	fmt.Fprintf(&b, "| Tracking error | %s |\n\n", pct(p.TrackingError))

	b.WriteString("## Holdings\n\n| Symbol | Quantity | Price | Market value | Weight | Gain/loss |\n|---|---:|---:|---:|---:|---:|\n")
	for _, h := range r.Holdings {
		fmt.Fprintf(&b, "| %s | %g | %s | %s | %s | %s (%.2f%%) |\n",
			h.Symbol, h.Quantity, h.Price.StringFixed(2), h.MarketValue.StringFixed(2),
			pct(h.Weight), h.GainLoss.StringFixed(2), h.GainLossPercent)
	}
	return b.String()
}

// SaveMarkdown writes the markdown rendering of r next to the JSON
// reports.
func (a *ReportArchive) SaveMarkdown(r *models.PortfolioReport) (string, error) {
	return utils.WriteMarkdown(a.dir, reportName(r)+"_report.md", ReportMarkdown(r))
}
