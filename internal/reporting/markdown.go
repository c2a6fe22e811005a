package reporting

import (
	"fmt"
	"strings"

	"lpbacktest/internal/aggregate"
	"lpbacktest/internal/backtest"
)

// RenderMarkdown renders the run summary and daily table as Markdown.
func RenderMarkdown(pool string, cfg backtest.Config, report aggregate.Report) string {
	var sb strings.Builder
	s := report.Summary

	sb.WriteString("# LP Backtest\n\n")
	sb.WriteString(fmt.Sprintf("Pool: `%s`\n\n", pool))
	sb.WriteString(fmt.Sprintf("Range: %s - %s | Capital: %s\n\n",
		formatFloat(cfg.PriceLower), formatFloat(cfg.PriceUpper), formatFloat(cfg.Capital)))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	for _, kv := range summaryFields(s) {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", kv[0], kv[1]))
	}
	sb.WriteString("\n")

	sb.WriteString("## Daily\n\n")
	if len(report.Daily) == 0 {
		sb.WriteString("No rows.\n")
		return sb.String()
	}
	sb.WriteString("| Date | Fee Value | Active % | Position | Return % | Unbounded % | PNL |\n")
	sb.WriteString("|------|-----------|----------|----------|----------|-------------|-----|\n")
	for _, d := range report.Daily {
		sb.WriteString(fmt.Sprintf("| %s | %.6f | %.2f | %.4f | %.4f | %.4f | %.4f |\n",
			formatDate(d.Date), d.FeeValue, d.ActiveRatio, d.PositionValue, d.ReturnPct, d.UnboundedPct, d.PNL))
	}
	return sb.String()
}
