package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/stockcast/internal/cli"
	"github.com/theirongolddev/stockcast/internal/tui/components"
	"github.com/theirongolddev/stockcast/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

func (a App) renderModel(cw int) string {
	t := theme.Active
	if a.snap.Status == nil {
		msg := "No model yet. Press u to upload a sales dataset."
		return lipgloss.Place(cw, a.contentHeight(), lipgloss.Center, lipgloss.Center,
			lipgloss.NewStyle().Foreground(t.TextMuted).Render(msg),
			lipgloss.WithWhitespaceBackground(t.Background))
	}

	m := a.snap.Status.Summarize()

	var b strings.Builder
	b.WriteString(components.MetricCardRow([]components.Metric{
		{Label: "MAE", Value: cli.FormatMetric(m.MAE)},
		{Label: "RMSE", Value: cli.FormatMetric(m.RMSE)},
		{Label: "MAPE", Value: orNA(m.MAPE)},
	}, cw))
	b.WriteString("\n")

	label := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	value := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	row := func(k, v string) string {
		return label.Render(fmt.Sprintf("%-16s", k)) + value.Render(v)
	}

	lines := []string{
		row("Model", orNA(m.SelectedModel)),
		row("Order", orNA(m.Order)),
	}
	if m.SeasonalOrder != "" {
		lines = append(lines, row("Seasonal order", m.SeasonalOrder))
	}
	lines = append(lines,
		row("SKUs", cli.FormatNumber(int64(m.TotalSKU))),
		row("Trained", cli.FormatNumber(int64(m.Succeeded))),
	)
	if m.Failed > 0 {
		lines = append(lines, label.Render(fmt.Sprintf("%-16s", "Failed"))+
			lipgloss.NewStyle().Foreground(t.Red).Background(t.Surface).Render(cli.FormatNumber(int64(m.Failed))))
	}
	b.WriteString(components.ContentCard("Model", strings.Join(lines, "\n"), cw))
	b.WriteString("\n")

	inner := components.CardInnerWidth(cw)
	cov := components.CompactProgress("SKUs trained", m.SuccessRatio*100, inner)
	b.WriteString(components.ContentCard("Coverage", cov, cw))
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return cli.NotAvailable
	}
	return s
}
