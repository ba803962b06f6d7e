package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/stockcast/internal/cli"
	"github.com/theirongolddev/stockcast/internal/dashboard"
	"github.com/theirongolddev/stockcast/internal/tui/components"
	"github.com/theirongolddev/stockcast/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

func (a App) renderHome(cw int) string {
	t := theme.Active
	snap := a.snap

	phase := snap.Phase.String()
	if !a.reconciled && snap.Phase == dashboard.PhaseUnknown {
		phase = a.spinner.View() + " connecting"
	}

	trained := "no"
	trainedColor := t.Yellow
	if snap.Trained {
		trained = "yes"
		trainedColor = t.Green
	}

	skus, lastStatus, model := "-", "-", "-"
	skuHint := ""
	if st := snap.Status; st != nil {
		skus = cli.FormatNumber(int64(st.TotalSKU))
		if st.Summary.Failed > 0 {
			skuHint = fmt.Sprintf("%d failed", st.Summary.Failed)
		}
		if st.LastStatus != "" {
			lastStatus = st.LastStatus
		}
		if m := st.Summarize().SelectedModel; m != "" {
			model = m
		}
	}

	metrics := []components.Metric{
		{Label: "Backend", Value: phase, Color: t.PhaseColor(snap.Phase.String())},
		{Label: "Trained", Value: trained, Color: trainedColor},
		{Label: "Model", Value: model},
		{Label: "SKUs", Value: skus, Hint: skuHint},
	}

	var b strings.Builder
	b.WriteString(components.MetricCardRow(metrics, cw))
	b.WriteString("\n")

	if snap.Uploading {
		status := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).
			Render(truncStr(snap.StatusText, components.CardInnerWidth(cw)))
		body := status + "\n" + components.ProgressBar(snap.Progress, components.CardInnerWidth(cw)-6)
		b.WriteString(components.ContentCard("Training "+string(snap.Model), body, cw))
		b.WriteString("\n")
	} else {
		body := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Render(lastStatus)
		b.WriteString(components.ContentCard("Last status", body, cw))
		b.WriteString("\n")
	}

	b.WriteString(components.ContentCard("Next steps", a.homeHints(), cw))
	return b.String()
}

func (a App) homeHints() string {
	t := theme.Active
	key := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	desc := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	warn := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface)

	line := func(k, d string) string {
		return key.Render(fmt.Sprintf("%-3s", k)) + desc.Render(" "+d)
	}

	var lines []string
	switch {
	case a.snap.Phase == dashboard.PhaseOffline:
		lines = append(lines,
			warn.Render("The forecasting service at "+a.apiBase+" is not reachable."),
			line("r", "retry"))
	case a.snap.Uploading:
		lines = append(lines, line("u", "show training progress"))
	case a.snap.Trained:
		lines = append(lines,
			line("c", "ask about sales and restock forecasts"),
			line("m", "inspect the trained model"),
			line("u", "retrain with a new dataset"))
	default:
		lines = append(lines, line("u", "upload a sales dataset and train a model"))
	}
	if !a.snap.Uploading && (a.snap.Trained || a.snap.Status != nil) && a.snap.Phase != dashboard.PhaseOffline {
		lines = append(lines, line("D", "delete all data"))
	}
	lines = append(lines, line("r", "refresh status"))
	return strings.Join(dedupe(lines), "\n")
}

func dedupe(lines []string) []string {
	seen := make(map[string]bool, len(lines))
	out := lines[:0]
	for _, l := range lines {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}
