package components

import (
	"strings"

	"github.com/theirongolddev/stockcast/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// StatusInfo is what the bottom bar shows on its right side.
type StatusInfo struct {
	Phase    string // reconciled backend phase, e.g. "ready"
	Backend  string // API base URL
	Busy     string // in-flight operation, e.g. "sending"; empty when idle
	Progress float64
	Training bool
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, info StatusInfo) string {
	t := theme.Active

	barStyle := lipgloss.NewStyle().Background(t.Surface)
	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	hintStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	phaseStyle := lipgloss.NewStyle().
		Foreground(t.PhaseColor(info.Phase)).
		Background(t.Surface).
		Bold(true)

	left := barStyle.Render(" ") +
		keyStyle.Render("?") + hintStyle.Render(" help  ") +
		keyStyle.Render("q") + hintStyle.Render(" quit")

	var right []string
	switch {
	case info.Training:
		right = append(right, CompactProgress("training", info.Progress, 24))
	case info.Busy != "":
		right = append(right, hintStyle.Render(info.Busy+"…"))
	}
	if info.Backend != "" {
		right = append(right, dimStyle.Render(info.Backend))
	}
	if info.Phase != "" {
		right = append(right, phaseStyle.Render("● "+info.Phase))
	}
	rightStr := strings.Join(right, dimStyle.Render("  │  ")) + barStyle.Render(" ")

	padding := max(width-lipgloss.Width(left)-lipgloss.Width(rightStr), 0)
	return left + barStyle.Render(strings.Repeat(" ", padding)) + rightStr
}
