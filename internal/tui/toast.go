package tui

import (
	"strings"
	"time"

	"github.com/theirongolddev/stockcast/internal/dashboard"
	"github.com/theirongolddev/stockcast/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	toastDuration = 3 * time.Second
	maxToasts     = 3
)

type toast struct {
	id     int
	notice dashboard.Notice
}

type toastExpiredMsg struct {
	id int
}

// pushToast shows n and schedules its removal.
func (a App) pushToast(n dashboard.Notice) (App, tea.Cmd) {
	a.nextToastID++
	id := a.nextToastID
	a.toasts = append(a.toasts, toast{id: id, notice: n})
	if len(a.toasts) > maxToasts {
		a.toasts = a.toasts[len(a.toasts)-maxToasts:]
	}
	return a, tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}

func dropToast(toasts []toast, id int) []toast {
	out := toasts[:0:0]
	for _, t := range toasts {
		if t.id != id {
			out = append(out, t)
		}
	}
	return out
}

func renderToast(n dashboard.Notice) string {
	t := theme.Active
	color := t.NoticeColor(n.Kind.String())

	icon := "•"
	switch n.Kind {
	case dashboard.NoticeSuccess:
		icon = "✓"
	case dashboard.NoticeError:
		icon = "✗"
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		BorderBackground(t.Background).
		Background(t.Surface).
		Foreground(t.TextPrimary).
		Padding(0, 1).
		Render(lipgloss.NewStyle().Foreground(color).Background(t.Surface).Bold(true).Render(icon) +
			lipgloss.NewStyle().Background(t.Surface).Render(" ") + n.Text)
}

// overlayToasts replaces the bottom-right corner of content with the
// active toasts, newest at the bottom.
func overlayToasts(content string, toasts []toast, width, height int) string {
	if len(toasts) == 0 {
		return content
	}

	var stack []string
	for _, t := range toasts {
		stack = append(stack, strings.Split(renderToast(t.notice), "\n")...)
	}

	lines := strings.Split(padHeight(content, height), "\n")
	start := len(lines) - len(stack)
	if start < 0 {
		stack = stack[-start:]
		start = 0
	}
	for i, tl := range stack {
		row := lines[start+i]
		keep := max(width-lipgloss.Width(tl)-1, 0)
		lines[start+i] = truncateVisible(row, keep) + " " + tl
	}
	return strings.Join(lines, "\n")
}

// truncateVisible cuts s to w visible cells and pads it to exactly w.
func truncateVisible(s string, w int) string {
	cut := lipgloss.NewStyle().MaxWidth(w).Render(s)
	if pad := w - lipgloss.Width(cut); pad > 0 {
		cut += strings.Repeat(" ", pad)
	}
	return cut
}
