package tui

import (
	"strings"

	"github.com/theirongolddev/stockcast/internal/cli"
	"github.com/theirongolddev/stockcast/internal/session"
	"github.com/theirongolddev/stockcast/internal/tui/components"
	"github.com/theirongolddev/stockcast/internal/tui/theme"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// chatState is the transcript viewport and the question input.
type chatState struct {
	input    textinput.Model
	viewport viewport.Model
}

const chatInputHeight = 3 // bordered single-line input

func newChatState() chatState {
	ti := textinput.New()
	ti.Placeholder = "Ask about best sellers, revenue or next week's restock…"
	ti.CharLimit = 500
	ti.Prompt = "› "

	return chatState{
		input:    ti,
		viewport: viewport.New(0, 0),
	}
}

func (a App) chatHeight() int {
	return max(a.contentHeight()-chatInputHeight, 1)
}

func (c *chatState) resize(width, height int) {
	c.viewport.Width = width
	c.viewport.Height = height
	c.input.Width = max(width-8, 10)
}

// render rebuilds the transcript and scrolls to the newest turn.
func (c *chatState) render(turns []session.ChatTurn, width int) {
	if width <= 0 {
		return
	}
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		parts = append(parts, renderTurn(t, width))
	}
	c.viewport.SetContent(strings.Join(parts, "\n"))
	c.viewport.GotoBottom()
}

// focusChat focuses the input when chat is available.
func (a *App) focusChat() tea.Cmd {
	if !a.snap.ChatEnabled() {
		a.chat.input.Blur()
		return nil
	}
	return a.chat.input.Focus()
}

func (a *App) syncChatFocus() {
	if !a.snap.ChatEnabled() {
		a.chat.input.Blur()
	}
}

func (a App) updateChatInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if !a.chat.input.Focused() {
		return a, nil
	}
	before := a.chat.input.Value()
	var cmd tea.Cmd
	a.chat.input, cmd = a.chat.input.Update(msg)
	if v := a.chat.input.Value(); v != before {
		a.ctrl.SetInput(v)
	}
	return a, cmd
}

func (a App) sendChat() (tea.Model, tea.Cmd) {
	if !a.snap.ChatEnabled() || a.snap.Sending || strings.TrimSpace(a.chat.input.Value()) == "" {
		return a, nil
	}
	a.ctrl.SetInput(a.chat.input.Value())
	return a, chatCmd(a.ctx, a.ctrl)
}

func (a App) renderChat(cw int) string {
	t := theme.Active

	var transcript string
	switch {
	case !a.snap.ChatEnabled():
		msg := "Train a model first: press u to upload a sales dataset."
		if a.snap.Phase.String() == "offline" {
			msg = "The forecasting service is offline. Press r to retry."
		}
		transcript = lipgloss.Place(cw, a.chatHeight(), lipgloss.Center, lipgloss.Center,
			lipgloss.NewStyle().Foreground(t.TextMuted).Render(msg),
			lipgloss.WithWhitespaceBackground(t.Background))
	case len(a.snap.Turns) == 0:
		transcript = lipgloss.Place(cw, a.chatHeight(), lipgloss.Center, lipgloss.Center,
			lipgloss.NewStyle().Foreground(t.TextMuted).Render("No questions yet. Try \"which products sell best?\""),
			lipgloss.WithWhitespaceBackground(t.Background))
	default:
		transcript = a.chat.viewport.View()
	}

	border := t.Border
	if a.chat.input.Focused() {
		border = t.BorderAccent
	}
	inputLine := a.chat.input.View()
	if a.snap.Sending {
		inputLine = a.spinner.View() + lipgloss.NewStyle().Foreground(t.TextMuted).Render(" thinking…")
	}
	input := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(max(cw-2, 10)).
		Padding(0, 1).
		Render(inputLine)

	return transcript + "\n" + input
}

// renderTurn renders one question with its answer: text, summary, table
// and charts, in that order.
func renderTurn(turn session.ChatTurn, width int) string {
	t := theme.Active

	who := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	when := lipgloss.NewStyle().Foreground(t.TextDim)
	text := lipgloss.NewStyle().Foreground(t.TextPrimary).Width(max(width-2, 10))

	var b strings.Builder
	b.WriteString(who.Render("you"))
	b.WriteString(" ")
	b.WriteString(when.Render(cli.FormatClock(turn.At)))
	b.WriteString("\n")
	b.WriteString(text.Render(turn.UserQuery))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.NewStyle().Foreground(t.Green).Bold(true).Render("stockcast"))
	b.WriteString("\n")
	if turn.Message != "" {
		b.WriteString(text.Render(turn.Message))
		b.WriteString("\n")
	}

	if s := turn.Summary; s != nil {
		b.WriteString("\n")
		b.WriteString(components.MetricCardRow([]components.Metric{
			{Label: "Units sold", Value: cli.FormatQuantity(s.UnitsSold)},
			{Label: "Revenue", Value: s.Revenue, Color: t.Green},
			{Label: "Products", Value: cli.FormatQuantity(s.UniqueProducts)},
		}, min(width, 90)))
		b.WriteString("\n")
	}

	if len(turn.Rows) > 0 {
		b.WriteString("\n")
		b.WriteString(rowsTable(turn.ResolvedRows(), turn.HasUrgency()))
		b.WriteString("\n")
	}

	for _, c := range turn.Charts {
		if len(c.Points) == 0 {
			continue
		}
		chartW := components.CardInnerWidth(min(width, 100))
		var body string
		if c.Kind == session.ChartLine {
			body = components.LineChart(c.Values(), c.Labels(), t.Accent, chartW, 8)
		} else {
			body = components.HBarChart(c.Values(), c.Labels(), t.Blue, chartW)
		}
		b.WriteString("\n")
		b.WriteString(components.ContentCard(c.Title, body, min(width, 100)))
		b.WriteString("\n")
	}

	rule := lipgloss.NewStyle().Foreground(t.Border).Render(strings.Repeat("─", max(width-2, 1)))
	b.WriteString(rule)
	b.WriteString("\n")
	return b.String()
}

// rowsTable renders resolved SKU rows. The urgency column only appears
// when some row carries one.
func rowsTable(rows []session.Row, withUrgency bool) string {
	t := theme.Active

	headers := []string{"SKU", "Product", "Variant", "Units"}
	if withUrgency {
		headers = append(headers, "Urgency")
	}
	data := make([][]string, len(rows))
	for i, r := range rows {
		row := []string{r.SKU, r.DisplayName, r.Variant, cli.FormatQuantity(r.Quantity)}
		if withUrgency {
			row = append(row, r.Urgency)
		}
		data[i] = row
	}

	headerStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Padding(0, 1)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(t.Border)).
		Headers(headers...).
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 3:
				return cellStyle.Align(lipgloss.Right)
			case col == 4 && row >= 0 && row < len(rows):
				return cellStyle.Foreground(t.UrgencyColor(rows[row].Urgency)).Bold(true)
			default:
				return cellStyle
			}
		}).
		Render()
}
