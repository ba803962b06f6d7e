package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/stockcast/internal/forecast"
	"github.com/theirongolddev/stockcast/internal/session"
)

// Theme colors (Flexoki Dark)
var (
	ColorBorder    = lipgloss.Color("#282726")
	ColorTextDim   = lipgloss.Color("#575653")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorGreen     = lipgloss.Color("#879A39")
	ColorOrange    = lipgloss.Color("#DA702C")
	ColorRed       = lipgloss.Color("#D14D41")
	ColorBlue      = lipgloss.Color("#4385BE")
	ColorYellow    = lipgloss.Color("#D0A215")
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Align(lipgloss.Center)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	valueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	barStyle = lipgloss.NewStyle().
			Foreground(ColorBlue)

	successStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	warnStyle = lipgloss.NewStyle().
			Foreground(ColorOrange)

	errorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	dimStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)
)

// Table represents a bordered text table for CLI output.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Widths  []int // optional column widths, auto-calculated if nil
	// LeftAlign lists extra columns to left-align. Column 0 always is.
	LeftAlign []int
}

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	width := 55
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(width).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

func (t Table) leftAligned(col int) bool {
	if col == 0 {
		return true
	}
	for _, c := range t.LeftAlign {
		if c == col {
			return true
		}
	}
	return false
}

func separator(widths []int, left, mid, right string) string {
	var b strings.Builder
	b.WriteString(dimStyle.Render(left))
	for i, w := range widths {
		b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
		if i < len(widths)-1 {
			b.WriteString(dimStyle.Render(mid))
		}
	}
	b.WriteString(dimStyle.Render(right))
	b.WriteString("\n")
	return b.String()
}

// RenderTable renders a bordered table with headers and rows.
func RenderTable(t Table) string {
	if len(t.Rows) == 0 && len(t.Headers) == 0 {
		return ""
	}

	numCols := len(t.Headers)
	if numCols == 0 && len(t.Rows) > 0 {
		numCols = len(t.Rows[0])
	}

	widths := make([]int, numCols)
	if t.Widths != nil {
		copy(widths, t.Widths)
	} else {
		for i, h := range t.Headers {
			widths[i] = max(widths[i], lipgloss.Width(h))
		}
		for _, row := range t.Rows {
			for i, cell := range row {
				if i < numCols {
					widths[i] = max(widths[i], lipgloss.Width(cell))
				}
			}
		}
	}

	var b strings.Builder

	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}

	b.WriteString(separator(widths, "╭", "┬", "╮"))

	if len(t.Headers) > 0 {
		b.WriteString(dimStyle.Render("│"))
		for i, h := range t.Headers {
			padded := fmt.Sprintf(" %-*s ", widths[i], h)
			b.WriteString(headerStyle.Render(padded))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
		b.WriteString(separator(widths, "├", "┼", "┤"))
	}

	for _, row := range t.Rows {
		if len(row) == 1 && row[0] == "---" {
			b.WriteString(separator(widths, "├", "┼", "┤"))
			continue
		}

		b.WriteString(dimStyle.Render("│"))
		for i := 0; i < numCols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			pad := strings.Repeat(" ", max(0, widths[i]-lipgloss.Width(cell)))
			var padded string
			if t.leftAligned(i) {
				padded = " " + cell + pad + " "
			} else {
				padded = " " + pad + cell + " "
			}
			b.WriteString(valueStyle.Render(padded))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
	}

	b.WriteString(separator(widths, "╰", "┴", "╯"))
	return b.String()
}

// RenderProgressBar renders a text progress bar for a 0-100 percentage.
func RenderProgressBar(percent float64, width int) string {
	pct := min(max(percent, 0), 100) / 100
	filled := min(int(pct*float64(width)), width)

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("[%s] %3.0f%%", barStyle.Render(bar), pct*100)
}

// RenderSparkline generates a unicode block sparkline from a series of values.
func RenderSparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}

	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	peak := values[0]
	for _, v := range values[1:] {
		peak = max(peak, v)
	}
	if peak <= 0 {
		peak = 1
	}

	var b strings.Builder
	for _, v := range values {
		idx := int(v / peak * float64(len(blocks)-1))
		idx = min(max(idx, 0), len(blocks)-1)
		b.WriteRune(blocks[idx])
	}

	return b.String()
}

// RenderHorizontalBar renders one labeled bar chart entry.
func RenderHorizontalBar(label string, labelWidth int, value, maxValue float64, maxWidth int) string {
	barLen := 0
	if maxValue > 0 {
		barLen = max(0, int(value/maxValue*float64(maxWidth)))
	}
	return fmt.Sprintf("  %-*s %s %s",
		labelWidth, Truncate(label, labelWidth),
		barStyle.Render(strings.Repeat("█", barLen)),
		mutedStyle.Render(FormatQuantity(value)))
}

// RenderChart renders a chart spec as horizontal bars or a sparkline.
func RenderChart(c session.ChartSpec) string {
	if len(c.Points) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(headerStyle.Render(c.Title))
	b.WriteString("\n")

	values := c.Values()
	if c.Kind == session.ChartLine {
		labels := c.Labels()
		b.WriteString("  ")
		b.WriteString(barStyle.Render(RenderSparkline(values)))
		b.WriteString("\n")
		lo, hi := values[0], values[0]
		for _, v := range values[1:] {
			lo, hi = min(lo, v), max(hi, v)
		}
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  %s .. %s  (min %s, max %s)",
			labels[0], labels[len(labels)-1], FormatCompact(lo), FormatCompact(hi))))
		b.WriteString("\n")
		return b.String()
	}

	var peak float64
	labelWidth := 0
	for _, p := range c.Points {
		peak = max(peak, p.Value)
		labelWidth = max(labelWidth, len([]rune(p.Label)))
	}
	labelWidth = min(labelWidth, 24)
	for _, p := range c.Points {
		b.WriteString(RenderHorizontalBar(p.Label, labelWidth, p.Value, peak, 30))
		b.WriteString("\n")
	}
	return b.String()
}

// RowsTable builds the table for resolved chat rows. The urgency column
// only appears when some row carries one.
func RowsTable(rows []session.Row, withUrgency bool) Table {
	t := Table{Headers: []string{"SKU", "Product", "Variant", "Units"}, LeftAlign: []int{1, 2}}
	if withUrgency {
		t.Headers = append(t.Headers, "Urgency")
		t.LeftAlign = append(t.LeftAlign, 4)
	}
	for _, r := range rows {
		row := []string{r.SKU, r.DisplayName, r.Variant, FormatQuantity(r.Quantity)}
		if withUrgency {
			row = append(row, urgencyStyle(r.Urgency).Render(r.Urgency))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func urgencyStyle(u string) lipgloss.Style {
	switch strings.ToLower(u) {
	case "tinggi", "high":
		return errorStyle
	case "sedang", "medium":
		return warnStyle
	default:
		return successStyle
	}
}

// RenderTurn renders one answered chat question.
func RenderTurn(t session.ChatTurn) string {
	var b strings.Builder
	b.WriteString(mutedStyle.Render("you ›"))
	b.WriteString(" ")
	b.WriteString(t.UserQuery)
	b.WriteString("\n\n")
	if t.Message != "" {
		b.WriteString(valueStyle.Render(t.Message))
		b.WriteString("\n\n")
	}
	if rows := t.ResolvedRows(); len(rows) > 0 {
		b.WriteString(RenderTable(RowsTable(rows, t.HasUrgency())))
		b.WriteString("\n")
	}
	if s := t.Summary; s != nil {
		b.WriteString(RenderTable(Table{
			Title:   "Summary",
			Headers: []string{"Units Sold", "Revenue", "Products"},
			Rows:    [][]string{{FormatQuantity(s.UnitsSold), s.Revenue, FormatQuantity(s.UniqueProducts)}},
		}))
		b.WriteString("\n")
	}
	for _, c := range t.Charts {
		b.WriteString(RenderChart(c))
		b.WriteString("\n")
	}
	return b.String()
}

// ModelTable builds the model information table for a status snapshot.
func ModelTable(m forecast.ModelSummary) Table {
	model := m.SelectedModel
	if model == "" {
		model = "-"
	}
	rows := [][]string{
		{"Model", model},
		{"Order", orDash(m.Order)},
	}
	if m.SeasonalOrder != "" {
		rows = append(rows, []string{"Seasonal order", m.SeasonalOrder})
	}
	rows = append(rows,
		[]string{"---"},
		[]string{"SKUs", FormatNumber(int64(m.TotalSKU))},
		[]string{"Trained", fmt.Sprintf("%d (%s)", m.Succeeded, FormatPercent(m.SuccessRatio))},
		[]string{"Failed", FormatNumber(int64(m.Failed))},
		[]string{"---"},
		[]string{"MAE", FormatMetric(m.MAE)},
		[]string{"RMSE", FormatMetric(m.RMSE)},
		[]string{"MAPE", metricOrNA(m.MAPE)},
	)
	return Table{Title: "Model", Headers: []string{"Metric", "Value"}, Rows: rows}
}

func metricOrNA(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// RenderNotice renders a one-line notice with a severity marker.
func RenderNotice(kind, text string) string {
	switch kind {
	case "success":
		return successStyle.Render("✓ " + text)
	case "error":
		return errorStyle.Render("✗ " + text)
	default:
		return mutedStyle.Render("• " + text)
	}
}
