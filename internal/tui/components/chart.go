package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/theirongolddev/stockcast/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// Sparkline renders a unicode sparkline from values.
func Sparkline(values []float64, color lipgloss.Color) string {
	if len(values) == 0 {
		return ""
	}
	t := theme.Active

	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	peak := maxOf(values)
	if peak <= 0 {
		peak = 1
	}

	style := lipgloss.NewStyle().Foreground(color).Background(t.Surface)

	var buf strings.Builder
	buf.Grow(len(values) * 3)
	for _, v := range values {
		idx := int(v / peak * float64(len(blocks)-1))
		idx = min(max(idx, 0), len(blocks)-1)
		buf.WriteRune(blocks[idx])
	}
	return style.Render(buf.String())
}

// HBarChart renders one labeled horizontal bar per value. Labels are
// truncated to a third of the width; values are printed after each bar.
func HBarChart(values []float64, labels []string, color lipgloss.Color, width int) string {
	if len(values) == 0 {
		return ""
	}
	t := theme.Active

	labelW := 0
	for _, l := range labels {
		labelW = max(labelW, lipgloss.Width(l))
	}
	labelW = min(labelW, max(width/3, 6))

	valueW := 0
	for _, v := range values {
		valueW = max(valueW, len(formatChartLabel(v)))
	}
	barMax := max(width-labelW-valueW-3, 4)

	peak := maxOf(values)
	if peak <= 0 {
		peak = 1
	}

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	barStyle := lipgloss.NewStyle().Foreground(color).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	space := lipgloss.NewStyle().Background(t.Surface)

	var b strings.Builder
	for i, v := range values {
		label := ""
		if i < len(labels) {
			label = truncate(labels[i], labelW)
		}
		n := int(math.Round(max(v, 0) / peak * float64(barMax)))
		if v > 0 && n == 0 {
			n = 1
		}
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-*s", labelW, label)))
		b.WriteString(space.Render(" "))
		b.WriteString(barStyle.Render(strings.Repeat("█", n)))
		b.WriteString(space.Render(strings.Repeat(" ", barMax-n+1)))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%*s", valueW, formatChartLabel(v))))
		if i < len(values)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// LineChart plots values left to right on a height-row grid with a
// labeled Y axis. Series wider than the plot area are resampled.
func LineChart(values []float64, labels []string, color lipgloss.Color, width, height int) string {
	if len(values) == 0 {
		return ""
	}
	if width < 15 || height < 3 {
		return Sparkline(values, color)
	}
	t := theme.Active

	ceiling := niceCeiling(maxOf(values))
	yLabelW := max(len(formatChartLabel(ceiling))+1, 4)
	plotW := max(width-yLabelW-1, 5)

	values, labels = resample(values, labels, plotW)
	n := len(values)
	step := 1
	if n > 1 {
		step = max((plotW-1)/(n-1), 1)
	}
	axisLen := (n-1)*step + 1

	level := func(v float64) int {
		return int(math.Round(min(max(v, 0), ceiling) / ceiling * float64(height-1)))
	}

	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", axisLen))
	}
	for i, v := range values {
		x := i * step
		y := level(v)
		if i > 0 {
			prevX, prevY := (i-1)*step, level(values[i-1])
			for cx := prevX + 1; cx < x; cx++ {
				cy := prevY + (y-prevY)*(cx-prevX)/(x-prevX)
				grid[cy][cx] = '·'
			}
			lo, hi := min(prevY, y), max(prevY, y)
			for cy := lo + 1; cy < hi; cy++ {
				if grid[cy][x] == ' ' {
					grid[cy][x] = '│'
				}
			}
		}
		grid[y][x] = '●'
	}

	axisStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	lineStyle := lipgloss.NewStyle().Foreground(color).Background(t.Surface)

	var b strings.Builder
	for r := height - 1; r >= 0; r-- {
		label := ""
		switch r {
		case height - 1:
			label = formatChartLabel(ceiling)
		case (height - 1) / 2:
			label = formatChartLabel(ceiling / 2)
		}
		b.WriteString(axisStyle.Render(fmt.Sprintf("%*s", yLabelW, label)))
		b.WriteString(axisStyle.Render("│"))
		b.WriteString(lineStyle.Render(string(grid[r])))
		b.WriteString("\n")
	}
	b.WriteString(axisStyle.Render(fmt.Sprintf("%*s", yLabelW, "0")))
	b.WriteString(axisStyle.Render("└" + strings.Repeat("─", axisLen)))

	if len(labels) == n && n > 0 {
		first, last := labels[0], labels[n-1]
		gap := axisLen - lipgloss.Width(first) - lipgloss.Width(last)
		b.WriteString("\n")
		b.WriteString(axisStyle.Render(strings.Repeat(" ", yLabelW+1)))
		if gap >= 1 && n > 1 {
			b.WriteString(axisStyle.Render(first + strings.Repeat(" ", gap) + last))
		} else {
			b.WriteString(axisStyle.Render(truncate(first, axisLen)))
		}
	}
	return b.String()
}

// resample keeps at most limit evenly spaced points, always including the
// first and last.
func resample(values []float64, labels []string, limit int) ([]float64, []string) {
	n := len(values)
	if n <= limit || limit < 2 {
		return values, labels
	}
	outV := make([]float64, limit)
	var outL []string
	if len(labels) == n {
		outL = make([]string, limit)
	}
	for i := range outV {
		src := i * (n - 1) / (limit - 1)
		outV[i] = values[src]
		if outL != nil {
			outL[i] = labels[src]
		}
	}
	return outV, outL
}

func maxOf(values []float64) float64 {
	peak := values[0]
	for _, v := range values[1:] {
		peak = max(peak, v)
	}
	return peak
}

// niceCeiling rounds maxVal up to a multiple of its tick step.
func niceCeiling(maxVal float64) float64 {
	if maxVal <= 0 {
		return 1
	}
	step := chartTickStep(maxVal)
	return math.Ceil(maxVal/step) * step
}

// chartTickStep computes a nice tick interval targeting ~5 ticks.
func chartTickStep(maxVal float64) float64 {
	if maxVal <= 0 {
		return 1
	}
	rough := maxVal / 5
	exp := math.Floor(math.Log10(rough))
	base := math.Pow(10, exp)
	frac := rough / base

	switch {
	case frac < 1.5:
		return base
	case frac < 3.5:
		return 2 * base
	default:
		return 5 * base
	}
}

func formatChartLabel(v float64) string {
	switch {
	case v >= 1e6:
		if v == math.Trunc(v/1e6)*1e6 {
			return fmt.Sprintf("%.0fM", v/1e6)
		}
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		if v == math.Trunc(v/1e3)*1e3 {
			return fmt.Sprintf("%.0fk", v/1e3)
		}
		return fmt.Sprintf("%.1fk", v/1e3)
	case v == math.Trunc(v):
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.1f", v)
	}
}
