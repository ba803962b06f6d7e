package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/theirongolddev/stockcast/internal/tui/theme"
)

func TestHBarChartOneLinePerValue(t *testing.T) {
	theme.SetActive("terminal")

	out := HBarChart([]float64{16, 5, 1}, []string{"Kopi Susu", "Teh Manis", "Roti Bakar"}, theme.Active.Blue, 50)
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for i, line := range lines {
		if w := lipgloss.Width(line); w > 50 {
			t.Fatalf("line %d width %d exceeds 50", i, w)
		}
	}
	if !strings.Contains(lines[0], "16") {
		t.Fatalf("first bar missing value: %q", lines[0])
	}
}

func TestLineChartShape(t *testing.T) {
	theme.SetActive("terminal")

	values := []float64{4, 9, 6, 12}
	labels := []string{"01-01", "01-02", "01-03", "01-04"}
	out := LineChart(values, labels, theme.Active.Accent, 40, 6)
	lines := strings.Split(out, "\n")

	// height rows, x axis, label row
	if len(lines) != 8 {
		t.Fatalf("got %d lines, want 8:\n%s", len(lines), out)
	}
	if got := strings.Count(out, "●"); got != len(values) {
		t.Fatalf("plotted %d points, want %d", got, len(values))
	}
	last := lines[len(lines)-1]
	if !strings.Contains(last, "01-01") || !strings.Contains(last, "01-04") {
		t.Fatalf("label row = %q", last)
	}
}

func TestLineChartFallsBackToSparkline(t *testing.T) {
	out := LineChart([]float64{1, 2, 3}, nil, theme.Active.Accent, 10, 2)
	if strings.Contains(out, "\n") {
		t.Fatalf("narrow chart should be a one-line sparkline, got %q", out)
	}
}

func TestResampleKeepsEnds(t *testing.T) {
	values := make([]float64, 100)
	labels := make([]string, 100)
	for i := range values {
		values[i] = float64(i)
		labels[i] = string(rune('a' + i%26))
	}
	v, l := resample(values, labels, 10)
	if len(v) != 10 || len(l) != 10 {
		t.Fatalf("resampled to %d/%d, want 10", len(v), len(l))
	}
	if v[0] != 0 || v[9] != 99 {
		t.Fatalf("ends = %v, %v", v[0], v[9])
	}
}

func TestChartTickStep(t *testing.T) {
	tests := []struct {
		max  float64
		want float64
	}{
		{10, 2},
		{100, 20},
		{37, 5},
		{0, 1},
	}
	for _, tt := range tests {
		if got := chartTickStep(tt.max); got != tt.want {
			t.Fatalf("chartTickStep(%v) = %v, want %v", tt.max, got, tt.want)
		}
	}
}
