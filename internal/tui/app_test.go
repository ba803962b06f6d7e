package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/theirongolddev/stockcast/internal/config"
	"github.com/theirongolddev/stockcast/internal/dashboard"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDropToast(t *testing.T) {
	toasts := []toast{{id: 1}, {id: 2}, {id: 3}}
	got := dropToast(toasts, 2)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].id)
	assert.Equal(t, 3, got[1].id)
	assert.Len(t, toasts, 3, "input slice must not be modified")
}

func TestPushToastKeepsNewest(t *testing.T) {
	var a App
	for i := 0; i < maxToasts+2; i++ {
		var cmd tea.Cmd
		a, cmd = a.pushToast(dashboard.Notice{Text: "n"})
		assert.NotNil(t, cmd)
	}
	require.Len(t, a.toasts, maxToasts)
	assert.Equal(t, maxToasts+2, a.toasts[len(a.toasts)-1].id)
}

func TestOverlayToastsBottomRight(t *testing.T) {
	content := strings.Repeat(strings.Repeat(".", 40)+"\n", 9) + strings.Repeat(".", 40)
	out := overlayToasts(content, []toast{{id: 1, notice: dashboard.Notice{Kind: dashboard.NoticeSuccess, Text: "Saved"}}}, 40, 10)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 10)
	assert.Contains(t, lines[len(lines)-2], "Saved")
	assert.Equal(t, strings.Repeat(".", 40), lines[0])
	for _, l := range lines {
		assert.LessOrEqual(t, lipgloss.Width(l), 40)
	}
}

func TestValidateDatasetPath(t *testing.T) {
	dir := t.TempDir()
	csv := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(csv, []byte("sku,jumlah\nA,1\n"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.csv"), 0o750))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"empty passes", "", false},
		{"existing csv", csv, false},
		{"wrong extension", filepath.Join(dir, "sales.txt"), true},
		{"missing file", filepath.Join(dir, "missing.xlsx"), true},
		{"directory", filepath.Join(dir, "folder.csv"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDatasetPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAPIBase(t *testing.T) {
	assert.NoError(t, validateAPIBase(""))
	assert.NoError(t, validateAPIBase("http://localhost:8000"))
	assert.NoError(t, validateAPIBase("https://forecast.example.com"))
	assert.Error(t, validateAPIBase("localhost:8000"))
	assert.Error(t, validateAPIBase("ftp://host"))
}

func TestSetupValuesApply(t *testing.T) {
	cfg := config.DefaultConfig()
	vals := SetupValuesFrom(cfg)
	vals.APIBase = " http://10.0.0.5:9000/ "
	vals.Model = "ARIMA"
	vals.Theme = "tokyo-night"
	vals.Apply(&cfg)

	assert.Equal(t, "http://10.0.0.5:9000", cfg.Backend.APIBase)
	assert.Equal(t, "ARIMA", cfg.Training.DefaultModel)
	assert.Equal(t, "tokyo-night", cfg.Appearance.Theme)
	assert.NoError(t, cfg.Validate())
}

func TestTruncStr(t *testing.T) {
	assert.Equal(t, "abc", truncStr("abc", 5))
	assert.Equal(t, "ab…", truncStr("abcdef", 3))
	assert.Equal(t, "", truncStr("abc", 0))
}
