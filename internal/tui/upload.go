package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/theirongolddev/stockcast/internal/forecast"
	"github.com/theirongolddev/stockcast/internal/tui/components"
	"github.com/theirongolddev/stockcast/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// uploadValues backs the upload form fields.
type uploadValues struct {
	model string
	path  string
}

func modelOptions() []huh.Option[string] {
	opts := make([]huh.Option[string], len(forecast.ModelTypes))
	for i, m := range forecast.ModelTypes {
		opts[i] = huh.NewOption(string(m), string(m))
	}
	return opts
}

// validateDatasetPath rejects paths that exist but cannot be uploaded. An
// empty path passes; the controller reports it as a notice.
func validateDatasetPath(p string) error {
	p = strings.TrimSpace(p)
	if p == "" {
		return nil
	}
	switch strings.ToLower(filepath.Ext(p)) {
	case ".csv", ".xlsx":
	default:
		return fmt.Errorf("use a .csv or .xlsx file")
	}
	info, err := os.Stat(expandHome(p))
	if err != nil {
		return fmt.Errorf("file not found")
	}
	if info.IsDir() {
		return fmt.Errorf("that is a directory")
	}
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func newUploadForm(vals *uploadValues, width int) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Forecasting model").
				Description("SARIMA models weekly seasonality, ARIMA does not").
				Options(modelOptions()...).
				Value(&vals.model),
			huh.NewInput().
				Title("Sales dataset").
				Description(".csv or .xlsx with SKU and quantity columns").
				Placeholder("~/data/sales.csv").
				Value(&vals.path).
				Validate(validateDatasetPath),
		),
	).WithTheme(huh.ThemeCharm()).WithShowHelp(true).WithWidth(width)
}

// wantsUploadForm reports whether the open dialog should show the form
// rather than training progress.
func (a App) wantsUploadForm() bool {
	return a.uploadForm == nil && !a.starting && !a.snap.Uploading && a.snap.Progress < 100
}

func (a *App) openUploadForm() tea.Cmd {
	a.uploadVals = uploadValues{model: string(a.snap.Model), path: a.uploadVals.path}
	if a.uploadVals.model == "" {
		a.uploadVals.model = string(a.defaultModel)
	}
	a.uploadForm = newUploadForm(&a.uploadVals, dialogWidth(a.contentWidth())-4)
	return a.uploadForm.Init()
}

func (a App) uploadVisible() bool {
	return a.snap.UploadOpen && !a.uploadHidden
}

func (a App) updateUploadKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		if a.snap.Uploading || a.starting {
			a.uploadHidden = true
			return a, nil
		}
		a.uploadForm = nil
		a.ctrl.CloseUploadDialog()
		return a, nil
	}
	if a.uploadForm != nil {
		return a.updateUploadForm(msg)
	}
	return a, nil
}

func (a App) updateUploadForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.uploadForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.uploadForm = f
	}

	switch a.uploadForm.State {
	case huh.StateCompleted:
		a.uploadForm = nil
		a.starting = true
		path := expandHome(strings.TrimSpace(a.uploadVals.path))
		return a, trainCmd(a.ctx, a.ctrl, path, forecast.ModelType(a.uploadVals.model))
	case huh.StateAborted:
		a.uploadForm = nil
		a.ctrl.CloseUploadDialog()
		return a, nil
	}
	return a, cmd
}

func dialogWidth(cw int) int {
	return min(max(cw*2/3, 50), cw)
}

func (a App) renderUploadDialog(cw, h int) string {
	t := theme.Active
	w := dialogWidth(cw)
	inner := components.CardInnerWidth(w)

	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	text := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	dim := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	var b strings.Builder
	switch {
	case a.uploadForm != nil:
		b.WriteString(a.uploadForm.View())
		b.WriteString("\n")
		b.WriteString(dim.Render("esc to cancel"))

	case a.snap.Uploading || a.starting || a.snap.Progress > 0:
		status := a.snap.StatusText
		if status == "" {
			status = "Waiting for the backend…"
		}
		b.WriteString(muted.Render("Model  "))
		b.WriteString(text.Render(string(a.snap.Model)))
		b.WriteString("\n\n")
		if a.snap.Uploading || a.starting {
			b.WriteString(a.spinner.View())
			b.WriteString(muted.Render(" "))
		}
		b.WriteString(text.Render(truncStr(status, inner-2)))
		b.WriteString("\n\n")
		b.WriteString(components.ProgressBar(a.snap.Progress, inner-6))
		b.WriteString("\n\n")
		if a.snap.Uploading {
			b.WriteString(dim.Render("esc to hide, training continues"))
		} else {
			b.WriteString(dim.Render("esc to close"))
		}

	default:
		b.WriteString(muted.Render("Preparing…"))
	}

	card := components.FocusCard("Upload & Train", b.String(), w)
	return lipgloss.Place(cw, h, lipgloss.Center, lipgloss.Center, card,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) renderResetConfirm(cw, h int) string {
	t := theme.Active
	w := min(56, cw)

	text := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	key := lipgloss.NewStyle().Foreground(t.Red).Background(t.Surface).Bold(true)
	keyAlt := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)

	var b strings.Builder
	b.WriteString(text.Render("Delete the uploaded dataset and the trained model?"))
	b.WriteString("\n")
	b.WriteString(muted.Render("The chat history is cleared as well."))
	b.WriteString("\n\n")
	if a.snap.Resetting {
		b.WriteString(a.spinner.View())
		b.WriteString(muted.Render(" Deleting…"))
	} else {
		b.WriteString(key.Render("y"))
		b.WriteString(muted.Render(" delete   "))
		b.WriteString(keyAlt.Render("n"))
		b.WriteString(muted.Render(" cancel"))
	}

	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Red).
		BorderBackground(t.Background).
		Background(t.Surface).
		Width(w-2).
		Padding(1, 2).
		Render(b.String())
	return lipgloss.Place(cw, h, lipgloss.Center, lipgloss.Center, card,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
