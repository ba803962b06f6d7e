package tui

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/theirongolddev/stockcast/internal/config"
	"github.com/theirongolddev/stockcast/internal/tui/theme"

	"github.com/charmbracelet/huh"
)

// SetupValues backs the first-run setup form.
type SetupValues struct {
	APIBase string
	Model   string
	Theme   string
}

// SetupValuesFrom seeds the form from an existing config.
func SetupValuesFrom(cfg config.Config) SetupValues {
	return SetupValues{
		APIBase: cfg.Backend.APIBase,
		Model:   cfg.Training.DefaultModel,
		Theme:   cfg.Appearance.Theme,
	}
}

// Apply copies the answers into cfg.
func (v SetupValues) Apply(cfg *config.Config) {
	if base := strings.TrimSpace(v.APIBase); base != "" {
		cfg.Backend.APIBase = strings.TrimRight(base, "/")
	}
	if v.Model != "" {
		cfg.Training.DefaultModel = v.Model
	}
	if v.Theme != "" {
		cfg.Appearance.Theme = v.Theme
	}
}

func validateAPIBase(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil // keeps the current value
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("expected http(s)://host[:port]")
	}
	return nil
}

// NewSetupForm builds the setup wizard. It runs standalone, before the
// dashboard starts.
func NewSetupForm(vals *SetupValues) *huh.Form {
	themes := huh.NewOptions(theme.Names()...)

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to stockcast").
				Description("Sales forecasting and restock planning against a forecasting service."),
			huh.NewInput().
				Title("Forecasting service URL").
				Description("Overridden by "+config.EnvAPIBase+" when set").
				Placeholder(config.DefaultAPIBase).
				Value(&vals.APIBase).
				Validate(validateAPIBase),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Default model").
				Options(modelOptions()...).
				Value(&vals.Model),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themes...).
				Value(&vals.Theme),
		),
	).WithTheme(huh.ThemeCharm())
}
