package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/theirongolddev/stockcast/internal/config"
	"github.com/theirongolddev/stockcast/internal/forecast"
	"github.com/theirongolddev/stockcast/internal/tui"
	"github.com/theirongolddev/stockcast/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var flagSkipSetup bool

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive dashboard",
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().BoolVar(&flagSkipSetup, "no-setup", false, "Skip the first-run setup wizard")
	rootCmd.Flags().BoolVar(&flagSkipSetup, "no-setup", false, "Skip the first-run setup wizard")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(_ *cobra.Command, _ []string) error {
	if !config.Exists() && !flagSkipSetup && isatty.IsTerminal(os.Stdin.Fd()) {
		if err := firstRunSetup(); err != nil {
			return err
		}
	}

	// Nothing may write to the terminal while the dashboard owns it.
	rt, err := newRuntime(nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	theme.SetActive(rt.cfg.Appearance.Theme)

	// Force TrueColor profile so all background styling produces ANSI codes
	// Without this, lipgloss may default to Ascii profile (no colors)
	lipgloss.SetColorProfile(termenv.TrueColor)

	model, _ := forecast.ParseModelType(rt.cfg.Training.DefaultModel)
	app := tui.NewApp(tui.Options{
		Controller:   rt.ctrl,
		APIBase:      rt.client.BaseURL(),
		DefaultModel: model,
		Logger:       rt.log.Named("tui"),
	})
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())

	rt.log.Info("dashboard started", zap.String("api_base", rt.client.BaseURL()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// firstRunSetup asks for the service URL and preferences before the first
// launch. Aborting keeps the defaults without writing a config file.
func firstRunSetup() error {
	cfg, _ := config.Load()
	vals := tui.SetupValuesFrom(cfg)
	if err := tui.NewSetupForm(&vals).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return fmt.Errorf("setup: %w", err)
	}
	vals.Apply(&cfg)
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	progressf("  Saved to %s\n", config.ConfigPath())
	return nil
}
