package cmd

import (
	"errors"
	"fmt"

	"github.com/theirongolddev/stockcast/internal/config"
	"github.com/theirongolddev/stockcast/internal/tui"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	// Load existing config or defaults
	cfg, _ := config.Load()

	vals := tui.SetupValuesFrom(cfg)
	if err := tui.NewSetupForm(&vals).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("  Setup cancelled, nothing saved.")
			return nil
		}
		return err
	}
	vals.Apply(&cfg)

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	if src := config.APIBaseSource(cfg); src != "config file" && src != "default" {
		fmt.Printf("  Note: %s is set and overrides the saved URL.\n", config.EnvAPIBase)
	}
	fmt.Println("  Run `stockcast setup` anytime to reconfigure.")
	fmt.Println()

	return nil
}
