package cmd

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/stockcast/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	source := config.APIBaseSource(cfg)
	if flagAPIBase != "" {
		source = "flag --api-base"
	}
	fmt.Println("  [Backend]")
	fmt.Printf("    API base:        %s (%s)\n", cfg.Backend.APIBase, source)
	fmt.Printf("    Request timeout: %s\n", cfg.RequestTimeout())
	fmt.Printf("    Idle statuses:   %s\n", strings.Join(cfg.IdleStatuses(), ", "))
	fmt.Println()

	fmt.Println("  [Training]")
	fmt.Printf("    Default model:   %s\n", cfg.Training.DefaultModel)
	fmt.Printf("    Dismiss delay:   %s\n", cfg.DismissDelay())
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  [Logging]")
	fmt.Printf("    Level: %s\n", cfg.Logging.Level)
	fmt.Printf("    File:  %s\n", cfg.LogPath())
	fmt.Println()

	fmt.Printf("  State db: %s\n", flagStateDB)
	fmt.Println()
	fmt.Println("  Run `stockcast setup` to reconfigure.")
	return nil
}
