package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/theirongolddev/stockcast/internal/cli"
	"github.com/theirongolddev/stockcast/internal/dashboard"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var flagStatusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the forecasting service status and the trained model",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&flagStatusJSON, "json", false, "Print the raw status payload")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), rt.cfg.RequestTimeout())
	defer cancel()

	phase := rt.ctrl.Reconcile(ctx)
	snap := rt.ctrl.Snapshot()

	if flagStatusJSON {
		if snap.Status == nil {
			return fmt.Errorf("service at %s is not reachable", rt.client.BaseURL())
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Status)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("FORECAST SERVICE"))
	fmt.Println()
	fmt.Printf("  Service:  %s\n", rt.client.BaseURL())
	fmt.Printf("  State:    %s\n", phaseLabel(phase))
	fmt.Printf("  Trained:  %v\n", snap.Trained)

	if snap.Status == nil {
		fmt.Println()
		fmt.Println("  Start the service, or run `stockcast mock-backend` for a local one.")
		fmt.Println()
		return nil
	}
	if snap.Status.LastStatus != "" {
		fmt.Printf("  Last:     %s\n", snap.Status.LastStatus)
	}
	fmt.Println()

	if phase == dashboard.PhaseUntrained {
		fmt.Println("  No model trained yet. Run `stockcast train <file>`.")
		fmt.Println()
		return nil
	}

	m := snap.Status.Summarize()
	fmt.Print(cli.RenderTable(cli.ModelTable(m)))
	fmt.Println()
	fmt.Printf("  SKUs trained  %s\n", cli.RenderProgressBar(m.SuccessRatio*100, 30))
	fmt.Println()
	return nil
}

func phaseLabel(p dashboard.Phase) string {
	style := lipgloss.NewStyle().Bold(true)
	switch p {
	case dashboard.PhaseReady:
		style = style.Foreground(cli.ColorGreen)
	case dashboard.PhaseTraining:
		style = style.Foreground(cli.ColorBlue)
	case dashboard.PhaseOffline:
		style = style.Foreground(cli.ColorRed)
	default:
		style = style.Foreground(cli.ColorYellow)
	}
	return style.Render(p.String())
}
