package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/theirongolddev/stockcast/internal/cli"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var flagResetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the uploaded dataset and the trained model on the service",
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&flagResetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	if !flagResetYes {
		confirmed := false
		err := huh.NewConfirm().
			Title("Delete all data on " + rt.client.BaseURL() + "?").
			Description("The uploaded dataset and the trained model are removed.").
			Affirmative("Delete").
			Negative("Cancel").
			Value(&confirmed).
			Run()
		if err != nil && !errors.Is(err, huh.ErrUserAborted) {
			return err
		}
		if !confirmed {
			fmt.Println("  Cancelled.")
			return nil
		}
	}

	rt.ctrl.RequestReset()
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*rt.cfg.RequestTimeout())
	defer cancel()
	if err := rt.ctrl.ConfirmReset(ctx); err != nil {
		return err
	}

	fmt.Println(cli.RenderNotice("success", "Data deleted"))
	fmt.Printf("  Service state: %s\n", phaseLabel(rt.ctrl.Snapshot().Phase))
	return nil
}
