package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/theirongolddev/stockcast/internal/cli"
	"github.com/theirongolddev/stockcast/internal/dashboard"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [question...]",
	Short: "Ask about sales and restock forecasts",
	Long: "With a question, prints one answer and exits. Without one, starts an " +
		"interactive session where earlier answers are sent back as context.",
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	rctx, cancel := context.WithTimeout(ctx, rt.cfg.RequestTimeout())
	phase := rt.ctrl.Reconcile(rctx)
	cancel()

	switch phase {
	case dashboard.PhaseOffline:
		return fmt.Errorf("service at %s is not reachable", rt.client.BaseURL())
	case dashboard.PhaseUntrained:
		return errors.New("no model trained yet, run `stockcast train <file>` first")
	}
	if !rt.ctrl.Snapshot().ChatEnabled() {
		return errors.New("no model trained yet, training is still running")
	}

	if len(args) > 0 {
		return ask(ctx, rt, strings.Join(args, " "))
	}
	return chatREPL(ctx, rt, os.Stdin)
}

// ask sends one question and prints the newest turn.
func ask(ctx context.Context, rt *runtime, question string) error {
	rt.ctrl.SetInput(question)
	if err := rt.ctrl.SendMessage(ctx); err != nil {
		return err
	}
	turns := rt.ctrl.Snapshot().Turns
	if len(turns) == 0 {
		return nil
	}
	fmt.Println()
	fmt.Print(cli.RenderTurn(turns[len(turns)-1]))
	return nil
}

func chatREPL(ctx context.Context, rt *runtime, in io.Reader) error {
	fmt.Println()
	fmt.Println(cli.RenderTitle("STOCKCAST CHAT"))
	fmt.Println("  Ask about best sellers, revenue or next week's restock.")
	fmt.Println("  Empty line or Ctrl-D to quit.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Print("\n› ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" || q == "exit" || q == "quit" {
			return nil
		}
		if err := ask(ctx, rt, q); err != nil {
			fmt.Println(cli.RenderNotice("error", "Failed to process request"))
			rt.log.Sugar().Debugw("chat turn failed", "error", err)
		}
	}
}
