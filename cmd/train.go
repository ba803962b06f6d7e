package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/theirongolddev/stockcast/internal/cli"
	"github.com/theirongolddev/stockcast/internal/dashboard"
	"github.com/theirongolddev/stockcast/internal/forecast"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagTrainModel string
	flagTrainIdle  time.Duration
)

var trainCmd = &cobra.Command{
	Use:   "train <file>",
	Short: "Upload a .csv or .xlsx sales dataset and train a model on it",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrain,
}

func init() {
	trainCmd.Flags().StringVarP(&flagTrainModel, "model", "m", "", "Model type: SARIMA or ARIMA (default from config)")
	trainCmd.Flags().DurationVar(&flagTrainIdle, "recheck", 10*time.Second, "Re-poll the service after this long without progress")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	name := flagTrainModel
	if name == "" {
		name = rt.cfg.Training.DefaultModel
	}
	model, ok := forecast.ParseModelType(name)
	if !ok {
		return fmt.Errorf("unknown model %q (use SARIMA or ARIMA)", name)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, unsubscribe := rt.ctrl.Subscribe()
	defer unsubscribe()

	progressf("  Uploading %s (%s)...\n", args[0], model)
	if err := rt.ctrl.StartTraining(ctx, args[0], model); err != nil {
		if errors.Is(err, dashboard.ErrBusy) {
			return errors.New("training is already running")
		}
		return err
	}

	if err := waitForTraining(ctx, rt, events); err != nil {
		progressf("\n")
		return err
	}
	progressf("\n")

	snap := rt.ctrl.Snapshot()
	fmt.Println()
	fmt.Println(cli.RenderNotice("success", "Training finished"))
	fmt.Println()
	if snap.Status != nil {
		fmt.Print(cli.RenderTable(cli.ModelTable(snap.Status.Summarize())))
	}
	return nil
}

// waitForTraining follows progress until the controller reports a trained
// model. When the stream goes quiet the service is polled again, which
// re-attaches the stream if training is still running.
func waitForTraining(ctx context.Context, rt *runtime, events <-chan dashboard.Event) error {
	recheck := time.NewTimer(flagTrainIdle)
	defer recheck.Stop()

	finished := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return dashboard.ErrClosed
			}
			if n := ev.Notice; n != nil && n.Kind == dashboard.NoticeError {
				return errors.New(n.Text)
			}
			if finished {
				// The controller re-polls after completion; its result
				// keeps the model table current.
				if ev.Reconciled {
					return nil
				}
				continue
			}
			snap := rt.ctrl.Snapshot()
			progressf("\r  %s  %s", cli.RenderProgressBar(snap.Progress, 30), cli.Truncate(snap.StatusText, 40))
			if trainingDone(snap) && ev.Notice != nil && ev.Notice.Kind == dashboard.NoticeSuccess {
				finished = true
				continue
			}
			resetTimer(recheck, flagTrainIdle)

		case <-recheck.C:
			if finished {
				return nil
			}
			rctx, cancel := context.WithTimeout(ctx, rt.cfg.RequestTimeout())
			phase := rt.ctrl.Reconcile(rctx)
			cancel()
			rt.log.Debug("progress quiet, re-polled", zap.Stringer("phase", phase))
			switch phase {
			case dashboard.PhaseReady:
				snap := rt.ctrl.Snapshot()
				if !snap.Uploading || (snap.Status != nil && isIdleStatus(rt, snap.Status.LastStatus)) {
					return nil
				}
			case dashboard.PhaseUntrained:
				if !rt.ctrl.Snapshot().Uploading {
					return errors.New("training stopped before completing")
				}
			}
			recheck.Reset(flagTrainIdle)
		}
	}
}

func isIdleStatus(rt *runtime, status string) bool {
	for _, s := range rt.cfg.IdleStatuses() {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(status)) {
			return true
		}
	}
	return false
}

func trainingDone(s dashboard.Snapshot) bool {
	return s.Trained && !s.Uploading && s.Progress >= 100
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
