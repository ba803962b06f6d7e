// Package cmd implements the stockcast CLI commands.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/theirongolddev/stockcast/internal/config"
	"github.com/theirongolddev/stockcast/internal/dashboard"
	"github.com/theirongolddev/stockcast/internal/dataset"
	"github.com/theirongolddev/stockcast/internal/forecast"
	"github.com/theirongolddev/stockcast/internal/logging"
	"github.com/theirongolddev/stockcast/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	flagAPIBase string
	flagQuiet   bool
	flagLogFile string
	flagStateDB string
	flagDebug   bool
)

var rootCmd = &cobra.Command{
	Use:   "stockcast",
	Short: "Sales forecasting and restock planning client",
	Long: "Upload sales history to a forecasting service, train a per-SKU model, " +
		"and ask about best sellers, revenue and next week's restock.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "  Error: %s\n", userMessage(err))
		os.Exit(1)
	}
}

// userMessage turns known failures into short advice.
func userMessage(err error) string {
	switch {
	case errors.Is(err, forecast.ErrUnavailable):
		return "the forecasting service is not reachable (check --api-base or " + config.EnvAPIBase + ")"
	case errors.Is(err, forecast.ErrRejected):
		return "the service rejected the request: " + err.Error()
	case errors.Is(err, dataset.ErrUnsupported), errors.Is(err, dataset.ErrEmpty):
		return strings.TrimPrefix(err.Error(), "dataset: ")
	case errors.Is(err, dashboard.ErrNoFile):
		return "no dataset given"
	case errors.Is(err, dashboard.ErrEmptyMessage):
		return "the question is empty"
	default:
		return err.Error()
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPIBase, "api-base", "", "Forecasting service URL (overrides config and "+config.EnvAPIBase+")")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress and warnings on stderr")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Log file path (default under the state directory)")
	rootCmd.PersistentFlags().StringVar(&flagStateDB, "state-db", config.StatePath(), "State database path")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Log at debug level")
}

// runtime bundles everything a command needs to talk to the backend.
type runtime struct {
	cfg    config.Config
	log    *zap.Logger
	client *forecast.Client
	ctrl   *dashboard.Controller

	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if flagAPIBase != "" {
		cfg.Backend.APIBase = flagAPIBase
	}
	if flagLogFile != "" {
		cfg.Logging.File = flagLogFile
	}
	if flagDebug {
		cfg.Logging.Level = "debug"
	}
	return cfg, cfg.Validate()
}

// newLogger builds the file logger. Commands that own the terminal pass a
// nil console so nothing is written over the UI.
func newLogger(cfg config.Config, console io.Writer) (*zap.Logger, func(), error) {
	if flagQuiet {
		console = nil
	}
	return logging.New(logging.Options{
		File:         cfg.LogPath(),
		Level:        cfg.Logging.Level,
		Console:      console,
		ConsoleLevel: zapcore.WarnLevel,
	})
}

// newRuntime wires config, logging, the trained flag store, the HTTP
// client and the dashboard controller.
func newRuntime(console io.Writer) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, syncLog, err := newLogger(cfg, console)
	if err != nil {
		return nil, err
	}
	r := &runtime{cfg: cfg, log: log, closers: []func(){syncLog}}

	var flag dashboard.FlagStore
	state, err := store.Open(flagStateDB)
	if err != nil {
		log.Warn("state db unavailable, trained flag will not persist", zap.String("path", flagStateDB), zap.Error(err))
		flag = &store.MemoryFlag{}
	} else {
		flag = state
		r.closers = append(r.closers, func() { _ = state.Close() })
	}

	client, err := forecast.NewClient(cfg.Backend.APIBase,
		forecast.WithTimeout(cfg.RequestTimeout()),
		forecast.WithLogger(logging.Module(log, "forecast")),
	)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("backend url: %w", err)
	}
	r.client = client

	r.ctrl = dashboard.New(dashboard.NewBackend(client), flag, dashboard.Options{
		IdleStatuses: cfg.IdleStatuses(),
		DismissDelay: cfg.DismissDelay(),
		Logger:       logging.Module(log, "dashboard"),
	})
	r.closers = append(r.closers, r.ctrl.Close)

	log.Debug("runtime ready",
		zap.String("api_base", client.BaseURL()),
		zap.String("api_base_source", config.APIBaseSource(cfg)),
	)
	return r, nil
}

// progressf writes a progress line to stderr unless --quiet.
func progressf(format string, args ...any) {
	if flagQuiet {
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}
