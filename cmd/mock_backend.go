package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/theirongolddev/stockcast/internal/config"
	"github.com/theirongolddev/stockcast/internal/forecast"
	"github.com/theirongolddev/stockcast/internal/logging"
	"github.com/theirongolddev/stockcast/internal/mockserver"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type mockRuntimeState struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
}

var (
	flagMockAddr    string
	flagMockStep    time.Duration
	flagMockDetach  bool
	flagMockPIDFile string
	flagMockLogFile string
	flagMockChild   bool
)

var mockCmd = &cobra.Command{
	Use:   "mock-backend",
	Short: "Run a local forecasting service for trying stockcast without one",
	RunE:  runMock,
}

var mockStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mock backend process and API status",
	RunE:  runMockStatus,
}

var mockStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running mock backend",
	RunE:  runMockStop,
}

func init() {
	defaultPID := filepath.Join(config.StateDir(), "mock-backend.pid")
	defaultLog := filepath.Join(config.StateDir(), "mock-backend.log")

	mockCmd.PersistentFlags().StringVar(&flagMockAddr, "addr", "127.0.0.1:8000", "HTTP listen address")
	mockCmd.PersistentFlags().StringVar(&flagMockPIDFile, "pid-file", defaultPID, "PID file path")
	mockCmd.PersistentFlags().StringVar(&flagMockLogFile, "out-file", defaultLog, "Output file for detached mode")

	mockCmd.Flags().DurationVar(&flagMockStep, "step", 300*time.Millisecond, "Simulated training time per SKU")
	mockCmd.Flags().BoolVar(&flagMockDetach, "detach", false, "Run as a background process")
	mockCmd.Flags().BoolVar(&flagMockChild, "child", false, "Internal: mark detached child process")
	_ = mockCmd.Flags().MarkHidden("child")

	mockCmd.AddCommand(mockStatusCmd)
	mockCmd.AddCommand(mockStopCmd)
	rootCmd.AddCommand(mockCmd)
}

func runMock(_ *cobra.Command, _ []string) error {
	if flagMockDetach && flagMockChild {
		return errors.New("invalid mock backend launch mode")
	}
	if flagMockDetach {
		return startMockDetached()
	}
	return runMockForeground()
}

func startMockDetached() error {
	if err := ensureMockNotRunning(flagMockPIDFile); err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	args := filterDetachArg(os.Args[1:])
	args = append(args, "--child")

	if err := os.MkdirAll(filepath.Dir(flagMockPIDFile), 0o750); err != nil {
		return fmt.Errorf("create mock backend directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(flagMockLogFile), 0o750); err != nil {
		return fmt.Errorf("create mock backend log directory: %w", err)
	}

	//nolint:gosec // output path is configured by the local user
	logf, err := os.OpenFile(flagMockLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open mock backend output file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	cmd := exec.Command(exe, args...) //nolint:gosec // exe/args come from current process invocation
	cmd.Stdout = logf
	cmd.Stderr = logf
	cmd.Stdin = nil
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start detached mock backend: %w", err)
	}

	fmt.Printf("  Started mock backend (pid %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", flagMockPIDFile)
	fmt.Printf("  API: http://%s/check-status\n", flagMockAddr)
	fmt.Printf("  Output: %s\n", flagMockLogFile)
	return nil
}

func runMockForeground() error {
	if err := ensureMockNotRunning(flagMockPIDFile); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(flagMockPIDFile), 0o750); err != nil {
		return fmt.Errorf("create mock backend directory: %w", err)
	}

	pid := os.Getpid()
	if err := writePID(flagMockPIDFile, pid); err != nil {
		return err
	}
	defer func() { _ = os.Remove(flagMockPIDFile) }()

	state := mockRuntimeState{PID: pid, Addr: flagMockAddr, StartedAt: time.Now()}
	_ = writeState(statePath(flagMockPIDFile), state)
	defer func() { _ = os.Remove(statePath(flagMockPIDFile)) }()

	cfg, err := loadConfig()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	log, syncLog, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer syncLog()

	if !flagDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	svc := mockserver.New(mockserver.Config{
		Addr:         flagMockAddr,
		StepInterval: flagMockStep,
		Logger:       logging.Module(log, "mockserver"),
	})

	fmt.Printf("  stockcast mock backend listening on http://%s\n", flagMockAddr)
	fmt.Printf("  Point the client at it: %s=http://%s\n", config.EnvAPIBase, flagMockAddr)
	fmt.Printf("  Stop with: stockcast mock-backend stop --pid-file %s\n", flagMockPIDFile)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("mock backend stopped", zap.Error(err))
		return err
	}
	return nil
}

func runMockStatus(_ *cobra.Command, _ []string) error {
	pid, err := readPID(flagMockPIDFile)
	if err != nil {
		fmt.Printf("  Mock backend: not running (pid file not found)\n")
		return nil
	}
	if !processAlive(pid) {
		fmt.Printf("  Mock backend: stale pid file (pid %d not alive)\n", pid)
		return nil
	}

	addr := flagMockAddr
	if st, err := readState(statePath(flagMockPIDFile)); err == nil && st.Addr != "" {
		addr = st.Addr
	}

	fmt.Printf("  Mock backend PID: %d\n", pid)
	fmt.Printf("  Address: http://%s\n", addr)

	client, err := forecast.NewClient("http://"+addr, forecast.WithTimeout(2*time.Second))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	st, err := client.CheckStatus(ctx)
	if err != nil {
		fmt.Printf("  API status: unreachable (%v)\n", err)
		return nil
	}
	fmt.Printf("  Trained: %v\n", st.IsTrained)
	if st.LastStatus != "" {
		fmt.Printf("  Last status: %s\n", st.LastStatus)
	}
	if st.TotalSKU > 0 {
		fmt.Printf("  SKUs: %d (%d ok, %d failed)\n", st.TotalSKU, st.Summary.Success, st.Summary.Failed)
	}
	return nil
}

func runMockStop(_ *cobra.Command, _ []string) error {
	pid, err := readPID(flagMockPIDFile)
	if err != nil {
		return errors.New("mock backend is not running")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find mock backend process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal mock backend process: %w", err)
	}

	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			_ = os.Remove(flagMockPIDFile)
			_ = os.Remove(statePath(flagMockPIDFile))
			fmt.Printf("  Stopped mock backend (pid %d)\n", pid)
			return nil
		}
		time.Sleep(150 * time.Millisecond)
	}

	return fmt.Errorf("mock backend (pid %d) did not exit in time", pid)
}

func filterDetachArg(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--detach" || strings.HasPrefix(a, "--detach=") {
			continue
		}
		out = append(out, a)
	}
	return out
}

func ensureMockNotRunning(pidFile string) error {
	pid, err := readPID(pidFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if processAlive(pid) {
		return fmt.Errorf("mock backend already running (pid %d)", pid)
	}
	_ = os.Remove(pidFile)
	_ = os.Remove(statePath(pidFile))
	return nil
}

func writePID(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o600)
}

func readPID(path string) (int, error) {
	//nolint:gosec // pid path is configured by the local user
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", path)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func statePath(pidFile string) string {
	return pidFile + ".json"
}

func writeState(path string, st mockRuntimeState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func readState(path string) (mockRuntimeState, error) {
	var st mockRuntimeState
	//nolint:gosec // state path is configured by the local user
	data, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, err
	}
	return st, nil
}
