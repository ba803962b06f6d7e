package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/theirongolddev/stockcast/internal/config"
	"github.com/theirongolddev/stockcast/internal/dashboard"
	"github.com/theirongolddev/stockcast/internal/forecast"
	"github.com/theirongolddev/stockcast/internal/store"

	"go.uber.org/zap"
)

// scriptedBackend reports a trained model and streams a fixed run.
type scriptedBackend struct {
	mu     sync.Mutex
	checks int
}

func (b *scriptedBackend) CheckStatus(context.Context) (*forecast.ServerStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checks++
	return &forecast.ServerStatus{IsTrained: true, LastStatus: "Selesai", TotalSKU: 2}, nil
}

func (b *scriptedBackend) UploadTrain(_ context.Context, _ string, r io.Reader, _ forecast.ModelType) (*forecast.Ack, error) {
	_, _ = io.Copy(io.Discard, r)
	return &forecast.Ack{Status: "started"}, nil
}

func (b *scriptedBackend) OpenProgress(context.Context) (dashboard.ProgressReader, error) {
	return &scriptedStream{events: []forecast.TrainingProgress{
		{Percent: 50, Status: "Training SKU 1/2 (A)"},
		{Percent: 100, Status: "Selesai"},
	}}, nil
}

func (b *scriptedBackend) Reset(context.Context) (*forecast.Ack, error) {
	return nil, errors.New("not used")
}

func (b *scriptedBackend) Chat(context.Context, forecast.ChatRequest) (*forecast.ChatResponse, error) {
	return nil, errors.New("not used")
}

type scriptedStream struct {
	events []forecast.TrainingProgress
}

func (s *scriptedStream) Next() (forecast.TrainingProgress, error) {
	if len(s.events) == 0 {
		return forecast.TrainingProgress{}, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func (s *scriptedStream) Close() error { return nil }

func TestWaitForTraining_SinglePollAfterCompletion(t *testing.T) {
	quiet := flagQuiet
	flagQuiet = true
	t.Cleanup(func() { flagQuiet = quiet })

	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte("tanggal,sku,qty\n2024-01-01,A,3\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	b := &scriptedBackend{}
	ctrl := dashboard.New(b, &store.MemoryFlag{}, dashboard.Options{DismissDelay: time.Hour})
	defer ctrl.Close()
	rt := &runtime{cfg: config.DefaultConfig(), log: zap.NewNop(), ctrl: ctrl}

	events, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ctrl.StartTraining(ctx, path, forecast.ModelSARIMA); err != nil {
		t.Fatalf("StartTraining: %v", err)
	}
	if err := waitForTraining(ctx, rt, events); err != nil {
		t.Fatalf("waitForTraining: %v", err)
	}

	b.mu.Lock()
	checks := b.checks
	b.mu.Unlock()
	if checks != 1 {
		t.Fatalf("status polls = %d, want 1", checks)
	}
	snap := ctrl.Snapshot()
	if !snap.Trained || snap.Status == nil || snap.Status.TotalSKU != 2 {
		t.Fatalf("snapshot not refreshed: trained=%v status=%+v", snap.Trained, snap.Status)
	}
}
