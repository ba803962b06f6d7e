package dashboard

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/stockcast/internal/forecast"
	"github.com/theirongolddev/stockcast/internal/session"
	"github.com/theirongolddev/stockcast/internal/store"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeStream struct {
	b      *fakeBackend
	events chan forecast.TrainingProgress
	closed chan struct{}
	once   sync.Once
}

func (s *fakeStream) Next() (forecast.TrainingProgress, error) {
	select {
	case ev, ok := <-s.events:
		if !ok {
			return forecast.TrainingProgress{}, io.EOF
		}
		return ev, nil
	case <-s.closed:
		return forecast.TrainingProgress{}, errors.New("stream closed")
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.b.mu.Lock()
		s.b.open--
		s.b.mu.Unlock()
	})
	return nil
}

type fakeBackend struct {
	mu sync.Mutex

	statuses   []*forecast.ServerStatus // served in order, last one repeats
	statusErr  error
	checkCalls int

	uploadErr   error
	uploadGate  chan struct{} // when set, uploads block until it is closed
	uploadCalls int
	calls       []string

	chatFn   func(forecast.ChatRequest) (*forecast.ChatResponse, error)
	chatReqs []forecast.ChatRequest

	resetErr   error
	resetGate  chan struct{}
	resetCalls int

	open, maxOpen, opens int
	streams              chan *fakeStream
}

func newFakeBackend(statuses ...*forecast.ServerStatus) *fakeBackend {
	return &fakeBackend{statuses: statuses, streams: make(chan *fakeStream, 16)}
}

func (b *fakeBackend) CheckStatus(context.Context) (*forecast.ServerStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkCalls++
	if b.statusErr != nil {
		return nil, b.statusErr
	}
	if len(b.statuses) == 0 {
		return &forecast.ServerStatus{}, nil
	}
	st := b.statuses[0]
	if len(b.statuses) > 1 {
		b.statuses = b.statuses[1:]
	}
	return st, nil
}

func (b *fakeBackend) UploadTrain(_ context.Context, _ string, r io.Reader, _ forecast.ModelType) (*forecast.Ack, error) {
	_, _ = io.Copy(io.Discard, r)
	b.mu.Lock()
	b.uploadCalls++
	b.calls = append(b.calls, "upload")
	gate, err := b.uploadGate, b.uploadErr
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return &forecast.Ack{}, err
}

func (b *fakeBackend) OpenProgress(context.Context) (ProgressReader, error) {
	s := &fakeStream{b: b, events: make(chan forecast.TrainingProgress, 16), closed: make(chan struct{})}
	b.mu.Lock()
	b.open++
	b.opens++
	b.maxOpen = max(b.maxOpen, b.open)
	b.calls = append(b.calls, "open")
	b.mu.Unlock()
	b.streams <- s
	return s, nil
}

func (b *fakeBackend) Reset(context.Context) (*forecast.Ack, error) {
	b.mu.Lock()
	b.resetCalls++
	gate, err := b.resetGate, b.resetErr
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return &forecast.Ack{}, err
}

func (b *fakeBackend) Chat(_ context.Context, req forecast.ChatRequest) (*forecast.ChatResponse, error) {
	b.mu.Lock()
	b.chatReqs = append(b.chatReqs, req)
	fn := b.chatFn
	b.mu.Unlock()
	if fn == nil {
		return &forecast.ChatResponse{Message: "answer to " + req.Message, Status: "success"}, nil
	}
	return fn(req)
}

func (b *fakeBackend) stat(f func(b *fakeBackend) int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return f(b)
}

func (b *fakeBackend) nextStream(t *testing.T) *fakeStream {
	t.Helper()
	select {
	case s := <-b.streams:
		return s
	case <-time.After(waitFor):
		t.Fatal("no progress stream opened")
		return nil
	}
}

func training(status string) *forecast.ServerStatus {
	return &forecast.ServerStatus{IsTrained: false, LastStatus: status}
}

func trained() *forecast.ServerStatus {
	return &forecast.ServerStatus{IsTrained: true, LastStatus: "Selesai", TotalSKU: 10}
}

func newController(t *testing.T, b *fakeBackend, flag FlagStore) *Controller {
	t.Helper()
	if flag == nil {
		flag = &store.MemoryFlag{}
	}
	c := New(b, flag, Options{DismissDelay: 20 * time.Millisecond})
	t.Cleanup(c.Close)
	return c
}

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte("tanggal,sku,qty\n2024-01-01,A,3\n"), 0o600))
	return path
}

// collectNotices drains notices from a subscription in the background.
func collectNotices(c *Controller) func() []Notice {
	ch, _ := c.Subscribe()
	var mu sync.Mutex
	var got []Notice
	go func() {
		for ev := range ch {
			if ev.Notice != nil {
				mu.Lock()
				got = append(got, *ev.Notice)
				mu.Unlock()
			}
		}
	}()
	return func() []Notice {
		mu.Lock()
		defer mu.Unlock()
		return append([]Notice(nil), got...)
	}
}

func TestReconcile_TrainingInProgressAttachesStream(t *testing.T) {
	b := newFakeBackend(training("Processing row 3/10"))
	c := newController(t, b, nil)

	phase := c.Reconcile(context.Background())
	assert.Equal(t, PhaseTraining, phase)

	snap := c.Snapshot()
	assert.True(t, snap.UploadOpen)
	assert.True(t, snap.Uploading)
	assert.Equal(t, "Processing row 3/10", snap.StatusText)
	assert.False(t, snap.Trained)

	b.nextStream(t)
	assert.Equal(t, 1, b.stat(func(b *fakeBackend) int { return b.opens }))
}

func TestReconcile_IdleStatusesDoNotAttach(t *testing.T) {
	for _, status := range []string{"", "Belum ada data", "Selesai", "  selesai "} {
		t.Run(status, func(t *testing.T) {
			b := newFakeBackend(training(status))
			flag := &store.MemoryFlag{}
			_ = flag.SetTrained(true)
			c := newController(t, b, flag)

			assert.Equal(t, PhaseUntrained, c.Reconcile(context.Background()))
			assert.False(t, c.Snapshot().UploadOpen)
			assert.False(t, flag.Trained(), "flag follows backend")
			assert.Zero(t, b.stat(func(b *fakeBackend) int { return b.opens }))
		})
	}
}

func TestReconcile_TrainedPersistsFlag(t *testing.T) {
	b := newFakeBackend(trained())
	flag := &store.MemoryFlag{}
	c := newController(t, b, flag)

	assert.Equal(t, PhaseReady, c.Reconcile(context.Background()))
	assert.True(t, flag.Trained())

	snap := c.Snapshot()
	assert.True(t, snap.ChatEnabled())
	require.NotNil(t, snap.Status)
	assert.Equal(t, 10, snap.Status.TotalSKU)
}

func TestReconcile_OfflineIsSilent(t *testing.T) {
	b := newFakeBackend()
	b.statusErr = errors.New("connection refused")
	flag := &store.MemoryFlag{}
	_ = flag.SetTrained(true)
	c := newController(t, b, flag)
	notices := collectNotices(c)

	assert.Equal(t, PhaseOffline, c.Reconcile(context.Background()))

	snap := c.Snapshot()
	assert.True(t, snap.Trained, "flag is not rewritten on failure")
	assert.True(t, flag.Trained())
	assert.False(t, snap.ChatEnabled(), "offline backend shows as not trained")
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, notices())
}

func TestAttachStream_AtMostOneOpen(t *testing.T) {
	b := newFakeBackend(training("Processing row 1/10"))
	c := newController(t, b, nil)

	for i := 0; i < 5; i++ {
		c.Reconcile(context.Background())
	}

	require.Eventually(t, func() bool {
		return b.stat(func(b *fakeBackend) int { return b.opens }) == 5
	}, waitFor, tick)
	assert.Equal(t, 1, b.stat(func(b *fakeBackend) int { return b.maxOpen }))
	assert.Equal(t, 1, b.stat(func(b *fakeBackend) int { return b.open }))
}

func TestStartTraining_CompletesExactlyOnce(t *testing.T) {
	b := newFakeBackend(trained())
	flag := &store.MemoryFlag{}
	c := newController(t, b, flag)
	notices := collectNotices(c)

	require.NoError(t, c.StartTraining(context.Background(), writeCSV(t), forecast.ModelARIMA))

	calls := b.stat(func(b *fakeBackend) int { return len(b.calls) })
	require.Equal(t, 2, calls)
	b.mu.Lock()
	assert.Equal(t, []string{"open", "upload"}, b.calls, "stream attached before upload")
	b.mu.Unlock()

	snap := c.Snapshot()
	assert.True(t, snap.Uploading)
	assert.Equal(t, "Initializing...", snap.StatusText)
	assert.Equal(t, forecast.ModelARIMA, snap.Model)

	s := b.nextStream(t)
	s.events <- forecast.TrainingProgress{Percent: 40, Status: "Processing row 4/10"}
	require.Eventually(t, func() bool { return c.Snapshot().Progress == 40 }, waitFor, tick)
	assert.Equal(t, "Processing row 4/10", c.Snapshot().StatusText)

	s.events <- forecast.TrainingProgress{Percent: 100, Status: "Selesai"}
	s.events <- forecast.TrainingProgress{Percent: 100, Status: "Selesai"}

	require.Eventually(t, func() bool {
		return b.stat(func(b *fakeBackend) int { return b.checkCalls }) >= 1
	}, waitFor, tick)
	require.Eventually(t, func() bool { return !c.Snapshot().UploadOpen }, waitFor, tick)

	snap = c.Snapshot()
	assert.True(t, snap.Trained)
	assert.True(t, flag.Trained())
	assert.False(t, snap.Uploading)
	assert.Equal(t, PhaseReady, snap.Phase)
	assert.Equal(t, 1, b.stat(func(b *fakeBackend) int { return b.checkCalls }), "exactly one re-poll")
	assert.Zero(t, b.stat(func(b *fakeBackend) int { return b.open }), "stream closed")

	successes := func() int {
		var n int
		for _, notice := range notices() {
			if notice.Kind == NoticeSuccess && notice.Text == "Training finished" {
				n++
			}
		}
		return n
	}
	require.Eventually(t, func() bool { return successes() > 0 }, waitFor, tick)
	assert.Equal(t, 1, successes())
}

func TestStartTraining_UploadFailureClosesStream(t *testing.T) {
	b := newFakeBackend()
	b.uploadErr = errors.New("502 bad gateway")
	c := newController(t, b, nil)
	notices := collectNotices(c)

	err := c.StartTraining(context.Background(), writeCSV(t), forecast.ModelSARIMA)
	require.Error(t, err)

	snap := c.Snapshot()
	assert.False(t, snap.Uploading)
	assert.Zero(t, b.stat(func(b *fakeBackend) int { return b.open }))
	require.Eventually(t, func() bool {
		for _, n := range notices() {
			if n.Kind == NoticeError && n.Text == "Training failed" {
				return true
			}
		}
		return false
	}, waitFor, tick)
}

func TestStartTraining_Validation(t *testing.T) {
	b := newFakeBackend()
	c := newController(t, b, nil)

	assert.ErrorIs(t, c.StartTraining(context.Background(), "  ", forecast.ModelSARIMA), ErrNoFile)
	assert.ErrorIs(t, c.StartTraining(context.Background(), writeCSV(t), "LSTM"), ErrInvalidModel)
	assert.Error(t, c.StartTraining(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), forecast.ModelSARIMA))
	assert.Zero(t, b.stat(func(b *fakeBackend) int { return b.uploadCalls + b.opens }))
	assert.False(t, c.Snapshot().Uploading)
}

func TestStartTraining_BusyWhileUploading(t *testing.T) {
	b := newFakeBackend(training("Processing row 1/10"))
	c := newController(t, b, nil)
	c.Reconcile(context.Background())

	assert.ErrorIs(t, c.StartTraining(context.Background(), writeCSV(t), forecast.ModelSARIMA), ErrBusy)
}

func TestStreamLossIsSilent(t *testing.T) {
	b := newFakeBackend(training("Processing row 1/10"))
	c := newController(t, b, nil)
	notices := collectNotices(c)
	c.Reconcile(context.Background())

	s := b.nextStream(t)
	close(s.events)

	require.Eventually(t, func() bool {
		return b.stat(func(b *fakeBackend) int { return b.open }) == 0
	}, waitFor, tick)
	assert.Equal(t, 1, b.stat(func(b *fakeBackend) int { return b.opens }), "no retry")
	assert.Empty(t, notices())
}

func TestSendMessage_AppendsTurnWithReplay(t *testing.T) {
	b := newFakeBackend()
	b.chatFn = func(req forecast.ChatRequest) (*forecast.ChatResponse, error) {
		return &forecast.ChatResponse{
			Message: "top sellers",
			Data:    []session.TableRow{{SKU: "A"}},
			Summary: &session.SummaryStats{UnitsSold: 5},
			Charts:  []session.ChartSpec{{Title: "t", Kind: session.ChartLine}},
		}, nil
	}
	c := newController(t, b, nil)

	c.SetInput("  top 5  ")
	require.NoError(t, c.SendMessage(context.Background()))
	c.SetInput("and next week?")
	require.NoError(t, c.SendMessage(context.Background()))

	snap := c.Snapshot()
	require.Len(t, snap.Turns, 2)
	assert.Equal(t, "top 5", snap.Turns[0].UserQuery)
	assert.Equal(t, "top sellers", snap.Turns[0].Message)
	assert.Empty(t, snap.Input)

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Len(t, b.chatReqs, 2)
	assert.Empty(t, b.chatReqs[0].History)
	require.Len(t, b.chatReqs[1].History, 1)
	assert.Equal(t, session.ReplayTurn{User: "top 5", Bot: "top sellers", Data: []session.TableRow{{SKU: "A"}}}, b.chatReqs[1].History[0])
}

func TestSendMessage_FailureRestoresDraft(t *testing.T) {
	b := newFakeBackend()
	c := newController(t, b, nil)

	c.SetInput("first")
	require.NoError(t, c.SendMessage(context.Background()))

	b.mu.Lock()
	b.chatFn = func(forecast.ChatRequest) (*forecast.ChatResponse, error) {
		return nil, errors.New("timeout")
	}
	b.mu.Unlock()

	c.SetInput("second")
	require.Error(t, c.SendMessage(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, "second", snap.Input)
	assert.Len(t, snap.Turns, 1)
	assert.Equal(t, "first", snap.Turns[0].UserQuery)
	assert.False(t, snap.Sending)
}

func TestSendMessage_ReentrantCallIsNoop(t *testing.T) {
	b := newFakeBackend()
	release := make(chan struct{})
	b.chatFn = func(req forecast.ChatRequest) (*forecast.ChatResponse, error) {
		<-release
		return &forecast.ChatResponse{Message: "ok"}, nil
	}
	c := newController(t, b, nil)

	c.SetInput("slow question")
	done := make(chan error, 1)
	go func() { done <- c.SendMessage(context.Background()) }()

	require.Eventually(t, func() bool { return c.Snapshot().Sending }, waitFor, tick)
	c.SetInput("impatient")
	assert.NoError(t, c.SendMessage(context.Background()))

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, 1, b.stat(func(b *fakeBackend) int { return len(b.chatReqs) }))
	assert.Equal(t, "impatient", c.Snapshot().Input)
}

func TestSendMessage_EmptyIsRejected(t *testing.T) {
	b := newFakeBackend()
	c := newController(t, b, nil)
	notices := collectNotices(c)

	c.SetInput("   ")
	assert.ErrorIs(t, c.SendMessage(context.Background()), ErrEmptyMessage)
	assert.Zero(t, b.stat(func(b *fakeBackend) int { return len(b.chatReqs) }))
	assert.Equal(t, "   ", c.Snapshot().Input, "draft kept")

	require.Eventually(t, func() bool {
		for _, n := range notices() {
			if n.Kind == NoticeError && n.Text == "Type a question first" {
				return true
			}
		}
		return false
	}, waitFor, tick)
}

func TestConfirmReset_ClearsSession(t *testing.T) {
	b := newFakeBackend(trained(), training("Belum ada data"))
	flag := &store.MemoryFlag{}
	c := newController(t, b, flag)
	c.Reconcile(context.Background())

	c.SetInput("q")
	require.NoError(t, c.SendMessage(context.Background()))
	c.RequestReset()
	require.True(t, c.Snapshot().ResetOpen)

	require.NoError(t, c.ConfirmReset(context.Background()))

	snap := c.Snapshot()
	assert.False(t, snap.Trained)
	assert.False(t, flag.Trained())
	assert.Empty(t, snap.Turns)
	assert.False(t, snap.ResetOpen)
	assert.False(t, snap.Resetting)
	assert.Equal(t, PhaseUntrained, snap.Phase)
	assert.Equal(t, 2, b.stat(func(b *fakeBackend) int { return b.checkCalls }), "re-polls after reset")
}

func TestConfirmReset_FailureKeepsState(t *testing.T) {
	b := newFakeBackend(trained())
	b.resetErr = errors.New("500")
	c := newController(t, b, nil)
	c.Reconcile(context.Background())

	c.SetInput("q")
	require.NoError(t, c.SendMessage(context.Background()))
	c.RequestReset()

	require.Error(t, c.ConfirmReset(context.Background()))

	snap := c.Snapshot()
	assert.True(t, snap.Trained)
	assert.Len(t, snap.Turns, 1)
	assert.True(t, snap.ResetOpen, "confirmation stays open")
	assert.NotNil(t, snap.Status)

	c.CancelReset()
	assert.False(t, c.Snapshot().ResetOpen)
}

func TestClose_TearsDownStream(t *testing.T) {
	b := newFakeBackend(training("Processing row 1/10"))
	c := New(b, &store.MemoryFlag{}, Options{})
	ch, _ := c.Subscribe()
	c.Reconcile(context.Background())
	s := b.nextStream(t)

	c.Close()

	assert.Zero(t, b.stat(func(b *fakeBackend) int { return b.open }))
	select {
	case s.events <- forecast.TrainingProgress{Percent: 100}:
	default:
	}
	time.Sleep(20 * time.Millisecond)
	assert.False(t, c.Snapshot().Trained, "events after close are ignored")

	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, waitFor, tick)
	assert.Equal(t, PhaseTraining, c.Reconcile(context.Background()), "late polls do not change state")
}

func TestReconcile_IdleAfterStreamLossClearsUpload(t *testing.T) {
	b := newFakeBackend(training("Training SKU 1/10"), training("Belum ada data"))
	c := newController(t, b, nil)
	c.Reconcile(context.Background())

	s := b.nextStream(t)
	close(s.events)
	require.Eventually(t, func() bool {
		return b.stat(func(b *fakeBackend) int { return b.open }) == 0
	}, waitFor, tick)
	assert.True(t, c.Snapshot().Uploading, "stream loss alone changes nothing")

	assert.Equal(t, PhaseUntrained, c.Reconcile(context.Background()))
	snap := c.Snapshot()
	assert.False(t, snap.Uploading)
	assert.False(t, snap.UploadOpen)
	assert.Zero(t, snap.Progress)

	require.NoError(t, c.StartTraining(context.Background(), writeCSV(t), forecast.ModelSARIMA))
	assert.True(t, c.Snapshot().Uploading)
}

func TestReconcile_IdleKeepsUploadInFlight(t *testing.T) {
	b := newFakeBackend(training("Belum ada data"))
	b.uploadGate = make(chan struct{})
	c := newController(t, b, nil)

	done := make(chan error, 1)
	go func() { done <- c.StartTraining(context.Background(), writeCSV(t), forecast.ModelARIMA) }()
	require.Eventually(t, func() bool {
		return b.stat(func(b *fakeBackend) int { return b.uploadCalls }) == 1
	}, waitFor, tick)

	c.Reconcile(context.Background())
	snap := c.Snapshot()
	assert.True(t, snap.Uploading, "backend has not seen the upload yet")
	assert.True(t, snap.UploadOpen)
	assert.Equal(t, 1, b.stat(func(b *fakeBackend) int { return b.open }))

	close(b.uploadGate)
	require.NoError(t, <-done)

	c.Reconcile(context.Background())
	assert.False(t, c.Snapshot().Uploading, "idle backend after the upload returned")
	assert.Zero(t, b.stat(func(b *fakeBackend) int { return b.open }))
}

func TestConfirmReset_DuringTrainingStopsStream(t *testing.T) {
	b := newFakeBackend(training("Training SKU 3/10"), training("Belum ada data"))
	c := newController(t, b, nil)
	assert.Equal(t, PhaseTraining, c.Reconcile(context.Background()))
	b.nextStream(t)

	c.RequestReset()
	require.NoError(t, c.ConfirmReset(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, PhaseUntrained, snap.Phase)
	assert.False(t, snap.Uploading)
	assert.False(t, snap.UploadOpen)
	assert.Zero(t, snap.Progress)
	assert.Zero(t, b.stat(func(b *fakeBackend) int { return b.open }), "stream closed")

	require.NoError(t, c.StartTraining(context.Background(), writeCSV(t), forecast.ModelSARIMA))
	assert.True(t, c.Snapshot().Uploading)
}

func TestClose_DiscardsChatInFlight(t *testing.T) {
	b := newFakeBackend()
	release := make(chan struct{})
	b.chatFn = func(forecast.ChatRequest) (*forecast.ChatResponse, error) {
		<-release
		return &forecast.ChatResponse{Message: "late answer"}, nil
	}
	c := New(b, &store.MemoryFlag{}, Options{})

	c.SetInput("slow question")
	done := make(chan error, 1)
	go func() { done <- c.SendMessage(context.Background()) }()
	require.Eventually(t, func() bool { return c.Snapshot().Sending }, waitFor, tick)

	c.Close()
	before := c.Snapshot()
	close(release)
	assert.ErrorIs(t, <-done, ErrClosed)

	after := c.Snapshot()
	assert.Empty(t, after.Turns)
	assert.Equal(t, before.Sending, after.Sending)
	assert.Equal(t, before.Input, after.Input)
}

func TestClose_DiscardsResetInFlight(t *testing.T) {
	b := newFakeBackend(trained())
	b.resetGate = make(chan struct{})
	flag := &store.MemoryFlag{}
	c := New(b, flag, Options{})
	c.Reconcile(context.Background())
	c.SetInput("q")
	require.NoError(t, c.SendMessage(context.Background()))

	c.RequestReset()
	done := make(chan error, 1)
	go func() { done <- c.ConfirmReset(context.Background()) }()
	require.Eventually(t, func() bool { return c.Snapshot().Resetting }, waitFor, tick)

	c.Close()
	close(b.resetGate)
	assert.ErrorIs(t, <-done, ErrClosed)

	snap := c.Snapshot()
	assert.True(t, snap.Trained)
	assert.True(t, flag.Trained(), "persisted flag untouched")
	assert.Len(t, snap.Turns, 1)
	assert.NotNil(t, snap.Status)
	assert.Equal(t, 1, b.stat(func(b *fakeBackend) int { return b.checkCalls }), "no re-poll")
}
