// Package dashboard holds the client-side state machine for the forecasting
// service: status reconciliation, the training progress stream, and the
// upload, chat and reset flows. Views render Snapshot and call the
// operations; they never mutate state directly.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/theirongolddev/stockcast/internal/dataset"
	"github.com/theirongolddev/stockcast/internal/forecast"
	"github.com/theirongolddev/stockcast/internal/session"
)

var (
	// ErrNoFile is returned when training is started without a dataset.
	ErrNoFile = errors.New("dashboard: no dataset selected")
	// ErrInvalidModel is returned for an unknown model type.
	ErrInvalidModel = errors.New("dashboard: unknown model type")
	// ErrEmptyMessage is returned when sending a blank chat message.
	ErrEmptyMessage = errors.New("dashboard: empty message")
	// ErrBusy is returned when training is already in progress.
	ErrBusy = errors.New("dashboard: training already in progress")
	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("dashboard: closed")
)

// Phase is the reconciled state of the backend.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseUntrained
	PhaseReady
	PhaseTraining
	PhaseOffline
)

func (p Phase) String() string {
	switch p {
	case PhaseUntrained:
		return "untrained"
	case PhaseReady:
		return "ready"
	case PhaseTraining:
		return "training"
	case PhaseOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Options configures a Controller.
type Options struct {
	// IdleStatuses are last_status values meaning no training is running.
	// Compared case-insensitively; the empty status is always idle.
	IdleStatuses []string
	// DismissDelay is how long the upload dialog stays open after training
	// completes.
	DismissDelay time.Duration
	Logger       *zap.Logger
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	Phase      Phase
	Trained    bool
	Status     *forecast.ServerStatus // last successful poll; nil after reset
	Uploading  bool
	Progress   float64 // 0-100
	StatusText string
	Model      forecast.ModelType // model of the running or last training

	UploadOpen bool
	ResetOpen  bool
	Resetting  bool

	Sending bool
	Input   string
	Turns   []session.ChatTurn
}

// ChatEnabled reports whether the chat surface should accept questions.
// A backend that could not be reached shows as not trained.
func (s Snapshot) ChatEnabled() bool {
	return s.Trained && s.Phase != PhaseOffline
}

// Controller owns all dashboard state. It is safe for concurrent use.
type Controller struct {
	backend      Backend
	flag         FlagStore
	log          *zap.Logger
	idle         map[string]struct{}
	dismissDelay time.Duration
	now          func() time.Time
	loadDataset  func(path string) (*dataset.Dataset, error)

	// ctx bounds internally started calls and is canceled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	phase      Phase
	trained    bool
	status     *forecast.ServerStatus
	uploading  bool
	pending    bool // a StartTraining upload request is in flight
	progress   float64
	statusText string
	model      forecast.ModelType
	uploadOpen bool
	resetOpen  bool
	resetting  bool
	sending    bool
	input      string
	stream     *progressStream
	dismiss    *time.Timer
	disposed   bool
	history    session.History

	subMu      sync.Mutex
	subs       map[int]chan Event
	nextSubID  int
	subsClosed bool
}

// New creates a controller. The trained flag is seeded from flag so the
// view can render before the first poll completes.
func New(backend Backend, flag FlagStore, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	idle := opts.IdleStatuses
	if len(idle) == 0 {
		idle = []string{"Belum ada data", "Selesai"}
	}
	idleSet := make(map[string]struct{}, len(idle)+1)
	idleSet[""] = struct{}{}
	for _, s := range idle {
		idleSet[normalizeStatus(s)] = struct{}{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		backend:      backend,
		flag:         flag,
		log:          opts.Logger,
		idle:         idleSet,
		dismissDelay: opts.DismissDelay,
		now:          time.Now,
		loadDataset:  dataset.Load,
		ctx:          ctx,
		cancel:       cancel,
		trained:      flag.Trained(),
		model:        forecast.ModelSARIMA,
		subs:         make(map[int]chan Event),
	}
}

func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// isIdle reports whether lastStatus means no training is running.
func (c *Controller) isIdle(lastStatus string) bool {
	_, ok := c.idle[normalizeStatus(lastStatus)]
	return ok
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Phase:      c.phase,
		Trained:    c.trained,
		Status:     c.status,
		Uploading:  c.uploading,
		Progress:   c.progress,
		StatusText: c.statusText,
		Model:      c.model,
		UploadOpen: c.uploadOpen,
		ResetOpen:  c.resetOpen,
		Resetting:  c.resetting,
		Sending:    c.sending,
		Input:      c.input,
		Turns:      c.history.Turns(),
	}
}

// setTrainedLocked is the only writer of the trained flag. Persist failures
// are logged; the in-memory value still changes.
func (c *Controller) setTrainedLocked(trained bool) {
	c.trained = trained
	if err := c.flag.SetTrained(trained); err != nil {
		c.log.Warn("persisting trained flag", zap.Bool("trained", trained), zap.Error(err))
	}
}

// idlePhaseLocked is the phase to fall back to when nothing is running.
func (c *Controller) idlePhaseLocked() Phase {
	if c.trained {
		return PhaseReady
	}
	return PhaseUntrained
}

// Reconcile polls the backend and brings local state in line with it. It
// never fails: an unreachable backend yields PhaseOffline.
func (c *Controller) Reconcile(ctx context.Context) Phase {
	st, err := c.backend.CheckStatus(ctx)

	c.mu.Lock()
	if c.disposed {
		p := c.phase
		c.mu.Unlock()
		return p
	}
	if err != nil {
		c.phase = PhaseOffline
		c.mu.Unlock()
		c.log.Warn("backend offline", zap.Error(err))
		c.publish(Event{Reconciled: true})
		return PhaseOffline
	}

	c.status = st
	c.setTrainedLocked(st.IsTrained)

	idle := c.isIdle(st.LastStatus)
	attach := false
	switch {
	case st.IsTrained:
		c.phase = PhaseReady
	case !idle:
		c.phase = PhaseTraining
		c.uploadOpen = true
		c.uploading = true
		c.statusText = st.LastStatus
		attach = true
	default:
		c.phase = PhaseUntrained
	}
	// The backend has no job running; drop a local upload it no longer
	// knows about unless our own upload request has not returned yet.
	var stale *progressStream
	ended := idle && c.uploading && !c.pending
	if ended {
		stale = c.endUploadLocked()
	}
	phase := c.phase
	c.mu.Unlock()

	if ended {
		c.log.Info("backend is idle, clearing local upload state", zap.String("last_status", st.LastStatus))
	}
	if stale != nil {
		stale.stop()
	}
	c.log.Debug("reconciled",
		zap.Stringer("phase", phase),
		zap.Bool("trained", st.IsTrained),
		zap.String("last_status", st.LastStatus))

	if attach {
		c.attachStream()
	}
	c.publish(Event{Reconciled: true})
	return phase
}

// endUploadLocked resets the upload state and detaches the current stream.
// The caller stops the returned stream after releasing c.mu.
func (c *Controller) endUploadLocked() *progressStream {
	ps := c.stream
	c.stream = nil
	c.uploading = false
	c.uploadOpen = false
	c.progress = 0
	c.statusText = ""
	if c.dismiss != nil {
		c.dismiss.Stop()
		c.dismiss = nil
	}
	return ps
}

// StartTraining uploads the dataset at path and starts training model on
// it. The progress stream is attached before the upload so no event is
// missed. Success is signaled only by the stream reaching 100 percent.
func (c *Controller) StartTraining(ctx context.Context, path string, model forecast.ModelType) error {
	if strings.TrimSpace(path) == "" {
		c.notify(NoticeError, msgNoFile)
		return ErrNoFile
	}
	if _, ok := forecast.ParseModelType(string(model)); !ok {
		c.notify(NoticeError, fmt.Sprintf("Unknown model %q", model))
		return fmt.Errorf("%w: %q", ErrInvalidModel, model)
	}

	ds, err := c.loadDataset(path)
	if err != nil {
		c.notify(NoticeError, datasetMessage(err))
		return err
	}

	c.mu.Lock()
	switch {
	case c.disposed:
		c.mu.Unlock()
		return ErrClosed
	case c.uploading:
		c.mu.Unlock()
		return ErrBusy
	}
	if c.dismiss != nil {
		c.dismiss.Stop()
		c.dismiss = nil
	}
	c.uploading = true
	c.pending = true
	c.uploadOpen = true
	c.progress = 0
	c.statusText = msgInitializing
	c.model = model
	c.phase = PhaseTraining
	c.mu.Unlock()
	c.changed()

	c.log.Info("starting training",
		zap.String("file", ds.Name), zap.Int("records", ds.Records), zap.String("model", string(model)))

	ps := c.attachStream()
	select {
	case <-ps.ready:
	case <-ctx.Done():
	}

	_, err = c.backend.UploadTrain(ctx, ds.Name, ds.Reader(), model)

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		if err == nil {
			return nil
		}
		return ErrClosed
	}
	c.pending = false
	if err == nil {
		c.mu.Unlock()
		return nil
	}
	c.uploading = false
	c.phase = c.idlePhaseLocked()
	cur := c.stream
	c.stream = nil
	c.mu.Unlock()

	if cur != nil {
		cur.stop()
	}
	c.log.Error("upload failed", zap.String("file", ds.Name), zap.Error(err))
	c.notify(NoticeError, msgTrainingFail)
	return fmt.Errorf("uploading dataset: %w", err)
}

func datasetMessage(err error) string {
	switch {
	case errors.Is(err, dataset.ErrUnsupported):
		return "Unsupported file type, use .csv or .xlsx"
	case errors.Is(err, dataset.ErrEmpty):
		return "The file has no data rows"
	default:
		return "Could not read the file"
	}
}

// CloseUploadDialog hides the upload dialog. Ignored while uploading.
func (c *Controller) CloseUploadDialog() {
	c.mu.Lock()
	if c.uploading {
		c.mu.Unlock()
		return
	}
	c.uploadOpen = false
	c.mu.Unlock()
	c.changed()
}

// OpenUploadDialog shows the upload dialog.
func (c *Controller) OpenUploadDialog() {
	c.mu.Lock()
	c.uploadOpen = true
	c.mu.Unlock()
	c.changed()
}

// SetInput replaces the chat draft.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
}

// SendMessage sends the current draft. The draft is cleared before the call
// and restored if it fails. A call while another send is in flight is a
// no-op.
func (c *Controller) SendMessage(ctx context.Context) error {
	c.mu.Lock()
	if c.sending || c.disposed {
		c.mu.Unlock()
		return nil
	}
	draft := c.input
	text := strings.TrimSpace(draft)
	if text == "" {
		c.mu.Unlock()
		c.notify(NoticeError, msgEmptyMessage)
		return ErrEmptyMessage
	}
	c.input = ""
	c.sending = true
	replay := c.history.ReplayContext()
	c.mu.Unlock()
	c.changed()

	resp, err := c.backend.Chat(ctx, forecast.ChatRequest{Message: text, History: replay})

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.sending = false
	if err != nil {
		c.input = draft
		c.mu.Unlock()
		c.log.Error("chat failed", zap.Error(err))
		c.notify(NoticeError, msgChatFail)
		return fmt.Errorf("sending message: %w", err)
	}
	c.history.Append(session.ChatTurn{
		UserQuery: text,
		Message:   resp.Message,
		Charts:    resp.Charts,
		Rows:      resp.Data,
		Summary:   resp.Summary,
		At:        c.now(),
	})
	c.mu.Unlock()
	c.changed()
	return nil
}

// RequestReset opens the reset confirmation.
func (c *Controller) RequestReset() {
	c.mu.Lock()
	c.resetOpen = true
	c.mu.Unlock()
	c.changed()
}

// CancelReset closes the reset confirmation unless the reset is running.
func (c *Controller) CancelReset() {
	c.mu.Lock()
	if c.resetting {
		c.mu.Unlock()
		return
	}
	c.resetOpen = false
	c.mu.Unlock()
	c.changed()
}

// ConfirmReset deletes all data on the backend. A running upload is
// abandoned along with the data. On failure local state is left untouched
// and the confirmation stays open.
func (c *Controller) ConfirmReset(ctx context.Context) error {
	c.mu.Lock()
	if c.resetting || c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.resetting = true
	c.mu.Unlock()
	c.changed()

	_, err := c.backend.Reset(ctx)

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.resetting = false
	if err != nil {
		c.mu.Unlock()
		c.log.Error("reset failed", zap.Error(err))
		c.notify(NoticeError, msgResetFail)
		return fmt.Errorf("resetting backend: %w", err)
	}
	c.setTrainedLocked(false)
	c.status = nil
	c.history.Clear()
	c.resetOpen = false
	c.phase = PhaseUntrained
	stale := c.endUploadLocked()
	c.mu.Unlock()

	if stale != nil {
		stale.stop()
	}
	c.log.Info("backend data reset")
	c.notify(NoticeSuccess, msgResetDone)
	c.Reconcile(ctx)
	return nil
}

// Close tears the controller down: the progress stream is closed, pending
// timers stop, and results of calls still in flight are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	ps := c.stream
	c.stream = nil
	if c.dismiss != nil {
		c.dismiss.Stop()
		c.dismiss = nil
	}
	c.mu.Unlock()

	c.cancel()
	if ps != nil {
		ps.stop()
	}
	c.closeSubscribers()
}
