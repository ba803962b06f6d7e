package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	sse "github.com/tmaxmax/go-sse"
	"go.uber.org/zap"
)

// maxEventSize bounds a single server-sent event.
const maxEventSize = 64 << 10

// errStreamClosed is returned by Next after Close.
var errStreamClosed = errors.New("forecast: progress stream closed")

type streamEvent struct {
	data string
	err  error
}

// ProgressStream reads training progress events from an open event stream.
// It is not safe for concurrent Next calls; Close may be called from any
// goroutine and unblocks a pending Next.
type ProgressStream struct {
	body   io.ReadCloser
	ctx    context.Context
	cancel context.CancelFunc
	events chan streamEvent
	log    *zap.Logger
	once   sync.Once
}

// OpenProgress connects to the training progress stream. It returns once the
// backend has accepted the connection, so callers can order the stream
// before the upload that triggers training.
func (c *Client) OpenProgress(ctx context.Context) (*ProgressStream, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/train-progress", nil), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("forecast: creating request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: opening progress stream: %w", ErrUnavailable, err)
	}
	if err := statusError(resp.StatusCode, nil); err != nil {
		_ = resp.Body.Close()
		cancel()
		return nil, err
	}

	c.log.Debug("progress stream open", zap.String("request_id", reqID))
	s := &ProgressStream{
		body:   resp.Body,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan streamEvent),
		log:    c.log.With(zap.String("request_id", reqID)),
	}
	go s.pump()
	return s, nil
}

// pump parses the response body and hands events to Next until the stream
// ends, breaks or is closed.
func (s *ProgressStream) pump() {
	defer close(s.events)
	for ev, err := range sse.Read(s.body, &sse.ReadConfig{MaxEventSize: maxEventSize}) {
		select {
		case s.events <- streamEvent{data: ev.Data, err: err}:
		case <-s.ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// Next blocks until the next progress event arrives. It returns io.EOF when
// the backend ends the stream and a transport error when the stream breaks
// or is closed. Events whose payload is not valid progress JSON are skipped.
func (s *ProgressStream) Next() (TrainingProgress, error) {
	for {
		ev, ok := <-s.events
		switch {
		case !ok && s.ctx.Err() != nil:
			return TrainingProgress{}, errStreamClosed
		case !ok:
			return TrainingProgress{}, io.EOF
		case ev.err != nil:
			return TrainingProgress{}, fmt.Errorf("forecast: reading progress stream: %w", ev.err)
		case ev.data == "":
			continue
		}
		var p TrainingProgress
		if err := json.Unmarshal([]byte(ev.data), &p); err != nil {
			s.log.Debug("skipping malformed progress event", zap.String("data", ev.data), zap.Error(err))
			continue
		}
		return p, nil
	}
}

// Close terminates the stream. Safe to call more than once.
func (s *ProgressStream) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.body.Close()
		s.log.Debug("progress stream closed")
	})
	return err
}
