package dashboard

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/theirongolddev/stockcast/internal/forecast"
)

// progressStream is the handle of one progress stream connection.
type progressStream struct {
	cancel context.CancelFunc
	ready  chan struct{} // closed once the connection attempt settles
	done   chan struct{} // closed when the reader goroutine exits
}

// stop closes the connection and waits for its reader to exit.
func (ps *progressStream) stop() {
	ps.cancel()
	<-ps.done
}

// attachStream replaces any open progress stream with a new one. The
// previous connection is fully closed before the new one is dialed, so at
// most one is ever open.
func (c *Controller) attachStream() *progressStream {
	ctx, cancel := context.WithCancel(c.ctx)
	ps := &progressStream{
		cancel: cancel,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		cancel()
		close(ps.ready)
		close(ps.done)
		return ps
	}
	prev := c.stream
	c.stream = ps
	c.mu.Unlock()

	if prev != nil {
		prev.stop()
	}
	go c.runStream(ctx, ps)
	return ps
}

// detachLocked forgets ps if it is still the current stream.
func (c *Controller) detachLocked(ps *progressStream) bool {
	if c.stream != ps {
		return false
	}
	c.stream = nil
	return true
}

func (c *Controller) runStream(ctx context.Context, ps *progressStream) {
	defer close(ps.done)

	reader, err := c.backend.OpenProgress(ctx)
	close(ps.ready)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Debug("progress stream unavailable", zap.Error(err))
		}
		c.mu.Lock()
		c.detachLocked(ps)
		c.mu.Unlock()
		return
	}

	stopClose := context.AfterFunc(ctx, func() { _ = reader.Close() })
	defer stopClose()

	for {
		ev, err := reader.Next()
		if err != nil {
			_ = reader.Close()
			c.mu.Lock()
			current := c.detachLocked(ps)
			c.mu.Unlock()
			if current {
				c.log.Debug("progress stream ended", zap.Error(err))
			}
			return
		}

		switch c.applyProgress(ps, ev) {
		case streamStale:
			_ = reader.Close()
			return
		case streamComplete:
			_ = reader.Close()
			c.completeTraining()
			return
		}
	}
}

type streamResult int

const (
	streamContinue streamResult = iota
	streamComplete
	streamStale
)

// applyProgress records one event. Events are only applied while ps is the
// attached stream; the first event at or above 100 percent detaches it.
func (c *Controller) applyProgress(ps *progressStream, ev forecast.TrainingProgress) streamResult {
	c.mu.Lock()
	if c.disposed || c.stream != ps {
		c.mu.Unlock()
		return streamStale
	}
	c.progress = min(max(ev.Percent, 0), 100)
	if ev.Status != "" {
		c.statusText = ev.Status
	}
	if !ev.Done() {
		c.mu.Unlock()
		c.changed()
		return streamContinue
	}

	c.stream = nil
	c.setTrainedLocked(true)
	c.uploading = false
	c.phase = PhaseReady
	if c.dismiss != nil {
		c.dismiss.Stop()
	}
	c.dismiss = time.AfterFunc(c.dismissDelay, c.dismissUploadDialog)
	c.mu.Unlock()
	return streamComplete
}

// completeTraining runs once per completed stream, after it is closed.
func (c *Controller) completeTraining() {
	c.log.Info("training finished")
	c.notify(NoticeSuccess, msgTrainingDone)
	c.Reconcile(c.ctx)
}

func (c *Controller) dismissUploadDialog() {
	c.mu.Lock()
	if c.disposed || c.uploading {
		c.mu.Unlock()
		return
	}
	c.uploadOpen = false
	c.dismiss = nil
	c.mu.Unlock()
	c.changed()
}
