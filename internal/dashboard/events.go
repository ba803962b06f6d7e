package dashboard

import "time"

// NoticeKind classifies a user-facing notice.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeSuccess
	NoticeError
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeSuccess:
		return "success"
	case NoticeError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a short transient message for the user.
type Notice struct {
	Kind NoticeKind
	Text string
	At   time.Time
}

// Event tells subscribers that controller state changed. Notice is set when
// the change came with a message for the user.
type Event struct {
	Notice *Notice
	// Reconciled marks the event published when a status poll finished.
	Reconciled bool
}

// Notice texts.
const (
	msgNoFile        = "Select a CSV file"
	msgTrainingDone  = "Training finished"
	msgTrainingFail  = "Training failed"
	msgChatFail      = "Failed to process request"
	msgEmptyMessage  = "Type a question first"
	msgResetDone     = "Data deleted"
	msgResetFail     = "Failed to delete data"
	msgInitializing  = "Initializing..."
	subscriberBuffer = 64
)

// Subscribe registers for state change events. The returned cancel func
// unregisters and closes the channel. Events are dropped for subscribers
// that fall behind; Snapshot always has the current state.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	c.subMu.Lock()
	if c.subsClosed {
		c.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.nextSubID++
	id := c.nextSubID
	c.subs[id] = ch
	c.subMu.Unlock()

	return ch, func() { c.removeSubscriber(id) }
}

func (c *Controller) removeSubscriber(id int) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if ch, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(ch)
	}
}

func (c *Controller) publish(ev Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (c *Controller) changed() { c.publish(Event{}) }

func (c *Controller) notify(kind NoticeKind, text string) {
	c.publish(Event{Notice: &Notice{Kind: kind, Text: text, At: c.now()}})
}

func (c *Controller) closeSubscribers() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.subsClosed = true
}
