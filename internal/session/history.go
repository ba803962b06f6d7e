package session

import "sync"

// ReplayTurn is the shape of a prior exchange as the backend expects it in
// the history field of a chat request. Charts and summaries are not replayed.
type ReplayTurn struct {
	User string     `json:"user"`
	Bot  string     `json:"bot"`
	Data []TableRow `json:"data,omitempty"`
}

// History is an append-only transcript. Committed turns are never mutated
// or reordered; Clear is the only way to drop them.
type History struct {
	mu    sync.RWMutex
	turns []ChatTurn
}

// Append commits a copy of t at the end of the transcript.
func (h *History) Append(t ChatTurn) {
	t = t.clone()
	h.mu.Lock()
	h.turns = append(h.turns, t)
	h.mu.Unlock()
}

// Len returns the number of committed turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Turns returns deep copies of the committed turns in order. Callers may
// modify the result freely.
func (h *History) Turns() []ChatTurn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ChatTurn, len(h.turns))
	for i, t := range h.turns {
		out[i] = t.clone()
	}
	return out
}

// Clear drops every turn.
func (h *History) Clear() {
	h.mu.Lock()
	h.turns = nil
	h.mu.Unlock()
}

// ReplayContext serializes the transcript into the form sent with the next
// question. Always non-nil so it encodes as [] rather than null.
func (h *History) ReplayContext() []ReplayTurn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ReplayTurn, 0, len(h.turns))
	for _, t := range h.turns {
		out = append(out, ReplayTurn{User: t.UserQuery, Bot: t.Message, Data: t.Rows})
	}
	return out
}
