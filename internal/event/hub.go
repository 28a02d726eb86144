// Package event broadcasts intake turn events to dashboard subscribers.
package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TurnEvent describes one committed conversational turn.
type TurnEvent struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	Kind        string    `json:"kind"`
	StageBefore string    `json:"stage_before"`
	StageAfter  string    `json:"stage_after"`
	Reply       string    `json:"reply,omitempty"`
	Protocol    string    `json:"protocol,omitempty"`
	At          time.Time `json:"at"`
}

// Hub fans TurnEvents out to subscribers. Slow subscribers drop events
// rather than blocking the publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]chan TurnEvent
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan TurnEvent)}
}

// Subscribe returns a buffered event channel and an unsubscribe func.
func (h *Hub) Subscribe() (<-chan TurnEvent, func()) {
	id := uuid.NewString()
	ch := make(chan TurnEvent, 32)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
		h.mu.Unlock()
	}
}

// Publish delivers the event to every subscriber, assigning an ID and
// timestamp when absent.
func (h *Hub) Publish(ev TurnEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
