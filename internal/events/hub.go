// Package events records inbound dispatch activity for diagnostics.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Outcomes of a dispatched message.
const (
	OutcomeHandled   = "handled"
	OutcomeUnhandled = "unhandled"
	OutcomeFailed    = "failed"
	OutcomeSpawned   = "spawned"
)

// Activity is one dispatch record.
type Activity struct {
	ID      int64     `json:"id"`
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"` // notify | request
	Method  string    `json:"method"`
	Outcome string    `json:"outcome"`
	FiberID uint64    `json:"fiber_id,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// Hub is an in-memory pub/sub with a ring buffer for late readers.
type Hub struct {
	nextID atomic.Int64

	mu    sync.Mutex
	ring  []Activity
	start int
	size  int

	subs      map[int]chan Activity
	nextSubID int
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 256
	}
	return &Hub{
		ring: make([]Activity, capacity),
		subs: make(map[int]chan Activity),
	}
}

// Publish stamps a and delivers it to the buffer and subscribers.
// A nil Hub discards everything.
func (h *Hub) Publish(a Activity) {
	if h == nil {
		return
	}
	a.ID = h.nextID.Add(1)
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}

	h.mu.Lock()
	h.pushLocked(a)
	for _, ch := range h.subs {
		// Don't let slow readers block dispatch.
		select {
		case ch <- a:
		default:
		}
	}
	h.mu.Unlock()
}

// Subscribe returns a live feed and its cancel function.
func (h *Hub) Subscribe() (<-chan Activity, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Activity, 64)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// SnapshotSince returns buffered records with ID > lastID, oldest first.
func (h *Hub) SnapshotSince(lastID int64) []Activity {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Activity, 0, h.size)
	for i := 0; i < h.size; i++ {
		a := h.ring[(h.start+i)%len(h.ring)]
		if a.ID > lastID {
			out = append(out, a)
		}
	}
	return out
}

func (h *Hub) pushLocked(a Activity) {
	capacity := len(h.ring)
	if h.size < capacity {
		h.ring[(h.start+h.size)%capacity] = a
		h.size++
		return
	}
	// Overwrite oldest.
	h.ring[h.start] = a
	h.start = (h.start + 1) % capacity
}
