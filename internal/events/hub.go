// Package events fans run transitions and alerts out to live subscribers
// such as dashboard websocket connections.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/taskmaster/internal/alert"
	"github.com/flemzord/taskmaster/internal/history"
)

// Event kinds.
const (
	KindRun   = "run"
	KindAlert = "alert"
)

// Event is one message on the hub. Exactly one of Run and Alert is set.
type Event struct {
	Kind  string       `json:"kind"`
	Time  time.Time    `json:"time"`
	Run   *history.Run `json:"run,omitempty"`
	Alert *alert.Event `json:"alert,omitempty"`
}

const defaultBuffer = 16

// Hub is an in-memory fan-out. Publish never blocks: a subscriber whose
// buffer is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	seq     uint64
	dropped atomic.Uint64
	now     func() time.Time
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan Event), now: time.Now}
}

// Publish delivers e to every subscriber that has room.
func (h *Hub) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = h.now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.dropped.Add(1)
		}
	}
}

// PublishRun publishes a run transition. It is a cron.RunHook.
func (h *Hub) PublishRun(run history.Run) {
	h.Publish(Event{Kind: KindRun, Run: &run})
}

// PublishAlert publishes a dispatched alert. It is an alert.Dispatcher observer.
func (h *Hub) PublishAlert(ev alert.Event) {
	h.Publish(Event{Kind: KindAlert, Time: ev.Timestamp, Alert: &ev})
}

// Subscribe returns a buffered channel of events and a function that
// unsubscribes and closes it. A buffer <= 0 uses a default size.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.seq++
	id := h.seq
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }
