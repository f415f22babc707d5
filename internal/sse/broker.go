// Package sse streams publishing notices, run results and cache changes to
// browsers over Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/publish"
)

// Event types sent to clients.
const (
	TypeNotice          = "notice"
	TypeRunFinished     = "run.finished"
	TypeIndexChanged    = "index.changed"
	TypeCandidatesStale = "candidates.stale"
)

const (
	clientBuffer = 64
	opsBuffer    = 256
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// hub is the state owned by the broker loop.
type hub struct {
	clients   map[chan []byte]struct{}
	throttle  time.Duration
	lastStale time.Time
}

// Broker fans events out to SSE clients. One goroutine owns the client set;
// every public method hands it an operation over a channel.
type Broker struct {
	ops     chan func(*hub)
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
	h       *hub
}

var _ publish.Notifier = (*Broker)(nil)

// NewBroker starts a broker. throttle bounds how often candidates.stale is
// sent while the vault is being edited.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}
	b := &Broker{
		ops:     make(chan func(*hub), opsBuffer),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
		h:       &hub{clients: make(map[chan []byte]struct{}), throttle: throttle},
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)
	for {
		select {
		case <-b.stopCh:
			for ch := range b.h.clients {
				close(ch)
			}
			return
		case op := <-b.ops:
			op(b.h)
		}
	}
}

// do queues op for the loop. It reports false once the broker is closed.
func (b *Broker) do(op func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.ops <- op:
		return true
	case <-b.stopped:
		return false
	}
}

func (h *hub) broadcast(ev Event) {
	frame, err := encode(ev)
	if err != nil {
		return
	}
	for ch := range h.clients {
		select {
		case ch <- frame:
		default:
			// Slow client; drop rather than block the loop.
		}
	}
}

func encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", ev.Type, payload), nil
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The returned channel is closed on
// Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	added := make(chan struct{})
	queued := b.do(func(h *hub) {
		h.clients[ch] = struct{}{}
		close(added)
	})
	if !queued {
		close(ch)
		return ch
	}
	select {
	case <-added:
	case <-b.stopped:
		// The loop closes registered clients itself on the way out.
		select {
		case <-added:
		default:
			close(ch)
		}
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.do(func(h *hub) {
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	resp := make(chan int, 1)
	if !b.do(func(h *hub) { resp <- len(h.clients) }) {
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(ev Event) {
	b.do(func(h *hub) { h.broadcast(ev) })
}

// Notify broadcasts a publishing notice.
func (b *Broker) Notify(n publish.Notice) {
	b.Publish(Event{Type: TypeNotice, Data: n})
}

// RunFinished broadcasts the record of a finished run.
func (b *Broker) RunFinished(rec index.RunRecord) {
	b.Publish(Event{Type: TypeRunFinished, Data: rec})
}

// IndexChanged broadcasts a cache change reported by the vault watcher,
// followed by a throttled candidates.stale hint.
func (b *Broker) IndexChanged(kind, path string) {
	b.do(func(h *hub) {
		h.broadcast(Event{Type: TypeIndexChanged, Data: map[string]string{"kind": kind, "path": path}})
		if now := time.Now(); now.Sub(h.lastStale) >= h.throttle {
			h.lastStale = now
			h.broadcast(Event{Type: TypeCandidatesStale, Data: map[string]string{}})
		}
	})
}

// ServeHTTP streams events to one client (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}
