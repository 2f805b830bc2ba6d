package chat

import (
	"log/slog"
	"slices"
	"sync"
)

type removeRequest struct {
	match func(*Conn) bool
	reply chan int
}

// Hub is a Registry whose connection list is owned by a single goroutine.
// Run must be started before use; after Close, Add is a no-op and
// Snapshot returns nothing.
type Hub struct {
	conns  []*Conn
	logger *slog.Logger

	// Channels for managing connections
	register  chan *Conn
	remove    chan removeRequest
	snapshot  chan chan []*Conn
	count     chan chan int
	done      chan struct{}
	closeOnce sync.Once
}

// Ensure Hub implements Registry
var _ Registry = (*Hub)(nil)

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:   logger.With(slog.String("component", "hub")),
		register: make(chan *Conn),
		remove:   make(chan removeRequest),
		snapshot: make(chan chan []*Conn),
		count:    make(chan chan int),
		done:     make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	h.logger.Info("hub started")
	for {
		select {
		case c := <-h.register:
			h.conns = append(h.conns, c)
			h.logger.Debug("connection registered",
				slog.String("conn_id", c.ID()),
				slog.Int("total_connections", len(h.conns)))

		case req := <-h.remove:
			before := len(h.conns)
			h.conns = slices.DeleteFunc(h.conns, req.match)
			removed := before - len(h.conns)
			req.reply <- removed
			if removed > 0 {
				h.logger.Debug("connections unregistered",
					slog.Int("removed", removed),
					slog.Int("total_connections", len(h.conns)))
			}

		case reply := <-h.snapshot:
			reply <- slices.Clone(h.conns)

		case reply := <-h.count:
			reply <- len(h.conns)

		case <-h.done:
			h.logger.Info("hub stopped", slog.Int("dropped_connections", len(h.conns)))
			h.conns = nil
			return
		}
	}
}

// Close stops the event loop
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) Add(c *Conn) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *Hub) RemoveMatching(match func(*Conn) bool) int {
	req := removeRequest{match: match, reply: make(chan int, 1)}
	select {
	case h.remove <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) Snapshot() []*Conn {
	reply := make(chan []*Conn, 1)
	select {
	case h.snapshot <- reply:
		return <-reply
	case <-h.done:
		return nil
	}
}

func (h *Hub) Count() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}
