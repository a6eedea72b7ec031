package core

import (
	"context"
	"sync"
	"sync/atomic"
)

// Hub fans bus events out to registered observers. Publish never blocks;
// observers that fall behind lose events.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	events     chan *Event
	done       chan struct{}
	stopOnce   sync.Once

	clients map[*Client]struct{}
	dropped atomic.Uint64
	count   atomic.Int64
}

// NewHub creates a new tap hub.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan *Event, 64),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
	}
}

// Run processes registrations and events until ctx is done. Observer event
// channels are closed on the way out.
func (h *Hub) Run(ctx context.Context) {
	defer h.stopOnce.Do(func() { close(h.done) })
	defer func() {
		for c := range h.clients {
			close(c.Events)
			delete(h.clients, c)
		}
		h.count.Store(0)
	}()

	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Store(int64(len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.Events)
				h.count.Store(int64(len(h.clients)))
			}
		case ev := <-h.events:
			h.broadcast(ev)
		case <-ctx.Done():
			return
		}
	}
}

// RegisterClient adds an observer. It fails once the hub has stopped.
func (h *Hub) RegisterClient(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// UnregisterClient removes an observer and closes its event channel.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues ev for delivery without blocking the caller.
func (h *Hub) Publish(ev *Event) {
	select {
	case h.events <- ev:
	default:
		h.dropped.Add(1)
	}
}

// Clients returns the number of registered observers.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Dropped returns how many events were lost to slow observers or a full hub.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) broadcast(ev *Event) {
	for c := range h.clients {
		select {
		case c.Events <- ev:
		default:
			// Drop if slow consumer.
			h.dropped.Add(1)
		}
	}
}
