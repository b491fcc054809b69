// Package hub fans radio state out to websocket observers and routes their
// commands back into the radio.
package hub

import (
	"context"
	"sync"

	"github.com/himanshub16/upnext-live/logging"
)

type opKind uint8

const (
	opRegister opKind = iota
	opUnregister
	opBroadcast
	opDirect
)

type op struct {
	kind   opKind
	client *Client
	data   []byte
}

// Hub owns the set of connected clients. Every registration, broadcast and
// direct message goes through one ordered queue drained by Run, so a client
// sees frames in the order they were enqueued.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	ops     chan op
	done    chan struct{}
	once    sync.Once
}

func New() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		ops:     make(chan op, 1024),
		done:    make(chan struct{}),
	}
}

// Run drains the queue until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-h.ops:
			h.handle(o)
		}
	}
}

func (h *Hub) handle(o op) {
	switch o.kind {
	case opRegister:
		h.mu.Lock()
		h.clients[o.client.ID] = o.client
		h.mu.Unlock()
		l := logging.L()
		l.Debug().Str(logging.FieldConnID, o.client.ID).Msg("client registered")

	case opUnregister:
		h.remove(o.client)

	case opBroadcast:
		h.mu.RLock()
		var slow []*Client
		for _, c := range h.clients {
			select {
			case c.send <- o.data:
			default:
				slow = append(slow, c)
			}
		}
		h.mu.RUnlock()
		for _, c := range slow {
			l := logging.L()
			l.Warn().Str(logging.FieldConnID, c.ID).Msg("dropping slow client")
			h.remove(c)
		}

	case opDirect:
		h.mu.RLock()
		_, ok := h.clients[o.client.ID]
		h.mu.RUnlock()
		if !ok {
			return
		}
		select {
		case o.client.send <- o.data:
		default:
			h.remove(o.client)
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	close(c.send)
	l := logging.L()
	l.Debug().Str(logging.FieldConnID, c.ID).Msg("client unregistered")
}

func (h *Hub) shutdown() {
	h.once.Do(func() { close(h.done) })
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
}

func (h *Hub) enqueue(o op) {
	select {
	case h.ops <- o:
	case <-h.done:
	}
}

func (h *Hub) Register(c *Client) {
	h.enqueue(op{kind: opRegister, client: c})
}

func (h *Hub) Unregister(c *Client) {
	h.enqueue(op{kind: opUnregister, client: c})
}

// Broadcast implements radio.Broadcaster.
func (h *Hub) Broadcast(event string, payload interface{}) {
	data, err := encode(event, payload)
	if err != nil {
		l := logging.L()
		l.Error().Err(err).Str("event", event).Msg("failed to encode broadcast")
		return
	}
	h.enqueue(op{kind: opBroadcast, data: data})
}

// SendTo queues a frame for a single client.
func (h *Hub) SendTo(c *Client, event string, payload interface{}) {
	data, err := encode(event, payload)
	if err != nil {
		l := logging.L()
		l.Error().Err(err).Str("event", event).Msg("failed to encode message")
		return
	}
	h.enqueue(op{kind: opDirect, client: c, data: data})
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
