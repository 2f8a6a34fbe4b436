package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Option configures a Hub
type Option func(*Hub)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = l
	}
}

// OnRegister sets a callback run on the hub goroutine after a client joins.
// It may call SendTo but must not block.
func OnRegister(fn func(c *Client)) Option {
	return func(h *Hub) {
		h.onRegister = fn
	}
}

// OnMessage sets a callback for messages read from clients. It runs on the
// client's read goroutine.
func OnMessage(fn func(c *Client, data []byte)) Option {
	return func(h *Hub) {
		h.onMessage = fn
	}
}

type directMessage struct {
	client *Client
	msg    Message
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Name for logging
	name   string
	logger *slog.Logger

	// Registered clients
	clients map[*Client]bool

	// Outbound messages for every client
	broadcast chan Message

	// Outbound messages for a single client
	direct chan directMessage

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	done     chan struct{}
	stopOnce sync.Once

	onRegister func(c *Client)
	onMessage  func(c *Client, data []byte)

	// Mutex for client count (read-only access from outside)
	mu sync.RWMutex

	running    atomic.Bool
	broadcasts atomic.Int64
	dropped    atomic.Int64
}

// New creates a new Hub
func New(name string, opts ...Option) *Hub {
	h := &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		direct:     make(chan directMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.logger = h.logger.With("component", "hub", "hub", name)
	return h
}

// Run starts the hub's main loop and returns after Stop.
// This should be called in a goroutine
func (h *Hub) Run() {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", "client", client.ID, "clients", count)
			if h.onRegister != nil {
				h.onRegister(client)
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "client", client.ID, "clients", count)

		case d := <-h.direct:
			h.mu.Lock()
			if h.clients[d.client] {
				h.deliverLocked(d.client, d.msg)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.broadcasts.Add(1)
			h.mu.Lock()
			for client := range h.clients {
				h.deliverLocked(client, message)
			}
			h.mu.Unlock()
		}
	}
}

// deliverLocked queues msg for c, dropping c when its buffer is full.
func (h *Hub) deliverLocked(c *Client, msg Message) {
	select {
	case c.send <- msg:
	default:
		close(c.send)
		delete(h.clients, c)
		h.dropped.Add(1)
		h.logger.Warn("dropped slow client", "client", c.ID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// Stop ends Run and closes every client. It is safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		// Broadcast channel full - drop message
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// SendTo queues a message for a single client. Messages for clients that
// have already left are discarded.
func (h *Hub) SendTo(c *Client, msg Message) {
	select {
	case h.direct <- directMessage{client: c, msg: msg}:
	default:
		h.logger.Warn("direct channel full, dropping message", "client", c.ID)
	}
}

// SendJSON encodes and queues a JSON message for a single client
func (h *Hub) SendJSON(c *Client, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.SendTo(c, NewJSONMessage(data))
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Stats returns a snapshot of hub activity
func (h *Hub) Stats() Stats {
	return Stats{
		Name:       h.name,
		Clients:    h.ClientCount(),
		Broadcasts: h.broadcasts.Load(),
		Dropped:    h.dropped.Load(),
	}
}
