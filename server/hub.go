package server

import (
	"path"
	"sync"

	"github.com/kbukum/assetflow/logger"
)

// Message is one server-sent event.
type Message struct {
	Event string // SSE event name
	Data  []byte // Event data, usually JSON
}

// Client is a connected event-stream client.
type Client struct {
	id     string
	events chan Message
}

// NewClient creates a client with a buffered event channel.
func NewClient(id string) *Client {
	return &Client{id: id, events: make(chan Message, 64)}
}

// ID returns the client's unique identifier.
func (c *Client) ID() string { return c.id }

// Events returns the channel for receiving events.
func (c *Client) Events() <-chan Message { return c.events }

// send queues msg and reports false when the client is too slow.
func (c *Client) send(msg Message) bool {
	select {
	case c.events <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() { close(c.events) }

// Hub manages event-stream clients and broadcasts messages to them.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	done       chan struct{}
	stopped    bool
	mu         sync.RWMutex
	log        *logger.Logger
}

type broadcastMsg struct {
	pattern string
	msg     Message
}

// NewHub creates a hub. Run must be started before clients register.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMsg, 64),
		done:       make(chan struct{}),
		log:        log.WithComponent("reload"),
	}
}

// Run is the hub's event loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Client registered", logger.Fields("client_id", client.id, "total_clients", n))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Client unregistered", logger.Fields("client_id", client.id, "total_clients", n))

		case b := <-h.broadcast:
			h.deliver(b.pattern, b.msg)
		}
	}
}

// Stop closes every client and ends Run. Safe to call multiple times.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.close()
		delete(h.clients, id)
	}
}

// Register adds a client. It reports false once the hub is stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast sends msg to every client.
func (h *Hub) Broadcast(msg Message) {
	h.BroadcastToPattern("*", msg)
}

// BroadcastToPattern sends msg to clients whose id matches pattern.
func (h *Hub) BroadcastToPattern(pattern string, msg Message) {
	select {
	case h.broadcast <- broadcastMsg{pattern: pattern, msg: msg}:
	case <-h.done:
	}
}

// deliver runs on the hub goroutine.
func (h *Hub) deliver(pattern string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for id, client := range h.clients {
		matched, err := path.Match(pattern, id)
		if err != nil {
			h.log.Error("Pattern match error", logger.Fields("pattern", pattern, logger.FieldError, err.Error()))
			return
		}
		if !matched {
			continue
		}
		if client.send(msg) {
			sent++
		} else {
			h.log.Warn("Client channel full, dropping message", logger.Fields("client_id", id))
		}
	}
	h.log.Debug("Broadcast sent", logger.Fields("event", msg.Event, "pattern", pattern, "match_count", sent))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClientIDs returns the ids of connected clients.
func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}
