// Package server coordinates client registration, targeted delivery, and
// broadcast fan-out for the Whismur WebSocket transport via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/whismur/whismur/internal/chat"
)

// Hub manages all WebSocket client connections. It owns the client set,
// runs the registration loop, and implements chat.Delivery so the core can
// push events to specific connections or to everyone.
type Hub struct {
	cfg     Config
	origins *originPolicy
	core    *chat.Core
	log     *slog.Logger

	clients    map[*Client]bool
	byID       map[uuid.UUID]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a hub with the given configuration. The core is attached
// separately with SetCore because the core in turn needs the hub as its
// delivery target.
func NewHub(cfg Config, log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:        cfg,
		origins:    newOriginPolicy(cfg.AllowedOrigins(), log),
		log:        log,
		clients:    make(map[*Client]bool),
		byID:       make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// SetCore attaches the chat core. Must be called before Run.
func (h *Hub) SetCore(core *chat.Core) {
	h.core = core
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("recovered from panic in safeSend", "panic", r)
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. This method should be called in a separate goroutine as
// it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client] = true
			h.byID[client.id] = client
			clientCount := len(h.clients)
			h.mutex.Unlock()

			h.core.Connect(client.id)
			h.log.Info("client registered", "addr", client.addr, "conn", client.id, "total", clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				delete(h.byID, client.id)
				client.closed = true
				clientCount := len(h.clients)
				h.mutex.Unlock()
				// Close the channel after releasing the lock
				close(client.send)
				h.log.Info("client unregistered", "addr", client.addr, "conn", client.id, "total", clientCount)
			} else {
				h.mutex.Unlock()
			}
			// Teardown is idempotent, so a client already removed by a
			// failed send still gets its presence cleared here.
			h.core.Disconnect(client.id)
		}
	}
}

// Deliver implements chat.Delivery for a single connection. Unknown ids
// are ignored; the recipient may have disconnected between the presence
// lookup and the push.
func (h *Hub) Deliver(connID uuid.UUID, event string, payload any) {
	data, err := encodeEvent(event, payload)
	if err != nil {
		h.log.Error("failed to encode event", "event", event, "err", err)
		return
	}

	h.mutex.RLock()
	client, exists := h.byID[connID]
	h.mutex.RUnlock()
	if !exists {
		return
	}

	if !h.safeSend(client, data) {
		h.removeFailedClients([]*Client{client})
	}
}

// Broadcast implements chat.Delivery fan-out to every live connection
// except the excluded ones.
func (h *Hub) Broadcast(event string, payload any, exclude ...uuid.UUID) {
	data, err := encodeEvent(event, payload)
	if err != nil {
		h.log.Error("failed to encode event", "event", event, "err", err)
		return
	}

	excluded := make(map[uuid.UUID]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	var failed []*Client
	for _, client := range h.clientSnapshot() {
		if _, skip := excluded[client.id]; skip {
			continue
		}
		if !h.safeSend(client, data) {
			failed = append(failed, client)
		}
	}
	h.removeFailedClients(failed)
}

// clientSnapshot returns a thread-safe snapshot of all current clients.
func (h *Hub) clientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// removeFailedClients removes clients whose send buffer was full and closes
// their channels. Presence cleanup happens when their read pump exits and
// the unregister branch runs.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			delete(h.byID, client.id)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			h.log.Warn("client removed due to full send buffer", "addr", client.addr, "conn", client.id)
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients gracefully closes all active client connections.
func (h *Hub) shutdownClients() {
	h.log.Info("shutting down all client connections")

	clients := h.clientSnapshot()
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					h.log.Error("error closing client connection", "addr", client.addr, "err", err)
				}
			}
		}
	}

	h.log.Info("closed client connections", "count", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all
// goroutines to complete, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
