// Package server coordinates client registration, room-targeted broadcast,
// and connection cleanup for the relay WebSocket transport via the Hub type.
package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/liverelay/liverelay/internal/relay"
)

// inboundEvent pairs a decoded client envelope with the client that sent it.
type inboundEvent struct {
	client *Client
	env    relay.Envelope
}

// Hub owns every live WebSocket client and runs the single event-processing
// loop: registrations, unregistrations, and inbound client events are handled
// one at a time, so a session's registry mutation plus its fan-out completes
// before the next event starts. The mutex still guards the client map because
// per-client send paths and shutdown read it from outside the loop.
//
// Hub implements relay.Broadcaster; the relay.Registry it is built with stays
// the sole authority on room membership.
type Hub struct {
	clients    map[string]*Client
	registry   *relay.Registry
	inbound    chan inboundEvent
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	logger     *zap.Logger
}

// NewHub creates a Hub bound to the given room registry. The returned Hub is
// ready to manage WebSocket connections once Run is started.
func NewHub(registry *relay.Registry, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		registry:   registry,
		inbound:    make(chan inboundEvent),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Registry returns the room registry this hub dispatches against.
func (h *Hub) Registry() *relay.Registry {
	return h.registry
}

// Run starts the hub's main event loop. This method should be called in a
// separate goroutine as it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.logger.Warn("received nil client registration; skipping")
				continue
			}
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case evt := <-h.inbound:
			// Sessions mutate the registry and fan out from here, one event
			// at a time.
			evt.client.session.HandleEvent(evt.env)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()

	h.logger.Info("client registered",
		zap.String("conn", client.id),
		zap.String("addr", client.addr),
		zap.Int("total", clientCount))

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock.
	close(client.send)

	// Disconnect cleanup: drop the connection from every room it occupies.
	// Remaining members are deliberately not notified.
	client.session.HandleDisconnect()

	h.logger.Info("client unregistered",
		zap.String("conn", client.id),
		zap.String("addr", client.addr),
		zap.Int("total", clientCount))
}

// BroadcastToRoom delivers one event to every current member of the room,
// skipping excludeID when non-empty. Delivery is fire-and-forget through each
// client's buffered send channel; members whose buffers are full are dropped
// and cleaned up.
func (h *Hub) BroadcastToRoom(roomCode, event string, payload any, excludeID string) {
	frame, err := relay.EncodeEnvelope(event, payload)
	if err != nil {
		h.logger.Error("failed to encode broadcast",
			zap.String("event", event),
			zap.String("room", roomCode),
			zap.Error(err))
		return
	}

	targets := h.roomClientSnapshot(roomCode, excludeID)
	h.logger.Debug("broadcasting to room",
		zap.String("room", roomCode),
		zap.String("event", event),
		zap.Int("targets", len(targets)))

	var failed []*Client
	for _, client := range targets {
		if !h.safeSend(client, frame) {
			failed = append(failed, client)
		}
	}
	h.removeFailedClients(failed)
}

// roomClientSnapshot resolves the room's membership to live clients under the
// read lock and returns them as a slice safe to iterate without the lock.
func (h *Hub) roomClientSnapshot(roomCode, excludeID string) []*Client {
	members := h.registry.Members(roomCode)

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(members))
	for _, id := range members {
		if id == excludeID {
			continue
		}
		if client, ok := h.clients[id]; ok {
			clients = append(clients, client)
		}
	}
	return clients
}

func (h *Hub) safeSend(client *Client, frame []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn("recovered from panic in safeSend", zap.Any("panic", r))
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	// with unregistration closing the channel.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client.id]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- frame:
		return true
	default:
		return false
	}
}

// removeFailedClients drops clients that failed to receive a frame, closes
// their channels, and clears their room membership.
func (h *Hub) removeFailedClients(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	h.mutex.Lock()
	var removed []*Client
	for _, client := range failed {
		if _, exists := h.clients[client.id]; exists {
			delete(h.clients, client.id)
			client.closed = true
			removed = append(removed, client)
			h.logger.Warn("client removed due to full send buffer",
				zap.String("conn", client.id),
				zap.String("addr", client.addr))
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock.
	for _, client := range removed {
		close(client.send)
		client.session.HandleDisconnect()
	}
}

// shutdownClients closes all active client connections.
func (h *Hub) shutdownClients() {
	h.logger.Info("shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					h.logger.Warn("error closing client connection",
						zap.String("addr", client.addr),
						zap.Error(err))
				}
			}
		}
	}

	h.logger.Info("closed client connections", zap.Int("count", len(clients)))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines
// to complete. It returns after all client connections are closed and
// goroutines have finished, or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.cancel()

	// Wait for Run() to complete.
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
