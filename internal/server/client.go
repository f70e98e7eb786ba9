// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/liverelay/liverelay/internal/relay"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Client represents one WebSocket connection. It carries the connection
// state, the buffered send channel the hub fans out through, and the relay
// session that dispatches this connection's events.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	session        *relay.Session
	addr           string
	closed         bool
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
	logger         *zap.Logger
}

// NewClient creates a Client for the given WebSocket connection. Each client
// receives a fresh connection identifier and its own rate limiter; the send
// channel is buffered so fan-out never blocks the hub.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, cfg *Config, logger *zap.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	c := &Client{
		id:             uuid.NewString(),
		conn:           conn,
		send:           make(chan []byte, 256),
		hub:            hub,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
		logger:         logger,
	}
	c.session = relay.NewSession(c.id, hub.Registry(), c, hub, logger)
	return c
}

// ID returns the connection identifier rooms track this client by.
func (c *Client) ID() string {
	return c.id
}

// Emit delivers one event to this connection. It implements relay.Emitter;
// delivery is best-effort through the hub's guarded send path.
func (c *Client) Emit(event string, payload any) {
	frame, err := relay.EncodeEnvelope(event, payload)
	if err != nil {
		c.logger.Error("failed to encode event",
			zap.String("event", event),
			zap.String("conn", c.id),
			zap.Error(err))
		return
	}
	c.hub.safeSend(c, frame)
}

// setupReadConnection configures read deadlines and the pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("error setting initial read deadline", zap.String("addr", c.addr), zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Warn("error setting read deadline in pong handler", zap.String("addr", c.addr), zap.Error(err))
		}
		return nil
	})
}

// handleReadError logs the read failure appropriately and reports whether the
// read loop should stop.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("message exceeded maximum size",
			zap.String("addr", c.addr),
			zap.Int64("limit", c.maxMessageSize))
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.logger.Info("client disconnected", zap.String("addr", c.addr), zap.Error(err))
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Info("client connection closed", zap.String("addr", c.addr), zap.Error(err))
	default:
		c.logger.Warn("websocket read error", zap.String("addr", c.addr), zap.Error(err))
	}
	return true
}

// checkRateLimit reports whether the client is within its message budget.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.logger.Warn("rate limit exceeded; discarding message",
			zap.String("addr", c.addr),
			zap.Int("burst", c.rateLimit.Burst),
			zap.Duration("interval", c.rateLimit.RefillInterval))
		return false
	}
	return true
}

// processFrame decodes a raw frame into an event envelope and hands it to the
// hub's event loop. Malformed frames are logged and skipped.
func (c *Client) processFrame(raw []byte) {
	var env relay.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Warn("invalid frame", zap.String("addr", c.addr), zap.Error(err))
		return
	}
	if env.Event == "" {
		c.logger.Warn("frame missing event name", zap.String("addr", c.addr))
		return
	}

	select {
	case c.hub.inbound <- inboundEvent{client: c, env: env}:
	case <-c.hub.ctx.Done():
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				c.logger.Warn("error closing connection in readPump", zap.Error(err))
			}
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processFrame(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.handleFrame(frame, ok) {
				return
			}
		case <-ticker.C:
			if !c.handlePing() {
				return
			}
		}
	}
}

// closeConnection closes the WebSocket connection, ignoring expected close errors.
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("error closing connection in writePump", zap.Error(err))
		}
	}
}

// handleFrame writes one outgoing frame plus anything queued behind it and
// reports whether the pump should keep running.
func (c *Client) handleFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Warn("error setting write deadline", zap.String("addr", c.addr), zap.Error(err))
		return false
	}

	if !ok {
		// The hub closed the send channel.
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			if !isExpectedCloseError(err) {
				c.logger.Warn("error writing close message", zap.String("addr", c.addr), zap.Error(err))
			}
		}
		return false
	}

	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return false
	}

	if _, err := w.Write(frame); err != nil {
		c.logger.Warn("error writing frame", zap.String("addr", c.addr), zap.Error(err))
		return false
	}

	// Drain anything already queued into the same writer.
	n := len(c.send)
	for i := 0; i < n; i++ {
		if _, err := w.Write([]byte{'\n'}); err != nil {
			return false
		}
		if _, err := w.Write(<-c.send); err != nil {
			return false
		}
	}

	if err := w.Close(); err != nil {
		return false
	}
	return true
}

// handlePing sends a ping to keep the connection alive.
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		return false
	}
	return true
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
