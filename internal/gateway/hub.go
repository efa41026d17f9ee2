// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

// Package gateway fans chat events out to live client connections over
// Server-Sent Events.
package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/prairiepost/prairiepost/internal/chat"
	"github.com/prairiepost/prairiepost/pkg/errutil"
)

// connBufferSize is the per-connection event buffer. A client that cannot
// drain this many events is considered dead and gets closed.
const connBufferSize = 64

// EventChatNew is the event name for newly posted chat messages.
const EventChatNew = "chat:new"

// ConnState tracks a connection through its lifecycle.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateAuthorizing
	StateOpen
	StateClosed
)

// String returns the state name for logging.
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthorizing:
		return "authorizing"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Event is a named payload pushed to clients.
type Event struct {
	Name string
	Data []byte
}

// Connection is one live client stream. It carries only the public identity
// of its user; credentials never enter the gateway.
type Connection struct {
	ID          ulid.ULID
	UserID      ulid.ULID
	DisplayName string

	events    chan Event
	closeOnce sync.Once
}

// Events returns the channel the connection's writer drains. The channel is
// closed when the connection is removed from the hub.
func (c *Connection) Events() <-chan Event {
	return c.events
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.events)
	})
}

// MetricsRecorder receives gateway lifecycle signals. Implementations must be
// safe for concurrent use.
type MetricsRecorder interface {
	ConnectionOpened()
	ConnectionClosed()
	EventDropped()
}

type nopRecorder struct{}

func (nopRecorder) ConnectionOpened() {}
func (nopRecorder) ConnectionClosed() {}
func (nopRecorder) EventDropped()     {}

// Hub is the in-process registry of open connections. State is ephemeral: a
// restart drops every connection and clients reconnect.
type Hub struct {
	mu      sync.RWMutex
	conns   map[ulid.ULID]*Connection
	logger  *slog.Logger
	metrics MetricsRecorder
}

// NewHub creates a Hub. A nil metrics recorder is replaced with a no-op.
func NewHub(logger *slog.Logger, metrics MetricsRecorder) *Hub {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Hub{
		conns:   make(map[ulid.ULID]*Connection),
		logger:  logger,
		metrics: metrics,
	}
}

// Register adds an authorized connection for the given user and returns it
// in the Open state. A user may hold several connections (one per tab).
func (h *Hub) Register(userID ulid.ULID, displayName string) *Connection {
	conn := &Connection{
		ID:          ulid.Make(),
		UserID:      userID,
		DisplayName: displayName,
		events:      make(chan Event, connBufferSize),
	}

	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.mu.Unlock()

	h.metrics.ConnectionOpened()
	h.logger.Debug("gateway connection opened",
		"conn_id", conn.ID.String(),
		"user_id", userID.String(),
	)
	return conn
}

// Unregister removes a connection and closes its event channel. Safe to call
// more than once.
//
// The close happens under the write lock while sends happen under the read
// lock, so a broadcast can never hit a closed channel.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	_, present := h.conns[conn.ID]
	delete(h.conns, conn.ID)
	conn.close()
	h.mu.Unlock()

	if present {
		h.metrics.ConnectionClosed()
		h.logger.Debug("gateway connection closed",
			"conn_id", conn.ID.String(),
			"user_id", conn.UserID.String(),
		)
	}
}

// ActiveConnections returns the number of open connections.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast delivers an event to every connection open at call time.
// Delivery is at-most-once: a connection whose buffer is full is closed and
// removed rather than blocking the channel for everyone else.
func (h *Hub) Broadcast(event Event) {
	var dead []*Connection

	h.mu.RLock()
	for _, conn := range h.conns {
		select {
		case conn.events <- event:
		default:
			dead = append(dead, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range dead {
		h.metrics.EventDropped()
		h.logger.Warn("gateway connection too slow, dropping it",
			"conn_id", conn.ID.String(),
			"user_id", conn.UserID.String(),
			"event", event.Name,
		)
		h.Unregister(conn)
	}
}

// Close removes every connection, closing their event channels. Used on
// server shutdown; clients see the stream end and reconnect later.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		h.Unregister(conn)
	}
}

// NotifyMessage implements chat.Notifier: new messages become chat:new
// events for every open connection.
func (h *Hub) NotifyMessage(message *chat.Message) {
	data, err := json.Marshal(message)
	if err != nil {
		errutil.LogError(h.logger, "failed to encode chat message for broadcast", err)
		return
	}
	h.Broadcast(Event{Name: EventChatNew, Data: data})
}

// Compile-time interface check.
var _ chat.Notifier = (*Hub)(nil)
