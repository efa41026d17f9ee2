// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prairiepost/prairiepost/internal/auth"
)

// heartbeatInterval is how often an SSE comment is written to keep
// intermediaries from idling out the connection.
const heartbeatInterval = 30 * time.Second

// DefaultCookieName is the session cookie the handshake reads.
const DefaultCookieName = "session_id"

// identityResolver maps a session token to an identity.
type identityResolver interface {
	Resolve(ctx context.Context, token string) auth.Identity
}

// Handler serves the SSE stream endpoint. Each request runs the connection
// state machine: Connecting -> Authorizing -> Open -> Closed. Authorization
// happens before any event flows; anything but an authenticated identity is
// refused with 401.
type Handler struct {
	hub        *Hub
	resolver   identityResolver
	logger     *slog.Logger
	cookieName string

	heartbeat time.Duration
}

// NewHandler creates the SSE handler.
func NewHandler(hub *Hub, resolver identityResolver, logger *slog.Logger) *Handler {
	return &Handler{
		hub:        hub,
		resolver:   resolver,
		logger:     logger,
		cookieName: DefaultCookieName,
		heartbeat:  heartbeatInterval,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	state := StateConnecting

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	state = StateAuthorizing
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		// Standalone mode: no middleware ran, resolve the cookie here.
		var token string
		if cookie, err := r.Cookie(h.cookieName); err == nil {
			token = cookie.Value
		}
		identity = h.resolver.Resolve(r.Context(), token)
	}
	if !identity.IsAuthenticated() {
		h.logger.Debug("gateway handshake refused",
			"state", state.String(),
			"identity", identity.State.String(),
		)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"Authentication required."}`)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	conn := h.hub.Register(identity.User.ID, identity.User.DisplayName)
	defer h.hub.Unregister(conn)
	state = StateOpen
	h.logger.Debug("gateway stream open",
		"state", state.String(),
		"conn_id", conn.ID.String(),
	)

	// Initial comment so clients see bytes immediately and proxies commit
	// to streaming.
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, open := <-conn.Events():
			if !open {
				// The hub dropped this connection (slow consumer).
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, event.Data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
