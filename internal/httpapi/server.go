// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/prairiepost/prairiepost/internal/auth"
	"github.com/prairiepost/prairiepost/internal/chat"
)

// Config carries the listener and cookie settings for the API server.
type Config struct {
	// Addr is the listen address in "host:port" form.
	Addr string
	// SessionTTL bounds the session cookie Max-Age. It should match the TTL
	// the auth service stamps on issued sessions.
	SessionTTL time.Duration
	// CookieSecure marks the session cookie Secure. Leave false only for
	// plain-HTTP development setups.
	CookieSecure bool
}

// Server is the public-facing HTTP server: auth endpoints, chat REST
// endpoints, and the realtime stream.
type Server struct {
	addr         string
	auth         *auth.Service
	resolver     *auth.Resolver
	chat         *chat.Service
	stream       http.Handler
	logger       *slog.Logger
	sessionTTL   time.Duration
	cookieSecure bool

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer wires the API server. The stream handler serves GET
// /api/chat/stream and is mounted as-is; it performs its own authorization.
func NewServer(cfg Config, authSvc *auth.Service, resolver *auth.Resolver, chatSvc *chat.Service, stream http.Handler, logger *slog.Logger) (*Server, error) {
	if authSvc == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if resolver == nil {
		return nil, oops.Errorf("identity resolver is required")
	}
	if chatSvc == nil {
		return nil, oops.Errorf("chat service is required")
	}
	if stream == nil {
		return nil, oops.Errorf("stream handler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = auth.DefaultSessionTTL
	}

	return &Server{
		addr:         cfg.Addr,
		auth:         authSvc,
		resolver:     resolver,
		chat:         chatSvc,
		stream:       stream,
		logger:       logger,
		sessionTTL:   cfg.SessionTTL,
		cookieSecure: cfg.CookieSecure,
	}, nil
}

// Router builds the route table. Exposed for handler tests.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.identityMiddleware)

	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/profile/password", s.requireAuth(s.handleChangePassword)).Methods(http.MethodPost)

	api := r.PathPrefix("/api/chat").Subrouter()
	api.HandleFunc("/history", s.handleChatHistory).Methods(http.MethodGet)
	api.HandleFunc("/messages", s.requireAuth(s.handlePostMessage)).Methods(http.MethodPost)
	api.Handle("/stream", s.stream).Methods(http.MethodGet)

	return r
}

// Start begins serving. It returns an error channel that receives any serve
// failure after startup; the channel closes on graceful shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr.Error())
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server, waiting for in-flight requests up
// to the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
