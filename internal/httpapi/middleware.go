// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package httpapi

import (
	"net"
	"net/http"
	"strings"

	"github.com/prairiepost/prairiepost/internal/auth"
)

// SessionCookieName is the cookie holding the plaintext session token.
const SessionCookieName = "session_id"

// identityMiddleware resolves the session cookie once per request and
// threads the result through the request context. Resolution never fails the
// request; handlers that need authentication layer requireAuth on top.
func (s *Server) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if cookie, err := r.Cookie(SessionCookieName); err == nil {
			token = cookie.Value
		}
		identity := s.resolver.Resolve(r.Context(), token)
		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), identity)))
	})
}

// requireAuth gates a handler on an authenticated identity.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok || !identity.IsAuthenticated() {
			writeError(w, http.StatusUnauthorized, msgAuthRequired)
			return
		}
		next(w, r)
	}
}

// currentUser returns the authenticated user from the request context.
// Only call behind requireAuth.
func currentUser(r *http.Request) *auth.User {
	identity, _ := auth.IdentityFromContext(r.Context())
	return identity.User
}

// clientIP extracts the originating client address, preferring proxy headers
// over the socket peer.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First hop is the original client.
		if first, _, found := strings.Cut(xff, ","); found {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
