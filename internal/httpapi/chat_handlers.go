// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prairiepost/prairiepost/internal/chat"
)

type postMessageRequest struct {
	Content string `json:"content"`
}

// handleChatHistory returns recent channel messages, oldest first. Both query
// parameters are optional; limit is clamped by the service and beforeId pages
// backwards through older messages.
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	var (
		limit    int
		beforeID int64
	)

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}
	if raw := r.URL.Query().Get("beforeId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "beforeId must be an integer")
			return
		}
		beforeID = parsed
	}

	messages, err := s.chat.History(r.Context(), beforeID, limit)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	// An empty channel is [], never null.
	if messages == nil {
		messages = []*chat.Message{}
	}
	writeJSON(w, http.StatusOK, map[string][]*chat.Message{"messages": messages})
}

// handlePostMessage persists a message from the authenticated user and fans
// it out to connected stream clients.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	user := currentUser(r)
	msg, err := s.chat.Post(r.Context(), user.ID, req.Content)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]*chat.Message{"message": msg})
}
