// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

// Package httpapi exposes the authentication and chat operations over HTTP.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/prairiepost/prairiepost/pkg/errutil"
)

// Client-facing messages. Credential failures stay deliberately vague so the
// response cannot be used to probe which usernames exist.
const (
	msgInvalidCredentials = "Invalid username or password."
	msgAccountLocked      = "Account temporarily locked. Try again later."
	msgAuthRequired       = "Authentication required."
	msgInternalError      = "Internal server error."
	msgBadRequest         = "Invalid request body."
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // headers already sent
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeErrors(w http.ResponseWriter, status int, errs []string) {
	writeJSON(w, status, map[string][]string{"errors": errs})
}

// writeServiceError maps an oops error code to the HTTP contract. Anything
// unrecognized is a 500 with a generic body; the details go to the log, not
// the client.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		errutil.LogError(logger, "request failed", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	switch oopsErr.Code() {
	case "AUTH_VALIDATION", "CHAT_VALIDATION":
		writeErrors(w, http.StatusBadRequest, contextErrors(oopsErr, err))
	case "CONFLICT":
		writeErrors(w, http.StatusConflict, contextErrors(oopsErr, err))
	case "AUTH_INVALID_CREDENTIALS":
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
	case "AUTH_ACCOUNT_LOCKED":
		writeError(w, http.StatusLocked, msgAccountLocked)
	default:
		errutil.LogError(logger, "request failed", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
	}
}

// contextErrors extracts the collected validation messages from an oops
// error's context, falling back to the error message itself.
func contextErrors(oopsErr oops.OopsError, err error) []string {
	if list, ok := oopsErr.Context()["errors"].([]string); ok && len(list) > 0 {
		return list
	}
	return []string{err.Error()}
}
