// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/prairiepost/prairiepost/internal/auth"
)

type registerRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Email           string `json:"email"`
	DisplayName     string `json:"displayName"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type userResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// handleRegister creates an account and logs the new user straight in.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	user, _, token, err := s.auth.Register(r.Context(), auth.RegisterInput{
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Email:           req.Email,
		DisplayName:     req.DisplayName,
	})
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, map[string]userResponse{"user": {
		ID:          user.ID.String(),
		Username:    user.Username,
		DisplayName: user.DisplayName,
	}})
}

// handleLogin exchanges credentials for a session cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	_, token, err := s.auth.Login(r.Context(), req.Username, req.Password, clientIP(r))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	s.setSessionCookie(w, token)
	w.WriteHeader(http.StatusNoContent)
}

// handleLogout ends the current session. Logging out without one is fine.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var token string
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		token = cookie.Value
	}

	if err := s.auth.Logout(r.Context(), token); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleChangePassword rotates the password and logs the user out
// everywhere, including this device.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	user := currentUser(r)
	if err := s.auth.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// setSessionCookie installs the session token with the hardening attributes
// the browser honors: inaccessible to scripts, same-site, whole-origin path.
func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
