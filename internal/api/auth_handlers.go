// Package api account handlers: registration, login, logout, and profile.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/midorihq/midori/internal/models"
)

// registerHandler handles POST /auth/register
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("registerHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	if !checkEndpointLimit(w, r, s.registerLimiter.Allow) {
		return
	}

	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("registerHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("registerHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	user, err := s.authSvc.Register(req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
			return
		}
		slog.Error("registerHandler registration failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create account"))
		return
	}

	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Account created", user))
}

// loginHandler handles POST /auth/login
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("loginHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	if !checkEndpointLimit(w, r, s.loginLimiter.Allow) {
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("loginHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("loginHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	user, session, err := s.authSvc.Login(req.Email, req.Password, req.Remember)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			writeJSONResponse(w, http.StatusUnauthorized, models.Error(err.Error()))
			return
		}
		slog.Error("loginHandler login failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to log in"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"user":    user,
		"token":   session.Token,
		"expires": session.ExpiresAt,
	}))
}

// logoutHandler handles POST /auth/logout
func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("logoutHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	token := tokenFromContext(r.Context())
	if err := s.authSvc.Logout(token); err != nil {
		slog.Error("logoutHandler logout failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to log out"))
		return
	}
	s.dropController(token)

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Logged out", nil))
}

// meHandler handles GET /auth/me
func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(userFromContext(r.Context())))
}

// healthHandler handles GET /health
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}
