// Package api middleware: authentication and rate limiting.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/midorihq/midori/internal/models"
)

// SessionCookieName is the cookie carrying the opaque session token for
// browser clients. API clients may send the token as a bearer token instead.
const SessionCookieName = "midori_session"

type contextKey string

const (
	userContextKey  contextKey = "midori_user"
	tokenContextKey contextKey = "midori_token"
)

// userFromContext returns the authenticated user set by requireSession.
func userFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userContextKey).(*models.User)
	return u
}

// tokenFromContext returns the session token set by requireSession.
func tokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenContextKey).(string)
	return t
}

// sessionToken extracts the session token from the Authorization header or
// the session cookie. Returns empty when neither is present.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if rest, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(rest)
		}
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// requireSession resolves the session token to a user and rejects the
// request with 401 when the session is missing, unknown, or expired.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		user, err := s.authSvc.ValidateSession(token)
		if err != nil {
			if err != models.ErrSessionNotFound {
				slog.Error("requireSession: session validation failed", "error", err)
				writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to validate session"))
				return
			}
			writeJSONResponse(w, http.StatusUnauthorized, models.Error("Authentication required"))
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		ctx = context.WithValue(ctx, tokenContextKey, token)
		next(w, r.WithContext(ctx))
	}
}

// globalRateLimit applies the server-wide token bucket to every request.
func (s *Server) globalRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.globalLimiter.Allow() {
			slog.Warn("globalRateLimit: request rejected", "path", r.URL.Path)
			writeJSONResponse(w, http.StatusTooManyRequests, models.Error("Too many requests. Please slow down."))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkEndpointLimit applies a per-client fixed-window limit and writes the
// 429 response itself when the request is rejected.
func checkEndpointLimit(w http.ResponseWriter, r *http.Request, allow func(key string) (bool, time.Duration)) bool {
	key := clientIP(r)
	allowed, retryAfter := allow(key)
	if !allowed {
		seconds := int(retryAfter.Seconds())
		if retryAfter > time.Duration(seconds)*time.Second {
			seconds++
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		slog.Warn("checkEndpointLimit: client rejected", "client", key, "path", r.URL.Path, "retryAfter", retryAfter)
		writeJSONResponse(w, http.StatusTooManyRequests, models.Error("Too many attempts. Please try again later."))
		return false
	}
	return true
}

// clientIP derives the rate-limit key for a request. The first entry of
// X-Forwarded-For wins when a proxy sets it, otherwise the remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
