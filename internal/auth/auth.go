// Package auth implements account registration, login, and session
// validation for Midori.
//
// Passwords are hashed with bcrypt and never stored in plain text. Sessions
// are opaque random tokens persisted in the store; validation checks expiry
// against an injected clock so tests can control time.
package auth

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/midorihq/midori/internal/models"
	"github.com/midorihq/midori/internal/store"
	"github.com/midorihq/midori/internal/util"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the bcrypt work factor for password hashing.
	BcryptCost = 12

	// SessionTTL is the lifetime of a standard login session.
	SessionTTL = 24 * time.Hour
	// RememberMeTTL is the lifetime of a session created with "remember me".
	RememberMeTTL = 30 * 24 * time.Hour
)

// Clock abstracts time for session expiry decisions.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Service provides account and session operations backed by a store.
type Service struct {
	store store.Store
	clock Clock
}

// Opts holds configuration options for the auth service.
type Opts struct {
	// Clock overrides the time source; nil means SystemClock.
	Clock Clock
}

// Option defines a functional option for auth service configuration.
type Option func(*Opts)

// WithClock overrides the service's time source.
func WithClock(c Clock) Option {
	return func(o *Opts) {
		o.Clock = c
	}
}

// NewService creates an auth service on top of the given store.
func NewService(s store.Store, opts ...Option) *Service {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{store: s, clock: clock}
}

// Register creates a new account and returns the stored user.
// The email is lowercased and trimmed before storage so lookups are
// case-insensitive.
func (s *Service) Register(email, password, displayName string) (*models.User, error) {
	email = normalizeEmail(email)
	if err := models.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := models.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		slog.Error("Service.Register: password hashing failed", "error", err)
		return nil, err
	}

	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err := s.store.CreateUser(user); err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			slog.Debug("Service.Register: email already registered", "email", email)
			return nil, models.ErrEmailTaken
		}
		slog.Error("Service.Register: store create failed", "error", err)
		return nil, err
	}
	slog.Info("Service.Register: account created", "userID", user.ID)
	return &user, nil
}

// Login verifies credentials and creates a new session. rememberMe extends
// the session lifetime from SessionTTL to RememberMeTTL.
//
// Unknown email and wrong password both return ErrInvalidCredentials so the
// response does not reveal which accounts exist.
func (s *Service) Login(email, password string, rememberMe bool) (*models.User, *models.Session, error) {
	email = normalizeEmail(email)
	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		slog.Error("Service.Login: store lookup failed", "error", err)
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Debug("Service.Login: password mismatch", "userID", user.ID)
		return nil, nil, models.ErrInvalidCredentials
	}

	token, err := util.GenerateSessionToken()
	if err != nil {
		slog.Error("Service.Login: token generation failed", "error", err)
		return nil, nil, err
	}
	now := s.clock.Now().UTC()
	ttl := SessionTTL
	if rememberMe {
		ttl = RememberMeTTL
	}
	session := models.Session{
		Token:     token,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.store.SaveSession(session); err != nil {
		slog.Error("Service.Login: session save failed", "error", err, "userID", user.ID)
		return nil, nil, err
	}
	if err := s.store.UpdateLastLogin(user.ID, now); err != nil {
		slog.Warn("Service.Login: last login update failed", "error", err, "userID", user.ID)
	}
	user.LastLoginAt = &now
	slog.Info("Service.Login: session created", "userID", user.ID, "rememberMe", rememberMe)
	return user, &session, nil
}

// Logout deletes the session for the given token. Unknown tokens are not an
// error; logout is idempotent.
func (s *Service) Logout(token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(token)
}

// ValidateSession resolves a token to its user. Expired sessions are deleted
// on sight and reported as ErrSessionNotFound.
func (s *Service) ValidateSession(token string) (*models.User, error) {
	if token == "" {
		return nil, models.ErrSessionNotFound
	}
	session, err := s.store.GetSession(token)
	if err != nil {
		slog.Error("Service.ValidateSession: store lookup failed", "error", err)
		return nil, err
	}
	if session == nil {
		return nil, models.ErrSessionNotFound
	}
	if session.Expired(s.clock.Now()) {
		if err := s.store.DeleteSession(token); err != nil {
			slog.Warn("Service.ValidateSession: expired session cleanup failed", "error", err)
		}
		return nil, models.ErrSessionNotFound
	}
	user, err := s.store.GetUserByID(session.UserID)
	if err != nil {
		slog.Error("Service.ValidateSession: user lookup failed", "error", err, "userID", session.UserID)
		return nil, err
	}
	if user == nil {
		return nil, models.ErrSessionNotFound
	}
	return user, nil
}

// SweepExpiredSessions removes sessions whose expiry has passed.
func (s *Service) SweepExpiredSessions() (int, error) {
	return s.store.DeleteExpiredSessions(s.clock.Now())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
