// Package api provides HTTP handlers and the main API server logic for Midori.
//
// It exposes RESTful endpoints for accounts, the website wizard flow, and
// saved projects. Each login session owns an independent wizard controller;
// authentication and rate limiting are enforced in middleware.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/midorihq/midori/internal/auth"
	"github.com/midorihq/midori/internal/flow"
	"github.com/midorihq/midori/internal/ratelimit"
	"github.com/midorihq/midori/internal/store"
	"golang.org/x/time/rate"
)

// Server configuration constants
const (
	// DefaultAddr is the default listen address for the API server.
	DefaultAddr = ":8080"
	// DefaultReadTimeout bounds how long reading a request may take.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds how long writing a response may take.
	// Generation calls can run up to the genai timeout, so this exceeds it.
	DefaultWriteTimeout = 60 * time.Second
	// DefaultShutdownTimeout bounds graceful shutdown on context cancel.
	DefaultShutdownTimeout = 10 * time.Second

	// GlobalRequestsPerMinute caps total request throughput across clients.
	GlobalRequestsPerMinute = 100
)

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address; empty means DefaultAddr.
	Addr string
	// Clock overrides the time source for session and rate-limit decisions.
	Clock auth.Clock
}

// Option defines a functional option for API server configuration.
type Option func(*Opts)

// WithAddr overrides the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithClock overrides the server's time source.
func WithClock(c auth.Clock) Option {
	return func(o *Opts) {
		o.Clock = c
	}
}

// Server wires the store, auth service, and generation service into HTTP
// endpoints. Wizard controllers are created per login session on demand.
type Server struct {
	st      store.Store
	authSvc *auth.Service
	genSvc  flow.Service
	addr    string

	loginLimiter    *ratelimit.Limiter
	registerLimiter *ratelimit.Limiter
	globalLimiter   *rate.Limiter

	mu    sync.Mutex
	flows map[string]*flow.Controller // keyed by session token
}

// NewServer creates a server over the given store and generation service.
func NewServer(st store.Store, genSvc flow.Service, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	var authOpts []auth.Option
	var limiterOpts []ratelimit.Option
	if cfg.Clock != nil {
		authOpts = append(authOpts, auth.WithClock(cfg.Clock))
		limiterOpts = append(limiterOpts, ratelimit.WithClock(cfg.Clock))
	}

	return &Server{
		st:              st,
		authSvc:         auth.NewService(st, authOpts...),
		genSvc:          genSvc,
		addr:            addr,
		loginLimiter:    ratelimit.NewLimiter(ratelimit.LoginLimit, ratelimit.LoginWindow, limiterOpts...),
		registerLimiter: ratelimit.NewLimiter(ratelimit.RegisterLimit, ratelimit.RegisterWindow, limiterOpts...),
		globalLimiter:   rate.NewLimiter(rate.Every(time.Minute/GlobalRequestsPerMinute), GlobalRequestsPerMinute),
		flows:           make(map[string]*flow.Controller),
	}
}

// Handler builds the routed handler with middleware applied. Exposed so
// tests can drive the full stack through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler)

	mux.HandleFunc("/auth/register", s.registerHandler)
	mux.HandleFunc("/auth/login", s.loginHandler)
	mux.HandleFunc("/auth/logout", s.requireSession(s.logoutHandler))
	mux.HandleFunc("/auth/me", s.requireSession(s.meHandler))

	mux.HandleFunc("/flow/start", s.requireSession(s.startFlowHandler))
	mux.HandleFunc("/flow/state", s.requireSession(s.flowStateHandler))
	mux.HandleFunc("/flow/answers", s.requireSession(s.answerHandler))
	mux.HandleFunc("/flow/next", s.requireSession(s.nextQuestionHandler))
	mux.HandleFunc("/flow/previous", s.requireSession(s.previousQuestionHandler))
	mux.HandleFunc("/flow/goto", s.requireSession(s.gotoQuestionHandler))
	mux.HandleFunc("/flow/validate", s.requireSession(s.validateAnswersHandler))
	mux.HandleFunc("/flow/assess", s.requireSession(s.assessQualityHandler))
	mux.HandleFunc("/flow/final", s.requireSession(s.finalOutputHandler))
	mux.HandleFunc("/flow/reset", s.requireSession(s.resetFlowHandler))
	mux.HandleFunc("/flow/clear-error", s.requireSession(s.clearErrorHandler))

	mux.HandleFunc("/projects", s.requireSession(s.projectsHandler))
	mux.HandleFunc("/projects/", s.requireSession(s.projectHandler))

	return s.globalRateLimit(mux)
}

// Run starts the API server and blocks until the context is canceled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run: shutdown failed", "error", err)
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server.Run: listener failed", "error", err)
			return err
		}
		return nil
	}
}

// controllerFor returns the wizard controller for a session token, creating
// one on first use.
func (s *Server) controllerFor(token string) *flow.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.flows[token]
	if !ok {
		c = flow.NewController(s.genSvc)
		s.flows[token] = c
	}
	return c
}

// dropController discards the wizard state tied to a session token. Called
// on logout so a token reuse cannot resurrect another user's wizard.
func (s *Server) dropController(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, token)
}
