// Package store provides storage backends for Midori.
//
// It includes an in-memory store for tests and development, plus SQLite and
// PostgreSQL backed stores for persistent deployments. All backends persist
// user accounts, login sessions, and saved projects.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/midorihq/midori/internal/models"
)

// Opts holds configuration options for store backends.
type Opts struct {
	// DSN is the data source name: a file path for SQLite, a connection
	// string for PostgreSQL.
	DSN string
}

// Option defines a functional option for store configuration.
type Option func(*Opts)

// WithDSN sets the data source name for the store backend.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else, which is assumed to be a file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// Store defines the persistence operations shared by all backends.
//
// Lookups return (nil, nil) when no matching row exists; callers decide
// whether absence is an error.
type Store interface {
	CreateUser(u models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	UpdateLastLogin(userID string, when time.Time) error

	SaveSession(s models.Session) error
	GetSession(token string) (*models.Session, error)
	DeleteSession(token string) error
	DeleteUserSessions(userID string) error
	DeleteExpiredSessions(now time.Time) (int, error)

	SaveProject(p models.Project) error
	GetProject(id string) (*models.Project, error)
	ListProjects(userID string) ([]models.Project, error)
	DeleteProject(id string) error

	Close() error
}

// InMemoryStore is a mutex-guarded in-memory store. It backs tests and
// local development runs where no database is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	users    map[string]models.User    // keyed by user ID
	sessions map[string]models.Session // keyed by token
	projects map[string]models.Project // keyed by project ID
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:    make(map[string]models.User),
		sessions: make(map[string]models.Session),
		projects: make(map[string]models.Project),
	}
}

func (s *InMemoryStore) CreateUser(u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return models.ErrEmailTaken
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *InMemoryStore) GetUserByEmail(email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			copied := u
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) GetUserByID(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	copied := u
	return &copied, nil
}

func (s *InMemoryStore) UpdateLastLogin(userID string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	u.LastLoginAt = &when
	s.users[userID] = u
	return nil
}

func (s *InMemoryStore) SaveSession(sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Token] = sess
	return nil
}

func (s *InMemoryStore) GetSession(token string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, nil
	}
	copied := sess
	return &copied, nil
}

func (s *InMemoryStore) DeleteSession(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *InMemoryStore) DeleteUserSessions(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, token)
		}
	}
	return nil
}

func (s *InMemoryStore) DeleteExpiredSessions(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed, nil
}

func (s *InMemoryStore) SaveProject(p models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	return nil
}

func (s *InMemoryStore) GetProject(id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, nil
	}
	copied := p
	return &copied, nil
}

// ListProjects returns the user's projects ordered newest first.
func (s *InMemoryStore) ListProjects(userID string) ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var projects []models.Project
	for _, p := range s.projects {
		if p.UserID == userID {
			projects = append(projects, p)
		}
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return projects, nil
}

func (s *InMemoryStore) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
