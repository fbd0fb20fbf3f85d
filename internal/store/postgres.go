// Package store provides storage backends for Midori.
//
// This file implements a PostgreSQL-backed store for users, sessions, and projects.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/lib/pq"
	"github.com/midorihq/midori/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening Postgres database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

func (s *PostgresStore) CreateUser(u models.User) error {
	_, err := s.db.Exec(
		`INSERT INTO users (id, email, display_name, password_hash, created_at, last_login_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, nilIfEmpty(u.DisplayName), u.PasswordHash, u.CreatedAt, u.LastLoginAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrEmailTaken
		}
		slog.Error("PostgresStore CreateUser failed", "error", err, "userID", u.ID)
		return fmt.Errorf("failed to insert user: %w", err)
	}
	slog.Debug("PostgresStore CreateUser succeeded", "userID", u.ID)
	return nil
}

func (s *PostgresStore) GetUserByEmail(email string) (*models.User, error) {
	row := s.db.QueryRow(
		`SELECT id, email, display_name, password_hash, created_at, last_login_at FROM users WHERE email = $1`,
		email,
	)
	u, err := scanUserRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUserByEmail failed", "error", err)
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByID(id string) (*models.User, error) {
	row := s.db.QueryRow(
		`SELECT id, email, display_name, password_hash, created_at, last_login_at FROM users WHERE id = $1`,
		id,
	)
	u, err := scanUserRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUserByID failed", "error", err, "userID", id)
		return nil, fmt.Errorf("failed to query user by id: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) UpdateLastLogin(userID string, when time.Time) error {
	_, err := s.db.Exec(`UPDATE users SET last_login_at = $1 WHERE id = $2`, when, userID)
	if err != nil {
		slog.Error("PostgresStore UpdateLastLogin failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveSession(sess models.Session) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (token) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
		sess.Token, sess.UserID, sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "userID", sess.UserID)
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSession(token string) (*models.Session, error) {
	row := s.db.QueryRow(
		`SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = $1`,
		token,
	)
	var sess models.Session
	err := row.Scan(&sess.Token, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err)
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return &sess, nil
}

func (s *PostgresStore) DeleteSession(token string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err)
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteUserSessions(userID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore DeleteUserSessions failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteExpiredSessions(now time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		slog.Error("PostgresStore DeleteExpiredSessions failed", "error", err)
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	slog.Debug("PostgresStore DeleteExpiredSessions succeeded", "removed", removed)
	return int(removed), nil
}

func (s *PostgresStore) SaveProject(p models.Project) error {
	outputJSON, err := json.Marshal(p.Output)
	if err != nil {
		slog.Error("PostgresStore SaveProject marshal failed", "error", err, "projectID", p.ID)
		return fmt.Errorf("failed to marshal project output: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO projects (id, user_id, name, prompt, output_json, created_at) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, prompt = EXCLUDED.prompt, output_json = EXCLUDED.output_json`,
		p.ID, p.UserID, p.Name, p.Prompt, string(outputJSON), p.CreatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore SaveProject failed", "error", err, "projectID", p.ID)
		return fmt.Errorf("failed to insert project: %w", err)
	}
	slog.Debug("PostgresStore SaveProject succeeded", "projectID", p.ID)
	return nil
}

func (s *PostgresStore) GetProject(id string) (*models.Project, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, name, prompt, output_json, created_at FROM projects WHERE id = $1`,
		id,
	)
	p, err := scanProjectRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetProject failed", "error", err, "projectID", id)
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListProjects(userID string) ([]models.Project, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, name, prompt, output_json, created_at FROM projects WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		slog.Error("PostgresStore ListProjects query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			slog.Error("PostgresStore ListProjects scan failed", "error", err)
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListProjects rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate project rows: %w", err)
	}
	return projects, nil
}

func (s *PostgresStore) DeleteProject(id string) error {
	_, err := s.db.Exec(`DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore DeleteProject failed", "error", err, "projectID", id)
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
