// Package store provides storage backends for Midori.
//
// This file implements an SQLite-backed store for users, sessions, and projects.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"github.com/midorihq/midori/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	slog.Debug("Opening SQLite database connection")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateUser(u models.User) error {
	_, err := s.db.Exec(
		`INSERT INTO users (id, email, display_name, password_hash, created_at, last_login_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, nilIfEmpty(u.DisplayName), u.PasswordHash, u.CreatedAt, u.LastLoginAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return models.ErrEmailTaken
		}
		slog.Error("SQLiteStore CreateUser failed", "error", err, "userID", u.ID)
		return fmt.Errorf("failed to insert user: %w", err)
	}
	slog.Debug("SQLiteStore CreateUser succeeded", "userID", u.ID)
	return nil
}

func (s *SQLiteStore) GetUserByEmail(email string) (*models.User, error) {
	row := s.db.QueryRow(
		`SELECT id, email, display_name, password_hash, created_at, last_login_at FROM users WHERE email = ?`,
		email,
	)
	u, err := scanUserRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUserByEmail failed", "error", err)
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByID(id string) (*models.User, error) {
	row := s.db.QueryRow(
		`SELECT id, email, display_name, password_hash, created_at, last_login_at FROM users WHERE id = ?`,
		id,
	)
	u, err := scanUserRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUserByID failed", "error", err, "userID", id)
		return nil, fmt.Errorf("failed to query user by id: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) UpdateLastLogin(userID string, when time.Time) error {
	_, err := s.db.Exec(`UPDATE users SET last_login_at = ? WHERE id = ?`, when, userID)
	if err != nil {
		slog.Error("SQLiteStore UpdateLastLogin failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveSession(sess models.Session) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		sess.Token, sess.UserID, sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "userID", sess.UserID)
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(token string) (*models.Session, error) {
	row := s.db.QueryRow(
		`SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = ?`,
		token,
	)
	var sess models.Session
	err := row.Scan(&sess.Token, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err)
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return &sess, nil
}

func (s *SQLiteStore) DeleteSession(token string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err)
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteUserSessions(userID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore DeleteUserSessions failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteExpiredSessions(now time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		slog.Error("SQLiteStore DeleteExpiredSessions failed", "error", err)
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	slog.Debug("SQLiteStore DeleteExpiredSessions succeeded", "removed", removed)
	return int(removed), nil
}

func (s *SQLiteStore) SaveProject(p models.Project) error {
	outputJSON, err := json.Marshal(p.Output)
	if err != nil {
		slog.Error("SQLiteStore SaveProject marshal failed", "error", err, "projectID", p.ID)
		return fmt.Errorf("failed to marshal project output: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO projects (id, user_id, name, prompt, output_json, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.Prompt, string(outputJSON), p.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveProject failed", "error", err, "projectID", p.ID)
		return fmt.Errorf("failed to insert project: %w", err)
	}
	slog.Debug("SQLiteStore SaveProject succeeded", "projectID", p.ID)
	return nil
}

func (s *SQLiteStore) GetProject(id string) (*models.Project, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, name, prompt, output_json, created_at FROM projects WHERE id = ?`,
		id,
	)
	p, err := scanProjectRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetProject failed", "error", err, "projectID", id)
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListProjects(userID string) ([]models.Project, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, name, prompt, output_json, created_at FROM projects WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		slog.Error("SQLiteStore ListProjects query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			slog.Error("SQLiteStore ListProjects scan failed", "error", err)
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListProjects rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate project rows: %w", err)
	}
	return projects, nil
}

func (s *SQLiteStore) DeleteProject(id string) error {
	_, err := s.db.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore DeleteProject failed", "error", err, "projectID", id)
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
