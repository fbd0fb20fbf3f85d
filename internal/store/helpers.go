package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/midorihq/midori/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanUserRow scans a User from a single sql.Row.
func scanUserRow(row *sql.Row) (*models.User, error) {
	var u models.User
	var displayName sql.NullString
	var lastLogin sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &displayName, &u.PasswordHash, &u.CreatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	u.DisplayName = displayName.String
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	return &u, nil
}

// scanProjectRow scans a Project from a single sql.Row.
func scanProjectRow(row *sql.Row) (*models.Project, error) {
	var p models.Project
	var outputJSON string
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Prompt, &outputJSON, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(outputJSON), &p.Output); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project output: %w", err)
	}
	return &p, nil
}

// scanProject scans a Project from sql.Rows.
func scanProject(rows *sql.Rows) (models.Project, error) {
	var p models.Project
	var outputJSON string
	err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Prompt, &outputJSON, &p.CreatedAt)
	if err != nil {
		return p, fmt.Errorf("scan project failed: %w", err)
	}
	if err := json.Unmarshal([]byte(outputJSON), &p.Output); err != nil {
		return p, fmt.Errorf("failed to unmarshal project output: %w", err)
	}
	return p, nil
}
