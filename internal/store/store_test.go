package store

import (
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/midorihq/midori/internal/models"
)

func testUser(id, email string) models.User {
	return models.User{
		ID:           id,
		Email:        email,
		DisplayName:  "Test User",
		PasswordHash: "$2a$12$fakehashfakehashfakehash",
		CreatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestInMemoryStore_Users(t *testing.T) {
	s := NewInMemoryStore()
	u := testUser("u1", "alice@example.com")
	if err := s.CreateUser(u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CreateUser(testUser("u2", "alice@example.com")); err != models.ErrEmailTaken {
		t.Errorf("expected ErrEmailTaken for duplicate email, got %v", err)
	}

	got, err := s.GetUserByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != "u1" {
		t.Errorf("user not stored or retrieved correctly: %+v", got)
	}

	missing, err := s.GetUserByID("nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing user, got %+v", missing)
	}

	when := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	if err := s.UpdateLastLogin("u1", when); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = s.GetUserByID("u1")
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(when) {
		t.Errorf("last login not updated: %+v", got.LastLoginAt)
	}
}

func TestInMemoryStore_Sessions(t *testing.T) {
	s := NewInMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	live := models.Session{Token: "tok-live", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour)}
	stale := models.Session{Token: "tok-stale", UserID: "u1", CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour)}
	for _, sess := range []models.Session{live, stale} {
		if err := s.SaveSession(sess); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := s.GetSession("tok-live")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.UserID != "u1" {
		t.Errorf("session not stored or retrieved correctly: %+v", got)
	}

	removed, err := s.DeleteExpiredSessions(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 expired session removed, got %d", removed)
	}
	if got, _ := s.GetSession("tok-stale"); got != nil {
		t.Error("expired session should be gone")
	}
	if got, _ := s.GetSession("tok-live"); got == nil {
		t.Error("live session should survive expiry sweep")
	}

	if err := s.DeleteUserSessions("u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := s.GetSession("tok-live"); got != nil {
		t.Error("user sessions should be gone after DeleteUserSessions")
	}
}

func TestInMemoryStore_Projects(t *testing.T) {
	s := NewInMemoryStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	older := models.Project{
		ID: "p1", UserID: "u1", Name: "Bakery", Prompt: "a bakery site",
		Output:    models.FinalOutput{WebsiteConfig: models.WebsiteConfig{Name: "Bakery", Type: "business"}},
		CreatedAt: base,
	}
	newer := older
	newer.ID = "p2"
	newer.Name = "Studio"
	newer.CreatedAt = base.Add(time.Hour)
	other := older
	other.ID = "p3"
	other.UserID = "u2"

	for _, p := range []models.Project{older, newer, other} {
		if err := s.SaveProject(p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	projects, err := s.ListProjects("u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects for u1, got %d", len(projects))
	}
	if projects[0].ID != "p2" || projects[1].ID != "p1" {
		t.Errorf("projects not ordered newest first: %s, %s", projects[0].ID, projects[1].ID)
	}

	if err := s.DeleteProject("p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := s.GetProject("p1"); got != nil {
		t.Error("deleted project should be gone")
	}
	if got, _ := s.GetProject("p2"); got == nil || got.Output.WebsiteConfig.Name != "Bakery" {
		t.Errorf("project output not preserved: %+v", got)
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "midori.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Skipf("SQLite not available: %v", err)
	}
	defer s.Close()

	u := testUser("u1", "alice@example.com")
	if err := s.CreateUser(u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CreateUser(testUser("u2", "alice@example.com")); err != models.ErrEmailTaken {
		t.Errorf("expected ErrEmailTaken for duplicate email, got %v", err)
	}
	got, err := s.GetUserByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != "u1" || got.DisplayName != "Test User" {
		t.Errorf("user not stored or retrieved correctly: %+v", got)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sess := models.Session{Token: "tok", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour)}
	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gotSess, err := s.GetSession("tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotSess == nil || gotSess.UserID != "u1" {
		t.Errorf("session not stored or retrieved correctly: %+v", gotSess)
	}

	p := models.Project{
		ID: "p1", UserID: "u1", Name: "Bakery", Prompt: "a bakery site",
		Output:    models.FinalOutput{WebsiteConfig: models.WebsiteConfig{Name: "Bakery", Type: "business"}},
		CreatedAt: now,
	}
	if err := s.SaveProject(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gotProj, err := s.GetProject("p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotProj == nil || gotProj.Output.WebsiteConfig.Name != "Bakery" {
		t.Errorf("project output did not survive round trip: %+v", gotProj)
	}
}

func TestPostgresStore(t *testing.T) {
	// This test requires a running PostgreSQL instance.
	// Set the DATABASE_URL environment variable for connection string.
	connStr := getenvOrSkip(t, "DATABASE_URL")
	pgStore, err := NewPostgresStore(WithDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer pgStore.Close()

	// Clean up tables before test
	pgStore.db.Exec("DELETE FROM sessions")
	pgStore.db.Exec("DELETE FROM projects")
	pgStore.db.Exec("DELETE FROM users")

	u := testUser("u1", "alice@example.com")
	if err := pgStore.CreateUser(u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := pgStore.GetUserByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != "u1" {
		t.Error("user not stored or retrieved correctly in Postgres")
	}
}

func getenvOrSkip(t *testing.T, key string) string {
	v := ""
	if val, ok := syscall.Getenv(key); ok {
		v = val
	}
	if v == "" {
		t.Skipf("env %s not set", key)
	}
	return v
}
