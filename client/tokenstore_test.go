package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"clubhub/core/auth"
)

func testUser() *auth.UserDTO {
	return &auth.UserDTO{
		ID:       1,
		Username: "admin",
		Active:   true,
		Role:     &auth.RoleDTO{ID: 1, Name: "Administrateur", Permissions: []string{"ADMIN"}},
	}
}

func runTokenStoreSuite(t *testing.T, s TokenStore) {
	t.Helper()
	if _, ok := s.Token(); ok {
		t.Fatalf("fresh store should hold no token")
	}
	if _, ok := s.User(); ok {
		t.Fatalf("fresh store should hold no user")
	}
	if _, ok := s.ExpiresAt(); ok {
		t.Fatalf("fresh store should hold no expiry")
	}

	expiresAt := time.Now().Add(6 * time.Hour).UTC().Truncate(time.Second)
	if err := s.Save("tok-1", testUser(), expiresAt); err != nil {
		t.Fatalf("save: %v", err)
	}
	tok, ok := s.Token()
	if !ok || tok != "tok-1" {
		t.Fatalf("token = %q, %v", tok, ok)
	}
	u, ok := s.User()
	if !ok || u.Username != "admin" || u.Role == nil || u.Role.Name != "Administrateur" {
		t.Fatalf("user = %+v, %v", u, ok)
	}
	exp, ok := s.ExpiresAt()
	if !ok || !exp.Equal(expiresAt) {
		t.Fatalf("expiry = %v, %v", exp, ok)
	}

	// last writer wins
	if err := s.Save("tok-2", testUser(), expiresAt.Add(time.Hour)); err != nil {
		t.Fatalf("save again: %v", err)
	}
	tok, _ = s.Token()
	if tok != "tok-2" {
		t.Fatalf("expected last write to win, got %q", tok)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := s.Token(); ok {
		t.Fatalf("token survived clear")
	}
	if _, ok := s.User(); ok {
		t.Fatalf("user survived clear")
	}
	if _, ok := s.ExpiresAt(); ok {
		t.Fatalf("expiry survived clear")
	}
	// clear on an empty store is fine
	if err := s.Clear(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestMemoryTokenStore(t *testing.T) {
	runTokenStoreSuite(t, NewMemoryTokenStore())
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	runTokenStoreSuite(t, NewFileTokenStore(path))
}

func TestFileTokenStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	expiresAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	if err := NewFileTokenStore(path).Save("tok", testUser(), expiresAt); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("state file mode = %v", info.Mode().Perm())
	}

	reopened := NewFileTokenStore(path)
	tok, ok := reopened.Token()
	if !ok || tok != "tok" {
		t.Fatalf("token lost across instances")
	}
	exp, ok := reopened.ExpiresAt()
	if !ok || !exp.Equal(expiresAt) {
		t.Fatalf("expiry lost across instances: %v", exp)
	}
}

func TestFileTokenStoreIgnoresCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := NewFileTokenStore(path)
	if _, ok := s.Token(); ok {
		t.Fatalf("corrupt file should read as empty")
	}
}
