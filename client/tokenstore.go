package client

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"clubhub/core/auth"
)

// TokenStore persists the three pieces of client auth state: the
// bearer token, the user snapshot, and the expiry timestamp. All
// writers treat it as last-writer-wins; Clear drops all three
// together.
type TokenStore interface {
	Save(token string, user *auth.UserDTO, expiresAt time.Time) error
	Token() (string, bool)
	User() (*auth.UserDTO, bool)
	ExpiresAt() (time.Time, bool)
	Clear() error
}

type memoryTokenStore struct {
	mu        sync.Mutex
	token     string
	user      *auth.UserDTO
	expiresAt time.Time
}

func NewMemoryTokenStore() TokenStore {
	return &memoryTokenStore{}
}

func (s *memoryTokenStore) Save(token string, user *auth.UserDTO, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = user
	s.expiresAt = expiresAt
	return nil
}

func (s *memoryTokenStore) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *memoryTokenStore) User() (*auth.UserDTO, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, s.user != nil
}

func (s *memoryTokenStore) ExpiresAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt, !s.expiresAt.IsZero()
}

func (s *memoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	s.expiresAt = time.Time{}
	return nil
}

type persistedAuth struct {
	Token     string        `json:"token"`
	User      *auth.UserDTO `json:"user,omitempty"`
	ExpiresAt string        `json:"expiresAt,omitempty"`
}

// fileTokenStore keeps the auth state in a single JSON file so a CLI
// session survives process restarts.
type fileTokenStore struct {
	mu   sync.Mutex
	path string
}

func NewFileTokenStore(path string) TokenStore {
	return &fileTokenStore{path: path}
}

func (s *fileTokenStore) Save(token string, user *auth.UserDTO, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := persistedAuth{Token: token, User: user}
	if !expiresAt.IsZero() {
		p.ExpiresAt = expiresAt.UTC().Format(time.RFC3339)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *fileTokenStore) load() *persistedAuth {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var p persistedAuth
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	return &p
}

func (s *fileTokenStore) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.load()
	if p == nil || p.Token == "" {
		return "", false
	}
	return p.Token, true
}

func (s *fileTokenStore) User() (*auth.UserDTO, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.load()
	if p == nil || p.User == nil {
		return nil, false
	}
	return p.User, true
}

func (s *fileTokenStore) ExpiresAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.load()
	if p == nil || p.ExpiresAt == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, p.ExpiresAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (s *fileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
