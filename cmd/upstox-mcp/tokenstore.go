package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrNoToken is returned when no access token has been stored yet.
var ErrNoToken = errors.New("no access token stored")

// StoredToken is the persisted form of an Upstox access token.
// Upstox tokens expire daily, so the obtained timestamp is kept for
// operators to judge freshness.
type StoredToken struct {
	AccessToken string    `json:"access_token"`
	ObtainedAt  time.Time `json:"obtained_at"`
}

// FileTokenStore persists the Upstox access token to a JSON file.
type FileTokenStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileTokenStore creates a token store that persists to the given path.
// The directory is created automatically on first write.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// GetToken reads the stored token from disk.
// Returns ErrNoToken if the file is missing, corrupt, or holds no token.
func (s *FileTokenStore) GetToken() (*StoredToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoToken
		}
		return nil, err
	}

	var token StoredToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, ErrNoToken // corrupt file, treat as absent
	}
	if token.AccessToken == "" {
		return nil, ErrNoToken
	}
	return &token, nil
}

// SaveToken writes the token to disk with 0600 permissions.
func (s *FileTokenStore) SaveToken(token *StoredToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}

	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}
