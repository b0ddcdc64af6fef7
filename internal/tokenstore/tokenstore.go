// Package tokenstore holds the session credential pair: a short-lived access
// token kept in memory only, and a long-lived refresh token persisted to disk
// so a session survives process restarts. This is a leaf package imported by
// both api/ and session/.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FilePerms restricts the refresh token file to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the token directory.
const DirPerms = 0o700

// tokenFile is the on-disk format. Only the refresh token is persisted —
// the access token is deliberately lost on restart.
type tokenFile struct {
	Refresh string `json:"refresh"`
}

// Store manages the access/refresh token pair. Safe for concurrent use.
type Store struct {
	path string

	mu      sync.RWMutex
	access  string
	refresh string
	loaded  bool
}

// New creates a Store persisting the refresh token at path. The file is read
// lazily on first access so construction never touches the disk.
func New(path string) *Store {
	return &Store{path: path}
}

// Access returns the in-memory access token, or "" if none is held.
// If no refresh token exists the access token is treated as absent
// regardless of the in-memory value.
func (s *Store) Access() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadLocked()

	if s.refresh == "" {
		return ""
	}

	return s.access
}

// SetAccess replaces the in-memory access token and returns it.
func (s *Store) SetAccess(token string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = token

	return token
}

// Refresh returns the persisted refresh token, or "" if none exists.
func (s *Store) Refresh() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadLocked()

	return s.refresh
}

// SetRefresh writes the refresh token to disk atomically.
func (s *Store) SetRefresh(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveLocked(token); err != nil {
		return err
	}

	s.refresh = token
	s.loaded = true

	return nil
}

// Clear empties both tokens and removes the persisted refresh token.
// Used when the refresh token is confirmed invalid or the identity is revoked.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = ""
	s.refresh = ""
	s.loaded = true

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("tokenstore: removing %s: %w", s.path, err)
	}

	return nil
}

// loadLocked reads the refresh token file once. A missing or unreadable file
// is treated as "not logged in", not an error.
func (s *Store) loadLocked() {
	if s.loaded {
		return
	}

	s.loaded = true

	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return
	}

	s.refresh = tf.Refresh
}

// saveLocked writes the token file atomically (write-to-temp + rename)
// with 0600 permissions. Never logs token values.
func (s *Store) saveLocked(refresh string) error {
	data, err := json.MarshalIndent(tokenFile{Refresh: refresh}, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenstore: encoding: %w", err)
	}

	dir := filepath.Dir(s.path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("tokenstore: creating directory %s: %w", dir, mkErr)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenstore: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: writing: %w", err)
	}

	// Flush to stable storage before rename so a crash between close and
	// rename cannot leave an empty or partial token file at the final path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenstore: closing: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("tokenstore: renaming: %w", err)
	}

	success = true

	return nil
}
