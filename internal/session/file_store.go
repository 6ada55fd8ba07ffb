package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// DefaultStateDir is the default directory for session files, relative to the
// user's home directory.
const DefaultStateDir = ".config/scrdeskctl"

const (
	sessionFileName = "session.json"
	pendingFileName = "oauth_state.json"
)

// FileStore persists the token pair and pending OAuth state as JSON files.
//
// SECURITY: the store handles credentials. Files are written 0600 inside a
// 0700 directory, writes go through a temp file and rename so a concurrent
// reader never sees a torn pair, and token values are never logged.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates a file-backed store rooted at dir. An empty dir
// selects DefaultStateDir under the user's home directory.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, DefaultStateDir)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	return &FileStore{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string {
	return s.dir
}

// SessionPath returns the path of the token pair file. The state broadcaster
// watches this path to pick up changes made by other processes.
func (s *FileStore) SessionPath() string {
	return filepath.Join(s.dir, sessionFileName)
}

// Put overwrites any stored token pair with the given one.
func (s *FileStore) Put(pair TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeFile(sessionFileName, pair); err != nil {
		slog.Warn("session token storage failed",
			"event", "token_store_failed",
			"error", err.Error(),
		)
		return err
	}

	slog.Debug("session token pair stored",
		"event", "token_stored",
		"has_refresh_token", pair.RefreshToken != "",
		"expires_in", pair.ExpiresIn,
	)
	return nil
}

// Get returns the stored token pair, if any.
func (s *FileStore) Get() (TokenPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pair TokenPair
	ok, err := s.readFile(sessionFileName, &pair)
	return pair, ok, err
}

// Clear removes the token pair and any pending OAuth state.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.removeFile(sessionFileName); err != nil {
		return err
	}
	if err := s.removeFile(pendingFileName); err != nil {
		return err
	}

	slog.Debug("session cleared", "event", "session_cleared")
	return nil
}

// PutPending overwrites the pending OAuth flow state.
func (s *FileStore) PutPending(flow PendingFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFile(pendingFileName, flow)
}

// TakePending returns and removes the pending OAuth flow state.
func (s *FileStore) TakePending() (PendingFlow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var flow PendingFlow
	ok, err := s.readFile(pendingFileName, &flow)
	if err != nil || !ok {
		return PendingFlow{}, false, err
	}
	if err := s.removeFile(pendingFileName); err != nil {
		return PendingFlow{}, false, err
	}
	return flow, true, nil
}

// writeFile marshals v and atomically replaces name in the store directory.
// The temp file plus rename keeps the whole document atomic with respect to
// readers in this and other processes.
func (s *FileStore) writeFile(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	target := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

// readFile unmarshals name into v. Returns ok=false if the file is absent.
func (s *FileStore) readFile(name string, v interface{}) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	return true, nil
}

func (s *FileStore) removeFile(name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}
