// Package state persists the small cross-restart service record
// (state.json) that both the daemon and the status command read.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ServiceState is the persisted record. Every field is optional and, once
// set, only ever replaced by a newer value.
type ServiceState struct {
	LastCheck     *time.Time
	LastLogin     *time.Time
	LastPortalURL *string
}

// stateFile is the on-disk shape, timestamps in unix seconds
type stateFile struct {
	LastCheck     *int64  `json:"last_check_timestamp"`
	LastLogin     *int64  `json:"last_successful_login_timestamp"`
	LastPortalURL *string `json:"last_portal_detected"`
}

func (s ServiceState) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateFile{
		LastCheck:     toUnix(s.LastCheck),
		LastLogin:     toUnix(s.LastLogin),
		LastPortalURL: s.LastPortalURL,
	})
}

func (s *ServiceState) UnmarshalJSON(data []byte) error {
	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	s.LastCheck = fromUnix(f.LastCheck)
	s.LastLogin = fromUnix(f.LastLogin)
	s.LastPortalURL = f.LastPortalURL
	return nil
}

func toUnix(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.Unix()
	return &v
}

func fromUnix(v *int64) *time.Time {
	if v == nil {
		return nil
	}
	t := time.Unix(*v, 0)
	return &t
}

// Store reads and merge-writes the state file. It is safe for concurrent
// use, although the daemon loop is the only writer.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewStore returns a Store backed by path
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path returns the backing file path
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted state. A missing or unparsable file yields an
// empty state.
func (s *Store) Load() ServiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ServiceState {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return ServiceState{}
	}

	var st ServiceState
	if err := json.Unmarshal(data, &st); err != nil {
		return ServiceState{}
	}
	return st
}

// Update merges one check result into the record: the check time is always
// refreshed, the login time only on success and the portal URL only when
// supplied. The merged state is returned even if the write fails.
func (s *Store) Update(portalURL *string, loginSucceeded bool) (ServiceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.load()
	now := s.now()

	st.LastCheck = &now
	if loginSucceeded {
		st.LastLogin = &now
	}
	if portalURL != nil {
		url := *portalURL
		st.LastPortalURL = &url
	}

	if err := s.write(st); err != nil {
		return st, err
	}
	return st, nil
}

// Reset removes the state file
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

// write replaces the state file atomically: temp file, fsync, rename
func (s *Store) write(st ServiceState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create state temp file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write state temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync state temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close state temp file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}
