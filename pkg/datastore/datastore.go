// Package datastore is a single-file JSON key/value store. It persists the
// treasury account blob and the block monitor's cursor; everything else lives
// in the relational node store.
package datastore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Well-known keys.
const (
	KeyAccount = "ACCOUNT"
	KeyBlock   = "BLOCK"
)

// Store is a mutex-guarded map mirrored to one JSON file. Writes rewrite the
// whole file through a temp-file rename so a crash never leaves a torn blob.
type Store struct {
	path string

	mu   sync.Mutex
	data map[string]json.RawMessage
}

// Open loads the store at path, creating parent directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("datastore dir: %w", err)
	}
	s := &Store{path: path, data: map[string]json.RawMessage{}}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read datastore: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("parse datastore %s: %w", path, err)
		}
	}
	return s, nil
}

// Get unmarshals the value at key into out. The boolean reports presence.
func (s *Store) Get(key string, out any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("datastore %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key and flushes the file.
func (s *Store) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("datastore %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = raw
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	blob, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("write datastore: %w", err)
	}
	return os.Rename(tmp, s.path)
}
