package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// FileStore is the default Store: a single JSON blob on disk, written
// atomically via a temp file + rename under an advisory file lock so a
// crash mid-write never leaves a corrupt cache behind — callers MUST be
// able to crash without producing an unusable file.
type FileStore struct {
	path string
	lock *flock.Flock

	mu      sync.RWMutex
	entries map[string]Entry
}

// NewFileStore creates a FileStore persisting to path. Load must be called
// before Get/Set are meaningful; an unloaded store behaves as empty.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:    path,
		lock:    flock.New(path + ".lock"),
		entries: make(map[string]Entry),
	}
}

// Load reads the backing file into memory. A missing or corrupt file is
// treated as an empty cache, the same recovery rule Load applies everywhere.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.entries = make(map[string]Entry)
			return nil
		}
		// Any other read error (permissions, a directory where a file is
		// expected) is also non-fatal to the build: start from empty.
		s.entries = make(map[string]Entry)
		return nil
	}

	var entries map[string]Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		// Corrupt file: treated as empty, matching the load contract.
		s.entries = make(map[string]Entry)
		return nil
	}
	s.entries = entries
	return nil
}

// Save writes the in-memory state atomically: serialize, lock, write to a
// sibling temp file, fsync, rename over the destination, unlock.
func (s *FileStore) Save() error {
	s.mu.RLock()
	b, err := json.Marshal(s.entries)
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	if err := s.lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = s.lock.Unlock() }()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".cache-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

func (s *FileStore) Get(name string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	return e, ok
}

func (s *FileStore) Set(name string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = e
}

func (s *FileStore) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, name)
}

func (s *FileStore) Close() error {
	return nil
}
