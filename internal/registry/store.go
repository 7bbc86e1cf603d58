package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store abstracts catalog persistence. The registry only loads the whole
// catalog and saves the whole catalog; the file layout underneath is not
// its concern.
type Store interface {
	Load() (map[string]rawDefinition, error)
	Save(defs map[string]rawDefinition) error
}

// FileStore persists the catalog as a single JSON document on disk.
type FileStore struct {
	path string
}

// NewFileStore builds a FileStore rooted at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads and decodes the catalog file. A missing file is an error so
// the registry can fall through to its seed catalog.
func (s *FileStore) Load() (map[string]rawDefinition, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", s.path, err)
	}
	defs := make(map[string]rawDefinition)
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", s.path, err)
	}
	return defs, nil
}

// Save writes the full catalog atomically-enough for a single writer:
// marshal, then one WriteFile.
func (s *FileStore) Save(defs map[string]rawDefinition) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	data, err := json.MarshalIndent(defs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write catalog %s: %w", s.path, err)
	}
	return nil
}

// seedStore adapts a read-only seed file; Save is rejected so the default
// catalog can never be clobbered.
type seedStore struct {
	inner *FileStore
}

// NewSeedStore wraps a catalog file as a read-only Store.
func NewSeedStore(path string) Store {
	return seedStore{inner: NewFileStore(path)}
}

func (s seedStore) Load() (map[string]rawDefinition, error) {
	return s.inner.Load()
}

func (s seedStore) Save(map[string]rawDefinition) error {
	return fmt.Errorf("seed catalog is read-only")
}
