// Package cache implements the local filesystem fallback cache. Payloads
// fetched from remote endpoints are saved here so triggers keep working
// when every remote URL is down.
package cache

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"apirelay/internal/registry"
)

// ErrNotFound reports that no cached content exists for an endpoint.
var ErrNotFound = errors.New("no cached content")

// Config captures the parameters for the filesystem cache.
type Config struct {
	// BaseDir is the root directory where cached payloads are stored.
	BaseDir string `mapstructure:"base_dir"`
}

// Store is a filesystem-backed cache keyed by payload kind and endpoint
// name. Media payloads are kept as files; text payloads as one file per
// saved snippet.
type Store struct {
	baseDir string
	logger  *zap.Logger
}

// kindExt maps payload kinds to stored file extensions.
var kindExt = map[registry.Kind]string{
	registry.KindText:  ".txt",
	registry.KindImage: ".jpg",
	registry.KindVideo: ".mp4",
	registry.KindAudio: ".mp3",
}

// New creates a cache store rooted at cfg.BaseDir, creating it if needed.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	return &Store{baseDir: cfg.BaseDir, logger: logger}, nil
}

// Save persists one payload for an endpoint and returns the stable
// reference the caller serves from: the text itself for text payloads, a
// file path for media payloads.
func (s *Store) Save(kind registry.Kind, name string, text string, data []byte) (string, string, error) {
	dir, err := s.entryDir(kind, name)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", "", fmt.Errorf("create cache dir: %w", err)
	}

	ext := kindExt[kind]
	path := filepath.Join(dir, uuid.NewString()+ext)

	if kind == registry.KindText {
		if text == "" {
			return "", "", fmt.Errorf("no text payload to cache")
		}
		if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
			return "", "", fmt.Errorf("write cached text: %w", err)
		}
		return text, "", nil
	}

	if len(data) == 0 {
		return "", "", fmt.Errorf("no binary payload to cache")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", "", fmt.Errorf("write cached payload: %w", err)
	}
	return "", path, nil
}

// Load returns a previously cached payload for an endpoint, picked at
// random among the saved entries so repeated fallbacks vary. Text kinds
// return the content, media kinds return a file path.
func (s *Store) Load(kind registry.Kind, name string) (string, string, error) {
	dir, err := s.entryDir(kind, name)
	if err != nil {
		return "", "", err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", fmt.Errorf("%w for %s/%s", ErrNotFound, kind, name)
		}
		return "", "", fmt.Errorf("read cache dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return "", "", fmt.Errorf("%w for %s/%s", ErrNotFound, kind, name)
	}

	picked := files[rand.Intn(len(files))]
	if kind == registry.KindText {
		content, err := os.ReadFile(picked)
		if err != nil {
			return "", "", fmt.Errorf("read cached text: %w", err)
		}
		return string(content), "", nil
	}
	return "", picked, nil
}

// entryDir resolves the directory for one endpoint and rejects names that
// would escape the cache root.
func (s *Store) entryDir(kind registry.Kind, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("endpoint name is required")
	}
	dir := filepath.Join(s.baseDir, string(kind), name)

	cleanBase := filepath.Clean(s.baseDir)
	cleanDir := filepath.Clean(dir)
	if !strings.HasPrefix(cleanDir, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected for %q", name)
	}
	return dir, nil
}
