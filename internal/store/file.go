package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"

	"github.com/PratikDhanave/empleaido-factory/internal/fsutil"
	"github.com/PratikDhanave/empleaido-factory/internal/models"
)

// FileStore keeps the collection as a JSON array in a single file and caches
// the decoded copy until the file changes.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	cache  []models.Empleaido
	cached bool

	watcher *fsnotify.Watcher
}

// NewFileStore does no I/O; a missing file reads as an empty collection.
func NewFileStore(path string, l *slog.Logger) *FileStore {
	return &FileStore{path: filepath.Clean(path), logger: logger(l)}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// LoadAll implements Store. A corrupt file is logged and read as empty.
func (s *FileStore) LoadAll(_ context.Context) ([]models.Empleaido, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached {
		return cloneAll(s.cache), nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.Empleaido{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", s.path, err)
	}

	records := []models.Empleaido{}
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("records file is corrupt, treating as empty", "path", s.path, "error", err)
		return []models.Empleaido{}, nil
	}
	if records == nil {
		records = []models.Empleaido{}
	}

	s.cache = records
	s.cached = true
	return cloneAll(records), nil
}

// ReplaceAll implements Store.
func (s *FileStore) ReplaceAll(_ context.Context, records []models.Empleaido) error {
	if records == nil {
		records = []models.Empleaido{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode records: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fsutil.EnsureParent(s.path); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	s.cache = cloneAll(records)
	s.cached = true
	return nil
}

// Ping reports whether the directory holding the file is reachable.
func (s *FileStore) Ping(_ context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store: %s is not a directory", dir)
	}
	return nil
}

// Close stops the watcher, if any.
func (s *FileStore) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if w != nil {
		return w.Close()
	}
	return nil
}

// Invalidate drops the cached copy so the next LoadAll rereads the file.
func (s *FileStore) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.cached = false
	s.mu.Unlock()
}

// Watch invalidates the cache whenever the file is written, replaced or
// removed by anyone, until ctx is done or Close is called. The parent
// directory is watched because atomic writes replace the file's inode.
func (s *FileStore) Watch(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("store: create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("store: watch %s: %w", dir, err)
	}

	s.mu.Lock()
	if s.watcher != nil {
		s.mu.Unlock()
		_ = watcher.Close()
		return errors.New("store: already watching")
	}
	s.watcher = watcher
	s.mu.Unlock()

	lifecycle.Go(ctx, func(ctx context.Context) error {
		return s.watch(ctx, watcher)
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("records watcher stopped", "path", s.path, "error", err)
	}))
	return nil
}

func (s *FileStore) watch(ctx context.Context, w *fsnotify.Watcher) error {
	const changed = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path || event.Op&changed == 0 {
				continue
			}
			s.logger.Debug("records file changed", "path", s.path, "op", event.Op.String())
			s.Invalidate()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("records watcher error", "path", s.path, "error", err)
		}
	}
}
