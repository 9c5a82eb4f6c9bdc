package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"OmniSpectrum/internal/domain/models"
)

// FileStore keeps the snapshot as a single JSON file. Writes go to a temp
// file in the same directory and are renamed over the target, so readers
// see either the old or the new document.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path is the canonical snapshot location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Read(ctx context.Context) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	b, err := os.ReadFile(s.path)
	s.mu.RUnlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, models.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	doc, err := models.ParseDocument(b)
	if err != nil {
		return nil, fmt.Errorf("snapshot file %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileStore) Write(ctx context.Context, doc *models.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(doc.Raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}
	return nil
}

func (s *FileStore) Exists(ctx context.Context) (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *FileStore) Close() error { return nil }
