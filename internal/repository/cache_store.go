package repository

import (
	"context"
	"errors"
	"fmt"

	"OmniSpectrum/internal/domain/models"
	"OmniSpectrum/pkg/cache"
)

const snapshotKey = "snapshot"

// CacheStore keeps the snapshot under one key of a cache.Service. Backed by
// Redis it is shared across replicas; backed by MemoryCache it is the
// in-process store.
type CacheStore struct {
	c cache.Service
}

func NewCacheStore(c cache.Service) *CacheStore {
	return &CacheStore{c: c}
}

func (s *CacheStore) Read(ctx context.Context) (*models.Document, error) {
	b, err := s.c.GetBytes(ctx, snapshotKey)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, models.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return models.ParseDocument(b)
}

// Write replaces the value with a single SET, which is atomic for readers.
func (s *CacheStore) Write(ctx context.Context, doc *models.Document) error {
	if err := s.c.SetBytes(ctx, snapshotKey, doc.Raw, 0); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (s *CacheStore) Exists(ctx context.Context) (bool, error) {
	return s.c.Exists(ctx, snapshotKey)
}

func (s *CacheStore) Close() error { return s.c.Close() }
