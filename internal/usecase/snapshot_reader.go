package usecase

import (
	"context"
	"time"

	"OmniSpectrum/internal/domain/models"
	drepo "OmniSpectrum/internal/domain/repository"
	"OmniSpectrum/internal/service/cache"
)

const currentKey = "current"

// SnapshotReader serves the stored snapshot. It never triggers inference.
type SnapshotReader struct {
	store drepo.SnapshotStore
	local *cache.TTLCache[*models.Document]
	ttl   time.Duration
}

// NewSnapshotReader keeps the last read in memory for ttl; zero disables it.
func NewSnapshotReader(store drepo.SnapshotStore, ttl time.Duration) *SnapshotReader {
	return &SnapshotReader{store: store, local: cache.NewTTLCache[*models.Document](), ttl: ttl}
}

func (r *SnapshotReader) Get(ctx context.Context) (*models.Document, error) {
	if r.ttl > 0 {
		if doc, ok := r.local.Get(currentKey); ok {
			return doc, nil
		}
	}
	doc, err := r.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	if r.ttl > 0 {
		r.local.Set(currentKey, doc, r.ttl)
	}
	return doc, nil
}

// HasData reports whether the store holds a snapshot.
func (r *SnapshotReader) HasData(ctx context.Context) (bool, error) {
	return r.store.Exists(ctx)
}

// OnSnapshot replaces the in-memory copy so reads after a refresh are fresh.
func (r *SnapshotReader) OnSnapshot(doc *models.Document) {
	if r.ttl > 0 {
		r.local.Set(currentKey, doc, r.ttl)
	} else {
		r.local.Delete(currentKey)
	}
}
