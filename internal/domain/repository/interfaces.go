package repository

import (
	"context"
	"time"

	"OmniSpectrum/internal/domain/models"
)

// SnapshotStore persists the single current snapshot document.
type SnapshotStore interface {
	Read(ctx context.Context) (*models.Document, error) // models.ErrSnapshotNotFound when empty
	Write(ctx context.Context, doc *models.Document) error
	Exists(ctx context.Context) (bool, error)
	Close() error
}

type EventPublisher interface {
	Publish(ctx context.Context, ev models.SnapshotEvent) error
	Close() error
}

// Locker guards refresh across replicas.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// SnapshotListener is notified whenever a new snapshot becomes current.
type SnapshotListener interface {
	OnSnapshot(doc *models.Document)
}

type Metrics interface {
	RecordRefresh(outcome string, seconds float64)
	RecordInvocation(strategy, outcome string, seconds float64)
	RecordStoreError(op string)
	RecordPublishError()
}
