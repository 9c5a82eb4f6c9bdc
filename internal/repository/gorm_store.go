package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"OmniSpectrum/internal/domain/models"
)

const snapshotRowID = 1

// SnapshotRecord is the single row holding the current snapshot.
type SnapshotRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Doc       string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (SnapshotRecord) TableName() string { return "snapshots" }

// GormStore keeps the snapshot in a SQL table through gorm.
type GormStore struct {
	db *gorm.DB
}

// OpenSQLite opens dsn with the sqlite driver.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&SnapshotRecord{}); err != nil {
		return nil, fmt.Errorf("migrate snapshots: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Read(ctx context.Context) (*models.Document, error) {
	var rec SnapshotRecord
	err := s.db.WithContext(ctx).First(&rec, snapshotRowID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("read snapshot row: %w", err)
	}
	return models.ParseDocument([]byte(rec.Doc))
}

// Write upserts the single row inside a transaction.
func (s *GormStore) Write(ctx context.Context, doc *models.Document) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := SnapshotRecord{ID: snapshotRowID, Doc: string(doc.Raw), UpdatedAt: time.Now().UTC()}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"doc", "updated_at"}),
		}).Create(&rec).Error
		if err != nil {
			return fmt.Errorf("upsert snapshot row: %w", err)
		}
		return nil
	})
}

func (s *GormStore) Exists(ctx context.Context) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&SnapshotRecord{}).Where("id = ?", snapshotRowID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
