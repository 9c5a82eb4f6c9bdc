package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"OmniSpectrum/internal/domain/models"
	pkgch "OmniSpectrum/pkg/clickhouse"
	"OmniSpectrum/pkg/logger"
)

// ClickHouseStore appends each snapshot to a ReplacingMergeTree keyed on a
// constant slot; reads take the newest row.
type ClickHouseStore struct {
	ch    *pkgch.Client
	db    *sql.DB
	table string
	l     *logger.Logger
}

func NewClickHouseStore(ctx context.Context, ch *pkgch.Client, database string, l *logger.Logger) (*ClickHouseStore, error) {
	table := fmt.Sprintf("%s.snapshots", database)
	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			slot UInt8,
			written_at DateTime64(3),
			doc String
		) ENGINE = ReplacingMergeTree(written_at)
		ORDER BY slot`, table),
	}
	if err := ch.InitSchema(ctx, stmts); err != nil {
		return nil, err
	}
	return &ClickHouseStore{ch: ch, db: ch.DB(), table: table, l: l}, nil
}

func (s *ClickHouseStore) Read(ctx context.Context) (*models.Document, error) {
	var doc string
	q := fmt.Sprintf("SELECT doc FROM %s ORDER BY written_at DESC LIMIT 1", s.table)
	err := s.db.QueryRowContext(ctx, q).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrSnapshotNotFound
		}
		s.l.Error("clickhouse snapshot read failed", logger.String("table", s.table), logger.Error(err))
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return models.ParseDocument([]byte(doc))
}

func (s *ClickHouseStore) Write(ctx context.Context, doc *models.Document) error {
	q := fmt.Sprintf("INSERT INTO %s (slot, written_at, doc) VALUES (?, ?, ?)", s.table)
	if _, err := s.db.ExecContext(ctx, q, uint8(0), time.Now().UTC(), string(doc.Raw)); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) Exists(ctx context.Context) (bool, error) {
	var n uint64
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count() FROM %s", s.table)).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *ClickHouseStore) Close() error { return s.ch.Close() }
