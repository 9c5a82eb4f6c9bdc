package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OmniSpectrum/internal/domain/models"
	domrepo "OmniSpectrum/internal/domain/repository"
	"OmniSpectrum/internal/testutil"
	"OmniSpectrum/pkg/cache"
)

func mustDoc(t *testing.T, close float64) *models.Document {
	t.Helper()
	doc, err := models.ParseDocument(testutil.SnapshotJSON(close))
	require.NoError(t, err)
	return doc
}

// exerciseStore checks the contract every backend shares.
func exerciseStore(t *testing.T, s domrepo.SnapshotStore) {
	ctx := context.Background()

	_, err := s.Read(ctx)
	require.ErrorIs(t, err, models.ErrSnapshotNotFound)
	ok, err := s.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	first := mustDoc(t, 100)
	require.NoError(t, s.Write(ctx, first))
	got, err := s.Read(ctx)
	require.NoError(t, err)
	assert.True(t, first.Equal(got))

	second := mustDoc(t, 105)
	require.NoError(t, s.Write(ctx, second))
	got, err = s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 105.0, got.Snapshot.Close)
	assert.Equal(t, string(second.Raw), string(got.Raw))

	again, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, got.Raw, again.Raw)

	ok, err = s.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileStore(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "data", "omnispectrum.json")
	s := NewFileStore(path)
	exerciseStore(t, s)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "omnispectrum.json", entries[0].Name())
}

func TestFileStore_CorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "omnispectrum.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"close":`), 0o644))

	_, err := NewFileStore(path).Read(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidSnapshot)
	assert.NotErrorIs(t, err, models.ErrSnapshotNotFound)
}

func TestCacheStore_Memory(t *testing.T) {
	t.Parallel()
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(time.Hour))
	s := NewCacheStore(mc)
	defer s.Close()
	exerciseStore(t, s)
}

func TestCacheStore_Redis(t *testing.T) {
	t.Parallel()
	db, mock := redismock.NewClientMock()
	s := NewCacheStore(cache.NewRedisCacheWithClient(db, "omni"))
	doc := mustDoc(t, 100)
	ctx := context.Background()

	mock.ExpectGet("omni:snapshot").RedisNil()
	mock.ExpectSet("omni:snapshot", []byte(doc.Raw), 0).SetVal("OK")
	mock.ExpectGet("omni:snapshot").SetVal(string(doc.Raw))
	mock.ExpectExists("omni:snapshot").SetVal(1)

	_, err := s.Read(ctx)
	require.ErrorIs(t, err, models.ErrSnapshotNotFound)
	require.NoError(t, s.Write(ctx, doc))
	got, err := s.Read(ctx)
	require.NoError(t, err)
	assert.True(t, doc.Equal(got))
	ok, err := s.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_SQLite(t *testing.T) {
	t.Parallel()
	db, err := OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	s, err := NewGormStore(db)
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)

	var n int64
	require.NoError(t, db.Model(&SnapshotRecord{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
