package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OmniSpectrum/internal/domain/models"
	"OmniSpectrum/internal/testutil"
)

func TestAckLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "omni", "disclaimer.json")
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	assert.ErrorIs(t, requireAck(path, now), errDisclaimer)

	require.NoError(t, saveAck(path, now))
	assert.NoError(t, requireAck(path, now.Add(47*time.Hour)))

	assert.ErrorIs(t, requireAck(path, now.Add(49*time.Hour)), errDisclaimer)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRender(t *testing.T) {
	doc, err := models.ParseDocument(testutil.SnapshotJSON(23500))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, render(&buf, doc.Snapshot))
	out := buf.String()
	assert.Contains(t, out, "23500.00")
	assert.Contains(t, out, "23379.50 - 23620.50")
	assert.Contains(t, out, "BULLISH (bear 25% / neutral 35% / bull 40%)")
	assert.Contains(t, out, "sellers FAVORABLE")
	assert.Contains(t, out, "Weekly range")
}
