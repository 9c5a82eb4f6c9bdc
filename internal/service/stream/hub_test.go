package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OmniSpectrum/internal/domain/models"
	"OmniSpectrum/internal/testutil"
)

func TestHub_BroadcastAndDrop(t *testing.T) {
	doc, err := models.ParseDocument(testutil.SnapshotJSON(105))
	require.NoError(t, err)

	h := NewHub(nil)
	s := h.Subscribe()
	assert.Equal(t, 1, h.Len())

	h.OnSnapshot(doc)
	var f Frame
	require.NoError(t, json.Unmarshal(<-s.C(), &f))
	assert.Equal(t, "snapshot", f.Type)
	assert.JSONEq(t, string(doc.Raw), string(f.Data))

	for i := 0; i < defaultBuffer+3; i++ {
		h.OnSnapshot(doc)
	}
	assert.Equal(t, int64(3), s.Dropped())

	h.Unsubscribe(s)
	assert.Equal(t, 0, h.Len())
	for range s.C() {
	}

	h.Close()
	late := h.Subscribe()
	_, open := <-late.C()
	assert.False(t, open)
}
