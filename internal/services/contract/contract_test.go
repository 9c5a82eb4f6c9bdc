package contract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OmniSpectrum/internal/domain/models"
	"OmniSpectrum/internal/testutil"
)

func TestParseValid(t *testing.T) {
	doc, err := Parse(testutil.SnapshotJSON(23500))
	require.NoError(t, err)
	assert.Equal(t, 23500.0, doc.Snapshot.Close)
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()
	base := string(testutil.SnapshotJSON(100))
	tests := []struct {
		name string
		old  string
		new  string
	}{
		{"range with three items", `[-150, 140]`, `[-150, 0, 140]`},
		{"tilt label outside enum", `"directional_tilt": {"bear": 0.25, "neutral": 0.35, "bull": 0.40}`, `"directional_tilt": "UP"`},
		{"missing tiles", `"tiles"`, `"tilez"`},
		{"string close", `"close": 100,`, `"close": "100",`},
		{"not json", `{`, `[`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw := strings.Replace(base, tt.old, tt.new, 1)
			require.NotEqual(t, base, raw)
			assert.ErrorIs(t, Validate([]byte(raw)), models.ErrInvalidSnapshot)
		})
	}
}

func TestValidateAllowsNullExpansionProb(t *testing.T) {
	raw := strings.Replace(string(testutil.SnapshotJSON(100)), `"volatility_expansion_prob": 0.31`, `"volatility_expansion_prob": null`, 1)
	doc, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Nil(t, doc.Snapshot.Tiles.VolatilityExpansionProb)
}
