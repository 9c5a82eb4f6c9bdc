package models_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OmniSpectrum/internal/domain/models"
	"OmniSpectrum/internal/testutil"
)

func TestParseDocument_Valid(t *testing.T) {
	doc, err := models.ParseDocument(testutil.SnapshotJSON(100))
	require.NoError(t, err)
	assert.Equal(t, 100.0, doc.Snapshot.Close)
	assert.Equal(t, models.Bullish, doc.Snapshot.Tiles.DirectionalTilt.Dominant())
	assert.Equal(t, models.SellerFavorable, doc.Snapshot.Tiles.OptionSellersStatus)
	assert.NotContains(t, string(doc.Raw), "\n")

	again, err := models.ParseDocument(doc.Raw)
	require.NoError(t, err)
	assert.True(t, doc.Equal(again))
}

func TestParseDocument_RangeOrder(t *testing.T) {
	raw := strings.Replace(string(testutil.SnapshotJSON(100)), `[-300.1, 280.4]`, `[280.4, -300.1]`, 1)
	_, err := models.ParseDocument([]byte(raw))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidSnapshot))
}

func TestParseDocument_Rejects(t *testing.T) {
	t.Parallel()
	base := string(testutil.SnapshotJSON(100))
	tests := []struct {
		name string
		old  string
		new  string
	}{
		{"bad seller status", `"FAVORABLE"`, `"MAYBE"`},
		{"bad buyer status", `"CAUTION"`, `"RISKY"`},
		{"bad tilt label", `"directional_tilt": {"bear": 0.25, "neutral": 0.35, "bull": 0.40}`, `"directional_tilt": "SIDEWAYS"`},
		{"probability above one", `"volatility_expansion_prob": 0.31`, `"volatility_expansion_prob": 1.4`},
		{"pattern index above range", `"pattern_match_index": 42.5`, `"pattern_match_index": 142.5`},
		{"zero close", `"close": 100,`, `"close": 0,`},
		{"truncated", `"historicalClose"`, `"historicalClose`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw := strings.Replace(base, tt.old, tt.new, 1)
			require.NotEqual(t, base, raw)
			_, err := models.ParseDocument([]byte(raw))
			assert.ErrorIs(t, err, models.ErrInvalidSnapshot)
		})
	}
}

func TestParseDocument_TextSummaryAndLabelTilt(t *testing.T) {
	raw := string(testutil.SnapshotJSON(100))
	raw = strings.Replace(raw, `"directional_tilt": {"bear": 0.25, "neutral": 0.35, "bull": 0.40}`, `"directional_tilt": "BEARISH"`, 1)
	start := strings.Index(raw, `"composite_summary": {`)
	marker := "\"trend_strength\": 0.12\n    }"
	end := strings.Index(raw, marker) + len(marker)
	raw = raw[:start] + `"composite_summary": "Range-bound week"` + raw[end:]

	doc, err := models.ParseDocument([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, models.Bearish, doc.Snapshot.Tiles.DirectionalTilt.Dominant())
	text, ok := doc.Snapshot.Tiles.CompositeSummary.Text()
	assert.True(t, ok)
	assert.Equal(t, "Range-bound week", text)
	assert.Contains(t, string(doc.Raw), `"composite_summary":"Range-bound week"`)
}

func TestTiltDominant(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		p    models.TiltProbabilities
		want models.Direction
	}{
		{"bull max", models.TiltProbabilities{Bear: 0.2, Neutral: 0.3, Bull: 0.5}, models.Bullish},
		{"bear max", models.TiltProbabilities{Bear: 0.6, Neutral: 0.3, Bull: 0.1}, models.Bearish},
		{"neutral max", models.TiltProbabilities{Bear: 0.2, Neutral: 0.6, Bull: 0.2}, models.Neutral},
		{"bull neutral tie", models.TiltProbabilities{Bear: 0.2, Neutral: 0.4, Bull: 0.4}, models.Neutral},
		{"bear neutral tie", models.TiltProbabilities{Bear: 0.4, Neutral: 0.4, Bull: 0.2}, models.Neutral},
		{"bull bear tie", models.TiltProbabilities{Bear: 0.45, Neutral: 0.1, Bull: 0.45}, models.Neutral},
		{"all equal", models.TiltProbabilities{Bear: 1.0 / 3, Neutral: 1.0 / 3, Bull: 1.0 / 3}, models.Neutral},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, models.ProbabilityTilt(tt.p).Dominant())
		})
	}
}

func TestTiltJSONRoundTrip(t *testing.T) {
	b, err := json.Marshal(models.LabelTilt(models.Neutral))
	require.NoError(t, err)
	assert.JSONEq(t, `"NEUTRAL"`, string(b))

	var tilt models.DirectionalTilt
	require.NoError(t, json.Unmarshal([]byte(`{"bear":0.1,"neutral":0.2,"bull":0.7}`), &tilt))
	p, ok := tilt.Probabilities()
	require.True(t, ok)
	assert.Equal(t, 0.7, p.Bull)

	assert.Error(t, json.Unmarshal([]byte(`42`), &tilt))
}

func TestCompositeSummaryString(t *testing.T) {
	exp := 0.35
	s := models.DetailSummary(models.SummaryDetail{
		TiltMap:       &models.TiltProbabilities{Bear: 0.2, Neutral: 0.2, Bull: 0.6},
		ExpectedMoves: map[string]float64{"2d": 150, "1d": 100},
		ExpansionProb: &exp,
	})
	assert.Equal(t, "tilt bullish (60%); moves 1d ±100.0, 2d ±150.0; expansion 35%", s.String())
	assert.Equal(t, "plain", models.TextSummary("plain").String())
	assert.True(t, models.CompositeSummary{}.IsZero())
}

func TestRangeAbsolute(t *testing.T) {
	lo, hi := models.Range{-120.25, 80.5}.Absolute(23500.1)
	assert.Equal(t, 23379.85, lo)
	assert.Equal(t, 23580.6, hi)
	assert.True(t, models.Range{1, 1}.Valid())
	assert.False(t, models.Range{2, 1}.Valid())
}

func TestDisclaimerAck(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	assert.False(t, models.DisclaimerAck{}.Valid(now))
	assert.True(t, models.DisclaimerAck{AcceptedAt: now.Add(-47 * time.Hour)}.Valid(now))
	assert.True(t, models.DisclaimerAck{AcceptedAt: now.Add(-48 * time.Hour)}.Valid(now))
	assert.False(t, models.DisclaimerAck{AcceptedAt: now.Add(-49 * time.Hour)}.Valid(now))
}

func TestNewSnapshotEvent(t *testing.T) {
	doc, err := models.ParseDocument(testutil.SnapshotJSON(105))
	require.NoError(t, err)
	start := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	ev := models.NewSnapshotEvent(&models.RefreshResult{ID: "abc", StartedAt: start, Duration: time.Second, Document: doc})
	assert.Equal(t, models.EventSnapshotRefreshed, ev.Type)
	assert.Equal(t, 105.0, ev.Close)
	assert.Equal(t, start.Add(time.Second), ev.At)
}
