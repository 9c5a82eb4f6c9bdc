// Package testutil holds fixtures shared by package tests.
package testutil

import "fmt"

// SnapshotJSON returns a valid snapshot document with the given close.
func SnapshotJSON(close float64) []byte {
	return []byte(fmt.Sprintf(`{
  "close": %v,
  "lastUpdate": "2025-01-10 15:30 IST",
  "timestamp": "2025-01-10T10:00:00Z",
  "currentSpot": %v,
  "currentVIX": 13.4,
  "tiles": {
    "tomorrow_expected_move_pts": 120.5,
    "twoday_expected_move_pts": 170.2,
    "threeday_expected_move_pts": 208.9,
    "weekly_range_pts": [-300.1, 280.4],
    "monthly_range_pts": [-650, 610],
    "directional_tilt": {"bear": 0.25, "neutral": 0.35, "bull": 0.40},
    "short_term_envelope": [-150, 140],
    "medium_term_envelope": [-420, 400],
    "volatility_expansion_prob": 0.31,
    "option_sellers_status": "FAVORABLE",
    "option_buyers_status": "CAUTION",
    "pattern_match_index": 42.5,
    "regime_free_trend_strength": 0.12,
    "composite_summary": {
      "tilt_map": {"bear": 0.25, "neutral": 0.35, "bull": 0.40},
      "expected_moves": {"1d": 120.5, "2d": 170.2},
      "expansion_prob": 0.31,
      "pattern_match": 0.8,
      "trend_strength": 0.12
    }
  },
  "forecasts": {"tomorrow": {"median": %v, "p10": %v, "p90": %v}},
  "historicalClose": [%v, %v, %v]
}`, close, close, close+10, close-100, close+120, close-20, close-10, close))
}
