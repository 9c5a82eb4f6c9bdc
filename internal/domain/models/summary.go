package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// SummaryDetail is the structured form of the composite summary.
type SummaryDetail struct {
	TiltMap       *TiltProbabilities `json:"tilt_map,omitempty"`
	ExpectedMoves map[string]float64 `json:"expected_moves,omitempty"`
	ExpansionProb *float64           `json:"expansion_prob,omitempty"`
	PatternMatch  *float64           `json:"pattern_match,omitempty"`
	TrendStrength *float64           `json:"trend_strength,omitempty"`
}

// CompositeSummary is either free text or a SummaryDetail.
type CompositeSummary struct {
	text   string
	detail *SummaryDetail
}

func TextSummary(s string) CompositeSummary {
	return CompositeSummary{text: s}
}

func DetailSummary(d SummaryDetail) CompositeSummary {
	return CompositeSummary{detail: &d}
}

func (c CompositeSummary) IsZero() bool { return c.detail == nil && c.text == "" }

func (c CompositeSummary) Text() (string, bool) { return c.text, c.detail == nil && c.text != "" }

func (c CompositeSummary) Detail() (*SummaryDetail, bool) { return c.detail, c.detail != nil }

// String renders a single line for either form.
func (c CompositeSummary) String() string {
	if c.detail == nil {
		return c.text
	}
	d := c.detail
	var parts []string
	if d.TiltMap != nil {
		dom := d.TiltMap.Dominant()
		p := map[Direction]float64{Bullish: d.TiltMap.Bull, Neutral: d.TiltMap.Neutral, Bearish: d.TiltMap.Bear}[dom]
		parts = append(parts, fmt.Sprintf("tilt %s (%.0f%%)", strings.ToLower(string(dom)), p*100))
	}
	if len(d.ExpectedMoves) > 0 {
		keys := make([]string, 0, len(d.ExpectedMoves))
		for k := range d.ExpectedMoves {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		moves := make([]string, 0, len(keys))
		for _, k := range keys {
			moves = append(moves, fmt.Sprintf("%s ±%.1f", k, d.ExpectedMoves[k]))
		}
		parts = append(parts, "moves "+strings.Join(moves, ", "))
	}
	if d.ExpansionProb != nil {
		parts = append(parts, fmt.Sprintf("expansion %.0f%%", *d.ExpansionProb*100))
	}
	if d.PatternMatch != nil {
		parts = append(parts, fmt.Sprintf("pattern %.2f", *d.PatternMatch))
	}
	if d.TrendStrength != nil {
		parts = append(parts, fmt.Sprintf("trend %.2f", *d.TrendStrength))
	}
	return strings.Join(parts, "; ")
}

func (c CompositeSummary) MarshalJSON() ([]byte, error) {
	if c.detail != nil {
		return json.Marshal(c.detail)
	}
	return json.Marshal(c.text)
}

func (c *CompositeSummary) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = CompositeSummary{}
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = TextSummary(s)
		return nil
	case '{':
		var d SummaryDetail
		if err := json.Unmarshal(b, &d); err != nil {
			return err
		}
		*c = DetailSummary(d)
		return nil
	}
	return fmt.Errorf("composite_summary: expected string or object, got %s", b)
}
