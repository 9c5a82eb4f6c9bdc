package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Direction string

const (
	Bullish Direction = "BULLISH"
	Neutral Direction = "NEUTRAL"
	Bearish Direction = "BEARISH"
)

func (d Direction) Valid() bool {
	switch d {
	case Bullish, Neutral, Bearish:
		return true
	}
	return false
}

// TiltProbabilities is the probability form of a directional tilt.
type TiltProbabilities struct {
	Bear    float64 `json:"bear"`
	Neutral float64 `json:"neutral"`
	Bull    float64 `json:"bull"`
}

// Dominant returns the direction with the highest probability.
// Any tie at the top resolves to NEUTRAL.
func (p TiltProbabilities) Dominant() Direction {
	switch {
	case p.Bull > p.Bear && p.Bull > p.Neutral:
		return Bullish
	case p.Bear > p.Bull && p.Bear > p.Neutral:
		return Bearish
	default:
		return Neutral
	}
}

func (p TiltProbabilities) validate() error {
	for name, v := range map[string]float64{"bear": p.Bear, "neutral": p.Neutral, "bull": p.Bull} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s probability %v out of [0,1]", name, v)
		}
	}
	return nil
}

type TiltKind int

const (
	TiltUnset TiltKind = iota
	TiltLabel
	TiltDistribution
)

// DirectionalTilt is either a categorical label or a probability triple.
// On the wire it is a JSON string or a {bear,neutral,bull} object.
type DirectionalTilt struct {
	kind  TiltKind
	label Direction
	probs TiltProbabilities
}

func LabelTilt(d Direction) DirectionalTilt {
	return DirectionalTilt{kind: TiltLabel, label: d}
}

func ProbabilityTilt(p TiltProbabilities) DirectionalTilt {
	return DirectionalTilt{kind: TiltDistribution, probs: p}
}

func (t DirectionalTilt) Kind() TiltKind { return t.kind }

func (t DirectionalTilt) Label() (Direction, bool) {
	return t.label, t.kind == TiltLabel
}

func (t DirectionalTilt) Probabilities() (TiltProbabilities, bool) {
	return t.probs, t.kind == TiltDistribution
}

// Dominant resolves the tilt to a single direction.
func (t DirectionalTilt) Dominant() Direction {
	switch t.kind {
	case TiltLabel:
		return t.label
	case TiltDistribution:
		return t.probs.Dominant()
	}
	return Neutral
}

func (t DirectionalTilt) Validate() error {
	switch t.kind {
	case TiltLabel:
		if !t.label.Valid() {
			return fmt.Errorf("unknown label %q", t.label)
		}
		return nil
	case TiltDistribution:
		return t.probs.validate()
	}
	return fmt.Errorf("missing")
}

func (t DirectionalTilt) MarshalJSON() ([]byte, error) {
	switch t.kind {
	case TiltLabel:
		return json.Marshal(string(t.label))
	case TiltDistribution:
		return json.Marshal(t.probs)
	}
	return []byte("null"), nil
}

func (t *DirectionalTilt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = DirectionalTilt{}
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = LabelTilt(Direction(s))
		return nil
	case '{':
		var p TiltProbabilities
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		*t = ProbabilityTilt(p)
		return nil
	}
	return fmt.Errorf("directional_tilt: expected string or object, got %s", b)
}
