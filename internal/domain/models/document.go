package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document pairs a decoded snapshot with the exact bytes that were stored.
// Reads serve Raw so repeated GETs are byte-identical.
type Document struct {
	Snapshot *Snapshot
	Raw      json.RawMessage
}

// ParseDocument decodes and validates raw snapshot JSON.
func ParseDocument(b []byte) (*Document, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	var s Snapshot
	if err := json.Unmarshal(buf.Bytes(), &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Document{Snapshot: &s, Raw: buf.Bytes()}, nil
}

func (d *Document) Bytes() []byte {
	if d == nil {
		return nil
	}
	return d.Raw
}

func (d *Document) Equal(o *Document) bool {
	if d == nil || o == nil {
		return d == o
	}
	return bytes.Equal(d.Raw, o.Raw)
}
