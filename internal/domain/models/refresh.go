package models

import "time"

// RefreshResult is the outcome of one refresh attempt. Degraded means the
// generator failed and Document is the previously stored snapshot.
type RefreshResult struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Degraded  bool
	Document  *Document
	Cause     error
}

const EventSnapshotRefreshed = "snapshot.refreshed"

// SnapshotEvent is published after every refresh that produced data.
type SnapshotEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Degraded   bool      `json:"degraded"`
	Close      float64   `json:"close"`
	LastUpdate string    `json:"lastUpdate"`
	At         time.Time `json:"at"`
}

func NewSnapshotEvent(r *RefreshResult) SnapshotEvent {
	ev := SnapshotEvent{ID: r.ID, Type: EventSnapshotRefreshed, Degraded: r.Degraded, At: r.StartedAt.Add(r.Duration).UTC()}
	if r.Document != nil && r.Document.Snapshot != nil {
		ev.Close = r.Document.Snapshot.Close
		ev.LastUpdate = r.Document.Snapshot.LastUpdate
	}
	return ev
}

// DisclaimerTTL is how long a disclaimer acceptance stays valid.
const DisclaimerTTL = 48 * time.Hour

type DisclaimerAck struct {
	AcceptedAt time.Time `json:"accepted_at"`
}

func (a DisclaimerAck) Valid(now time.Time) bool {
	return !a.AcceptedAt.IsZero() && !a.AcceptedAt.Before(now.Add(-DisclaimerTTL))
}
