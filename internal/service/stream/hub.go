// Package stream fans new snapshots out to connected push clients.
package stream

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"OmniSpectrum/internal/domain/models"
	"OmniSpectrum/pkg/logger"
)

const defaultBuffer = 4

// Frame is the message pushed to stream clients.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeFrame wraps the stored bytes of doc in a snapshot frame.
func EncodeFrame(doc *models.Document) ([]byte, error) {
	return json.Marshal(Frame{Type: "snapshot", Data: doc.Bytes()})
}

// Subscriber receives encoded frames. Frames are dropped when it falls behind.
type Subscriber struct {
	ch      chan []byte
	dropped atomic.Int64
}

func (s *Subscriber) C() <-chan []byte { return s.ch }

func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscriber]struct{}
	buf    int
	closed bool
	log    *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{subs: make(map[*Subscriber]struct{}), buf: defaultBuffer, log: log}
}

func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{ch: make(chan []byte, h.buf)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.ch)
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// OnSnapshot broadcasts doc to every subscriber without blocking.
func (h *Hub) OnSnapshot(doc *models.Document) {
	frame, err := EncodeFrame(doc)
	if err != nil {
		h.log.Error("encode stream frame", logger.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.ch <- frame:
		default:
			s.dropped.Add(1)
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
}
