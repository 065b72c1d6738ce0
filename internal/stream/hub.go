// Package stream broadcasts classified impact events to WebSocket
// subscribers. It is the push half of the API surface; the pull half
// (status, health, metrics) lives on plain HTTP handlers.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/stomplog/stomplog/internal/analysis"
)

// subscriberBuffer is each subscriber's pending-message capacity. A
// subscriber that falls further behind starts losing events rather than
// stalling the analysis pipeline.
const subscriberBuffer = 16

// EventPayload is the wire representation of one classified impact.
type EventPayload struct {
	Type                string   `json:"type"`
	Confidence          float64  `json:"confidence"`
	Decibels            float64  `json:"decibels"`
	DominantFrequencyHz float64  `json:"dominant_frequency_hz"`
	IntervalSeconds     *float64 `json:"interval_seconds,omitempty"`
	Timestamp           float64  `json:"timestamp"`
	AmbientDB           float64  `json:"ambient_db"`
}

// payloadFor converts an analysis event to its wire form.
func payloadFor(ev analysis.Event) EventPayload {
	p := EventPayload{
		Type:                string(ev.Type),
		Confidence:          ev.Confidence,
		Decibels:            ev.Decibels,
		DominantFrequencyHz: ev.DominantHz,
		Timestamp:           ev.Timestamp,
		AmbientDB:           ev.AmbientDB,
	}
	if ev.HasInterval {
		interval := ev.IntervalSec
		p.IntervalSeconds = &interval
	}
	return p
}

type subscriber struct {
	id string
	ch chan []byte
}

// Hub fans classified events out to WebSocket subscribers. Unclassifiable
// ("unknown") events are dropped here: they exist for diagnostics, not for
// consumers. The zero value is not usable; call [NewHub].
type Hub struct {
	log *slog.Logger

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

// NewHub returns a hub with no subscribers.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:  log,
		subs: make(map[*subscriber]struct{}),
	}
}

// Publish sends ev to every connected subscriber. Slow subscribers lose
// events instead of blocking the caller. Events of unknown type are not
// forwarded.
func (h *Hub) Publish(ev analysis.Event) {
	if ev.Type == analysis.ImpactUnknown {
		return
	}

	data, err := json.Marshal(payloadFor(ev))
	if err != nil {
		h.log.Error("event marshal failed", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.ch <- data:
		default:
			h.log.Warn("subscriber lagging, dropping event", "subscriber", sub.id)
		}
	}
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects all subscribers and rejects future ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
}

// add registers a subscriber; returns false when the hub is closed.
func (h *Hub) add(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[sub] = struct{}{}
	return true
}

// remove unregisters a subscriber if still present.
func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams events until
// the client disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn("websocket accept failed", "err", err)
		return
	}

	sub := &subscriber{
		id: uuid.NewString(),
		ch: make(chan []byte, subscriberBuffer),
	}
	if !h.add(sub) {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.remove(sub)

	h.log.Info("subscriber connected", "subscriber", sub.id, "remote", r.RemoteAddr)
	defer h.log.Info("subscriber disconnected", "subscriber", sub.id)

	ctx := r.Context()

	// Reads are only needed to observe the close handshake.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case data, ok := <-sub.ch:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "shutting down")
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		case <-readDone:
			return
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

// Deliver implements the session sink contract by publishing ev.
func (h *Hub) Deliver(_ context.Context, ev analysis.Event) {
	h.Publish(ev)
}
