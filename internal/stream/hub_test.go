package stream_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/stomplog/stomplog/internal/analysis"
	"github.com/stomplog/stomplog/internal/stream"
)

// dialHub starts an httptest server around h and connects one client.
func dialHub(t *testing.T, h *stream.Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

// readPayload reads one event payload from conn.
func readPayload(t *testing.T, conn *websocket.Conn) stream.EventPayload {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var p stream.EventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return p
}

// waitForSubscribers blocks until h reports n subscribers.
func waitForSubscribers(t *testing.T, h *stream.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for h.SubscriberCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber count never reached %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func footstepEvent(ts float64) analysis.Event {
	return analysis.Event{
		Classification: analysis.Classification{
			Type:       analysis.ImpactHard,
			Confidence: 0.85,
			Decibels:   57.2,
			DominantHz: 48,
			Timestamp:  ts,
		},
		AmbientDB: 31.5,
	}
}

func TestHub_DeliversEvents(t *testing.T) {
	h := stream.NewHub(nil)
	defer h.Close()
	conn := dialHub(t, h)
	waitForSubscribers(t, h, 1)

	h.Publish(footstepEvent(2.5))

	p := readPayload(t, conn)
	if p.Type != "hard" {
		t.Errorf("Type = %q, want hard", p.Type)
	}
	if p.Decibels != 57.2 {
		t.Errorf("Decibels = %v, want 57.2", p.Decibels)
	}
	if p.DominantFrequencyHz != 48 {
		t.Errorf("DominantFrequencyHz = %v, want 48", p.DominantFrequencyHz)
	}
	if p.Timestamp != 2.5 {
		t.Errorf("Timestamp = %v, want 2.5", p.Timestamp)
	}
	if p.AmbientDB != 31.5 {
		t.Errorf("AmbientDB = %v, want 31.5", p.AmbientDB)
	}
	if p.IntervalSeconds != nil {
		t.Errorf("IntervalSeconds = %v, want absent", *p.IntervalSeconds)
	}
}

func TestHub_IncludesIntervalWhenPresent(t *testing.T) {
	h := stream.NewHub(nil)
	defer h.Close()
	conn := dialHub(t, h)
	waitForSubscribers(t, h, 1)

	ev := footstepEvent(3.0)
	ev.IntervalSec = 0.45
	ev.HasInterval = true
	h.Publish(ev)

	p := readPayload(t, conn)
	if p.IntervalSeconds == nil || *p.IntervalSeconds != 0.45 {
		t.Errorf("IntervalSeconds = %v, want 0.45", p.IntervalSeconds)
	}
}

func TestHub_FiltersUnknownEvents(t *testing.T) {
	h := stream.NewHub(nil)
	defer h.Close()
	conn := dialHub(t, h)
	waitForSubscribers(t, h, 1)

	unknown := footstepEvent(1.0)
	unknown.Type = analysis.ImpactUnknown
	h.Publish(unknown)
	h.Publish(footstepEvent(2.0))

	// The first message through must be the classified event, not the
	// unknown one.
	p := readPayload(t, conn)
	if p.Type != "hard" || p.Timestamp != 2.0 {
		t.Errorf("got %+v, want the hard event at t=2", p)
	}
}

func TestHub_FanOut(t *testing.T) {
	h := stream.NewHub(nil)
	defer h.Close()
	a := dialHub(t, h)
	b := dialHub(t, h)
	waitForSubscribers(t, h, 2)

	h.Publish(footstepEvent(1.0))

	for _, conn := range []*websocket.Conn{a, b} {
		p := readPayload(t, conn)
		if p.Timestamp != 1.0 {
			t.Errorf("Timestamp = %v, want 1.0", p.Timestamp)
		}
	}
}

func TestHub_PublishWithNoSubscribers(t *testing.T) {
	h := stream.NewHub(nil)
	defer h.Close()
	// Must not panic or block.
	h.Publish(footstepEvent(1.0))
}

func TestHub_CloseDisconnectsSubscribers(t *testing.T) {
	h := stream.NewHub(nil)
	conn := dialHub(t, h)
	waitForSubscribers(t, h, 1)

	h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, _, err := conn.Read(ctx); err == nil {
		t.Error("read after Close succeeded, want connection closed")
	}
	if h.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d after Close, want 0", h.SubscriberCount())
	}
}
