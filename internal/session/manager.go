// Package session manages the lifecycle of analysis sessions: wiring a
// capture source to the analysis orchestrator, fanning classified events
// out to sinks, and tearing everything down in order.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stomplog/stomplog/internal/analysis"
	"github.com/stomplog/stomplog/internal/observe"
	"github.com/stomplog/stomplog/pkg/audio"
)

// Sink receives every event the active session emits. Implementations
// must not block; slow consumers buffer or drop internally.
type Sink interface {
	Deliver(ctx context.Context, ev analysis.Event)
}

// Info holds metadata about an active session.
type Info struct {
	// SessionID is the unique identifier for this session.
	SessionID string

	// Source names the capture source feeding the session.
	Source string

	// StartedAt is when the session was started.
	StartedAt time.Time
}

// Status is a point-in-time view of the manager for the status API.
type Status struct {
	// Active reports whether a session exists. A session whose source has
	// reached end of stream stays active (and Analyzing turns false) until
	// it is stopped.
	Active bool

	// Analyzing reports whether the pipeline is still consuming buffers.
	Analyzing bool

	Info        Info
	Ambient     analysis.AmbientSnapshot
	Sensitivity analysis.SensitivityConfig
}

// Manager manages the lifecycle of analysis sessions. Only one session can
// be active at a time (enforced by mutex). All exported methods are safe
// for concurrent use.
type Manager struct {
	mu     sync.Mutex
	active bool
	info   Info
	orch   *analysis.Orchestrator
	cancel context.CancelFunc
	eg     *errgroup.Group

	// closers are called in reverse order during Stop.
	closers []func() error

	// Dependencies injected at construction.
	classifierCfg analysis.ClassifierConfig
	detectorCfg   analysis.DetectorConfig
	actx          *analysis.AnalysisContext
	metrics       *observe.Metrics
	sinks         []Sink
	log           *slog.Logger
}

// ManagerConfig holds all dependencies for a [Manager].
type ManagerConfig struct {
	Classifier analysis.ClassifierConfig
	Detector   analysis.DetectorConfig

	// Context carries the ambient tracker and settings shared with the
	// API layer. Required.
	Context *analysis.AnalysisContext

	// Metrics defaults to [observe.DefaultMetrics] when nil.
	Metrics *observe.Metrics

	// Sinks receive every emitted event.
	Sinks []Sink

	// Logger defaults to [slog.Default] when nil.
	Logger *slog.Logger
}

// NewManager creates a Manager with the given dependencies.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		classifierCfg: cfg.Classifier,
		detectorCfg:   cfg.Detector,
		actx:          cfg.Context,
		metrics:       cfg.Metrics,
		sinks:         cfg.Sinks,
		log:           cfg.Logger,
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

// Start begins a new analysis session reading from src. The manager takes
// ownership of src and closes it when the session stops. sourceName is
// used for identification only.
//
// Returns an error if a session is already active.
func (m *Manager) Start(ctx context.Context, src audio.Source, sourceName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return fmt.Errorf("session: a session is already active (id=%s)", m.info.SessionID)
	}

	sessionID := uuid.NewString()

	orch := analysis.NewOrchestrator(m.classifierCfg, m.detectorCfg, m.actx,
		analysis.WithMetrics(m.metrics),
		analysis.WithLogger(m.log.With("session_id", sessionID)),
	)

	// Session-scoped context for the pump and fan-out goroutines.
	sessionCtx, cancel := context.WithCancel(context.Background())
	events := orch.Start(sessionCtx)

	eg, egCtx := errgroup.WithContext(sessionCtx)

	// Pump: capture source → orchestrator. End of stream stops the
	// orchestrator so the fan-out drains and finishes.
	eg.Go(func() error {
		defer orch.Stop()
		for {
			buf, err := src.Next(egCtx)
			if err != nil {
				if errors.Is(err, io.EOF) {
					m.log.Info("capture source finished", "session_id", sessionID)
					return nil
				}
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return fmt.Errorf("session: read source: %w", err)
			}
			orch.ProcessBuffer(egCtx, buf)
		}
	})

	// Fan-out: orchestrator events → sinks.
	eg.Go(func() error {
		for ev := range events {
			for _, sink := range m.sinks {
				sink.Deliver(sessionCtx, ev)
			}
		}
		return nil
	})

	m.active = true
	m.orch = orch
	m.cancel = cancel
	m.eg = eg
	m.closers = []func() error{src.Close}
	m.info = Info{
		SessionID: sessionID,
		Source:    sourceName,
		StartedAt: time.Now().UTC(),
	}

	m.metrics.ActiveSessions.Add(ctx, 1)
	m.log.Info("session started",
		"session_id", sessionID,
		"source", sourceName,
		"sinks", len(m.sinks),
	)

	return nil
}

// Stop gracefully ends the active session. Queued candidates are still
// classified and delivered before teardown; the capture source is closed
// last-in-first-out with any other resources.
//
// Returns an error if no session is active.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return errors.New("session: no active session to stop")
	}

	sessionID := m.info.SessionID

	// Stop the orchestrator first: it drains the candidate queue and
	// closes the event channel, letting the fan-out finish cleanly.
	m.orch.Stop()
	m.cancel()

	if err := m.eg.Wait(); err != nil {
		m.log.Warn("session: worker error during stop", "session_id", sessionID, "err", err)
	}

	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](); err != nil {
			m.log.Warn("session: closer error", "session_id", sessionID, "index", i, "err", err)
		}
	}

	m.active = false
	m.orch = nil
	m.cancel = nil
	m.eg = nil
	m.closers = nil
	m.info = Info{}

	m.metrics.ActiveSessions.Add(ctx, -1)
	m.log.Info("session stopped", "session_id", sessionID)

	return nil
}

// Wait blocks until the active session's goroutines finish, which happens
// when the source ends or the session is stopped. Returns immediately when
// no session is active.
func (m *Manager) Wait() error {
	m.mu.Lock()
	eg := m.eg
	m.mu.Unlock()
	if eg == nil {
		return nil
	}
	return eg.Wait()
}

// IsActive reports whether a session is currently running.
func (m *Manager) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Info returns metadata about the active session, or the zero value when
// no session is active.
func (m *Manager) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// Status returns the current session state together with the ambient and
// sensitivity snapshots for the status API.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{
		Active:      m.active,
		Info:        m.info,
		Ambient:     m.actx.Ambient.Snapshot(),
		Sensitivity: m.actx.Settings.Snapshot(),
	}
	if m.orch != nil {
		s.Analyzing = m.orch.Running()
	}
	return s
}
