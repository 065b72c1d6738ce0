package analysis

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/stomplog/stomplog/internal/observe"
	"github.com/stomplog/stomplog/pkg/audio"
)

// defaultQueueDepth bounds the candidate queue between the capture path
// and the classify worker. At ~11 candidates/sec worst case this is several
// seconds of backlog.
const defaultQueueDepth = 64

// Event is one classified impact as emitted by the orchestrator, together
// with the ambient estimate it was judged against.
type Event struct {
	Classification

	// AmbientDB is the ambient level snapshot used for this classification.
	AmbientDB float64
}

// pendingCandidate carries a detected candidate to the classify worker
// along with the ambient level and sensitivity snapshot captured at
// detection time, so classification does not depend on how far the capture
// path has advanced by the time the worker runs.
type pendingCandidate struct {
	cand      Candidate
	ambientDB float64
	sens      SensitivityConfig
}

type orchestratorState int

const (
	stateIdle orchestratorState = iota
	stateAnalyzing
)

// Orchestrator drives the per-session pipeline: it feeds every buffer to
// the ambient tracker and the candidate gate on the caller's goroutine,
// and hands candidates to a single background worker that runs spectral
// analysis and classification and emits [Event]s.
//
// ProcessBuffer must be called from one goroutine at a time (the capture
// pump). Start and Stop may be called from any goroutine.
//
// Replaying a buffer sequence yields identical events as long as the
// candidate queue never fills; an overflowing queue drops candidates
// (counted and logged) rather than stalling capture, and a replay that
// overflows differently may diverge.
type Orchestrator struct {
	classifierCfg ClassifierConfig
	detectorCfg   DetectorConfig
	actx          *AnalysisContext
	metrics       *observe.Metrics
	log           *slog.Logger
	queueDepth    int

	mu         sync.Mutex
	state      orchestratorState
	detector   *Detector
	queue      chan pendingCandidate
	events     chan Event
	workerDone chan struct{}
	dropped    int64
}

// OrchestratorOption customises an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.log = l }
}

// WithQueueDepth sets the candidate queue capacity.
func WithQueueDepth(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.queueDepth = n
		}
	}
}

// NewOrchestrator creates an idle orchestrator operating on the given
// analysis context.
func NewOrchestrator(classifierCfg ClassifierConfig, detectorCfg DetectorConfig, actx *AnalysisContext, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		classifierCfg: classifierCfg,
		detectorCfg:   detectorCfg,
		actx:          actx,
		queueDepth:    defaultQueueDepth,
		detector:      NewDetector(detectorCfg),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	return o
}

// Start transitions the orchestrator to the analyzing state and returns
// the event channel. Calling Start while already analyzing is a no-op that
// returns the same channel. The channel is closed by Stop after all queued
// candidates have been classified.
func (o *Orchestrator) Start(ctx context.Context) <-chan Event {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == stateAnalyzing {
		return o.events
	}

	o.actx.Ambient.Reset()
	o.detector.Reset()
	o.dropped = 0
	o.queue = make(chan pendingCandidate, o.queueDepth)
	o.events = make(chan Event, o.queueDepth)
	o.workerDone = make(chan struct{})
	o.state = stateAnalyzing

	go o.classifyLoop(ctx, o.queue, o.events, o.workerDone)

	o.log.Info("analysis started", "queue_depth", o.queueDepth)
	return o.events
}

// Stop transitions back to idle. Queued candidates are still classified
// and emitted before the event channel closes; Stop returns once the
// worker has finished. Calling Stop while idle is a no-op.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.state != stateAnalyzing {
		o.mu.Unlock()
		return
	}
	o.state = stateIdle
	close(o.queue)
	done := o.workerDone
	dropped := o.dropped
	o.mu.Unlock()

	<-done
	o.log.Info("analysis stopped", "dropped_candidates", dropped)
}

// Running reports whether the orchestrator is in the analyzing state.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == stateAnalyzing
}

// ProcessBuffer feeds one captured buffer through the ambient tracker and
// the candidate gate. While idle it does nothing. It never blocks on the
// classify worker: when the queue is full the candidate is dropped and
// counted.
func (o *Orchestrator) ProcessBuffer(ctx context.Context, buf audio.Buffer) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != stateAnalyzing || buf.Empty() {
		return
	}

	sens := o.actx.Settings.Snapshot()

	rms := audio.RMS(buf.Samples)
	level := audio.LevelFromRMS(rms, sens.CalibrationDB)
	o.actx.Ambient.AddReading(level)

	o.metrics.BuffersProcessed.Add(ctx, 1)
	o.metrics.AmbientLevel.Record(ctx, o.actx.Ambient.Level())

	// The sensitivity offset is specified in dB; translate it to the
	// detector's linear RMS scale.
	o.detector.SetThreshold(o.detectorCfg.Threshold * math.Pow(10, sens.OffsetDB/20))

	cand, ok := o.detector.Process(buf)
	if !ok {
		return
	}
	o.metrics.CandidatesDetected.Add(ctx, 1)

	p := pendingCandidate{
		cand:      cand,
		ambientDB: o.actx.Ambient.Level(),
		sens:      sens,
	}
	select {
	case o.queue <- p:
	default:
		o.dropped++
		o.log.Warn("candidate queue full, dropping",
			"timestamp", cand.Timestamp, "dropped_total", o.dropped)
	}
}

// classifyLoop is the single classify worker. It owns the spectrum
// analyzer and the cross-event references, so classification is strictly
// ordered even though detection runs on another goroutine.
func (o *Orchestrator) classifyLoop(ctx context.Context, queue <-chan pendingCandidate, events chan<- Event, done chan<- struct{}) {
	defer close(done)
	defer close(events)

	analyzer := NewSpectrumAnalyzer()
	var lastConfirmed, lastLoud *EventRef

	for p := range queue {
		start := time.Now()

		spectrum, ok := analyzer.Analyze(p.cand.Buffer)
		if !ok {
			continue
		}

		c, verdict := Classify(ClassifyInput{
			Candidate:     p.cand,
			Spectrum:      spectrum,
			AmbientDB:     p.ambientDB,
			Sensitivity:   p.sens,
			Config:        o.classifierCfg,
			LastConfirmed: lastConfirmed,
			LastLoud:      lastLoud,
			Now:           p.cand.Timestamp,
		})

		o.metrics.ClassifyDuration.Record(ctx, time.Since(start).Seconds())

		switch verdict {
		case VerdictEcho:
			o.metrics.EchoSuppressed.Add(ctx, 1)
			o.log.Debug("echo suppressed", "timestamp", p.cand.Timestamp)
			continue
		case VerdictBelowThreshold, VerdictInvalid:
			continue
		}

		// Only confirmed classifications advance the echo and cadence
		// references. An unclassifiable bang must not become the echo
		// reference, or it would mask a genuine quieter footstep that
		// follows it.
		if c.Type != ImpactUnknown {
			lastConfirmed = &EventRef{Timestamp: c.Timestamp, Decibels: c.Decibels}
			lastLoud = lastConfirmed
		}

		o.metrics.RecordEvent(ctx, string(c.Type), c.Decibels)
		o.log.Debug("event classified",
			"type", c.Type, "confidence", c.Confidence,
			"decibels", c.Decibels, "dominant_hz", c.DominantHz,
			"timestamp", c.Timestamp)

		events <- Event{Classification: c, AmbientDB: p.ambientDB}
	}
}
