package analysis

import (
	"sort"
	"sync"
)

const (
	// DefaultAmbientDB is assumed until enough readings have accumulated.
	DefaultAmbientDB = 30.0

	// ambientWindowCap bounds the rolling window of decibel readings.
	ambientWindowCap = 100

	// ambientMinReadings is how many readings calibration needs.
	ambientMinReadings = 20

	// ambientPercentile: the ambient floor is the mean of the sorted
	// readings up to and including this percentile index.
	ambientPercentile = 0.10
)

// AmbientSnapshot is a consistent view of the tracker's state.
type AmbientSnapshot struct {
	// LevelDB is the estimated background noise floor.
	LevelDB float64

	// Calibrated reports whether enough readings have accumulated for
	// LevelDB to be derived from measurements rather than the default.
	Calibrated bool

	// Readings is the number of samples currently in the window.
	Readings int
}

// AmbientTracker estimates the background noise floor from a rolling
// window of decibel readings. The floor is the mean of the quietest ~10%
// of the window, which tracks the room's idle level while ignoring the
// impacts being measured.
//
// AddReading runs on the analysis path; Level and Snapshot may be called
// concurrently from other goroutines (UI, diagnostics) and always observe
// a fully-computed estimate.
type AmbientTracker struct {
	mu         sync.RWMutex
	window     []float64
	level      float64
	calibrated bool
}

// NewAmbientTracker returns a tracker at the default ambient level.
func NewAmbientTracker() *AmbientTracker {
	return &AmbientTracker{
		window: make([]float64, 0, ambientWindowCap),
		level:  DefaultAmbientDB,
	}
}

// AddReading pushes one decibel reading into the window, evicting the
// oldest when full, and recomputes the ambient estimate once the window
// holds enough samples.
func (t *AmbientTracker) AddReading(db float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.window) >= ambientWindowCap {
		t.window = append(t.window[:0], t.window[1:]...)
	}
	t.window = append(t.window, db)

	if len(t.window) < ambientMinReadings {
		return
	}

	sorted := make([]float64, len(t.window))
	copy(sorted, t.window)
	sort.Float64s(sorted)

	// Mean of the sorted readings from index 0 through the 10th-percentile
	// index, inclusive.
	hi := int(ambientPercentile * float64(len(sorted)))
	var sum float64
	for _, v := range sorted[:hi+1] {
		sum += v
	}
	t.level = sum / float64(hi+1)
	t.calibrated = true
}

// Level returns the current ambient estimate in dB.
func (t *AmbientTracker) Level() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.level
}

// Calibrated reports whether the estimate is measurement-derived.
func (t *AmbientTracker) Calibrated() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.calibrated
}

// Snapshot returns the tracker state as one consistent value.
func (t *AmbientTracker) Snapshot() AmbientSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return AmbientSnapshot{
		LevelDB:    t.level,
		Calibrated: t.calibrated,
		Readings:   len(t.window),
	}
}

// Reset clears the window and restores the default, uncalibrated state.
// Called at session start.
func (t *AmbientTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.window = t.window[:0]
	t.level = DefaultAmbientDB
	t.calibrated = false
}
