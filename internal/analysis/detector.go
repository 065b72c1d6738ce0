package analysis

import (
	"math"

	"github.com/stomplog/stomplog/pkg/audio"
)

// prominenceMinFrames is the smallest buffer the windowed prominence scan
// runs on. Shorter buffers fall back to a plain peak test.
const prominenceMinFrames = 512

// Candidate is a buffer flagged by the cheap local gate as possibly
// containing an impact. It is handed to the classifier exactly once and
// never persisted.
type Candidate struct {
	// Timestamp is the buffer's position in seconds since session start.
	Timestamp float64

	// RMS is the buffer's root-mean-square amplitude (linear scale).
	RMS float64

	// Buffer is the originating buffer, borrowed for classification.
	Buffer audio.Buffer
}

// Detector is the buffer-local candidate gate: an RMS threshold, a
// peak-prominence check, and a minimum spacing between candidates. It is
// stateful across buffers within a session and not safe for concurrent
// use; the orchestrator serializes calls.
type Detector struct {
	cfg DetectorConfig

	lastEventTime float64
	hasLastEvent  bool
}

// NewDetector returns a detector with the given gate parameters.
func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.WindowFrames <= 0 {
		cfg.WindowFrames = DefaultDetectorConfig().WindowFrames
	}
	return &Detector{cfg: cfg}
}

// Process runs the gate over one buffer. It returns the candidate and true
// when the buffer passes all three conditions; emission updates the
// spacing reference. Empty buffers never produce a candidate.
func (d *Detector) Process(buf audio.Buffer) (Candidate, bool) {
	if buf.Empty() {
		return Candidate{}, false
	}

	rms := audio.RMS(buf.Samples)
	if rms <= d.cfg.Threshold {
		return Candidate{}, false
	}

	if d.hasLastEvent && buf.Timestamp-d.lastEventTime < d.cfg.MinIntervalSec {
		return Candidate{}, false
	}

	if !d.prominent(buf.Samples) {
		return Candidate{}, false
	}

	d.lastEventTime = buf.Timestamp
	d.hasLastEvent = true
	return Candidate{Timestamp: buf.Timestamp, RMS: rms, Buffer: buf}, true
}

// SetThreshold replaces the RMS gate threshold. The orchestrator derives
// the effective value from the base threshold and the current sensitivity
// offset before each buffer.
func (d *Detector) SetThreshold(v float64) {
	d.cfg.Threshold = v
}

// Reset clears the spacing reference. Called at session start.
func (d *Detector) Reset() {
	d.lastEventTime = 0
	d.hasLastEvent = false
}

// prominent reports whether the buffer shows an impact-shaped peak. For
// buffers of at least prominenceMinFrames, the absolute samples are split
// into fixed windows and the spread between the loudest window maximum and
// the quietest window minimum must exceed the configured prominence, with
// the maximum itself above the detection threshold. Shorter buffers pass
// when any sample magnitude exceeds the threshold.
func (d *Detector) prominent(samples []float32) bool {
	if len(samples) < prominenceMinFrames {
		for _, s := range samples {
			if math.Abs(float64(s)) > d.cfg.Threshold {
				return true
			}
		}
		return false
	}

	w := d.cfg.WindowFrames
	maxOfMaxima := math.Inf(-1)
	minOfMinima := math.Inf(1)
	for start := 0; start < len(samples); start += w {
		end := min(start+w, len(samples))
		winMax := 0.0
		winMin := math.Inf(1)
		for _, s := range samples[start:end] {
			a := math.Abs(float64(s))
			if a > winMax {
				winMax = a
			}
			if a < winMin {
				winMin = a
			}
		}
		if winMax > maxOfMaxima {
			maxOfMaxima = winMax
		}
		if winMin < minOfMinima {
			minOfMinima = winMin
		}
	}

	return maxOfMaxima-minOfMinima >= d.cfg.MinProminence && maxOfMaxima > d.cfg.Threshold
}
