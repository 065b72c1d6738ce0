// Package analysis implements the stomplog detection-and-classification
// pipeline: ambient-noise calibration, spectral analysis, candidate gating,
// and the stateful impact classifier that turns raw buffers into discrete
// classified events.
package analysis

// SensitivityConfig carries the caller-tunable offsets applied on top of
// the built-in thresholds. Values are clamped by [Settings]; a zero value
// means factory defaults.
type SensitivityConfig struct {
	// OffsetDB shifts every ambient-relative decision threshold. Negative
	// values make detection more sensitive. Range [-10, +10].
	OffsetDB float64

	// CalibrationDB corrects the dBFS→SPL mapping for a specific
	// microphone. Range [-20, +20].
	CalibrationDB float64
}

// ClassifierConfig holds the classifier's decision thresholds. It is
// immutable for the lifetime of a session.
type ClassifierConfig struct {
	// LowFreqCutoffHz is the highest dominant frequency accepted for
	// footstep candidacy.
	LowFreqCutoffHz float64

	// MinImpactRatio is the minimum share of total spectral energy that
	// must sit in the 20–100 Hz impact band.
	MinImpactRatio float64

	// BoundaryLowHz/BoundaryHighHz bracket the dominant-frequency band
	// where the stricter boundary rule applies instead of the plain
	// cutoff+ratio test. Tonal sounds (mains hum, appliance drone) cluster
	// here and would otherwise pass as footsteps.
	BoundaryLowHz  float64
	BoundaryHighHz float64

	// BoundaryHighLevelDB accepts a boundary-band candidate regardless of
	// impact ratio.
	BoundaryHighLevelDB float64

	// BoundaryModerateLevelDB accepts a boundary-band candidate only when
	// its impact ratio is below BoundaryMaxImpactRatio.
	BoundaryModerateLevelDB float64
	BoundaryMaxImpactRatio  float64

	// RunningIntervalSec: a qualifying footstep this close to the previous
	// confirmed event is reclassified as running.
	RunningIntervalSec float64

	// EchoWindowSec and EchoDropDB define echo suppression: a candidate
	// within the window whose level sits at least EchoDropDB below the
	// last loud event is rejected as a reflection.
	EchoWindowSec float64
	EchoDropDB    float64
}

// DefaultClassifierConfig returns the canonical ambient-relative,
// impact-ratio-gated thresholds.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		LowFreqCutoffHz:         65,
		MinImpactRatio:          0.70,
		BoundaryLowHz:           60,
		BoundaryHighHz:          70,
		BoundaryHighLevelDB:     43,
		BoundaryModerateLevelDB: 38,
		BoundaryMaxImpactRatio:  0.57,
		RunningIntervalSec:      0.15,
		EchoWindowSec:           0.5,
		EchoDropDB:              12,
	}
}

// DetectorConfig holds the cheap buffer-local gate's parameters.
type DetectorConfig struct {
	// Threshold is the minimum RMS amplitude (linear, full scale = 1) for
	// a buffer to become a candidate. Lower is more sensitive.
	Threshold float64

	// MinProminence is the minimum peak-to-floor spread across the
	// buffer's analysis windows.
	MinProminence float64

	// MinIntervalSec is the minimum spacing between two candidates.
	MinIntervalSec float64

	// WindowFrames is the analysis window size for the prominence scan.
	// Buffers shorter than prominenceMinFrames skip the scan and fall back
	// to a plain peak test.
	WindowFrames int
}

// DefaultDetectorConfig returns the gate parameters tuned for 4096-frame
// buffers at 44.1 kHz.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Threshold:      0.02,
		MinProminence:  0.05,
		MinIntervalSec: 0.1,
		WindowFrames:   256,
	}
}
