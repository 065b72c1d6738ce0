package audio

import "math"

const (
	// MinDecibels and MaxDecibels bound every level the meter reports.
	MinDecibels = 0.0
	MaxDecibels = 130.0

	// baseSPLOffset maps dBFS onto an approximate SPL scale: a full-scale
	// signal reads ~90 dB, a quiet room around 30 dB. User calibration is
	// added on top of this constant.
	baseSPLOffset = 90.0

	// rmsFloor guards the log conversion against silent buffers.
	rmsFloor = 1e-10
)

// RMS returns the root-mean-square amplitude of samples. A zero-length
// slice yields 0.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Peak returns the largest absolute sample value. A zero-length slice
// yields 0.
func Peak(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}

// DBFS converts an RMS amplitude to decibels relative to full scale.
// The amplitude is floored before the log so silence converts to a finite
// value instead of -Inf.
func DBFS(rms float64) float64 {
	return 20 * math.Log10(math.Max(rms, rmsFloor))
}

// Level converts a buffer's samples to an approximate SPL reading:
// RMS → dBFS → + base offset + user calibration delta, clamped to
// [MinDecibels, MaxDecibels]. Zero-length input yields MinDecibels.
// The result is always finite.
func Level(samples []float32, calibrationDB float64) float64 {
	if len(samples) == 0 {
		return MinDecibels
	}
	return LevelFromRMS(RMS(samples), calibrationDB)
}

// LevelFromRMS is [Level] for a precomputed RMS amplitude, so callers that
// already metered the buffer avoid a second pass over the samples.
func LevelFromRMS(rms, calibrationDB float64) float64 {
	return ClampDecibels(DBFS(rms) + baseSPLOffset + calibrationDB)
}

// ClampDecibels clamps db to [MinDecibels, MaxDecibels]. NaN clamps to
// MinDecibels.
func ClampDecibels(db float64) float64 {
	if math.IsNaN(db) || db < MinDecibels {
		return MinDecibels
	}
	if db > MaxDecibels {
		return MaxDecibels
	}
	return db
}
