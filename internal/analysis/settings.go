package analysis

import "sync"

// Clamp ranges for the runtime-adjustable offsets. Out-of-range values are
// clamped, never rejected.
const (
	minSensitivityOffsetDB = -10.0
	maxSensitivityOffsetDB = 10.0
	minCalibrationDB       = -20.0
	maxCalibrationDB       = 20.0
)

// Settings is the goroutine-safe holder for the caller-adjustable
// sensitivity and calibration offsets. Changes affect subsequent
// classifications only; in-flight work keeps the snapshot it started with.
type Settings struct {
	mu            sync.RWMutex
	offsetDB      float64
	calibrationDB float64
}

// NewSettings returns a Settings seeded from cfg, with both offsets
// clamped to their documented ranges.
func NewSettings(cfg SensitivityConfig) *Settings {
	s := &Settings{}
	s.SetSensitivityOffset(cfg.OffsetDB)
	s.SetCalibrationOffset(cfg.CalibrationDB)
	return s
}

// SetSensitivityOffset sets the detection sensitivity offset, clamped to
// [-10, +10] dB.
func (s *Settings) SetSensitivityOffset(db float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsetDB = clamp(db, minSensitivityOffsetDB, maxSensitivityOffsetDB)
}

// SetCalibrationOffset sets the microphone calibration offset, clamped to
// [-20, +20] dB.
func (s *Settings) SetCalibrationOffset(db float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calibrationDB = clamp(db, minCalibrationDB, maxCalibrationDB)
}

// ResetSensitivity restores both offsets to zero.
func (s *Settings) ResetSensitivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsetDB = 0
	s.calibrationDB = 0
}

// Snapshot returns a consistent copy of the current offsets.
func (s *Settings) Snapshot() SensitivityConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SensitivityConfig{OffsetDB: s.offsetDB, CalibrationDB: s.calibrationDB}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
