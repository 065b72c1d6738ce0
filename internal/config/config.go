// Package config provides the configuration schema, loader, file watcher,
// and audio-source registry for the stomplog daemon.
package config

import "github.com/stomplog/stomplog/internal/analysis"

// LogLevel controls log verbosity for the stomplog server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for stomplog.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Audio       AudioConfig       `yaml:"audio"`
	Detection   DetectionConfig   `yaml:"detection"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	Sensitivity SensitivityConfig `yaml:"sensitivity"`
}

// ServerConfig holds network and logging settings for the stomplog server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig selects and parameterises the capture source.
type AudioConfig struct {
	// Source selects the registered source implementation (e.g., "wav").
	// When empty, no session is started at boot; sessions are created via
	// the API instead.
	Source string `yaml:"source"`

	// File is the path of the recording to replay when Source is "wav".
	File string `yaml:"file"`

	// BufferFrames is the number of frames per emitted buffer. 0 means the
	// source default.
	BufferFrames int `yaml:"buffer_frames"`
}

// DetectionConfig holds the candidate gate thresholds. Zero values fall
// back to the built-in defaults.
type DetectionConfig struct {
	// Threshold is the minimum RMS amplitude (linear, full scale = 1).
	Threshold float64 `yaml:"threshold"`

	// MinProminence is the minimum peak-to-floor spread.
	MinProminence float64 `yaml:"min_prominence"`

	// MinIntervalSeconds is the dead time between candidates.
	MinIntervalSeconds float64 `yaml:"min_interval_seconds"`

	// WindowFrames is the prominence-scan window size.
	WindowFrames int `yaml:"window_frames"`
}

// ClassifierConfig exposes the classifier decision thresholds. Zero values
// fall back to the built-in defaults; these knobs exist for tuning against
// a specific room, not for routine use.
type ClassifierConfig struct {
	LowFreqCutoffHz         float64 `yaml:"low_freq_cutoff_hz"`
	MinImpactRatio          float64 `yaml:"min_impact_ratio"`
	BoundaryLowHz           float64 `yaml:"boundary_low_hz"`
	BoundaryHighHz          float64 `yaml:"boundary_high_hz"`
	BoundaryHighLevelDB     float64 `yaml:"boundary_high_level_db"`
	BoundaryModerateLevelDB float64 `yaml:"boundary_moderate_level_db"`
	BoundaryMaxImpactRatio  float64 `yaml:"boundary_max_impact_ratio"`
	RunningIntervalSeconds  float64 `yaml:"running_interval_seconds"`
	EchoWindowSeconds       float64 `yaml:"echo_window_seconds"`
	EchoDropDB              float64 `yaml:"echo_drop_db"`
}

// SensitivityConfig holds the initial runtime-adjustable offsets.
type SensitivityConfig struct {
	// OffsetDB shifts every ambient-relative threshold. Range [-10, +10];
	// out-of-range values are clamped at apply time.
	OffsetDB float64 `yaml:"offset_db"`

	// CalibrationDB corrects the decibel mapping for the microphone.
	// Range [-20, +20]; out-of-range values are clamped at apply time.
	CalibrationDB float64 `yaml:"calibration_db"`
}

// DetectorConfig converts the YAML block to the analysis package's gate
// parameters, substituting defaults for zero values.
func (c DetectionConfig) DetectorConfig() analysis.DetectorConfig {
	def := analysis.DefaultDetectorConfig()
	out := analysis.DetectorConfig{
		Threshold:      c.Threshold,
		MinProminence:  c.MinProminence,
		MinIntervalSec: c.MinIntervalSeconds,
		WindowFrames:   c.WindowFrames,
	}
	if out.Threshold <= 0 {
		out.Threshold = def.Threshold
	}
	if out.MinProminence <= 0 {
		out.MinProminence = def.MinProminence
	}
	if out.MinIntervalSec <= 0 {
		out.MinIntervalSec = def.MinIntervalSec
	}
	if out.WindowFrames <= 0 {
		out.WindowFrames = def.WindowFrames
	}
	return out
}

// AnalysisConfig converts the YAML block to the analysis package's
// classifier thresholds, substituting defaults for zero values.
func (c ClassifierConfig) AnalysisConfig() analysis.ClassifierConfig {
	def := analysis.DefaultClassifierConfig()
	out := analysis.ClassifierConfig{
		LowFreqCutoffHz:         c.LowFreqCutoffHz,
		MinImpactRatio:          c.MinImpactRatio,
		BoundaryLowHz:           c.BoundaryLowHz,
		BoundaryHighHz:          c.BoundaryHighHz,
		BoundaryHighLevelDB:     c.BoundaryHighLevelDB,
		BoundaryModerateLevelDB: c.BoundaryModerateLevelDB,
		BoundaryMaxImpactRatio:  c.BoundaryMaxImpactRatio,
		RunningIntervalSec:      c.RunningIntervalSeconds,
		EchoWindowSec:           c.EchoWindowSeconds,
		EchoDropDB:              c.EchoDropDB,
	}
	if out.LowFreqCutoffHz <= 0 {
		out.LowFreqCutoffHz = def.LowFreqCutoffHz
	}
	if out.MinImpactRatio <= 0 {
		out.MinImpactRatio = def.MinImpactRatio
	}
	if out.BoundaryLowHz <= 0 {
		out.BoundaryLowHz = def.BoundaryLowHz
	}
	if out.BoundaryHighHz <= 0 {
		out.BoundaryHighHz = def.BoundaryHighHz
	}
	if out.BoundaryHighLevelDB <= 0 {
		out.BoundaryHighLevelDB = def.BoundaryHighLevelDB
	}
	if out.BoundaryModerateLevelDB <= 0 {
		out.BoundaryModerateLevelDB = def.BoundaryModerateLevelDB
	}
	if out.BoundaryMaxImpactRatio <= 0 {
		out.BoundaryMaxImpactRatio = def.BoundaryMaxImpactRatio
	}
	if out.RunningIntervalSec <= 0 {
		out.RunningIntervalSec = def.RunningIntervalSec
	}
	if out.EchoWindowSec <= 0 {
		out.EchoWindowSec = def.EchoWindowSec
	}
	if out.EchoDropDB <= 0 {
		out.EchoDropDB = def.EchoDropDB
	}
	return out
}

// AnalysisConfig converts the YAML block to the analysis package's
// sensitivity offsets. Clamping happens in [analysis.Settings].
func (c SensitivityConfig) AnalysisConfig() analysis.SensitivityConfig {
	return analysis.SensitivityConfig{
		OffsetDB:      c.OffsetDB,
		CalibrationDB: c.CalibrationDB,
	}
}
