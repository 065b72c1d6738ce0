package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found; tunables that are
// merely suspicious produce warnings instead.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	switch cfg.Audio.Source {
	case "", SourceWAV:
	default:
		if !Sources.Has(cfg.Audio.Source) {
			errs = append(errs, fmt.Errorf("audio.source %q is not a registered source; known: %v", cfg.Audio.Source, Sources.Names()))
		}
	}
	if cfg.Audio.Source == SourceWAV && cfg.Audio.File == "" {
		errs = append(errs, errors.New("audio.file is required when audio.source is wav"))
	}
	if cfg.Audio.BufferFrames < 0 {
		errs = append(errs, fmt.Errorf("audio.buffer_frames %d must not be negative", cfg.Audio.BufferFrames))
	}

	if cfg.Detection.Threshold < 0 || cfg.Detection.Threshold > 1 {
		errs = append(errs, fmt.Errorf("detection.threshold %v is out of range [0, 1]", cfg.Detection.Threshold))
	}
	if cfg.Detection.MinProminence < 0 {
		errs = append(errs, fmt.Errorf("detection.min_prominence %v must not be negative", cfg.Detection.MinProminence))
	}
	if cfg.Detection.MinIntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("detection.min_interval_seconds %v must not be negative", cfg.Detection.MinIntervalSeconds))
	}
	if cfg.Detection.WindowFrames < 0 {
		errs = append(errs, fmt.Errorf("detection.window_frames %d must not be negative", cfg.Detection.WindowFrames))
	}

	if lo, hi := cfg.Classifier.BoundaryLowHz, cfg.Classifier.BoundaryHighHz; lo > 0 && hi > 0 && lo > hi {
		errs = append(errs, fmt.Errorf("classifier.boundary_low_hz %v exceeds classifier.boundary_high_hz %v", lo, hi))
	}
	if r := cfg.Classifier.MinImpactRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("classifier.min_impact_ratio %v is out of range [0, 1]", r))
	}
	if r := cfg.Classifier.BoundaryMaxImpactRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("classifier.boundary_max_impact_ratio %v is out of range [0, 1]", r))
	}

	// Out-of-range offsets are clamped at apply time, so only warn.
	if o := cfg.Sensitivity.OffsetDB; o < -10 || o > 10 {
		slog.Warn("sensitivity.offset_db outside [-10, 10]; it will be clamped", "offset_db", o)
	}
	if c := cfg.Sensitivity.CalibrationDB; c < -20 || c > 20 {
		slog.Warn("sensitivity.calibration_db outside [-20, 20]; it will be clamped", "calibration_db", c)
	}

	return errors.Join(errs...)
}
