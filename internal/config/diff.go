package config

// ConfigDiff describes what changed between two configs. Only fields that
// can be safely hot-reloaded are tracked; everything else needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SensitivityChanged covers both runtime offsets; they are applied to
	// the live session's settings without interrupting analysis.
	SensitivityChanged bool
	NewSensitivity     SensitivityConfig

	// RestartRequired is set when a non-hot-reloadable section (audio
	// source, detection or classifier thresholds) changed.
	RestartRequired bool
}

// Changed reports whether the diff carries any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.SensitivityChanged || d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Sensitivity != new.Sensitivity {
		d.SensitivityChanged = true
		d.NewSensitivity = new.Sensitivity
	}

	if old.Audio != new.Audio || old.Detection != new.Detection || old.Classifier != new.Classifier {
		d.RestartRequired = true
	}

	return d
}
