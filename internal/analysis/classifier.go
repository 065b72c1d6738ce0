package analysis

import (
	"math"

	"github.com/stomplog/stomplog/pkg/audio"
)

// ImpactType is the classified category of an impact event.
type ImpactType string

const (
	ImpactMild    ImpactType = "mild"
	ImpactMedium  ImpactType = "medium"
	ImpactHard    ImpactType = "hard"
	ImpactExtreme ImpactType = "extreme"
	ImpactRunning ImpactType = "running"

	// ImpactUnknown marks a sound that passed the level gate but does not
	// look like a footstep. Consumers normally filter it.
	ImpactUnknown ImpactType = "unknown"
)

// IsFootstep reports whether t is one of the footstep categories.
func (t ImpactType) IsFootstep() bool {
	switch t {
	case ImpactMild, ImpactMedium, ImpactHard, ImpactExtreme, ImpactRunning:
		return true
	}
	return false
}

// Classification is the immutable result of classifying one candidate.
type Classification struct {
	Type       ImpactType
	Confidence float64 // in [0, 1]
	Decibels   float64 // in [0, 130]
	DominantHz float64 // in [0, Nyquist]

	// IntervalSec is the time since the previous confirmed event.
	// Valid only when HasInterval is true.
	IntervalSec float64
	HasInterval bool

	// Timestamp is the candidate buffer's position in seconds since
	// session start.
	Timestamp float64
}

// EventRef is a (timestamp, level) reference to a previously confirmed
// event, used for the running override and as the echo reference.
type EventRef struct {
	Timestamp float64
	Decibels  float64
}

// Verdict distinguishes the classifier's non-event outcomes from a
// returned classification. "No candidate", "rejected by the level gate",
// and "rejected as echo" are deliberately separate states.
type Verdict int

const (
	// VerdictClassified: a Classification was produced (possibly unknown).
	VerdictClassified Verdict = iota

	// VerdictBelowThreshold: the candidate's level sits under the
	// ambient-relative gate; no event.
	VerdictBelowThreshold

	// VerdictEcho: the candidate is an acoustic reflection of a recent
	// louder event; no event.
	VerdictEcho

	// VerdictInvalid: the candidate carried an empty buffer.
	VerdictInvalid
)

// ClassifyInput bundles everything the classifier needs. The classifier is
// a pure function of this value; all session state arrives explicitly.
type ClassifyInput struct {
	Candidate   Candidate
	Spectrum    Spectrum
	AmbientDB   float64
	Sensitivity SensitivityConfig
	Config      ClassifierConfig

	// LastConfirmed is the most recent non-unknown event, nil when none.
	LastConfirmed *EventRef

	// LastLoud is the echo reference, nil when none.
	LastLoud *EventRef

	// Now is the evaluation time in session seconds, normally the
	// candidate's timestamp.
	Now float64
}

// Classify decides whether a candidate is a footstep, which tier it falls
// in, and how confident the decision is. It never panics and always
// returns finite numbers; a non-[VerdictClassified] verdict means no event
// was produced.
func Classify(in ClassifyInput) (Classification, Verdict) {
	if in.Candidate.Buffer.Empty() {
		return Classification{}, VerdictInvalid
	}

	level := audio.LevelFromRMS(in.Candidate.RMS, in.Sensitivity.CalibrationDB)

	// Ambient-relative level gate: anything quieter than the mild floor is
	// background, not an event.
	mildFloor := in.AmbientDB + in.Sensitivity.OffsetDB + tierMildDB
	if level < mildFloor {
		return Classification{}, VerdictBelowThreshold
	}

	// Echo suppression: a markedly quieter sound right after a loud event
	// is a reflection, not a new impact.
	if in.LastLoud != nil &&
		in.Now-in.LastLoud.Timestamp <= in.Config.EchoWindowSec &&
		in.LastLoud.Decibels-level >= in.Config.EchoDropDB {
		return Classification{}, VerdictEcho
	}

	c := Classification{
		Decibels:   level,
		DominantHz: in.Spectrum.DominantHz,
		Timestamp:  in.Candidate.Timestamp,
	}
	if in.LastConfirmed != nil {
		c.IntervalSec = in.Now - in.LastConfirmed.Timestamp
		c.HasInterval = true
	}

	if !isFootstepShaped(in, level) {
		c.Type = ImpactUnknown
		c.Confidence = unknownConfidence
		return c, VerdictClassified
	}

	relative := level - (in.AmbientDB + in.Sensitivity.OffsetDB)
	c.Type = tierFor(relative)
	c.Confidence = tierConfidence(relative)

	// Running override: footsteps in very quick succession.
	if in.LastConfirmed != nil && in.Now-in.LastConfirmed.Timestamp <= in.Config.RunningIntervalSec {
		c.Type = ImpactRunning
		c.Confidence = math.Min(c.Confidence+runningConfidenceBoost, maxConfidence)
	}

	return c, VerdictClassified
}

const (
	// Ambient-relative tier floors in dB.
	tierMildDB    = 5.0
	tierMediumDB  = 10.0
	tierHardDB    = 15.0
	tierExtremeDB = 20.0

	minConfidence          = 0.70
	maxConfidence          = 0.95
	unknownConfidence      = 0.30
	runningConfidenceBoost = 0.10

	// confidenceSpanDB is the relative-level range above the mild floor
	// over which confidence climbs from min to max; levels 20 dB past the
	// mild floor (5 dB into the extreme tier) saturate at maxConfidence.
	confidenceSpanDB = 20.0
)

// isFootstepShaped applies the spectral candidacy rule. Dominant
// frequencies in the boundary band get the stricter level-based rule that
// filters tonal sources sitting near the cutoff.
func isFootstepShaped(in ClassifyInput, level float64) bool {
	dom := in.Spectrum.DominantHz
	ratio := in.Spectrum.ImpactRatio()
	cfg := in.Config

	if dom >= cfg.BoundaryLowHz && dom <= cfg.BoundaryHighHz {
		if level >= cfg.BoundaryHighLevelDB {
			return true
		}
		return level >= cfg.BoundaryModerateLevelDB && ratio < cfg.BoundaryMaxImpactRatio
	}

	return dom <= cfg.LowFreqCutoffHz && ratio >= cfg.MinImpactRatio
}

// tierFor maps an ambient-relative level to its impact tier. Callers have
// already established relative ≥ tierMildDB via the level gate.
func tierFor(relative float64) ImpactType {
	switch {
	case relative >= tierExtremeDB:
		return ImpactExtreme
	case relative >= tierHardDB:
		return ImpactHard
	case relative >= tierMediumDB:
		return ImpactMedium
	default:
		return ImpactMild
	}
}

// tierConfidence interpolates confidence linearly from minConfidence at
// the mild floor to maxConfidence at the extreme floor and beyond, so
// confidence rises monotonically within and across tiers.
func tierConfidence(relative float64) float64 {
	frac := (relative - tierMildDB) / confidenceSpanDB
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return minConfidence + frac*(maxConfidence-minConfidence)
}
