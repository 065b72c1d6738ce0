package analysis_test

import (
	"math"
	"testing"

	"github.com/stomplog/stomplog/internal/analysis"
)

func TestAmbientTracker_DefaultBeforeCalibration(t *testing.T) {
	tr := analysis.NewAmbientTracker()
	if got := tr.Level(); got != analysis.DefaultAmbientDB {
		t.Errorf("Level = %v, want %v", got, analysis.DefaultAmbientDB)
	}
	if tr.Calibrated() {
		t.Error("fresh tracker should not be calibrated")
	}

	// 19 readings are not enough.
	for range 19 {
		tr.AddReading(55)
	}
	if tr.Calibrated() {
		t.Error("tracker calibrated below the minimum reading count")
	}
	if got := tr.Level(); got != analysis.DefaultAmbientDB {
		t.Errorf("Level = %v, want default %v", got, analysis.DefaultAmbientDB)
	}
}

func TestAmbientTracker_CalibratesAtTwentyReadings(t *testing.T) {
	tr := analysis.NewAmbientTracker()
	for range 20 {
		tr.AddReading(42)
	}
	if !tr.Calibrated() {
		t.Fatal("tracker should be calibrated at 20 readings")
	}
	if got := tr.Level(); math.Abs(got-42) > 1e-9 {
		t.Errorf("Level = %v, want 42", got)
	}
}

func TestAmbientTracker_UsesQuietestPercentile(t *testing.T) {
	// 10 quiet readings and 10 loud ones: the floor estimate must come from
	// the quiet tail, not the mean of everything.
	tr := analysis.NewAmbientTracker()
	for range 10 {
		tr.AddReading(30)
	}
	for range 10 {
		tr.AddReading(80)
	}
	// 20 readings: percentile index 2, mean of sorted[0..2] = 30.
	if got := tr.Level(); math.Abs(got-30) > 1e-9 {
		t.Errorf("Level = %v, want 30", got)
	}
}

func TestAmbientTracker_EvictsOldestAtCapacity(t *testing.T) {
	tr := analysis.NewAmbientTracker()
	for range 100 {
		tr.AddReading(60)
	}
	// Another 100 readings at a lower level push every old one out.
	for range 100 {
		tr.AddReading(25)
	}

	snap := tr.Snapshot()
	if snap.Readings != 100 {
		t.Errorf("Readings = %d, want 100", snap.Readings)
	}
	if math.Abs(snap.LevelDB-25) > 1e-9 {
		t.Errorf("LevelDB = %v, want 25", snap.LevelDB)
	}
}

func TestAmbientTracker_Reset(t *testing.T) {
	tr := analysis.NewAmbientTracker()
	for range 30 {
		tr.AddReading(50)
	}
	tr.Reset()

	snap := tr.Snapshot()
	if snap.Calibrated {
		t.Error("reset tracker should not be calibrated")
	}
	if snap.LevelDB != analysis.DefaultAmbientDB {
		t.Errorf("LevelDB = %v, want %v", snap.LevelDB, analysis.DefaultAmbientDB)
	}
	if snap.Readings != 0 {
		t.Errorf("Readings = %d, want 0", snap.Readings)
	}
}
