package analysis

// AnalysisContext bundles the cross-buffer state a session's pipeline
// reads and writes: the ambient tracker and the runtime settings. It is
// passed explicitly into the orchestrator so parallel sessions and tests
// never share hidden state.
type AnalysisContext struct {
	Ambient  *AmbientTracker
	Settings *Settings
}

// NewAnalysisContext returns a context with a fresh ambient tracker and
// settings seeded from cfg.
func NewAnalysisContext(cfg SensitivityConfig) *AnalysisContext {
	return &AnalysisContext{
		Ambient:  NewAmbientTracker(),
		Settings: NewSettings(cfg),
	}
}
