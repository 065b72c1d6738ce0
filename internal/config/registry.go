package config

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/stomplog/stomplog/pkg/audio"
)

// SourceWAV is the name of the built-in WAV replay source.
const SourceWAV = "wav"

// ErrSourceNotRegistered is returned by [SourceRegistry.Create] when no
// factory has been registered under the requested source name.
var ErrSourceNotRegistered = errors.New("config: audio source not registered")

// SourceFactory constructs a capture source from the audio config block.
type SourceFactory func(AudioConfig) (audio.Source, error)

// SourceRegistry maps audio source names to their constructor functions,
// so capture backends (file replay, live microphone collaborators) can be
// plugged in without the loader knowing about them. It is safe for
// concurrent use.
type SourceRegistry struct {
	mu        sync.RWMutex
	factories map[string]SourceFactory
}

// NewSourceRegistry returns an empty, ready-to-use [SourceRegistry].
func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{factories: make(map[string]SourceFactory)}
}

// Register registers a source factory under name. Subsequent calls with
// the same name overwrite the previous registration.
func (r *SourceRegistry) Register(name string, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Has reports whether a factory is registered under name.
func (r *SourceRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered source names, sorted.
func (r *SourceRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create instantiates the source selected by cfg.Source. Returns
// [ErrSourceNotRegistered] if no factory has been registered for that name.
func (r *SourceRegistry) Create(cfg AudioConfig) (audio.Source, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Source]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSourceNotRegistered, cfg.Source)
	}
	return factory(cfg)
}

// Sources is the process-wide registry. The WAV replay source is always
// available; other backends register themselves at init time.
var Sources = NewSourceRegistry()

func init() {
	Sources.Register(SourceWAV, func(cfg AudioConfig) (audio.Source, error) {
		var opts []audio.WAVOption
		if cfg.BufferFrames > 0 {
			opts = append(opts, audio.WithBufferFrames(cfg.BufferFrames))
		}
		return audio.OpenWAV(cfg.File, opts...)
	})
}
