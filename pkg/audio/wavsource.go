package audio

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/wav"
)

// DefaultBufferFrames is the buffer size a [WAVSource] emits when none is
// configured. 4096 frames at 44.1 kHz is ~93 ms, matching the cadence of a
// live capture collaborator.
const DefaultBufferFrames = 4096

// WAVSource replays a WAV file as a sequence of fixed-size mono buffers.
// Multi-channel files are down-mixed by taking channel 0. The final buffer
// may be shorter than the configured size; after it, Next returns io.EOF.
type WAVSource struct {
	samples    []float32
	sampleRate float64
	frames     int

	pos int
}

// WAVOption configures a [WAVSource].
type WAVOption func(*WAVSource)

// WithBufferFrames sets the number of frames per emitted buffer.
// Non-positive values are ignored.
func WithBufferFrames(n int) WAVOption {
	return func(s *WAVSource) {
		if n > 0 {
			s.frames = n
		}
	}
}

var _ Source = (*WAVSource)(nil)

// OpenWAV decodes the WAV file at path fully into memory and returns a
// source that replays it. Returns an error for missing or malformed files.
func OpenWAV(path string, opts ...WAVOption) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %q: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("audio: %q is not a valid WAV file", path)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audio: decode %q: %w", path, err)
	}
	if pcm.Format == nil || pcm.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("audio: %q has no sample rate", path)
	}

	channels := pcm.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	bitDepth := int(pcm.SourceBitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := 1.0 / math.Pow(2, float64(bitDepth-1))

	// Take channel 0 of interleaved frames and normalize to [-1, 1].
	frameCount := len(pcm.Data) / channels
	samples := make([]float32, frameCount)
	for i := 0; i < frameCount; i++ {
		samples[i] = float32(float64(pcm.Data[i*channels]) * scale)
	}

	s := &WAVSource{
		samples:    samples,
		sampleRate: float64(pcm.Format.SampleRate),
		frames:     DefaultBufferFrames,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SampleRate returns the decoded file's sample rate in Hz.
func (s *WAVSource) SampleRate() float64 {
	return s.sampleRate
}

// Next returns the next buffer of the replayed file. Timestamps count up
// from zero in file time, not wall time.
func (s *WAVSource) Next(ctx context.Context) (Buffer, error) {
	if err := ctx.Err(); err != nil {
		return Buffer{}, err
	}
	if s.pos >= len(s.samples) {
		return Buffer{}, io.EOF
	}

	end := min(s.pos+s.frames, len(s.samples))
	buf := Buffer{
		Samples:    s.samples[s.pos:end],
		SampleRate: s.sampleRate,
		Timestamp:  float64(s.pos) / s.sampleRate,
	}
	s.pos = end
	return buf, nil
}

// Close releases the decoded samples.
func (s *WAVSource) Close() error {
	s.samples = nil
	s.pos = 0
	return nil
}
