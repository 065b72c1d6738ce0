// Package audio defines the buffer, level-metering, and capture-source
// primitives shared by the stomplog analysis pipeline.
//
// The analysis core borrows buffers for the duration of a single call and
// never retains or mutates them; ownership stays with the producer.
package audio

// Buffer is a single mono audio buffer delivered by a capture source.
// It is treated as immutable once produced.
type Buffer struct {
	// Samples holds normalized PCM samples in [-1, 1]. The slice length is
	// the frame count.
	Samples []float32

	// SampleRate in Hz (e.g., 44100).
	SampleRate float64

	// Timestamp is the buffer's position in seconds since session start.
	Timestamp float64
}

// FrameCount returns the number of sample frames in the buffer.
func (b Buffer) FrameCount() int {
	return len(b.Samples)
}

// Duration returns the buffer length in seconds, or 0 when the sample rate
// is unset.
func (b Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / b.SampleRate
}

// Nyquist returns the highest representable frequency for this buffer's
// sample rate.
func (b Buffer) Nyquist() float64 {
	return b.SampleRate / 2
}

// Empty reports whether the buffer carries no frames. Empty buffers are
// expected at stream boundaries and produce no analysis output.
func (b Buffer) Empty() bool {
	return len(b.Samples) == 0
}
