package audio

import "context"

// Source is the capture collaborator contract: an ordered stream of mono
// buffers at a fixed cadence. Implementations live outside the analysis
// core (microphone capture, network feeds); the in-tree [WAVSource] replays
// recorded files for offline analysis and tests.
//
// A Source is single-consumer. Next must return [io.EOF] once the stream
// ends; the analysis session treats that as a clean stop.
type Source interface {
	// Next blocks until the next buffer is available, the stream ends
	// (io.EOF), or ctx is cancelled.
	Next(ctx context.Context) (Buffer, error)

	// Close releases the underlying stream. Calling Close more than once
	// is safe.
	Close() error
}
