package application

import (
	"context"

	"minecraft-ai/internal/domain"
)

// AudioSource delivers captured frames in capture order.
type AudioSource interface {
	Start(ctx context.Context) error
	Stop() error
	Frames() <-chan domain.AudioFrame
	Name() string
}

// OutputDevice plays decoded buffers against its own clock. Positions are
// whole frames at SampleRate so back-to-back buffers meet exactly.
type OutputDevice interface {
	SampleRate() int
	// Now returns the device clock: frames played since the device started.
	Now() int64
	// Schedule starts buf at frame at (or immediately if at is in the past).
	// buf must be at the device rate. onEnded runs on another goroutine once
	// the buffer has played to completion.
	Schedule(buf *domain.AudioBuffer, at int64, onEnded func()) (Voice, error)
}

// Voice is one scheduled buffer.
type Voice interface {
	// Stop halts playback mid-buffer. onEnded is not invoked for stopped voices.
	Stop()
}
