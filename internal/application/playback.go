package application

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"minecraft-ai/internal/domain"
	"minecraft-ai/internal/pcm"
)

// PlaybackScheduler lays inbound chunks end to end on the output device.
//
// nextFree, active and gen are only touched with mu held. nextFree is a frame
// position on the device clock. Decoding happens outside the lock; a chunk
// whose decode straddles an Interrupt is dropped.
type PlaybackScheduler struct {
	device OutputDevice
	logger *slog.Logger

	mu       sync.Mutex
	nextFree int64
	active   map[uint64]Voice
	seq      uint64
	gen      uint64
}

// NewPlaybackScheduler returns an idle scheduler playing on device.
func NewPlaybackScheduler(device OutputDevice, logger *slog.Logger) *PlaybackScheduler {
	return &PlaybackScheduler{
		device: device,
		logger: logger,
		active: make(map[uint64]Voice),
	}
}

// Enqueue decodes chunk and schedules it at max(nextFree, now). Callers must
// enqueue chunks in receipt order. A chunk that cannot be decoded or
// scheduled is logged, dropped and leaves the schedule untouched.
func (p *PlaybackScheduler) Enqueue(chunk domain.InboundAudioChunk) error {
	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()

	buf, err := pcm.DecodeBuffer(chunk.Data, chunk.SampleRate, chunk.Channels)
	if err != nil {
		p.logger.Warn("dropping audio chunk", "bytes", len(chunk.Data), "error", err)
		return err
	}
	if rate := p.device.SampleRate(); buf.SampleRate != rate {
		err := fmt.Errorf("chunk rate %d does not match device rate %d", buf.SampleRate, rate)
		p.logger.Error("dropping audio chunk", "error", err)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen {
		p.logger.Debug("dropping audio chunk decoded before interrupt")
		return nil
	}

	start := max(p.nextFree, p.device.Now())

	p.seq++
	id := p.seq
	voice, err := p.device.Schedule(buf, start, func() { p.release(id) })
	if err != nil {
		p.logger.Error("scheduling audio chunk", "frames", buf.Frames(), "error", err)
		return fmt.Errorf("scheduling buffer: %w", err)
	}

	p.active[id] = voice
	p.nextFree = start + int64(buf.Frames())

	p.logger.Debug("scheduled audio",
		"start_frame", start,
		"frames", buf.Frames(),
		"active", len(p.active),
	)
	return nil
}

// Interrupt stops every active voice and resets the schedule so the next
// chunk starts at the device's current time.
func (p *PlaybackScheduler) Interrupt() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, voice := range p.active {
		voice.Stop()
		delete(p.active, id)
	}
	p.nextFree = 0
	p.gen++
}

// NextFreeTime reports where the next chunk would start on the device clock,
// or zero after an interrupt.
func (p *PlaybackScheduler) NextFreeTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.FramesToDuration(int(p.nextFree), p.device.SampleRate())
}

// ActiveCount is the number of scheduled voices that have not ended or been stopped.
func (p *PlaybackScheduler) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

func (p *PlaybackScheduler) release(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, id)
}
