package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"minecraft-ai/internal/domain"
	"minecraft-ai/internal/pcm"
)

// FileSource replays a recording as if it were spoken into the microphone.
// WAV files are downmixed and resampled to the capture rate; any other file
// is read as raw mono PCM16LE at the capture rate.
type FileSource struct {
	path       string
	sampleRate int
	frameSize  int
	realtime   bool
	logger     *slog.Logger

	mu     sync.Mutex
	frames chan domain.AudioFrame
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFileSource replays path at sampleRate in real time until SetRealtime(false).
func NewFileSource(path string, sampleRate int, logger *slog.Logger) *FileSource {
	return &FileSource{
		path:       path,
		sampleRate: sampleRate,
		frameSize:  domain.CaptureFrameSize,
		realtime:   true,
		logger:     logger,
	}
}

// SetRealtime controls whether frames are paced at their playing duration.
func (f *FileSource) SetRealtime(realtime bool) {
	f.realtime = realtime
}

func (f *FileSource) Name() string {
	return "file"
}

func (f *FileSource) Frames() <-chan domain.AudioFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

func (f *FileSource) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return nil
	}

	samples, err := f.load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.frames = make(chan domain.AudioFrame, 1)
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.play(ctx, samples, f.frames, f.done)

	f.logger.Info("file source started", "path", f.path, "duration", domain.FramesToDuration(len(samples), f.sampleRate))
	return nil
}

func (f *FileSource) Stop() error {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel, f.done, f.frames = nil, nil, nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

func (f *FileSource) load() ([]int16, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading audio file %s: %w", f.path, err)
	}

	rate, channels := f.sampleRate, 1
	if bytes.HasPrefix(data, []byte("RIFF")) {
		info, err := parseWAV(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", f.path, err)
		}
		data, rate, channels = info.data, info.sampleRate, info.channels
	}

	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	samples, err := pcm.Samples(data)
	if err != nil {
		return nil, err
	}
	return resampleMono(downmixPCM(samples, channels), rate, f.sampleRate)
}

func (f *FileSource) play(ctx context.Context, samples []int16, frames chan<- domain.AudioFrame, done chan<- struct{}) {
	defer close(done)
	defer close(frames)

	var ticker *time.Ticker
	if f.realtime {
		ticker = time.NewTicker(domain.FramesToDuration(f.frameSize, f.sampleRate))
		defer ticker.Stop()
	}

	for off := 0; off < len(samples); off += f.frameSize {
		frame := domain.AudioFrame{
			Samples:    samples[off:min(off+f.frameSize, len(samples))],
			SampleRate: f.sampleRate,
		}
		select {
		case <-ctx.Done():
			return
		case frames <- frame:
		}
		if ticker != nil {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
	f.logger.Info("file source finished", "path", f.path)
}
