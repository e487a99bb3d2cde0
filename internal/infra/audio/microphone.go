//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"minecraft-ai/internal/domain"
)

// MicrophoneSource captures mono PCM16 from the default input device.
type MicrophoneSource struct {
	sampleRate      int
	framesPerBuffer int
	logger          *slog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	frames chan domain.AudioFrame
}

// NewMicrophoneSource captures at sampleRate in frames of domain.CaptureFrameSize samples.
func NewMicrophoneSource(sampleRate int, logger *slog.Logger) *MicrophoneSource {
	return &MicrophoneSource{
		sampleRate:      sampleRate,
		framesPerBuffer: domain.CaptureFrameSize,
		logger:          logger,
	}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Frames() <-chan domain.AudioFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

func (m *MicrophoneSource) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	frames := make(chan domain.AudioFrame, 8)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), m.framesPerBuffer, func(in []int16) {
		samples := make([]int16, len(in))
		copy(samples, in)
		select {
		case frames <- domain.AudioFrame{Samples: samples, SampleRate: m.sampleRate}:
		default:
			m.logger.Warn("capture consumer behind, dropping frame", "samples", len(samples))
		}
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("starting input stream: %w", err)
	}

	m.stream = stream
	m.frames = frames
	m.logger.Info("microphone started", "sampleRate", m.sampleRate, "framesPerBuffer", m.framesPerBuffer)
	return nil
}

// Stop waits for the last callback before closing the frame channel.
func (m *MicrophoneSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil {
		return nil
	}

	if err := m.stream.Stop(); err != nil {
		m.logger.Warn("stopping input stream", "error", err)
	}
	err := m.stream.Close()
	close(m.frames)
	m.stream = nil
	m.frames = nil
	portaudio.Terminate()
	if err != nil {
		return fmt.Errorf("closing input stream: %w", err)
	}
	return nil
}
