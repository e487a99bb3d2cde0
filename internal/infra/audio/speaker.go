//go:build portaudio
// +build portaudio

package audio

import (
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

const speakerFramesPerBuffer = 1024

// Speaker plays the Mixer through the default output device. The device
// clock advances with every portaudio callback.
type Speaker struct {
	*Mixer
	stream *portaudio.Stream
	logger *slog.Logger
}

// NewSpeaker returns a speaker at sampleRate. Nothing plays until Start.
func NewSpeaker(sampleRate int, logger *slog.Logger) *Speaker {
	return &Speaker{
		Mixer:  NewMixer(sampleRate),
		logger: logger,
	}
}

func (s *Speaker) Name() string {
	return "speaker"
}

func (s *Speaker) Start() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(0, 1, float64(s.SampleRate()), speakerFramesPerBuffer, s.Render)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("starting output stream: %w", err)
	}

	s.stream = stream
	s.logger.Info("speaker started", "sampleRate", s.SampleRate())
	return nil
}

func (s *Speaker) Close() error {
	if s.stream == nil {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		s.logger.Warn("stopping output stream", "error", err)
	}
	err := s.stream.Close()
	s.stream = nil
	portaudio.Terminate()
	return err
}
