//go:build !portaudio
// +build !portaudio

package audio

import (
	"fmt"
	"log/slog"
)

// Speaker stub when portaudio is not available
type Speaker struct {
	*Mixer
	logger *slog.Logger
}

func NewSpeaker(sampleRate int, logger *slog.Logger) *Speaker {
	return &Speaker{Mixer: NewMixer(sampleRate), logger: logger}
}

func (s *Speaker) Name() string {
	return "speaker"
}

func (s *Speaker) Start() error {
	return fmt.Errorf("speaker not available: rebuild with -tags portaudio")
}

func (s *Speaker) Close() error {
	return nil
}
