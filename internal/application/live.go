package application

import (
	"context"

	"minecraft-ai/internal/domain"
)

const ModalityAudio = "AUDIO"

type LiveConfig struct {
	Model               string
	Voice               string
	SystemPrompt        string
	ResponseModality    string
	InputTranscription  bool
	OutputTranscription bool
}

func DefaultLiveConfig(model, voice string) LiveConfig {
	return LiveConfig{
		Model:               model,
		Voice:               voice,
		SystemPrompt:        domain.LiveSystemPrompt,
		ResponseModality:    ModalityAudio,
		InputTranscription:  true,
		OutputTranscription: true,
	}
}

type LiveConnector interface {
	Connect(ctx context.Context, cfg LiveConfig) (LiveSession, error)
}

// LiveSession is an open duplex channel. Receive returns the events carried by
// the next server message, in message order; it returns an error once the
// session is closed or the transport fails.
type LiveSession interface {
	SendRealtimeInput(ctx context.Context, chunk domain.MediaChunk) error
	Receive(ctx context.Context) ([]domain.InboundEvent, error)
	Close() error
}
