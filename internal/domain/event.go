package domain

// InboundEvent is one item decoded from a live server message.
// A single server message may produce several events; they are dispatched in order.
type InboundEvent interface {
	inboundEvent()
}

type AudioChunkEvent struct {
	Chunk InboundAudioChunk
}

type InputTranscriptEvent struct {
	Text string
}

type OutputTranscriptEvent struct {
	Text string
}

type TurnCompleteEvent struct{}

type InterruptedEvent struct{}

func (AudioChunkEvent) inboundEvent()       {}
func (InputTranscriptEvent) inboundEvent()  {}
func (OutputTranscriptEvent) inboundEvent() {}
func (TurnCompleteEvent) inboundEvent()     {}
func (InterruptedEvent) inboundEvent()      {}

type SessionState string

const (
	SessionIdle     SessionState = "idle"
	SessionStarting SessionState = "starting"
	SessionLive     SessionState = "live"
)
