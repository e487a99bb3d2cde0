package domain

import (
	"fmt"
	"time"
)

type AudioFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// CaptureFormat is what the microphone delivers and the live API expects.
var CaptureFormat = AudioFormat{SampleRate: 16000, Channels: 1, BitDepth: 16}

// PlaybackFormat is what the live API returns.
var PlaybackFormat = AudioFormat{SampleRate: 24000, Channels: 1, BitDepth: 16}

// CaptureFrameSize is the number of samples per capture callback.
const CaptureFrameSize = 4096

func (f AudioFormat) MIMEType() string {
	return fmt.Sprintf("audio/pcm;rate=%d", f.SampleRate)
}

func (f AudioFormat) BytesPerFrame() int {
	return f.Channels * f.BitDepth / 8
}

// Duration returns the playback time of n bytes of interleaved PCM.
func (f AudioFormat) Duration(n int) time.Duration {
	bpf := f.BytesPerFrame()
	if bpf == 0 || f.SampleRate == 0 {
		return 0
	}
	frames := int64(n / bpf)
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// AudioFrame is a block of captured samples. It is not retained after sending.
type AudioFrame struct {
	Samples    []int16
	SampleRate int
}

// InboundAudioChunk is raw little-endian PCM16 received from the live API.
type InboundAudioChunk struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// AudioBuffer holds decoded, de-interleaved samples in [-1, 1).
type AudioBuffer struct {
	Channels   [][]float32
	SampleRate int
}

func (b *AudioBuffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

func (b *AudioBuffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return FramesToDuration(b.Frames(), b.SampleRate)
}

// FramesToDuration and DurationToFrames round to the nearest nanosecond and
// frame, so a frame count survives the round trip.
func FramesToDuration(frames, sampleRate int) time.Duration {
	return (time.Duration(frames)*time.Second + time.Duration(sampleRate)/2) / time.Duration(sampleRate)
}

func DurationToFrames(d time.Duration, sampleRate int) int64 {
	return (int64(d)*int64(sampleRate) + int64(time.Second)/2) / int64(time.Second)
}

// MediaChunk is one realtime input payload: base64 data plus its MIME type.
type MediaChunk struct {
	Data     string
	MIMEType string
}
