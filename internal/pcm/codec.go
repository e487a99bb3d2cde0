// Package pcm converts between 16-bit little-endian PCM, the base64 text used on
// the live API wire, and normalized float32 buffers used for playback.
package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"minecraft-ai/internal/domain"
)

// Bytes serializes samples as little-endian int16.
func Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Samples parses little-endian int16 bytes. An odd length is a DecodeError.
func Samples(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, &domain.DecodeError{Reason: fmt.Sprintf("odd byte count %d", len(data))}
	}
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out, nil
}

// EncodeFrame returns the base64 text form of the samples.
func EncodeFrame(samples []int16) string {
	return base64.StdEncoding.EncodeToString(Bytes(samples))
}

// DecodeFrame is the inverse of EncodeFrame.
func DecodeFrame(s string) ([]int16, error) {
	data, err := DecodeBase64(s)
	if err != nil {
		return nil, err
	}
	return Samples(data)
}

func DecodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &domain.DecodeError{Reason: "invalid base64", Err: err}
	}
	return data, nil
}

// FloatToPCM16 scales samples in [-1, 1] by 32768, saturating at the int16 range.
func FloatToPCM16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, f := range in {
		v := math.Round(float64(f) * 32768)
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}

// DecodeBuffer turns interleaved PCM16 into a de-interleaved float buffer with
// len(samples)/channels frames. Samples are divided by 32768.
func DecodeBuffer(data []byte, sampleRate, channels int) (*domain.AudioBuffer, error) {
	if channels <= 0 {
		return nil, &domain.DecodeError{Reason: fmt.Sprintf("invalid channel count %d", channels)}
	}
	if sampleRate <= 0 {
		return nil, &domain.DecodeError{Reason: fmt.Sprintf("invalid sample rate %d", sampleRate)}
	}
	samples, err := Samples(data)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, &domain.DecodeError{Reason: "empty chunk"}
	}

	frames := len(samples) / channels
	buf := &domain.AudioBuffer{
		Channels:   make([][]float32, channels),
		SampleRate: sampleRate,
	}
	for ch := 0; ch < channels; ch++ {
		data := make([]float32, frames)
		for i := 0; i < frames; i++ {
			data[i] = float32(samples[i*channels+ch]) / 32768.0
		}
		buf.Channels[ch] = data
	}
	return buf, nil
}
