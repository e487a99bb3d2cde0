package audio

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"minecraft-ai/internal/application"
	"minecraft-ai/internal/domain"
)

// Mixer is the software half of an output device. It owns the playback clock
// (frames rendered so far) and sums scheduled voices into mono output blocks.
// Whoever pulls audio out of it calls Render; nothing advances the clock otherwise.
type Mixer struct {
	sampleRate int

	mu     sync.Mutex
	clock  int64
	voices []*mixerVoice
}

type mixerVoice struct {
	mixer   *Mixer
	start   int64
	samples []float32
	onEnded func()
}

// NewMixer returns a mono mixer at sampleRate with its clock at frame 0.
func NewMixer(sampleRate int) *Mixer {
	return &Mixer{sampleRate: sampleRate}
}

// SampleRate is the rate every scheduled buffer must have.
func (m *Mixer) SampleRate() int {
	return m.sampleRate
}

// Now returns the number of frames rendered so far.
func (m *Mixer) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock
}

// Elapsed is Now as audio time.
func (m *Mixer) Elapsed() time.Duration {
	return domain.FramesToDuration(int(m.Now()), m.sampleRate)
}

// Schedule places buf at frame at. Multi-channel buffers are averaged
// down to mono; the buffer's rate must match the mixer's.
func (m *Mixer) Schedule(buf *domain.AudioBuffer, at int64, onEnded func()) (application.Voice, error) {
	if buf.SampleRate != m.sampleRate {
		return nil, fmt.Errorf("buffer rate %d does not match device rate %d", buf.SampleRate, m.sampleRate)
	}

	v := &mixerVoice{
		mixer:   m,
		start:   at,
		samples: downmix(buf),
		onEnded: onEnded,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v.start < m.clock {
		v.start = m.clock
	}
	m.voices = append(m.voices, v)
	return v, nil
}

// Render fills out with the next len(out) frames and advances the clock.
// End callbacks of voices that finished run on their own goroutines.
func (m *Mixer) Render(out []float32) {
	for i := range out {
		out[i] = 0
	}

	m.mu.Lock()
	from := m.clock
	to := from + int64(len(out))

	var ended []*mixerVoice
	kept := m.voices[:0]
	for _, v := range m.voices {
		end := v.start + int64(len(v.samples))
		lo, hi := max(v.start, from), min(end, to)
		for f := lo; f < hi; f++ {
			out[f-from] += v.samples[f-v.start]
		}
		if end <= to {
			ended = append(ended, v)
			continue
		}
		kept = append(kept, v)
	}
	clear(m.voices[len(kept):])
	m.voices = kept
	m.clock = to
	m.mu.Unlock()

	for i, s := range out {
		out[i] = min(max(s, -1), 1)
	}
	for _, v := range ended {
		if v.onEnded != nil {
			go v.onEnded()
		}
	}
}

// Pending returns the number of voices not yet finished.
func (m *Mixer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

func (v *mixerVoice) Stop() {
	m := v.mixer
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := slices.Index(m.voices, v); i >= 0 {
		m.voices = slices.Delete(m.voices, i, i+1)
	}
}

func downmix(buf *domain.AudioBuffer) []float32 {
	if len(buf.Channels) == 1 {
		return buf.Channels[0]
	}
	out := make([]float32, buf.Frames())
	scale := 1 / float32(len(buf.Channels))
	for _, ch := range buf.Channels {
		for i, s := range ch {
			out[i] += s * scale
		}
	}
	return out
}
