package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"minecraft-ai/internal/application"
	"minecraft-ai/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type scheduledVoice struct {
	at      int64
	frames  int
	onEnded func()
	stopped bool
}

// fakeDevice is a 24 kHz output device whose clock only moves when told to.
type fakeDevice struct {
	mu          sync.Mutex
	now         int64
	voices      []*scheduledVoice
	scheduleErr error
}

func newFakeDevice(now time.Duration) *fakeDevice {
	return &fakeDevice{now: toFrames(now)}
}

func toFrames(d time.Duration) int64 {
	return domain.DurationToFrames(d, domain.PlaybackFormat.SampleRate)
}

func toDuration(frames int64) time.Duration {
	return domain.FramesToDuration(int(frames), domain.PlaybackFormat.SampleRate)
}

func (d *fakeDevice) SampleRate() int {
	return domain.PlaybackFormat.SampleRate
}

func (d *fakeDevice) Now() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now
}

func (d *fakeDevice) setNow(t time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = toFrames(t)
}

func (d *fakeDevice) Schedule(buf *domain.AudioBuffer, at int64, onEnded func()) (application.Voice, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.scheduleErr != nil {
		return nil, d.scheduleErr
	}
	v := &scheduledVoice{at: at, frames: buf.Frames(), onEnded: onEnded}
	d.voices = append(d.voices, v)
	return &fakeVoice{device: d, voice: v}, nil
}

func (d *fakeDevice) starts() []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]time.Duration, len(d.voices))
	for i, v := range d.voices {
		out[i] = toDuration(v.at)
	}
	return out
}

func (d *fakeDevice) voice(i int) *scheduledVoice {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voices[i]
}

type fakeVoice struct {
	device *fakeDevice
	voice  *scheduledVoice
}

func (v *fakeVoice) Stop() {
	v.device.mu.Lock()
	defer v.device.mu.Unlock()
	v.voice.stopped = true
}

// chunkOf returns silent 24 kHz mono PCM lasting d.
func chunkOf(d time.Duration) domain.InboundAudioChunk {
	frames := domain.DurationToFrames(d, domain.PlaybackFormat.SampleRate)
	return domain.InboundAudioChunk{
		Data:       make([]byte, frames*2),
		SampleRate: domain.PlaybackFormat.SampleRate,
		Channels:   1,
	}
}

type fakeSource struct {
	mu       sync.Mutex
	frames   chan domain.AudioFrame
	startErr error
	started  int
	stopped  int
}

func newFakeSource() *fakeSource {
	return &fakeSource{frames: make(chan domain.AudioFrame, 16)}
}

func (s *fakeSource) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started++
	return nil
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	return nil
}

func (s *fakeSource) Frames() <-chan domain.AudioFrame { return s.frames }
func (s *fakeSource) Name() string                     { return "fake" }

func (s *fakeSource) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

var errSessionClosed = errors.New("session closed")

type fakeSession struct {
	sent      chan domain.MediaChunk
	inbound   chan []domain.InboundEvent
	recvErr   chan error
	sendGate  chan struct{}
	closed    chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	closeCalls int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		sent:    make(chan domain.MediaChunk, 64),
		inbound: make(chan []domain.InboundEvent, 16),
		recvErr: make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (s *fakeSession) SendRealtimeInput(ctx context.Context, chunk domain.MediaChunk) error {
	if s.sendGate != nil {
		select {
		case <-s.sendGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case s.sent <- chunk:
		return nil
	case <-s.closed:
		return errSessionClosed
	}
}

func (s *fakeSession) Receive(ctx context.Context) ([]domain.InboundEvent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, errSessionClosed
	case err := <-s.recvErr:
		return nil, err
	case events := <-s.inbound:
		return events, nil
	}
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closeCalls++
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

type fakeConnector struct {
	mu      sync.Mutex
	session *fakeSession
	queue   []*fakeSession
	gate    chan struct{}
	err     error
	calls   int
	config  application.LiveConfig
}

// Connect hands out queued sessions first, then session. With gate set it
// blocks until the gate is closed.
func (c *fakeConnector) Connect(ctx context.Context, cfg application.LiveConfig) (application.LiveSession, error) {
	c.mu.Lock()
	c.calls++
	c.config = cfg
	gate := c.gate
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		return next, nil
	}
	return c.session, nil
}

func (c *fakeConnector) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (s *fakeSource) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// gatedHandler holds back records with message msg until gate is closed,
// signalling reached when one arrives.
type gatedHandler struct {
	slog.Handler
	msg     string
	reached chan<- struct{}
	gate    <-chan struct{}
}

func (h gatedHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Message == h.msg {
		select {
		case h.reached <- struct{}{}:
		default:
		}
		<-h.gate
	}
	return h.Handler.Handle(ctx, r)
}
