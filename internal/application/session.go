package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"minecraft-ai/internal/domain"
	"minecraft-ai/internal/pcm"
)

// DefaultOutboxSize is the number of encoded frames that may wait for the
// network before new frames are dropped (about 10s of 4096-sample frames).
const DefaultOutboxSize = 40

var errClosedByServer = errors.New("live session closed by server")

// SessionManager owns the one live session and the capture pipeline feeding it.
//
// State moves Idle -> Starting -> Live -> Idle. Transport errors and remote
// closes end the session; nothing is retried.
type SessionManager struct {
	source    AudioSource
	connector LiveConnector
	player    *PlaybackScheduler
	conv      *Conversation
	config    LiveConfig
	logger    *slog.Logger

	outboxSize int

	mu        sync.Mutex
	state     domain.SessionState
	cancelled bool
	session   LiveSession
	cancel    context.CancelFunc
	outbox    chan domain.MediaChunk
	done      chan struct{}
}

// NewSessionManager returns an Idle manager. Frames from source are sent to
// sessions opened by connector; their audio plays through player.
func NewSessionManager(
	source AudioSource,
	connector LiveConnector,
	player *PlaybackScheduler,
	conv *Conversation,
	config LiveConfig,
	logger *slog.Logger,
) *SessionManager {
	return &SessionManager{
		source:     source,
		connector:  connector,
		player:     player,
		conv:       conv,
		config:     config,
		logger:     logger,
		outboxSize: DefaultOutboxSize,
		state:      domain.SessionIdle,
	}
}

// SetOutboxSize sets how many encoded frames may wait for the network. It
// applies to sessions started afterwards; n <= 0 is ignored.
func (m *SessionManager) SetOutboxSize(n int) {
	if n > 0 {
		m.outboxSize = n
	}
}

// State reports Idle, Starting or Live.
func (m *SessionManager) State() domain.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transcript is the user's speech transcribed so far in the current turn.
func (m *SessionManager) Transcript() string {
	return m.conv.Transcript()
}

// Start opens the capture device and the live session. It returns once the
// session is live. Only one session may be open; a second Start returns
// domain.ErrSessionActive. A Stop while starting makes Start return
// domain.ErrStartCancelled. On failure nothing is left running.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != domain.SessionIdle {
		m.mu.Unlock()
		return domain.ErrSessionActive
	}
	m.state = domain.SessionStarting
	m.cancelled = false
	m.mu.Unlock()
	m.conv.SetLiveState(domain.SessionStarting)

	m.logger.Info("starting audio capture", "source", m.source.Name())
	if err := m.source.Start(ctx); err != nil {
		m.setIdle()
		return &domain.PermissionError{Device: m.source.Name(), Err: err}
	}
	if m.startCancelled() {
		m.abortStart(nil)
		return domain.ErrStartCancelled
	}

	m.logger.Info("opening live session", "model", m.config.Model, "voice", m.config.Voice)
	session, err := m.connector.Connect(ctx, m.config)
	if err != nil {
		m.abortStart(nil)
		var sessErr *domain.SessionError
		if errors.As(err, &sessErr) {
			return err
		}
		return &domain.SessionError{Op: "open", Err: err}
	}

	// The session outlives the Start call; it ends with Stop or a transport error.
	runCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)
	outbox := make(chan domain.MediaChunk, m.outboxSize)
	done := make(chan struct{})

	m.mu.Lock()
	if m.cancelled {
		m.mu.Unlock()
		cancel()
		m.abortStart(session)
		return domain.ErrStartCancelled
	}
	m.session = session
	m.cancel = cancel
	m.outbox = outbox
	m.done = done
	m.state = domain.SessionLive
	m.mu.Unlock()
	m.conv.SetLiveState(domain.SessionLive)

	g.Go(func() error { return m.pumpCapture(gctx) })
	g.Go(func() error { return m.sendLoop(gctx, session, outbox) })
	g.Go(func() error { return m.receiveLoop(gctx, session) })

	go m.watch(g, session, cancel, done)

	m.logger.Info("live session open")
	return nil
}

// watch waits for the session goroutines. When they end on their own it
// tears the session down; it never touches a session it did not start. The
// manager returns to Idle only after cleanup, and done closes last.
func (m *SessionManager) watch(g *errgroup.Group, session LiveSession, cancel context.CancelFunc, done chan struct{}) {
	err := g.Wait()
	switch {
	case errors.Is(err, errClosedByServer):
		m.logger.Info("live session closed by server")
	case err != nil && !errors.Is(err, context.Canceled):
		m.logger.Error("live session ended", "error", err)
	}

	m.mu.Lock()
	owned := m.done == done && m.session != nil
	if owned {
		m.session = nil
		m.cancel = nil
		m.outbox = nil
	}
	m.mu.Unlock()

	if owned {
		m.player.Interrupt()
		if err := m.release(session, cancel); err != nil {
			m.logger.Warn("closing live session", "error", err)
		}
	}

	m.mu.Lock()
	if m.done == done {
		m.done = nil
		m.state = domain.SessionIdle
	}
	m.mu.Unlock()
	m.conv.SetLiveState(domain.SessionIdle)
	m.logger.Info("live session closed")
	close(done)
}

// SendFrame encodes frame and queues it for the sender goroutine. It never
// blocks: when the queue is full the frame is dropped.
func (m *SessionManager) SendFrame(frame domain.AudioFrame) error {
	m.mu.Lock()
	outbox := m.outbox
	live := m.state == domain.SessionLive
	m.mu.Unlock()

	if !live || outbox == nil {
		return domain.ErrNotLive
	}

	format := domain.CaptureFormat
	if frame.SampleRate > 0 {
		format.SampleRate = frame.SampleRate
	}
	chunk := domain.MediaChunk{
		Data:     pcm.EncodeFrame(frame.Samples),
		MIMEType: format.MIMEType(),
	}

	select {
	case outbox <- chunk:
		return nil
	default:
		m.logger.Warn("outbound audio queue full, dropping frame", "samples", len(frame.Samples))
		return domain.ErrQueueFull
	}
}

// Stop ends the session, releases the capture device and silences playback.
// It returns once the manager is Idle. It is safe to call at any time and
// any number of times. While Start is still connecting, Stop only marks the
// start cancelled and Start undoes its own work.
func (m *SessionManager) Stop() error {
	m.mu.Lock()
	if m.state == domain.SessionStarting {
		m.cancelled = true
	}
	session, cancel, done := m.session, m.cancel, m.done
	m.session = nil
	m.cancel = nil
	m.outbox = nil
	m.mu.Unlock()

	m.player.Interrupt()
	if done == nil {
		return nil
	}

	var closeErr error
	if session != nil {
		closeErr = m.release(session, cancel)
	}
	<-done
	return closeErr
}

// release cancels the session goroutines, closes the session and stops capture.
func (m *SessionManager) release(session LiveSession, cancel context.CancelFunc) error {
	cancel()
	closeErr := session.Close()
	if err := m.source.Stop(); err != nil {
		m.logger.Warn("stopping audio capture", "error", err)
	}
	if closeErr != nil {
		return &domain.SessionError{Op: "close", Err: closeErr}
	}
	return nil
}

func (m *SessionManager) startCancelled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled
}

// abortStart undoes a partial Start.
func (m *SessionManager) abortStart(session LiveSession) {
	if session != nil {
		if err := session.Close(); err != nil {
			m.logger.Warn("closing live session", "error", err)
		}
	}
	if err := m.source.Stop(); err != nil {
		m.logger.Warn("stopping audio capture", "error", err)
	}
	m.setIdle()
}

// Dispatch applies the events of one server message in order.
func (m *SessionManager) Dispatch(events []domain.InboundEvent) {
	for _, ev := range events {
		switch e := ev.(type) {
		case domain.AudioChunkEvent:
			// Decode and scheduling failures are logged by the scheduler; the chunk is dropped.
			_ = m.player.Enqueue(e.Chunk)
		case domain.InputTranscriptEvent:
			m.conv.AppendTranscript(e.Text)
		case domain.OutputTranscriptEvent:
			if e.Text != "" {
				m.conv.Add(domain.RoleAssistant, e.Text)
			}
		case domain.TurnCompleteEvent:
			m.conv.ClearTranscript()
		case domain.InterruptedEvent:
			m.logger.Debug("server interrupted playback")
			m.player.Interrupt()
		default:
			m.logger.Warn("unhandled live event", "type", fmt.Sprintf("%T", ev))
		}
	}
}

func (m *SessionManager) setIdle() {
	m.mu.Lock()
	m.state = domain.SessionIdle
	m.mu.Unlock()
	m.conv.SetLiveState(domain.SessionIdle)
}

func (m *SessionManager) pumpCapture(ctx context.Context) error {
	frames := m.source.Frames()
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				m.logger.Info("audio capture ended")
				return nil
			}
			if err := m.SendFrame(frame); errors.Is(err, domain.ErrNotLive) {
				return nil
			}
		}
	}
}

func (m *SessionManager) sendLoop(ctx context.Context, session LiveSession, outbox <-chan domain.MediaChunk) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case chunk := <-outbox:
			if err := session.SendRealtimeInput(ctx, chunk); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return &domain.SessionError{Op: "send", Err: err}
			}
		}
	}
}

func (m *SessionManager) receiveLoop(ctx context.Context, session LiveSession) error {
	for {
		events, err := session.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return errClosedByServer
			}
			return &domain.SessionError{Op: "receive", Err: err}
		}
		m.Dispatch(events)
	}
}
