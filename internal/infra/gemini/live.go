package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"minecraft-ai/internal/application"
	"minecraft-ai/internal/domain"
	"minecraft-ai/internal/pcm"
)

const (
	DefaultLiveURL   = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	DefaultLiveModel = "gemini-2.5-flash-native-audio-preview-12-2025"
	DefaultVoice     = "Zephyr"

	setupTimeout = 30 * time.Second
)

var ErrSessionClosed = errors.New("gemini live session closed")

// LiveClient opens BidiGenerateContent sessions.
type LiveClient struct {
	apiKey string
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger
}

func NewLiveClient(apiKey string, logger *slog.Logger) *LiveClient {
	return NewLiveClientWithURL(apiKey, DefaultLiveURL, logger)
}

func NewLiveClientWithURL(apiKey, wsURL string, logger *slog.Logger) *LiveClient {
	return &LiveClient{
		apiKey: apiKey,
		url:    wsURL,
		dialer: &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		logger: logger,
	}
}

// Connect dials the service, sends the setup message and waits for
// setupComplete before returning.
func (c *LiveClient) Connect(ctx context.Context, cfg application.LiveConfig) (application.LiveSession, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, &domain.SessionError{Op: "open", Err: fmt.Errorf("parsing live url: %w", err)}
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, &domain.SessionError{Op: "open", Err: fmt.Errorf("dialing (status %d): %w", resp.StatusCode, err)}
		}
		return nil, &domain.SessionError{Op: "open", Err: fmt.Errorf("dialing: %w", err)}
	}

	s := &LiveSession{
		conn:     conn,
		logger:   c.logger,
		closeCh:  make(chan struct{}),
		incoming: make(chan inbound, 64),
	}

	if err := s.writeJSON(ctx, clientMessage{Setup: buildSetup(cfg)}); err != nil {
		conn.Close()
		return nil, &domain.SessionError{Op: "setup", Err: err}
	}
	if err := s.awaitSetup(ctx); err != nil {
		conn.Close()
		return nil, &domain.SessionError{Op: "setup", Err: err}
	}

	go s.readLoop()
	return s, nil
}

func buildSetup(cfg application.LiveConfig) *setup {
	model := cfg.Model
	if model == "" {
		model = DefaultLiveModel
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	st := &setup{Model: model, GenerationConfig: &generationConfig{}}
	if cfg.ResponseModality != "" {
		st.GenerationConfig.ResponseModalities = []string{cfg.ResponseModality}
	}
	if cfg.Voice != "" {
		st.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice}},
		}
	}
	if cfg.SystemPrompt != "" {
		st.SystemInstruction = &content{Parts: []part{{Text: cfg.SystemPrompt}}}
	}
	if cfg.InputTranscription {
		st.InputAudioTranscription = &struct{}{}
	}
	if cfg.OutputTranscription {
		st.OutputAudioTranscription = &struct{}{}
	}
	return st
}

type inbound struct {
	events []domain.InboundEvent
	err    error
}

// LiveSession is one open websocket. Writes are serialised; a single reader
// goroutine feeds Receive.
type LiveSession struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu   sync.Mutex
	closeCh   chan struct{}
	closeOnce sync.Once
	incoming  chan inbound
}

func (s *LiveSession) SendRealtimeInput(ctx context.Context, chunk domain.MediaChunk) error {
	return s.writeJSON(ctx, clientMessage{
		RealtimeInput: &realtimeInput{
			MediaChunks: []blob{{MIMEType: chunk.MIMEType, Data: chunk.Data}},
		},
	})
}

// Receive returns the events of the next server message. It returns io.EOF
// when the server closes the session normally.
func (s *LiveSession) Receive(ctx context.Context) ([]domain.InboundEvent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closeCh:
		return nil, ErrSessionClosed
	case item, ok := <-s.incoming:
		if !ok {
			return nil, ErrSessionClosed
		}
		return item.events, item.err
	}
}

func (s *LiveSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		// WriteControl may run concurrently with a pending WriteJSON.
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = s.conn.Close()
	})
	return err
}

func (s *LiveSession) writeJSON(ctx context.Context, msg clientMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.closeCh:
		return ErrSessionClosed
	default:
	}

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

func (s *LiveSession) awaitSetup(ctx context.Context) error {
	deadline := time.Now().Add(setupTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	defer s.conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("waiting for setupComplete: %w", err)
		}
		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("decoding setup response: %w", err)
		}
		if msg.SetupComplete != nil {
			return nil
		}
	}
}

func (s *LiveSession) readLoop() {
	defer close(s.incoming)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = io.EOF
			}
			s.deliver(inbound{err: err})
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("skipping undecodable live message", "bytes", len(data), "error", err)
			continue
		}
		if msg.GoAway != nil {
			s.logger.Warn("live server going away", "time_left", msg.GoAway.TimeLeft)
		}

		events := translate(msg.ServerContent, s.logger)
		if len(events) == 0 {
			continue
		}
		if !s.deliver(inbound{events: events}) {
			return
		}
	}
}

func (s *LiveSession) deliver(item inbound) bool {
	select {
	case <-s.closeCh:
		return false
	case s.incoming <- item:
		return true
	}
}

// translate flattens one serverContent into events in the order they must be
// applied: audio, input transcript, output transcript, turn complete, interrupted.
func translate(sc *serverContent, logger *slog.Logger) []domain.InboundEvent {
	if sc == nil {
		return nil
	}

	var events []domain.InboundEvent
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			data, err := pcm.DecodeBase64(p.InlineData.Data)
			if err != nil {
				logger.Warn("dropping audio chunk", "mime_type", p.InlineData.MIMEType, "error", err)
				continue
			}
			events = append(events, domain.AudioChunkEvent{Chunk: domain.InboundAudioChunk{
				Data:       data,
				SampleRate: sampleRateOf(p.InlineData.MIMEType, domain.PlaybackFormat.SampleRate),
				Channels:   domain.PlaybackFormat.Channels,
			}})
		}
	}
	if sc.InputTranscription != nil {
		events = append(events, domain.InputTranscriptEvent{Text: sc.InputTranscription.Text})
	}
	if sc.OutputTranscription != nil {
		events = append(events, domain.OutputTranscriptEvent{Text: sc.OutputTranscription.Text})
	}
	if sc.TurnComplete {
		events = append(events, domain.TurnCompleteEvent{})
	}
	if sc.Interrupted {
		events = append(events, domain.InterruptedEvent{})
	}
	return events
}

// sampleRateOf reads the rate parameter of a MIME type like "audio/pcm;rate=24000".
func sampleRateOf(mimeType string, fallback int) int {
	for _, param := range strings.Split(mimeType, ";")[1:] {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || k != "rate" {
			continue
		}
		if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
			return rate
		}
	}
	return fallback
}
