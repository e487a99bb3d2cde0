package gemini_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minecraft-ai/internal/application"
	"minecraft-ai/internal/domain"
	"minecraft-ai/internal/infra/gemini"
	"minecraft-ai/internal/pcm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLiveServer runs handler after completing the setup handshake.
func fakeLiveServer(t *testing.T, setups chan<- map[string]any, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if setups != nil {
			setups <- msg
		}
		if err := conn.WriteJSON(map[string]any{"setupComplete": map[string]any{}}); err != nil {
			return
		}
		handler(conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func receiveEvents(t *testing.T, s application.LiveSession) []domain.InboundEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events, err := s.Receive(ctx)
	require.NoError(t, err)
	return events
}

func TestLiveClient_SetupMessage(t *testing.T) {
	setups := make(chan map[string]any, 1)
	server := fakeLiveServer(t, setups, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})

	client := gemini.NewLiveClientWithURL("test-key", wsURL(server), discardLogger())
	session, err := client.Connect(context.Background(), application.DefaultLiveConfig(gemini.DefaultLiveModel, gemini.DefaultVoice))
	require.NoError(t, err)
	defer session.Close()

	msg := <-setups
	setup, ok := msg["setup"].(map[string]any)
	require.True(t, ok, "setup message missing: %v", msg)
	assert.Equal(t, "models/"+gemini.DefaultLiveModel, setup["model"])
	assert.Contains(t, setup, "inputAudioTranscription")
	assert.Contains(t, setup, "outputAudioTranscription")

	gen := setup["generationConfig"].(map[string]any)
	assert.Equal(t, []any{"AUDIO"}, gen["responseModalities"])
	voice := gen["speechConfig"].(map[string]any)["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)
	assert.Equal(t, "Zephyr", voice["voiceName"])

	sys := setup["systemInstruction"].(map[string]any)["parts"].([]any)[0].(map[string]any)
	assert.Contains(t, sys["text"], "Minecraft AI")
}

func TestLiveClient_RejectedKey(t *testing.T) {
	server := fakeLiveServer(t, nil, func(conn *websocket.Conn) {})

	client := gemini.NewLiveClientWithURL("wrong-key", wsURL(server), discardLogger())
	_, err := client.Connect(context.Background(), application.DefaultLiveConfig("m", "Zephyr"))

	var sessErr *domain.SessionError
	require.True(t, errors.As(err, &sessErr), "got %v", err)
}

func TestLiveSession_SendRealtimeInput(t *testing.T) {
	received := make(chan map[string]any, 1)
	server := fakeLiveServer(t, nil, func(conn *websocket.Conn) {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err == nil {
			received <- msg
		}
		_, _, _ = conn.ReadMessage()
	})

	client := gemini.NewLiveClientWithURL("test-key", wsURL(server), discardLogger())
	session, err := client.Connect(context.Background(), application.DefaultLiveConfig("m", "Zephyr"))
	require.NoError(t, err)
	defer session.Close()

	data := pcm.EncodeFrame([]int16{1, 2, 3})
	require.NoError(t, session.SendRealtimeInput(context.Background(), domain.MediaChunk{Data: data, MIMEType: "audio/pcm;rate=16000"}))

	select {
	case msg := <-received:
		chunks := msg["realtimeInput"].(map[string]any)["mediaChunks"].([]any)
		require.Len(t, chunks, 1)
		chunk := chunks[0].(map[string]any)
		assert.Equal(t, "audio/pcm;rate=16000", chunk["mimeType"])
		assert.Equal(t, data, chunk["data"])
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for realtime input")
	}
}

func TestLiveSession_ReceiveTranslatesServerContent(t *testing.T) {
	audio := pcm.Bytes([]int16{100, -100})
	server := fakeLiveServer(t, nil, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"`+
			pcm.EncodeFrame([]int16{100, -100})+`"}}]}}}`))
		_ = conn.WriteJSON(map[string]any{"serverContent": map[string]any{
			"inputTranscription":  map[string]any{"text": "namaste"},
			"outputTranscription": map[string]any{"text": "Namaste crafter"},
		}})
		_ = conn.WriteJSON(map[string]any{"serverContent": map[string]any{"turnComplete": true}})
		_ = conn.WriteJSON(map[string]any{"serverContent": map[string]any{"interrupted": true}})
		_, _, _ = conn.ReadMessage()
	})

	client := gemini.NewLiveClientWithURL("test-key", wsURL(server), discardLogger())
	session, err := client.Connect(context.Background(), application.DefaultLiveConfig("m", "Zephyr"))
	require.NoError(t, err)
	defer session.Close()

	events := receiveEvents(t, session)
	require.Len(t, events, 1)
	chunk := events[0].(domain.AudioChunkEvent).Chunk
	assert.Equal(t, audio, chunk.Data)
	assert.Equal(t, 24000, chunk.SampleRate)
	assert.Equal(t, 1, chunk.Channels)

	assert.Equal(t, []domain.InboundEvent{
		domain.InputTranscriptEvent{Text: "namaste"},
		domain.OutputTranscriptEvent{Text: "Namaste crafter"},
	}, receiveEvents(t, session))
	assert.Equal(t, []domain.InboundEvent{domain.TurnCompleteEvent{}}, receiveEvents(t, session))
	assert.Equal(t, []domain.InboundEvent{domain.InterruptedEvent{}}, receiveEvents(t, session))
}

func TestLiveSession_MalformedAudioDropped(t *testing.T) {
	server := fakeLiveServer(t, nil, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]any{"serverContent": map[string]any{
			"modelTurn": map[string]any{"parts": []any{
				map[string]any{"inlineData": map[string]any{"mimeType": "audio/pcm;rate=24000", "data": "!!not base64!!"}},
			}},
			"turnComplete": true,
		}})
		_, _, _ = conn.ReadMessage()
	})

	client := gemini.NewLiveClientWithURL("test-key", wsURL(server), discardLogger())
	session, err := client.Connect(context.Background(), application.DefaultLiveConfig("m", "Zephyr"))
	require.NoError(t, err)
	defer session.Close()

	assert.Equal(t, []domain.InboundEvent{domain.TurnCompleteEvent{}}, receiveEvents(t, session))
}

func TestLiveSession_ServerCloseIsEOF(t *testing.T) {
	server := fakeLiveServer(t, nil, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		time.Sleep(100 * time.Millisecond)
	})

	client := gemini.NewLiveClientWithURL("test-key", wsURL(server), discardLogger())
	session, err := client.Connect(context.Background(), application.DefaultLiveConfig("m", "Zephyr"))
	require.NoError(t, err)
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = session.Receive(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestLiveSession_CloseIdempotent(t *testing.T) {
	server := fakeLiveServer(t, nil, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})

	client := gemini.NewLiveClientWithURL("test-key", wsURL(server), discardLogger())
	session, err := client.Connect(context.Background(), application.DefaultLiveConfig("m", "Zephyr"))
	require.NoError(t, err)

	_ = session.Close()
	assert.NotPanics(t, func() { _ = session.Close() })

	_, err = session.Receive(context.Background())
	assert.ErrorIs(t, err, gemini.ErrSessionClosed)
	err = session.SendRealtimeInput(context.Background(), domain.MediaChunk{Data: "AA==", MIMEType: "audio/pcm;rate=16000"})
	assert.ErrorIs(t, err, gemini.ErrSessionClosed)
}
