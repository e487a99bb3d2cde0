package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"minecraft-ai/internal/application"
	"minecraft-ai/internal/domain"
)

const (
	maxChatBody     = 4096
	eventBuffer     = 32
	eventWriteWait  = 10 * time.Second
	pruneInterval   = 5 * time.Minute
	shutdownTimeout = 10 * time.Second
)

type ChatService interface {
	Send(ctx context.Context, prompt string) (domain.Message, error)
}

type LiveService interface {
	Start(ctx context.Context) error
	Stop() error
	State() domain.SessionState
}

type Feed interface {
	Messages() []domain.Message
	Transcript() string
	Subscribe(buffer int) (<-chan application.ConversationEvent, func())
}

// Server is the control surface: typed chat, live session start/stop and a
// websocket stream of conversation events.
type Server struct {
	addr   string
	chat   ChatService
	live   LiveService
	feed   Feed
	logger *slog.Logger

	mux         *http.ServeMux
	rateLimiter *RateLimiter
	upgrader    websocket.Upgrader

	mu      sync.Mutex
	server  *http.Server
	running bool
	stop    chan struct{}
}

func NewServer(addr string, chat ChatService, live LiveService, feed Feed, logger *slog.Logger) *Server {
	s := &Server{
		addr:        addr,
		chat:        chat,
		live:        live,
		feed:        feed,
		logger:      logger,
		mux:         http.NewServeMux(),
		rateLimiter: NewRateLimiter(30, time.Minute), // 30 requests per minute per IP
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	s.mux.HandleFunc("POST /chat", s.rateLimiter.Middleware(s.handleChat))
	s.mux.HandleFunc("POST /live/start", s.rateLimiter.Middleware(s.handleLiveStart))
	s.mux.HandleFunc("POST /live/stop", s.handleLiveStop)
	s.mux.HandleFunc("GET /messages", s.handleMessages)
	s.mux.HandleFunc("GET /events", s.handleEvents)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.stop = make(chan struct{})

	go func() {
		s.logger.Info("HTTP server starting", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()
	go s.pruneLoop(s.stop)

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	close(s.stop)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}

	s.running = false
	return nil
}

func (s *Server) pruneLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.rateLimiter.Prune()
		}
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply   string         `json:"reply"`
	Message domain.Message `json:"message"`
}

type liveResponse struct {
	State domain.SessionState `json:"state"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxChatBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := s.chat.Send(r.Context(), req.Message)
	switch {
	case errors.Is(err, domain.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, "empty message")
		return
	case errors.Is(err, domain.ErrChatBusy):
		writeError(w, http.StatusConflict, "a reply is already in progress")
		return
	case err != nil:
		s.logger.Error("chat request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "chat failed")
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Reply: msg.Content, Message: msg})
}

func (s *Server) handleLiveStart(w http.ResponseWriter, r *http.Request) {
	err := s.live.Start(r.Context())

	var permErr *domain.PermissionError
	var sessErr *domain.SessionError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, liveResponse{State: s.live.State()})
	case errors.Is(err, domain.ErrSessionActive):
		writeError(w, http.StatusConflict, "live session already active")
	case errors.Is(err, domain.ErrStartCancelled):
		writeError(w, http.StatusConflict, "live session start cancelled")
	case errors.As(err, &permErr):
		s.logger.Warn("audio capture unavailable", "device", permErr.Device, "error", permErr.Err)
		writeError(w, http.StatusForbidden, "Microphone access is required for Live Mode.")
	case errors.As(err, &sessErr):
		s.logger.Error("opening live session", "error", err)
		writeError(w, http.StatusBadGateway, "could not open live session")
	default:
		s.logger.Error("starting live session", "error", err)
		writeError(w, http.StatusInternalServerError, "could not start live session")
	}
}

func (s *Server) handleLiveStop(w http.ResponseWriter, _ *http.Request) {
	if err := s.live.Stop(); err != nil {
		s.logger.Warn("stopping live session", "error", err)
	}
	writeJSON(w, http.StatusOK, liveResponse{State: s.live.State()})
}

func (s *Server) handleMessages(w http.ResponseWriter, _ *http.Request) {
	msgs := s.feed.Messages()
	if msgs == nil {
		msgs = []domain.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// handleEvents streams conversation events over a websocket, starting with a
// snapshot of the live state and transcript.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.feed.Subscribe(eventBuffer)
	defer unsubscribe()

	// Reading is only needed to notice the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snapshot := []application.ConversationEvent{
		{Type: application.EventLiveState, State: s.live.State()},
		{Type: application.EventTranscript, Transcript: s.feed.Transcript()},
	}
	for _, ev := range snapshot {
		if err := writeEvent(conn, ev); err != nil {
			return
		}
	}

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				s.logger.Debug("event stream closed", "error", err)
				return
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	status := "ok"
	statusCode := http.StatusOK
	if !running {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, map[string]any{
		"status":  status,
		"running": running,
		"live":    s.live.State(),
	})
}

func writeEvent(conn *websocket.Conn, ev application.ConversationEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(eventWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
