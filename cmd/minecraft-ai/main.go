package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"minecraft-ai/config"
	"minecraft-ai/internal/application"
	"minecraft-ai/internal/infra/audio"
	"minecraft-ai/internal/infra/gemini"
	"minecraft-ai/internal/infra/web"
)

// outputDevice is an output device that must be started before its clock runs.
type outputDevice interface {
	application.OutputDevice
	Name() string
	Start() error
	Close() error
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envFile := flag.String("env", ".env", "path to env file loaded before the config")
	startLive := flag.Bool("live", false, "open a live session on startup")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	if cfg.Gemini.APIKey == "" {
		logger.Warn("no API key configured, requests will fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	conv := application.NewConversation()

	textOpts := gemini.DefaultTextOptions()
	textOpts.Model = cfg.Gemini.TextModel
	textOpts.BaseURL = cfg.Gemini.BaseURL
	textClient, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, textOpts)
	if err != nil {
		logger.Error("creating text client", "error", err)
		os.Exit(1)
	}
	chat := application.NewChat(textClient, conv, logger)

	liveURL := cfg.Gemini.LiveURL
	if liveURL == "" {
		liveURL = gemini.DefaultLiveURL
	}
	liveClient := gemini.NewLiveClientWithURL(cfg.Gemini.APIKey, liveURL, logger)

	output := createOutputDevice(cfg.Audio, logger)
	defer output.Close()

	player := application.NewPlaybackScheduler(output, logger)
	manager := application.NewSessionManager(
		createAudioSource(cfg.Audio, logger),
		liveClient,
		player,
		conv,
		application.DefaultLiveConfig(cfg.Gemini.LiveModel, cfg.Gemini.Voice),
		logger,
	)
	manager.SetOutboxSize(cfg.Audio.OutboxSize)

	server := web.NewServer(cfg.HTTP.Addr, chat, manager, conv, logger)
	if err := server.Start(ctx); err != nil {
		logger.Error("starting HTTP server", "error", err)
		os.Exit(1)
	}

	logger.Info("starting minecraft ai",
		"capture", cfg.Audio.Capture,
		"output", output.Name(),
		"addr", cfg.HTTP.Addr,
	)

	if *startLive {
		if err := manager.Start(ctx); err != nil {
			logger.Error("starting live session", "error", err)
		}
	}

	<-ctx.Done()

	if err := manager.Stop(); err != nil {
		logger.Warn("stopping live session", "error", err)
	}
	if err := server.Stop(); err != nil {
		logger.Warn("stopping HTTP server", "error", err)
	}
}

func createAudioSource(cfg config.AudioConfig, logger *slog.Logger) application.AudioSource {
	switch cfg.Capture {
	case "file":
		return audio.NewFileSource(cfg.FilePath, cfg.CaptureSampleRate, logger)
	default:
		return audio.NewMicrophoneSource(cfg.CaptureSampleRate, logger)
	}
}

func createOutputDevice(cfg config.AudioConfig, logger *slog.Logger) outputDevice {
	if cfg.Output == "speaker" {
		speaker := audio.NewSpeaker(cfg.PlaybackSampleRate, logger)
		err := speaker.Start()
		if err == nil {
			return speaker
		}
		logger.Warn("speaker unavailable, playing to null output", "error", err)
	}

	null := audio.NewNullSpeaker(cfg.PlaybackSampleRate, logger)
	_ = null.Start()
	return null
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
