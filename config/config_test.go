package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minecraft-ai/config"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_KEY", "from-env")
	path := writeConfig(t, t.TempDir(), "{}\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Gemini.APIKey)
	assert.Equal(t, "gemini-3-flash-preview", cfg.Gemini.TextModel)
	assert.Equal(t, "Zephyr", cfg.Gemini.Voice)
	assert.Equal(t, "microphone", cfg.Audio.Capture)
	assert.Equal(t, "speaker", cfg.Audio.Output)
	assert.Equal(t, 16000, cfg.Audio.CaptureSampleRate)
	assert.Equal(t, 24000, cfg.Audio.PlaybackSampleRate)
	assert.Equal(t, 40, cfg.Audio.OutboxSize)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_ExpandsEnvFromDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MC_TEST_KEY", "")
	require.NoError(t, os.Unsetenv("MC_TEST_KEY"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MC_TEST_KEY=secret\n"), 0o644))
	path := writeConfig(t, dir, `
gemini:
  api_key: ${MC_TEST_KEY}
  voice: Puck
audio:
  capture: file
  file_path: ./hello.wav
  output: "null"
log:
  format: json
`)

	cfg, err := config.Load(path, filepath.Join(dir, ".env"))
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Gemini.APIKey)
	assert.Equal(t, "Puck", cfg.Gemini.Voice)
	assert.Equal(t, "file", cfg.Audio.Capture)
	assert.Equal(t, "./hello.wav", cfg.Audio.FilePath)
	assert.Equal(t, "null", cfg.Audio.Output)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "http:\n  addr: \":9090\"\n")

	cfg, err := config.Load(path, filepath.Join(dir, "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad yaml", body: "gemini: [\n"},
		{name: "unknown capture", body: "audio:\n  capture: radio\n"},
		{name: "file without path", body: "audio:\n  capture: file\n"},
		{name: "unknown output", body: "audio:\n  output: hdmi\n"},
		{name: "unsupported playback rate", body: "audio:\n  playback_sample_rate: 44100\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, t.TempDir(), tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
