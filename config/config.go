package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// liveOutputRate is the rate of the audio the live model speaks.
const liveOutputRate = 24000

type Config struct {
	Gemini GeminiConfig `yaml:"gemini"`
	Audio  AudioConfig  `yaml:"audio"`
	HTTP   HTTPConfig   `yaml:"http"`
	Log    LogConfig    `yaml:"log"`
}

type GeminiConfig struct {
	APIKey    string `yaml:"api_key"`
	TextModel string `yaml:"text_model"`
	LiveModel string `yaml:"live_model"`
	Voice     string `yaml:"voice"`
	LiveURL   string `yaml:"live_url"`
	BaseURL   string `yaml:"base_url"`
}

type AudioConfig struct {
	// Capture is "microphone" or "file".
	Capture string `yaml:"capture"`
	// FilePath is replayed when Capture is "file".
	FilePath string `yaml:"file_path"`
	// Output is "speaker" or "null".
	Output             string `yaml:"output"`
	CaptureSampleRate  int    `yaml:"capture_sample_rate"`
	PlaybackSampleRate int    `yaml:"playback_sample_rate"`
	OutboxSize         int    `yaml:"outbox_size"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config after loading envFiles into the environment, so
// ${VAR} references can come from a .env file. Missing env files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading env file %s: %w", f, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv("API_KEY")
	}
	if c.Gemini.TextModel == "" {
		c.Gemini.TextModel = "gemini-3-flash-preview"
	}
	if c.Gemini.LiveModel == "" {
		c.Gemini.LiveModel = "gemini-2.5-flash-native-audio-preview-12-2025"
	}
	if c.Gemini.Voice == "" {
		c.Gemini.Voice = "Zephyr"
	}
	if c.Audio.Capture == "" {
		c.Audio.Capture = "microphone"
	}
	if c.Audio.Output == "" {
		c.Audio.Output = "speaker"
	}
	if c.Audio.CaptureSampleRate == 0 {
		c.Audio.CaptureSampleRate = 16000
	}
	if c.Audio.PlaybackSampleRate == 0 {
		c.Audio.PlaybackSampleRate = liveOutputRate
	}
	if c.Audio.OutboxSize == 0 {
		c.Audio.OutboxSize = 40
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	switch c.Audio.Capture {
	case "microphone":
	case "file":
		if c.Audio.FilePath == "" {
			return errors.New("audio.file_path is required when audio.capture is file")
		}
	default:
		return fmt.Errorf("unknown audio.capture %q", c.Audio.Capture)
	}
	if c.Audio.PlaybackSampleRate != liveOutputRate {
		return fmt.Errorf("audio.playback_sample_rate must be %d, the live model's output rate", liveOutputRate)
	}
	switch c.Audio.Output {
	case "speaker", "null":
	default:
		return fmt.Errorf("unknown audio.output %q", c.Audio.Output)
	}
	return nil
}
