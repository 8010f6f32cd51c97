package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the recorder backend.
type Config struct {
	Mistral   MistralConfig
	Audio     AudioConfig
	Recording RecordingConfig
	Log       LogConfig
}

type MistralConfig struct {
	APIKey        string
	APIBaseURL    string
	RealtimeModel string
	BatchModel    string
	ChatModel     string
	Language      string
}

type AudioConfig struct {
	InputDevice string
	DataDir     string
}

type RecordingConfig struct {
	PollInterval time.Duration
	StreamGrace  time.Duration
	Diarize      bool
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	cfg := Config{
		Mistral: MistralConfig{
			APIKey:        strings.TrimSpace(os.Getenv("MISTRAL_API_KEY")),
			APIBaseURL:    envOrDefault("MISTRAL_API_BASE", "https://api.mistral.ai/v1"),
			RealtimeModel: envOrDefault("MEETSCRIBE_REALTIME_MODEL", "voxtral-mini-transcribe-realtime-2602"),
			BatchModel:    envOrDefault("MEETSCRIBE_BATCH_MODEL", "voxtral-mini-latest"),
			ChatModel:     envOrDefault("MEETSCRIBE_CHAT_MODEL", "mistral-small-latest"),
			Language:      strings.TrimSpace(os.Getenv("MEETSCRIBE_LANGUAGE")),
		},
		Audio: AudioConfig{
			InputDevice: strings.TrimSpace(os.Getenv("MEETSCRIBE_INPUT_DEVICE")),
			DataDir:     envOrDefault("MEETSCRIBE_DATA_DIR", filepath.Join(home, ".local", "share", "meetscribe", "recordings")),
		},
		Recording: RecordingConfig{
			PollInterval: time.Duration(envOrDefaultInt("MEETSCRIBE_POLL_INTERVAL_MS", 10)) * time.Millisecond,
			StreamGrace:  time.Duration(envOrDefaultInt("MEETSCRIBE_STREAM_GRACE_MS", 5000)) * time.Millisecond,
			Diarize:      envOrDefaultBool("MEETSCRIBE_DIARIZE", true),
		},
		Log: LogConfig{
			Level:  envOrDefault("MEETSCRIBE_LOG_LEVEL", "info"),
			Pretty: envOrDefaultBool("MEETSCRIBE_LOG_PRETTY", true),
		},
	}

	if cfg.Recording.PollInterval <= 0 {
		cfg.Recording.PollInterval = 10 * time.Millisecond
	}
	if cfg.Recording.StreamGrace <= 0 {
		cfg.Recording.StreamGrace = 5 * time.Second
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
