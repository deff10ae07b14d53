package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the recording assistant.
type Config struct {
	AssemblyAI AssemblyAIConfig
	OpenAI     OpenAIConfig
	Audio      AudioConfig
	History    HistoryConfig
	Session    SessionConfig
}

type AssemblyAIConfig struct {
	APIKey                       string
	Endpoint                     string
	Language                     string
	FormatTurns                  bool
	EndOfTurnConfidenceThreshold float64
	MinEndOfTurnSilenceMs        int
	MaxTurnSilenceMs             int
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type HistoryConfig struct {
	Path string
}

type SessionConfig struct {
	ChunkSize      int
	StreamingGrace time.Duration
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	historyPath := envOrDefault("MEMOAI_HISTORY_FILE", filepath.Join(home, ".config", "memoai", "history.json"))

	cfg := Config{
		AssemblyAI: AssemblyAIConfig{
			APIKey:                       strings.TrimSpace(os.Getenv("ASSEMBLYAI_API_KEY")),
			Endpoint:                     envOrDefault("ASSEMBLYAI_STREAMING_URL", "wss://streaming.assemblyai.com/v3/ws"),
			Language:                     strings.TrimSpace(os.Getenv("ASSEMBLYAI_LANGUAGE")),
			FormatTurns:                  envOrDefaultBool("ASSEMBLYAI_FORMAT_TURNS", true),
			EndOfTurnConfidenceThreshold: envOrDefaultFloat("ASSEMBLYAI_END_OF_TURN_CONFIDENCE", 0.7),
			MinEndOfTurnSilenceMs:        envOrDefaultInt("ASSEMBLYAI_MIN_END_OF_TURN_SILENCE_MS", 160),
			MaxTurnSilenceMs:             envOrDefaultInt("ASSEMBLYAI_MAX_TURN_SILENCE_MS", 2400),
		},
		OpenAI: OpenAIConfig{
			APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			BaseURL: envOrDefault("OPENAI_API_BASE", "https://api.openai.com/v1"),
			Model:   envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout: time.Duration(envOrDefaultInt("MEMOAI_SUMMARY_TIMEOUT_MS", 45000)) * time.Millisecond,
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("MEMOAI_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     strings.TrimSpace(os.Getenv("MEMOAI_AUDIO_INPUT_FORMAT")),
			InputDevice:     strings.TrimSpace(os.Getenv("MEMOAI_AUDIO_INPUT_DEVICE")),
			SampleRate:      envOrDefaultInt("MEMOAI_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("MEMOAI_CHANNELS", 1),
		},
		History: HistoryConfig{
			Path: historyPath,
		},
		Session: SessionConfig{
			ChunkSize:      envOrDefaultInt("MEMOAI_AUDIO_CHUNK_SIZE", 4096),
			StreamingGrace: time.Duration(envOrDefaultInt("MEMOAI_STREAMING_GRACE_MS", 1000)) * time.Millisecond,
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.Session.StreamingGrace < 0 {
		cfg.Session.StreamingGrace = 0
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

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
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
