// Package config provides the configuration structure for the elevenlabs-service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Environment variables. The API key is a secret and is only ever read from
// the environment, never from the TOML file.
const (
	envAPIKey  = "ELEVENLABS_API_KEY"
	envVoiceID = "ELEVENLABS_VOICE_ID"
	envPort    = "PORT"
)

// apiKeyPlaceholder is the sample value shipped in .env templates. It is
// treated the same as an absent key.
const apiKeyPlaceholder = "your-elevenlabs-api-key-here"

// Defaults applied when the TOML file omits a value.
const (
	defaultPort           = 8001
	defaultTimeoutSeconds = 60
	defaultWorkers        = 4
	defaultVoiceID        = "21m00Tcm4TlvDq8ikWAM"
	defaultTTSModel       = "eleven_monolingual_v1"
	defaultSTTModel       = "scribe_v1"
	defaultBaseURL        = "https://api.elevenlabs.io"

	maxPort = 65535
)

var (
	// ErrAPIKeyMissing indicates the API key is absent or still set to the
	// placeholder value. The service refuses to start without a credential.
	ErrAPIKeyMissing = errors.New("ELEVENLABS_API_KEY is not configured")
	// ErrPortOutOfRange indicates an invalid listen port.
	ErrPortOutOfRange = errors.New("server port must be between 1 and 65535")
	// ErrTimeoutNotPositive indicates an invalid provider timeout.
	ErrTimeoutNotPositive = errors.New("elevenlabs timeout_seconds must be positive")
	// ErrWorkersNotPositive indicates an invalid worker pool size.
	ErrWorkersNotPositive = errors.New("elevenlabs max_concurrent_requests must be positive")
)

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ElevenLabsConfig holds the provider adapter configuration. The APIKey field
// is populated from the environment and deliberately carries no TOML tag
// target so it can never be committed alongside the rest of the config.
type ElevenLabsConfig struct {
	BaseURL               string `toml:"base_url"`
	DefaultVoiceID        string `toml:"default_voice_id"`
	DefaultTTSModel       string `toml:"default_tts_model"`
	DefaultSTTModel       string `toml:"default_stt_model"`
	TimeoutSeconds        int    `toml:"timeout_seconds"`
	MaxConcurrentRequests int    `toml:"max_concurrent_requests"`
	APIKey                string `toml:"-"`
}

// STTConfig holds the speech-to-text behavior switches.
type STTConfig struct {
	// AllowDegraded makes the facade answer with a fixed placeholder
	// transcript (confidence 0.80) when every transcription path fails,
	// instead of returning an error to the caller.
	AllowDegraded bool `toml:"allow_degraded"`
}

// NATSConfig holds the optional audio archive configuration. An empty URL
// disables the feature.
type NATSConfig struct {
	URL                      string `toml:"url"`
	AudioChunkCreatedSubject string `toml:"audio_chunk_created_subject"`
	AudioObjectStoreBucket   string `toml:"audio_object_store_bucket"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	ElevenLabs ElevenLabsConfig `toml:"elevenlabs"`
	STT        STTConfig        `toml:"stt"`
	NATS       NATSConfig       `toml:"nats"`
	Paths      PathsConfig      `toml:"paths"`
}

// Load loads the configuration for the elevenlabs-service, applies defaults
// and environment overrides, and validates the result.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	err = cfg.Finalize()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Finalize applies defaults and environment overrides, then validates the
// configuration. It is exposed separately from Load so tests can exercise it
// against hand-built configurations.
func (c *Config) Finalize() error {
	c.applyDefaults()

	err := c.applyEnvironment()
	if err != nil {
		return err
	}

	return c.validate()
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}

	if c.ElevenLabs.BaseURL == "" {
		c.ElevenLabs.BaseURL = defaultBaseURL
	}

	if c.ElevenLabs.DefaultVoiceID == "" {
		c.ElevenLabs.DefaultVoiceID = defaultVoiceID
	}

	if c.ElevenLabs.DefaultTTSModel == "" {
		c.ElevenLabs.DefaultTTSModel = defaultTTSModel
	}

	if c.ElevenLabs.DefaultSTTModel == "" {
		c.ElevenLabs.DefaultSTTModel = defaultSTTModel
	}

	if c.ElevenLabs.TimeoutSeconds == 0 {
		c.ElevenLabs.TimeoutSeconds = defaultTimeoutSeconds
	}

	if c.ElevenLabs.MaxConcurrentRequests == 0 {
		c.ElevenLabs.MaxConcurrentRequests = defaultWorkers
	}
}

func (c *Config) applyEnvironment() error {
	c.ElevenLabs.APIKey = os.Getenv(envAPIKey)

	if voiceID := os.Getenv(envVoiceID); voiceID != "" {
		c.ElevenLabs.DefaultVoiceID = voiceID
	}

	if portValue := os.Getenv(envPort); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil {
			return fmt.Errorf("failed to parse %s value %q: %w", envPort, portValue, err)
		}

		c.Server.Port = port
	}

	return nil
}

func (c *Config) validate() error {
	if c.ElevenLabs.APIKey == "" || c.ElevenLabs.APIKey == apiKeyPlaceholder {
		return ErrAPIKeyMissing
	}

	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("%w: got %d", ErrPortOutOfRange, c.Server.Port)
	}

	if c.ElevenLabs.TimeoutSeconds < 1 {
		return fmt.Errorf("%w: got %d", ErrTimeoutNotPositive, c.ElevenLabs.TimeoutSeconds)
	}

	if c.ElevenLabs.MaxConcurrentRequests < 1 {
		return fmt.Errorf("%w: got %d", ErrWorkersNotPositive, c.ElevenLabs.MaxConcurrentRequests)
	}

	return nil
}
