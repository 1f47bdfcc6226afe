package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Session       SessionConfig       `yaml:"session"`
	API           APIConfig           `yaml:"api"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// AudioConfig contains microphone capture parameters
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	BitDepth   int `yaml:"bit_depth"`
	QueueDepth int `yaml:"queue_depth"` // buffered capture chunks
}

// TranscriptionConfig contains transcription API configuration
type TranscriptionConfig struct {
	BaseURL       string `yaml:"base_url"`
	AuthToken     string `yaml:"auth_token"`
	Timeout       int    `yaml:"timeout"`        // seconds
	HealthTimeout int    `yaml:"health_timeout"` // seconds
}

// SessionConfig contains dictation session parameters
type SessionConfig struct {
	TranscribeTimeout int    `yaml:"transcribe_timeout"` // seconds
	ScratchDir        string `yaml:"scratch_dir"`
}

// APIConfig contains debug HTTP API server configuration
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns a configuration with working defaults for everything
// except the transcription credentials, which have no sensible default.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
			BitDepth:   16,
			QueueDepth: 32,
		},
		Transcription: TranscriptionConfig{
			Timeout:       60,
			HealthTimeout: 3,
		},
		Session: SessionConfig{
			TranscribeTimeout: 65,
		},
		API: APIConfig{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file, overlaying it on the
// defaults so a partial file stays valid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// ApplyEnv lets environment variables override the file for the two
// values that usually come from the environment rather than the file.
// Load calls it automatically; callers that build a Config without a
// file should call it themselves.
func (c *Config) ApplyEnv() {
	if url := os.Getenv("VOXTYPE_BASE_URL"); url != "" {
		c.Transcription.BaseURL = url
	}

	if token := os.Getenv("VOXTYPE_AUTH_TOKEN"); token != "" {
		c.Transcription.AuthToken = token
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}

	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	if a.QueueDepth < 1 {
		return fmt.Errorf("queue_depth must be at least 1, got %d", a.QueueDepth)
	}

	return nil
}

// Validate validates transcription configuration. An empty base_url and
// auth_token pair is allowed here; the session controller treats the
// unconfigured state as a user-facing condition, not a startup failure.
func (t *TranscriptionConfig) Validate() error {
	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.HealthTimeout < 1 {
		return fmt.Errorf("health_timeout must be at least 1 second, got %d", t.HealthTimeout)
	}

	return nil
}

// Validate validates session configuration
func (s *SessionConfig) Validate() error {
	if s.TranscribeTimeout < 1 {
		return fmt.Errorf("transcribe_timeout must be at least 1 second, got %d", s.TranscribeTimeout)
	}

	if s.ScratchDir != "" {
		info, err := os.Stat(s.ScratchDir)
		if err != nil {
			return fmt.Errorf("scratch_dir %s is not accessible: %w", s.ScratchDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("scratch_dir %s is not a directory", s.ScratchDir)
		}
	}

	return nil
}

// Validate validates API configuration
func (a *APIConfig) Validate() error {
	if a.Enabled {
		if a.Port < 1 || a.Port > 65535 {
			return fmt.Errorf("api port must be between 1 and 65535, got %d", a.Port)
		}

		if a.Address == "" {
			return fmt.Errorf("api address cannot be empty when the API is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	validOutputs := map[string]bool{"stdout": true, "stderr": true}
	if !validOutputs[l.Output] {
		return fmt.Errorf("output must be 'stdout' or 'stderr', got '%s'", l.Output)
	}

	return nil
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetHealthTimeoutDuration returns the health check timeout as a time.Duration
func (t *TranscriptionConfig) GetHealthTimeoutDuration() time.Duration {
	return time.Duration(t.HealthTimeout) * time.Second
}

// GetTranscribeTimeoutDuration returns the session deadline as a time.Duration
func (s *SessionConfig) GetTranscribeTimeoutDuration() time.Duration {
	return time.Duration(s.TranscribeTimeout) * time.Second
}
