package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"gochat/internal/chat"
	"gochat/internal/openai"
)

// apiKeyEnv is consulted before the configuration file for the bearer token.
const apiKeyEnv = "OPENAI_API_KEY"

// Config represents the application configuration parsed from YAML.
type Config struct {
	APIKey     string           `yaml:"api_key"`
	BaseURL    string           `yaml:"base_url"`
	Chat       ChatConfig       `yaml:"chat"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Server     ServerConfig     `yaml:"server"`
}

// ChatConfig holds default request parameters for the chat command.
type ChatConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	NoStream    bool    `yaml:"no_stream"`
	System      string  `yaml:"system"`
}

// TranscriptConfig controls transcript labels and the context token budget.
type TranscriptConfig struct {
	LabelUser      string  `yaml:"label_user"`
	LabelAssistant string  `yaml:"label_assistant"`
	TokensMax      int     `yaml:"tokens_max"`
	TokensBalance  float64 `yaml:"tokens_balance"`
}

// ServerConfig defines listener configuration for the relay.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Chat: ChatConfig{
			Model:       "gpt-4",
			Temperature: 0.8,
		},
		Transcript: TranscriptConfig{
			LabelUser:      "USER",
			LabelAssistant: "AI",
			TokensMax:      4096,
			TokensBalance:  0.5,
		},
		Server: ServerConfig{Port: 8090},
	}
}

// Load reads YAML configuration from disk, layered over the defaults, and
// validates the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Chat.Model) == "" {
		return fmt.Errorf("chat.model must not be empty")
	}
	if strings.TrimSpace(c.Transcript.LabelUser) == "" {
		return fmt.Errorf("transcript.label_user must not be empty")
	}
	if strings.TrimSpace(c.Transcript.LabelAssistant) == "" {
		return fmt.Errorf("transcript.label_assistant must not be empty")
	}
	if c.Transcript.TokensMax <= 0 {
		return fmt.Errorf("transcript.tokens_max must be positive, got %d", c.Transcript.TokensMax)
	}
	if c.Transcript.TokensBalance <= 0 || c.Transcript.TokensBalance > 1 {
		return fmt.Errorf("transcript.tokens_balance must be in (0, 1], got %g", c.Transcript.TokensBalance)
	}
	return nil
}

// BearerToken resolves the API credential once for the whole run: the
// environment wins, the configuration file is the fallback, and the absence
// of both fails before any request is sent.
func (c Config) BearerToken() (string, error) {
	if key := os.Getenv(apiKeyEnv); key != "" {
		return key, nil
	}
	if key := strings.TrimSpace(c.APIKey); key != "" {
		return key, nil
	}
	return "", openai.ErrUnauthorized
}

// Labels returns the configured transcript tags.
func (c Config) Labels() chat.Labels {
	return chat.Labels{
		System:    "SYSTEM",
		User:      c.Transcript.LabelUser,
		Assistant: c.Transcript.LabelAssistant,
	}
}

// Budget returns the configured context token budget.
func (c Config) Budget() (int, float64) {
	return c.Transcript.TokensMax, c.Transcript.TokensBalance
}
