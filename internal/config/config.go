// Package config holds all urbanflow configuration: the triage pipeline,
// the model client, the backend record store, the chat and sentinel
// subsystems, and the HTTP server. Configuration is loaded from a YAML file
// with environment-variable overrides applied on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all urbanflow configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// HTTP server
	Server ServerConfig `yaml:"server"`

	// Vision model client
	LLM LLMConfig `yaml:"llm"`

	// Backend record store
	Backend BackendConfig `yaml:"backend"`

	// Caller identity verification
	Auth AuthConfig `yaml:"auth"`

	// Triage pipeline tuning
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Sentinel transcript watch
	Sentinel SentinelConfig `yaml:"sentinel"`

	// Local run audit store
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BackendConfig configures the external record store service.
type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// AuthConfig configures bearer token verification. UserinfoURL points at the
// identity provider's OIDC userinfo endpoint.
type AuthConfig struct {
	UserinfoURL string `yaml:"userinfo_url"`
}

// StoreConfig configures the local SQLite run audit store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Level     string `yaml:"level"` // debug, info, warn, error
	DataDir   string `yaml:"data_dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "urbanflow",
		Version: "1.0.0",

		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 10000,
		},

		LLM: DefaultLLMConfig(),

		Backend: BackendConfig{
			BaseURL: "http://localhost:3000",
			Timeout: "5s",
		},

		Auth: AuthConfig{},

		Pipeline: DefaultPipelineConfig(),

		Sentinel: DefaultSentinelConfig(),

		Store: StoreConfig{
			DatabasePath: "data/urbanflow.db",
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
			DataDir:   "data",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults;
// environment variables override either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
	}
	if url := os.Getenv("BACKEND_URL"); url != "" {
		c.Backend.BaseURL = url
	}
	if port := os.Getenv("PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
	if model := os.Getenv("URBANFLOW_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if path := os.Getenv("URBANFLOW_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if os.Getenv("URBANFLOW_DEBUG") == "1" {
		c.Logging.DebugMode = true
	}
	if url := os.Getenv("AUTH_USERINFO_URL"); url != "" {
		c.Auth.UserinfoURL = url
	}
	if url := os.Getenv("TRANSCRIBER_URL"); url != "" {
		c.Sentinel.TranscriberURL = url
	}
}

// GetBackendTimeout returns the backend call timeout as a duration.
func (c *Config) GetBackendTimeout() time.Duration {
	d, err := time.ParseDuration(c.Backend.Timeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetTranscriberTimeout returns the transcription call timeout as a duration.
func (c *Config) GetTranscriberTimeout() time.Duration {
	d, err := time.ParseDuration(c.Sentinel.TranscriberTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("model API key not configured (set GEMINI_API_KEY or GOOGLE_API_KEY)")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base URL not configured")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	return nil
}
