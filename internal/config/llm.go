package config

import "time"

// LLMConfig configures the vision model client.
//
// Every outbound model call carries a bounded retry count and a fixed
// timeout; on exhaustion callers fall back to their documented sentinel
// behavior instead of hanging a run.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`

	// Timeout applies per call.
	Timeout string `yaml:"timeout"`

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `yaml:"max_retries"`

	// MaxOutputTokens caps the response size.
	MaxOutputTokens int `yaml:"max_output_tokens"`
}

// DefaultLLMConfig returns sensible defaults for the model client.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Model:           "gemini-2.0-flash",
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
		Timeout:         "30s",
		MaxRetries:      2,
		MaxOutputTokens: 8192,
	}
}

// GetTimeout returns the per-call timeout as a duration.
func (c LLMConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
