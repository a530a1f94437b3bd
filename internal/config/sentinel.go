package config

// SentinelConfig configures the transcript keyword watch.
type SentinelConfig struct {
	// Enabled toggles the /ws/audio endpoint.
	Enabled bool `yaml:"enabled"`

	// DefaultKeywords are always active for every user, merged with the
	// per-user keywords fetched from the backend.
	DefaultKeywords []string `yaml:"default_keywords"`

	// MinTranscriptLen drops fragments shorter than this (except a small
	// allowlist of meaningful short words).
	MinTranscriptLen int `yaml:"min_transcript_len"`

	// TranscriberURL is the speech-to-text service endpoint. Empty disables
	// audio sessions even when Enabled is true.
	TranscriberURL string `yaml:"transcriber_url"`

	// TranscriberTimeout bounds each transcription call.
	TranscriberTimeout string `yaml:"transcriber_timeout"`
}

// DefaultSentinelConfig returns the default sentinel settings.
func DefaultSentinelConfig() SentinelConfig {
	return SentinelConfig{
		Enabled:            true,
		DefaultKeywords:    []string{"help", "emergency", "save me"},
		MinTranscriptLen:   2,
		TranscriberURL:     "",
		TranscriberTimeout: "30s",
	}
}
