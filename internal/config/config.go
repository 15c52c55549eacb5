// Package config provides the configuration schema and loader for the
// Vocalis transcript service.
package config

import "time"

// LogLevel controls log verbosity for the Vocalis server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Vocalis.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Summary  SummaryConfig  `yaml:"summary"`
}

// ServerConfig holds network and logging settings for the Vocalis server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// RealtimeConfig configures the realtime model session and the browser-facing
// proxy endpoints. The API key never leaves the server; browsers obtain
// short-lived session tokens through the token proxy instead.
type RealtimeConfig struct {
	// APIKey authenticates against the model provider.
	APIKey string `yaml:"api_key"`

	// Model selects the realtime model (e.g., "gpt-4o-realtime-preview").
	Model string `yaml:"model"`

	// BaseURL overrides the provider's WebSocket endpoint. Leave empty for
	// the provider default.
	BaseURL string `yaml:"base_url"`

	// SessionsURL overrides the HTTP endpoint used to mint ephemeral client
	// tokens. Leave empty for the provider default.
	SessionsURL string `yaml:"sessions_url"`

	// SDPURL overrides the HTTP endpoint the SDP offer/answer exchange is
	// proxied to. Leave empty for the provider default.
	SDPURL string `yaml:"sdp_url"`

	// Voice selects the assistant voice for the session.
	Voice string `yaml:"voice"`

	// Instructions is the system prompt configured on each session.
	Instructions string `yaml:"instructions"`

	// ReconnectBackoff is the initial redial backoff after a dropped
	// session. Zero means the built-in default.
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`
}

// ArchiveConfig configures the optional PostgreSQL transcript archive.
type ArchiveConfig struct {
	// PostgresDSN is the connection string. Empty disables archiving.
	PostgresDSN string `yaml:"postgres_dsn"`

	// EmbeddingDimensions must match the embedding model's output dimension
	// (e.g., 1536 for text-embedding-3-small). Used by the semantic index
	// schema; defaults to 1536 when unset.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`

	// EmbeddingModel selects the embedding model for the semantic index.
	// Empty disables semantic indexing (plain archiving still works).
	EmbeddingModel string `yaml:"embedding_model"`
}

// SummaryConfig configures the optional end-of-session recap.
type SummaryConfig struct {
	// Provider is the LLM provider name ("openai", "anthropic", "ollama",
	// "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile").
	// Empty disables summarisation.
	Provider string `yaml:"provider"`

	// Model is the model used for recaps (e.g., "gpt-4o-mini").
	Model string `yaml:"model"`

	// APIKey authenticates against the summary provider. Falls back to the
	// provider's environment variable when empty.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider endpoint (for local inference servers).
	BaseURL string `yaml:"base_url"`
}
