package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// validSummaryProviders lists the LLM provider names the summariser can be
// configured with. Used by [Validate] to reject unknown names early.
var validSummaryProviders = []string{
	"openai", "anthropic", "gemini", "ollama",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Realtime
	if cfg.Realtime.APIKey == "" {
		errs = append(errs, errors.New("realtime.api_key must be set"))
	}
	if cfg.Realtime.ReconnectBackoff < 0 {
		errs = append(errs, errors.New("realtime.reconnect_backoff must not be negative"))
	}

	// Archive
	if cfg.Archive.EmbeddingDimensions < 0 {
		errs = append(errs, errors.New("archive.embedding_dimensions must not be negative"))
	}
	if cfg.Archive.PostgresDSN == "" {
		slog.Warn("archive.postgres_dsn is empty; finished sessions will not be archived")
	}
	if cfg.Archive.EmbeddingModel != "" && cfg.Archive.EmbeddingDimensions <= 0 {
		slog.Warn("archive.embedding_model is configured but archive.embedding_dimensions is not set; defaulting to 1536")
	}

	// Summary
	if p := cfg.Summary.Provider; p != "" {
		if !slices.Contains(validSummaryProviders, p) {
			errs = append(errs, fmt.Errorf("summary.provider %q is unknown; valid values: %v", p, validSummaryProviders))
		}
		if cfg.Summary.Model == "" {
			errs = append(errs, errors.New("summary.model must be set when summary.provider is configured"))
		}
	}

	return errors.Join(errs...)
}
