package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/vocalis/internal/config"
)

const minimalYAML = `
server:
  listen_addr: ":8080"
  log_level: info
realtime:
  api_key: sk-test
`

func TestLoadFromReader_Minimal(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr=%q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level=%q", cfg.Server.LogLevel)
	}
	if cfg.Realtime.APIKey != "sk-test" {
		t.Errorf("api_key=%q", cfg.Realtime.APIKey)
	}
}

func TestLoadFromReader_Full(t *testing.T) {
	t.Parallel()

	const yaml = `
server:
  listen_addr: ":9443"
  log_level: debug
  tls:
    cert_file: /etc/vocalis/cert.pem
    key_file: /etc/vocalis/key.pem
realtime:
  api_key: sk-test
  model: gpt-4o-realtime-preview
  voice: alloy
  instructions: "You are a helpful assistant."
  reconnect_backoff: 2s
archive:
  postgres_dsn: postgres://vocalis@localhost/vocalis
  embedding_dimensions: 1536
  embedding_model: text-embedding-3-small
summary:
  provider: openai
  model: gpt-4o-mini
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.TLS == nil || cfg.Server.TLS.CertFile != "/etc/vocalis/cert.pem" {
		t.Errorf("tls=%+v", cfg.Server.TLS)
	}
	if cfg.Realtime.Voice != "alloy" {
		t.Errorf("voice=%q", cfg.Realtime.Voice)
	}
	if cfg.Archive.EmbeddingDimensions != 1536 {
		t.Errorf("embedding_dimensions=%d", cfg.Archive.EmbeddingDimensions)
	}
	if cfg.Summary.Provider != "openai" {
		t.Errorf("summary.provider=%q", cfg.Summary.Provider)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	const yaml = `
realtime:
  api_key: sk-test
  api_keey: typo
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestValidate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantSub string
	}{
		{
			name:    "missing api key",
			mutate:  func(c *config.Config) { c.Realtime.APIKey = "" },
			wantSub: "realtime.api_key",
		},
		{
			name:    "bad log level",
			mutate:  func(c *config.Config) { c.Server.LogLevel = "verbose" },
			wantSub: "server.log_level",
		},
		{
			name:    "tls missing key file",
			mutate:  func(c *config.Config) { c.Server.TLS = &config.TLSConfig{CertFile: "c.pem"} },
			wantSub: "server.tls",
		},
		{
			name:    "unknown summary provider",
			mutate:  func(c *config.Config) { c.Summary.Provider = "skynet"; c.Summary.Model = "t-800" },
			wantSub: "summary.provider",
		},
		{
			name:    "summary provider without model",
			mutate:  func(c *config.Config) { c.Summary.Provider = "openai" },
			wantSub: "summary.model",
		},
		{
			name:    "negative reconnect backoff",
			mutate:  func(c *config.Config) { c.Realtime.ReconnectBackoff = -1 },
			wantSub: "reconnect_backoff",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := &config.Config{
				Server:   config.ServerConfig{LogLevel: config.LogInfo},
				Realtime: config.RealtimeConfig{APIKey: "sk-test"},
			}
			tc.mutate(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate accepted invalid config")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestValidate_JoinsAllFailures(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: "loud"},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("Validate accepted invalid config")
	}
	for _, sub := range []string{"server.log_level", "realtime.api_key"} {
		if !strings.Contains(err.Error(), sub) {
			t.Errorf("joined error %q missing %q", err, sub)
		}
	}
}
