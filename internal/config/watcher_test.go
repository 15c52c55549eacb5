package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/vocalis/internal/config"
)

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vocalis.yaml")
	writeConfigFile(t, path, minimalYAML)

	w, err := config.NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().Server.ListenAddr; got != ":8080" {
		t.Errorf("listen_addr=%q", got)
	}
}

func TestWatcher_InitialLoadFailure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vocalis.yaml")
	writeConfigFile(t, path, "realtime: {}\n")

	if _, err := config.NewWatcher(path, nil); err == nil {
		t.Fatal("NewWatcher accepted invalid config")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vocalis.yaml")
	writeConfigFile(t, path, minimalYAML)

	changed := make(chan *config.Config, 1)
	w, err := config.NewWatcher(path, func(_, cfg *config.Config) {
		select {
		case changed <- cfg:
		default:
		}
	}, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeConfigFile(t, path, `
server:
  listen_addr: ":9090"
realtime:
  api_key: sk-test
`)
	// Force a visible mtime change on filesystems with coarse timestamps.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	select {
	case cfg := <-changed:
		if cfg.Server.ListenAddr != ":9090" {
			t.Errorf("listen_addr=%q after reload", cfg.Server.ListenAddr)
		}
		if w.Current() != cfg {
			t.Error("Current() does not return the reloaded config")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("change was not detected")
	}
}

func TestWatcher_KeepsOldConfigOnInvalidUpdate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vocalis.yaml")
	writeConfigFile(t, path, minimalYAML)

	w, err := config.NewWatcher(path, func(_, _ *config.Config) {
		t.Error("onChange called for an invalid config")
	}, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeConfigFile(t, path, "server:\n  log_level: loud\n")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	if got := w.Current().Realtime.APIKey; got != "sk-test" {
		t.Errorf("Current() lost the last valid config, api_key=%q", got)
	}
}
