package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Store.Driver = %q, want sqlite", cfg.Store.Driver)
	}
	if cfg.Notify.Transport != "log" {
		t.Errorf("Notify.Transport = %q, want log", cfg.Notify.Transport)
	}
	if cfg.Auth.TokenTTLHours != 24 {
		t.Errorf("TokenTTLHours = %d, want 24", cfg.Auth.TokenTTLHours)
	}
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := writeTempConfig(t, `
listen_addr = ":9000"

[log]
level = "debug"

[store]
driver = "memory"

[auth]
jwt_secret = "file-secret"
token_ttl_hours = 2

[notify]
transport = "pusher"
queue_size = 16

[notify.transports.pusher]
app_id = "123"
key = "k"
secret = "s"
cluster = "eu"
`)

	cfg, err := Load(LoaderOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want untouched default json", cfg.Log.Format)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("Store.Driver = %q", cfg.Store.Driver)
	}
	if cfg.Auth.JWTSecret != "file-secret" || cfg.Auth.TokenTTLHours != 2 {
		t.Errorf("Auth = %+v", cfg.Auth)
	}
	if cfg.Notify.QueueSize != 16 {
		t.Errorf("QueueSize = %d", cfg.Notify.QueueSize)
	}
	settings := cfg.TransportSettings()
	if settings["cluster"] != "eu" {
		t.Errorf("TransportSettings() = %v", settings)
	}
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeTempConfig(t, `
listen_addr = ":9000"

[store]
driver = "sqlite"
`)

	addr := ":7000"
	driver := "memory"
	cfg, err := Load(LoaderOptions{
		ConfigPath: path,
		FlagOverrides: FlagOverrides{
			ListenAddr:  &addr,
			StoreDriver: &driver,
		},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7000" {
		t.Errorf("ListenAddr = %q, want flag value", cfg.ListenAddr)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("Store.Driver = %q, want flag value", cfg.Store.Driver)
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(LoaderOptions{ConfigPath: "/nonexistent/config.toml"})
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := writeTempConfig(t, `listen_addr = [broken`)
	_, err := Load(LoaderOptions{ConfigPath: path})
	if err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestLoad_UnknownKeysWarnButSucceed(t *testing.T) {
	path := writeTempConfig(t, `
listen_addr = ":9000"
mystery_key = true
`)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg, err := Load(LoaderOptions{ConfigPath: path, Logger: logger})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
}

func TestLoad_InvalidLogLevelFails(t *testing.T) {
	level := "loud"
	_, err := Load(LoaderOptions{FlagOverrides: FlagOverrides{LogLevel: &level}})
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestRedacted_MasksSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.JWTSecret = "topsecret"
	cfg.Notify.Transports = map[string]map[string]any{
		"pusher": {"app_id": "123", "secret": "s3cret", "key": "k3y"},
	}

	red := cfg.Redacted()
	if red.Auth.JWTSecret != "[redacted]" {
		t.Errorf("JWTSecret = %q", red.Auth.JWTSecret)
	}
	p := red.Notify.Transports["pusher"]
	if p["secret"] != "[redacted]" || p["key"] != "[redacted]" {
		t.Errorf("transport secrets not masked: %v", p)
	}
	if p["app_id"] != "123" {
		t.Errorf("app_id mangled: %v", p["app_id"])
	}
	// The original is untouched
	if cfg.Auth.JWTSecret != "topsecret" {
		t.Error("Redacted mutated the source config")
	}
}
