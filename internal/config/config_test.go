package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Log.Level != "info" {
		t.Errorf("default log level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Parse.Workers != 4 {
		t.Errorf("default workers = %d, want 4", cfg.Parse.Workers)
	}
	if cfg.Correlate.KeyPrefixLen != 40 {
		t.Errorf("default key prefix = %d, want 40", cfg.Correlate.KeyPrefixLen)
	}
	if cfg.Correlate.RestartCode != "108F" {
		t.Errorf("default restart code = %q, want 108F", cfg.Correlate.RestartCode)
	}
	if cfg.Export.Format != "csv" {
		t.Errorf("default export format = %q, want csv", cfg.Export.Format)
	}
	if cfg.Ntfy.Timeout.Duration != 15*time.Second {
		t.Errorf("default ntfy timeout = %v, want 15s", cfg.Ntfy.Timeout.Duration)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("loading nonexistent config should return defaults, got error: %v", err)
	}
	if cfg.Correlate.KeyPrefixLen != 40 {
		t.Errorf("key_prefix_len = %d, want default 40", cfg.Correlate.KeyPrefixLen)
	}
}

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[log]
level = "debug"
format = "json"

[parse]
workers = 8
extensions = [".log", ".alm"]

[correlate]
key_prefix_len = 60

[ntfy]
url = "https://ntfy.sh/fab-alarms"
timeout = "5s"

[[command]]
name = "tool-07"
args = ["ssh", "tool-07", "cat", "/var/log/alarm.log"]
timeout = "30s"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Parse.Workers != 8 {
		t.Errorf("parse.workers = %d, want 8", cfg.Parse.Workers)
	}
	if len(cfg.Parse.Extensions) != 2 {
		t.Errorf("extensions count = %d, want 2", len(cfg.Parse.Extensions))
	}
	if cfg.Correlate.KeyPrefixLen != 60 {
		t.Errorf("key_prefix_len = %d, want 60", cfg.Correlate.KeyPrefixLen)
	}
	if cfg.Correlate.RestartCode != "108F" {
		t.Errorf("restart_code = %q, want default 108F", cfg.Correlate.RestartCode)
	}
	if cfg.Ntfy.URL != "https://ntfy.sh/fab-alarms" {
		t.Errorf("ntfy.url = %q", cfg.Ntfy.URL)
	}
	if cfg.Ntfy.Timeout.Duration != 5*time.Second {
		t.Errorf("ntfy.timeout = %v, want 5s", cfg.Ntfy.Timeout.Duration)
	}
	if len(cfg.Commands) != 1 {
		t.Fatalf("commands count = %d, want 1", len(cfg.Commands))
	}
	if cfg.Commands[0].Name != "tool-07" || len(cfg.Commands[0].Args) != 4 {
		t.Errorf("command = %+v", cfg.Commands[0])
	}
	if cfg.Commands[0].Timeout.Duration != 30*time.Second {
		t.Errorf("command timeout = %v, want 30s", cfg.Commands[0].Timeout.Duration)
	}
}

func TestLoadYAMLConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
log:
  level: warn
correlate:
  restart_code: 9FF
export:
  format: msgpack
  path: out.msgpack
commands:
  - name: local
    args: [cat, /tmp/alarm.log]
    timeout: 2s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Correlate.RestartCode != "9FF" {
		t.Errorf("restart_code = %q, want 9FF", cfg.Correlate.RestartCode)
	}
	if cfg.Export.Format != "msgpack" || cfg.Export.Path != "out.msgpack" {
		t.Errorf("export = %+v", cfg.Export)
	}
	if cfg.Parse.Workers != 4 {
		t.Errorf("parse.workers = %d, want default 4", cfg.Parse.Workers)
	}
	if len(cfg.Commands) != 1 || cfg.Commands[0].Timeout.Duration != 2*time.Second {
		t.Errorf("commands = %+v", cfg.Commands)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if err := os.WriteFile(path, []byte("not valid [[[ toml"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid TOML, got nil")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero workers", "[parse]\nworkers = 0\n"},
		{"zero prefix", "[correlate]\nkey_prefix_len = 0\n"},
		{"command without args", "[[command]]\nname = \"x\"\n"},
		{"bad duration", "[ntfy]\ntimeout = \"soon\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
