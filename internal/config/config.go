// Package config handles TOML and YAML configuration loading with sensible
// defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for alarmtrace.
type Config struct {
	Log       LogConfig       `toml:"log" yaml:"log"`
	Parse     ParseConfig     `toml:"parse" yaml:"parse"`
	Correlate CorrelateConfig `toml:"correlate" yaml:"correlate"`
	Export    ExportConfig    `toml:"export" yaml:"export"`
	Ntfy      NtfyConfig      `toml:"ntfy" yaml:"ntfy"`
	Commands  []CommandConfig `toml:"command" yaml:"commands"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // "text" or "json"
}

// ParseConfig controls source loading and line parsing.
type ParseConfig struct {
	Workers    int      `toml:"workers" yaml:"workers"`
	Extensions []string `toml:"extensions" yaml:"extensions"`
}

// CorrelateConfig controls raise/terminate pairing.
type CorrelateConfig struct {
	KeyPrefixLen int    `toml:"key_prefix_len" yaml:"key_prefix_len"`
	RestartCode  string `toml:"restart_code" yaml:"restart_code"`
}

// ExportConfig sets the default export target.
type ExportConfig struct {
	Format string `toml:"format" yaml:"format"`
	Path   string `toml:"path" yaml:"path"`
}

// NtfyConfig controls where summaries are delivered.
type NtfyConfig struct {
	URL      string   `toml:"url" yaml:"url"`
	Priority string   `toml:"priority" yaml:"priority"`
	Tags     string   `toml:"tags" yaml:"tags"`
	Timeout  Duration `toml:"timeout" yaml:"timeout"`
}

// CommandConfig describes a process whose output is read as a source.
type CommandConfig struct {
	Name    string   `toml:"name" yaml:"name"`
	Args    []string `toml:"args" yaml:"args"`
	Timeout Duration `toml:"timeout" yaml:"timeout"`
}

// Duration wraps time.Duration for string parsing (e.g. "5s", "1m").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Parse: ParseConfig{
			Workers:    4,
			Extensions: []string{".txt", ".log", ".log1", ".csv"},
		},
		Correlate: CorrelateConfig{
			KeyPrefixLen: 40,
			RestartCode:  "108F",
		},
		Export: ExportConfig{
			Format: "csv",
		},
		Ntfy: NtfyConfig{
			Priority: "default",
			Tags:     "rotating_light",
			Timeout:  Duration{15 * time.Second},
		},
	}
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "alarmtrace", "config.toml")
}

// Load reads configuration from the given path, falling back to defaults
// for any unset fields. If the file does not exist, returns defaults.
// Files ending in .yaml or .yml are read as YAML, everything else as TOML.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Parse.Workers < 1 {
		return fmt.Errorf("parse.workers must be at least 1, got %d", c.Parse.Workers)
	}
	if c.Correlate.KeyPrefixLen < 1 {
		return fmt.Errorf("correlate.key_prefix_len must be at least 1, got %d", c.Correlate.KeyPrefixLen)
	}
	for i, cmd := range c.Commands {
		if cmd.Name == "" {
			return fmt.Errorf("command %d has no name", i)
		}
		if len(cmd.Args) == 0 {
			return fmt.Errorf("command %q has no args", cmd.Name)
		}
	}
	return nil
}
