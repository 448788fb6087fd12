package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// HomeEnv overrides the config directory
	HomeEnv = "MELODY_SKETCH_HOME"

	// PortEnv overrides the configured output port
	PortEnv = "MELODY_SKETCH_PORT"

	// LogLevelEnv overrides the configured log level
	LogLevelEnv = "MELODY_SKETCH_LOG_LEVEL"
)

// OutputConfig defines the synth MIDI output
type OutputConfig struct {
	PortName string `json:"portName,omitempty"`
	Channel  int    `json:"channel,omitempty"` // 1-16
}

// InputConfig defines the optional step entry keyboard
type InputConfig struct {
	PortName string `json:"portName,omitempty"` // empty disables step entry
}

// UIConfig stores UI preferences
type UIConfig struct {
	DefaultTempo int    `json:"defaultTempo,omitempty"`
	PalettePath  string `json:"palettePath,omitempty"` // optional GIMP .gpl file
}

// Config is the main configuration structure
type Config struct {
	Output    OutputConfig `json:"output,omitempty"`
	Input     InputConfig  `json:"input,omitempty"`
	UI        UIConfig     `json:"ui,omitempty"`
	ExportDir string       `json:"exportDir,omitempty"`
	LogLevel  string       `json:"logLevel,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Channel: 1,
		},
		UI: UIConfig{
			DefaultTempo: 120,
		},
		ExportDir: ".",
		LogLevel:  "info",
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "melody-sketch"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg.withEnv(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg.withEnv(), nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.normalize()

	return cfg.withEnv(), nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// MIDIChannel returns the output channel as a 0-based wire value
func (c *Config) MIDIChannel() uint8 {
	ch := c.Output.Channel
	if ch < 1 || ch > 16 {
		ch = 1
	}
	return uint8(ch - 1)
}

// ExportPath joins name onto the export directory
func (c *Config) ExportPath(name string) string {
	if c.ExportDir == "" {
		return name
	}
	return filepath.Join(c.ExportDir, name)
}

func (c *Config) normalize() {
	d := DefaultConfig()
	if c.Output.Channel < 1 || c.Output.Channel > 16 {
		c.Output.Channel = d.Output.Channel
	}
	if c.UI.DefaultTempo <= 0 {
		c.UI.DefaultTempo = d.UI.DefaultTempo
	}
	if c.ExportDir == "" {
		c.ExportDir = d.ExportDir
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

func (c *Config) withEnv() *Config {
	c.Output.PortName = envStr(PortEnv, c.Output.PortName)
	c.LogLevel = envStr(LogLevelEnv, c.LogLevel)
	return c
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
