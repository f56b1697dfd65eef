// ABOUTME: TOML configuration for the offline renderer
// ABOUTME: Provides defaults, file loading with ~ expansion and validation
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// DefaultPath is where Load looks when no path is given
const DefaultPath = "~/.config/offline-render/config.toml"

// Render contains block size and destination format settings.
type Render struct {
	BlockFrames int     `toml:"block_frames"`
	SampleRate  float64 `toml:"sample_rate"` // 0 keeps the source rate
	BitDepth    int     `toml:"bit_depth"`
	FloatOutput bool    `toml:"float_output"`
	OpusBitrate int     `toml:"opus_bitrate"` // 0 uses the encoder default
}

// Gain contains master gain and fade settings.
type Gain struct {
	GainDB         float64 `toml:"gain_db"`
	FadeInSeconds  float64 `toml:"fade_in_seconds"`
	FadeOutSeconds float64 `toml:"fade_out_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Monitor contains settings for the progress websocket and its mDNS record.
type Monitor struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port"`
	MDNS    bool   `toml:"mdns"`
	Name    string `toml:"name"`
}

// Config holds every renderer setting.
type Config struct {
	Render  Render  `toml:"render"`
	Gain    Gain    `toml:"gain"`
	Logging Logging `toml:"logging"`
	Monitor Monitor `toml:"monitor"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Render: Render{
			BlockFrames: 4096,
			BitDepth:    16,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
			File:   "offline-render.log",
		},
		Monitor: Monitor{
			Port: 8928,
			MDNS: true,
			Name: "offline-render",
		},
	}
}

// Sample returns an annotated example configuration file
func Sample() string {
	return sampleConfig
}

// Load reads path, or DefaultPath when path is empty, over the defaults and
// validates the result. A missing file is not an error; the returned bool
// reports whether one was read.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}
	resolved, err := ExpandPath(path)
	if err != nil {
		return nil, "", false, err
	}

	exists := true
	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		exists = false
	case err != nil:
		return nil, "", false, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func (c *Config) normalize() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Monitor.Name = strings.TrimSpace(c.Monitor.Name)
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// ExpandPath resolves a leading ~ and makes the path absolute
func ExpandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			path = home
		} else if len(path) > 1 && (path[1] == '/' || path[1] == '\\') {
			path = filepath.Join(home, path[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", path, err)
	}
	return absolute, nil
}
