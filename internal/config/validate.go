// ABOUTME: Configuration validation rules
// ABOUTME: Rejects values the renderer cannot honour before a session is built
package config

import (
	"errors"
	"fmt"
)

// Validate checks that every setting is usable
func (c *Config) Validate() error {
	var errs []error

	if c.Render.BlockFrames <= 0 {
		errs = append(errs, fmt.Errorf("render.block_frames must be positive, got %d", c.Render.BlockFrames))
	}
	if c.Render.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("render.sample_rate must not be negative, got %v", c.Render.SampleRate))
	}
	if !c.Render.FloatOutput && c.Render.BitDepth != 16 && c.Render.BitDepth != 24 {
		errs = append(errs, fmt.Errorf("render.bit_depth must be 16 or 24, got %d", c.Render.BitDepth))
	}
	if c.Render.OpusBitrate < 0 {
		errs = append(errs, fmt.Errorf("render.opus_bitrate must not be negative, got %d", c.Render.OpusBitrate))
	}

	if c.Gain.FadeInSeconds < 0 || c.Gain.FadeOutSeconds < 0 {
		errs = append(errs, errors.New("gain fades must not be negative"))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not text or json", c.Logging.Format))
	}

	if c.Monitor.Enabled {
		if c.Monitor.Port <= 0 || c.Monitor.Port > 65535 {
			errs = append(errs, fmt.Errorf("monitor.port out of range: %d", c.Monitor.Port))
		}
		if c.Monitor.MDNS && c.Monitor.Name == "" {
			errs = append(errs, errors.New("monitor.name is required when mdns is enabled"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
