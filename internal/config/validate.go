package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateNormalize(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateProcess(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateNormalize() error {
	if !slices.Contains(TargetLevels, c.Normalize.TargetLUFS) {
		return fmt.Errorf("normalize.target_lufs must be one of %s, got %v", joinLevels(), c.Normalize.TargetLUFS)
	}
	for _, f := range c.Normalize.Formats {
		if !slices.Contains(KnownFormats, f) {
			return fmt.Errorf("normalize.formats: unsupported format %q (expected one of %s)", f, strings.Join(KnownFormats, ", "))
		}
	}
	switch c.Normalize.MP3Encoder {
	case MP3EncoderLame, MP3EncoderFFmpeg:
	default:
		return fmt.Errorf("normalize.mp3_encoder must be %q or %q", MP3EncoderLame, MP3EncoderFFmpeg)
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Hash {
	case HashBlake3, HashMD5:
	default:
		return fmt.Errorf("cache.hash must be %q or %q", HashBlake3, HashMD5)
	}
	if strings.ContainsRune(c.Cache.FileName, '/') {
		return errors.New("cache.file_name must be a bare file name; use cache.path for a fixed location")
	}
	return nil
}

func (c *Config) validateProcess() error {
	if c.Process.GracePeriodSeconds <= 0 {
		return errors.New("process.grace_period_seconds must be positive")
	}
	if c.Process.PollIntervalMS <= 0 {
		return errors.New("process.poll_interval_ms must be positive")
	}
	if c.Process.QueueSize <= 0 {
		return errors.New("process.queue_size must be positive")
	}
	if c.Process.ShutdownTimeoutSeconds <= 0 {
		return errors.New("process.shutdown_timeout_seconds must be positive")
	}
	if c.Process.ShutdownTimeoutSeconds <= c.Process.GracePeriodSeconds {
		return errors.New("process.shutdown_timeout_seconds must exceed process.grace_period_seconds")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}

func joinLevels() string {
	parts := make([]string, 0, len(TargetLevels))
	for _, lvl := range TargetLevels {
		parts = append(parts, fmt.Sprintf("%g", lvl))
	}
	return strings.Join(parts, ", ")
}
