package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Tools names the external binaries the supervisor launches.
type Tools struct {
	FFmpeg             string   `toml:"ffmpeg"`
	Qaac               string   `toml:"qaac"`
	Lame               string   `toml:"lame"`
	FFmpegRequiredLibs []string `toml:"ffmpeg_required_libs"`
}

// Normalize holds the loudness target and the formats produced per input.
type Normalize struct {
	TargetLUFS float64  `toml:"target_lufs"`
	Formats    []string `toml:"formats"`
	MP3Encoder string   `toml:"mp3_encoder"`
}

// Cache controls the content-addressed analysis cache.
type Cache struct {
	Enabled         bool   `toml:"enabled"`
	FileName        string `toml:"file_name"` // stored next to the inputs unless Path is set
	Path            string `toml:"path"`
	Hash            string `toml:"hash"` // blake3 or md5
	RequireExisting bool   `toml:"require_existing"`
}

// Process tunes child supervision and the stream bridge.
type Process struct {
	GracePeriodSeconds     int  `toml:"grace_period_seconds"`
	PollIntervalMS         int  `toml:"poll_interval_ms"`
	QueueSize              int  `toml:"queue_size"`
	ShutdownTimeoutSeconds int  `toml:"shutdown_timeout_seconds"`
	KeepTranscript         bool `toml:"keep_transcript"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
}

// Config encapsulates all configuration values for the normalizer.
//
// Configuration sections:
//   - Tools: ffmpeg/qaac/lame binaries and required ffmpeg libraries
//   - Normalize: loudness target, output formats, mp3 encoder choice
//   - Cache: analysis cache location, hashing and strictness
//   - Process: termination grace period, polling and queue sizing
//   - Logging: log format, level and optional log directory
type Config struct {
	Tools     Tools     `toml:"tools"`
	Normalize Normalize `toml:"normalize"`
	Cache     Cache     `toml:"cache"`
	Process   Process   `toml:"process"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/normalizer/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("normalizer.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// GracePeriod is how long a terminated child gets before it is killed.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Process.GracePeriodSeconds) * time.Second
}

// PollInterval is the foreground wait per bridge poll.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Process.PollIntervalMS) * time.Millisecond
}

// ShutdownTimeout bounds how long the foreground waits for a bridge worker to exit.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Process.ShutdownTimeoutSeconds) * time.Second
}

// CachePath returns the cache document location for a batch rooted at dir.
// An explicit cache.path wins over the per-directory file name.
func (c *Config) CachePath(dir string) string {
	if strings.TrimSpace(c.Cache.Path) != "" {
		return c.Cache.Path
	}
	return filepath.Join(dir, c.Cache.FileName)
}

// WantsFormat reports whether the configured format list contains format.
func (c *Config) WantsFormat(format string) bool {
	for _, f := range c.Normalize.Formats {
		if f == format {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
