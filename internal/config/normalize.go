package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeTools(); err != nil {
		return err
	}
	c.normalizeFormats()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	return c.normalizeLogging()
}

func (c *Config) normalizeTools() error {
	bins := []struct {
		field *string
		env   string
		def   string
		key   string
	}{
		{&c.Tools.FFmpeg, "NORMALIZER_FFMPEG", defaultFFmpegBinary, "tools.ffmpeg"},
		{&c.Tools.Qaac, "NORMALIZER_QAAC", defaultQaacBinary, "tools.qaac"},
		{&c.Tools.Lame, "NORMALIZER_LAME", defaultLameBinary, "tools.lame"},
	}
	for _, bin := range bins {
		if value, ok := os.LookupEnv(bin.env); ok && strings.TrimSpace(value) != "" {
			*bin.field = value
		}
		*bin.field = strings.TrimSpace(*bin.field)
		if *bin.field == "" {
			*bin.field = bin.def
		}
		// Bare names are resolved against PATH later; only paths are expanded.
		if strings.ContainsRune(*bin.field, '/') || strings.HasPrefix(*bin.field, "~") {
			expanded, err := expandPath(*bin.field)
			if err != nil {
				return fmt.Errorf("%s: %w", bin.key, err)
			}
			*bin.field = expanded
		}
	}
	libs := make([]string, 0, len(c.Tools.FFmpegRequiredLibs))
	for _, lib := range c.Tools.FFmpegRequiredLibs {
		if lib = strings.TrimSpace(lib); lib != "" {
			libs = append(libs, lib)
		}
	}
	c.Tools.FFmpegRequiredLibs = libs
	return nil
}

func (c *Config) normalizeFormats() {
	seen := make(map[string]struct{}, len(c.Normalize.Formats))
	formats := make([]string, 0, len(c.Normalize.Formats))
	for _, f := range c.Normalize.Formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if f == "itunes" {
			for _, expanded := range []string{FormatAAC, FormatALAC} {
				if _, ok := seen[expanded]; !ok {
					seen[expanded] = struct{}{}
					formats = append(formats, expanded)
				}
			}
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		formats = append(formats, f)
	}
	if len(formats) == 0 {
		formats = defaultFormats()
	}
	c.Normalize.Formats = formats
	c.Normalize.MP3Encoder = strings.ToLower(strings.TrimSpace(c.Normalize.MP3Encoder))
	if c.Normalize.MP3Encoder == "" {
		c.Normalize.MP3Encoder = defaultMP3Encoder
	}
}

func (c *Config) normalizeCache() error {
	c.Cache.FileName = strings.TrimSpace(c.Cache.FileName)
	if c.Cache.FileName == "" {
		c.Cache.FileName = defaultCacheFileName
	}
	var err error
	if c.Cache.Path, err = expandPath(strings.TrimSpace(c.Cache.Path)); err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	c.Cache.Hash = strings.ToLower(strings.TrimSpace(c.Cache.Hash))
	if c.Cache.Hash == "" {
		c.Cache.Hash = defaultCacheHash
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	var err error
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}
