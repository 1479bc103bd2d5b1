package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"normalizer/internal/config"
	"normalizer/internal/logging"
	"normalizer/internal/preflight"
	"normalizer/internal/resultcache"
	"normalizer/internal/services"
	"normalizer/internal/tools"
)

type formatFlags struct {
	itunes bool
	aac    bool
	alac   bool
	mp3    bool
	ac3    bool
	flac   bool
}

func (f *formatFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.itunes, "itunes", false, "Produce aac and alac output")
	cmd.Flags().BoolVar(&f.aac, "aac", false, "Produce aac output")
	cmd.Flags().BoolVar(&f.alac, "alac", false, "Produce alac output")
	cmd.Flags().BoolVar(&f.mp3, "mp3", false, "Produce mp3 output")
	cmd.Flags().BoolVar(&f.ac3, "ac3", false, "Produce ac3 output (single files only; disables other formats)")
	cmd.Flags().BoolVar(&f.flac, "flac", false, "Produce normalized flac output")
}

// selected returns the requested formats in planning order. With no format
// flag the configured list is used.
func (f *formatFlags) selected(cfg *config.Config, logger *slog.Logger) []string {
	if f.ac3 {
		if f.itunes || f.aac || f.alac || f.mp3 || f.flac {
			logger.Info("ac3 output disables the other formats")
		}
		return []string{config.FormatAC3}
	}
	var formats []string
	if f.itunes || f.aac {
		formats = append(formats, config.FormatAAC)
	}
	if f.itunes || f.alac {
		formats = append(formats, config.FormatALAC)
	}
	if f.mp3 {
		formats = append(formats, config.FormatMP3)
	}
	if f.flac {
		formats = append(formats, config.FormatFLAC)
	}
	if len(formats) == 0 {
		return slices.Clone(cfg.Normalize.Formats)
	}
	return formats
}

type targetFlags struct {
	volume float64
	gain   float64
}

func (t *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&t.volume, "volume", 0, "Loudness target in LUFS (-23, -19 or -16; default from config)")
	cmd.Flags().Float64Var(&t.gain, "gain", 0, "Apply this gain in dB instead of measuring")
}

// resolve returns the loudness target and the optional gain override.
func (t *targetFlags) resolve(cmd *cobra.Command, cfg *config.Config) (float64, *float64, error) {
	target := cfg.Normalize.TargetLUFS
	if cmd.Flags().Changed("volume") {
		if !slices.Contains(config.TargetLevels, t.volume) {
			levels := make([]string, len(config.TargetLevels))
			for i, level := range config.TargetLevels {
				levels[i] = fmt.Sprintf("%g", level)
			}
			return 0, nil, services.Wrap(services.ErrValidation, "cli", "volume",
				fmt.Sprintf("--volume must be one of %s, got %g", strings.Join(levels, ", "), t.volume), nil)
		}
		target = t.volume
	}
	if !cmd.Flags().Changed("gain") {
		return target, nil, nil
	}
	gain := t.gain
	return target, &gain, nil
}

// openCache returns the result cache for a batch rooted at dir. Disabled or
// skipped caches live in memory. A dry run starts from the entries on disk
// but never writes back.
func openCache(cfg *config.Config, dir string, dryRun, skip bool, logger *slog.Logger) (*resultcache.Cache, error) {
	if skip || !cfg.Cache.Enabled {
		return resultcache.NewMemory(), nil
	}
	return resultcache.Open(cfg.CachePath(dir), resultcache.Options{
		ReadOnly:        dryRun,
		RequireExisting: cfg.Cache.RequireExisting,
		Logger:          logger,
	})
}

// checkTools resolves the binaries needed for formats and runs their
// self-tests. cacheDir is checked for write access when not empty.
func checkTools(ctx context.Context, cfg *config.Config, formats []string, cacheDir string, logger *slog.Logger) (tools.Binaries, error) {
	bins, err := preflight.Binaries(preflight.CheckSystemDeps(cfg, formats))
	if err != nil {
		return bins, err
	}
	results := preflight.RunAll(ctx, cfg, bins, cacheDir, logger)
	for _, r := range results {
		logger.Debug("preflight check",
			logging.String("check", r.Name),
			logging.Bool("passed", r.Passed),
			logging.String("detail", r.Detail),
		)
	}
	return bins, preflight.Failed(results)
}

// cacheDirFor returns the directory that must be writable for the batch
// cache, or "" when nothing is written.
func cacheDirFor(cfg *config.Config, dir string, dryRun, skip bool) string {
	if dryRun || skip || !cfg.Cache.Enabled {
		return ""
	}
	return filepath.Dir(cfg.CachePath(dir))
}
