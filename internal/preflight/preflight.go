package preflight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"normalizer/internal/config"
	"normalizer/internal/deps"
	"normalizer/internal/services"
	"normalizer/internal/tools"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the self-tests for every resolved binary and, when
// cacheDir is set, checks the cache directory is writable.
func RunAll(ctx context.Context, cfg *config.Config, bins tools.Binaries, cacheDir string, logger *slog.Logger) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	if bins.FFmpeg != "" {
		results = append(results, fromError(NameFFmpeg, deps.CheckFFmpeg(ctx, bins.FFmpeg, logger), "self-test passed"))
		if len(cfg.Tools.FFmpegRequiredLibs) > 0 {
			err := deps.CheckFFmpegLibraries(ctx, bins.FFmpeg, cfg.Tools.FFmpegRequiredLibs, logger)
			results = append(results, fromError("FFmpeg libraries", err, strings.Join(cfg.Tools.FFmpegRequiredLibs, ", ")))
		}
	}
	if bins.Qaac != "" {
		results = append(results, fromError(NameQaac, deps.CheckQaac(ctx, bins.Qaac, logger), "self-test passed"))
	}
	if bins.Lame != "" {
		results = append(results, fromError(NameLame, deps.CheckLame(ctx, bins.Lame, logger), "self-test passed"))
	}
	if cacheDir != "" {
		results = append(results, CheckDirectoryAccess("Cache directory", cacheDir))
	}
	return results
}

func fromError(name string, err error, okDetail string) Result {
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: okDetail}
}

// Failed joins every failed result into one configuration error, or returns
// nil when all checks passed.
func Failed(results []Result) error {
	var errs []error
	for _, r := range results {
		if !r.Passed {
			errs = append(errs, fmt.Errorf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "checks", fmt.Sprintf("%d check(s) failed", len(errs)), errors.Join(errs...))
}
