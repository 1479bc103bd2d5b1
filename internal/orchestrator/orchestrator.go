package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"normalizer/internal/contenthash"
	"normalizer/internal/fileutil"
	"normalizer/internal/logging"
	"normalizer/internal/progress"
	"normalizer/internal/resultcache"
	"normalizer/internal/services"
)

// Options tunes a batch run.
type Options struct {
	// DryRun logs transforms instead of running them.
	DryRun bool
	// SkipAnalysis avoids launching the analyzer on cache misses; the gain
	// is then reported as unknown. Only meaningful with DryRun.
	SkipAnalysis bool
	Logger       *slog.Logger
}

// Orchestrator owns the cache and hasher for one batch.
type Orchestrator struct {
	runner Runner
	cache  *resultcache.Cache
	hasher *contenthash.Hasher
	opts   Options
	logger *slog.Logger
}

// New wires an Orchestrator. A nil cache uses an in-memory one.
func New(runner Runner, cache *resultcache.Cache, hasher *contenthash.Hasher, opts Options) *Orchestrator {
	if cache == nil {
		cache = resultcache.NewMemory()
	}
	return &Orchestrator{
		runner: runner,
		cache:  cache,
		hasher: hasher,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "orchestrator"),
	}
}

// Run processes jobs one after another. The first failure stops the batch;
// the report still lists every job attempted so far.
func (o *Orchestrator) Run(ctx context.Context, jobs []Job) (Report, error) {
	started := time.Now()
	report := Report{}
	if id, ok := services.BatchIDFromContext(ctx); ok {
		report.BatchID = id
	}
	batchLogger := logging.WithContext(ctx, o.logger)
	batchLogger.Info("batch started", logging.Int("jobs", len(jobs)), logging.Bool("dry_run", o.opts.DryRun))

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			report.Elapsed = time.Since(started)
			return report, services.Wrap(services.ErrInterrupted, "orchestrator", "run", fmt.Sprintf("stopped before job %d", i+1), err)
		}
		jobCtx := services.WithStage(services.WithJob(ctx, i+1), string(job.Kind))
		logger := logging.WithContext(jobCtx, o.logger)

		outcome := o.runJob(jobCtx, logger, job, &report)
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Err != nil {
			report.Elapsed = time.Since(started)
			logging.ErrorWithContext(logger, "job failed; aborting batch", "job_failed",
				logging.String("input", job.Input),
				logging.Error(outcome.Err),
				logging.Int("remaining", len(jobs)-i-1),
			)
			return report, outcome.Err
		}
	}

	report.Elapsed = time.Since(started)
	batchLogger.Info("batch finished",
		logging.Int("analyses", report.Analyses),
		logging.Int("transforms", report.Transforms),
		logging.Int("cache_hits", report.CacheHits),
		logging.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

func (o *Orchestrator) runJob(ctx context.Context, logger *slog.Logger, job Job, report *Report) Outcome {
	started := time.Now()
	outcome := Outcome{Job: job}
	finish := func(err error) Outcome {
		outcome.Err = err
		outcome.Elapsed = time.Since(started)
		return outcome
	}

	if err := fileutil.EnsureNonEmpty(job.Input); err != nil {
		return finish(err)
	}
	if err := o.resolveGain(ctx, logger, job, &outcome, report); err != nil {
		return finish(err)
	}
	if job.Kind != KindTransform {
		return finish(nil)
	}

	if o.opts.DryRun {
		outcome.DryRun = true
		logger.Info(fmt.Sprintf("Would convert %s to %s.", job.Input, job.Output),
			logging.String("format", job.Format),
			logging.Gain(outcome.Gain),
		)
		return finish(nil)
	}
	if !outcome.GainKnown {
		return finish(services.Wrap(services.ErrValidation, "orchestrator", "transform", "gain unknown for "+job.Input, nil))
	}

	if err := os.MkdirAll(filepath.Dir(job.Output), 0o755); err != nil {
		return finish(services.Wrap(services.ErrValidation, "orchestrator", "transform", "create output directory", err))
	}
	logger.Info("converting",
		logging.String("input", filepath.Base(job.Input)),
		logging.String("output", job.Output),
		logging.Gain(outcome.Gain),
	)
	err := o.runner.Transform(ctx, job.Format, job.Input, job.Output, outcome.Gain)
	if err == nil {
		err = fileutil.EnsureNonEmpty(job.Output)
	}
	if err != nil {
		if fileutil.RemoveBestEffort(job.Output, logger) {
			logger.Debug("removed partial output", logging.String("path", job.Output))
		}
		return finish(err)
	}
	report.Transforms++
	return finish(nil)
}

// resolveGain fills outcome with the job's gain: an explicit override, a
// cache hit, or a fresh analysis that is stored before use.
func (o *Orchestrator) resolveGain(ctx context.Context, logger *slog.Logger, job Job, outcome *Outcome, report *Report) error {
	if job.Params.Gain != nil {
		outcome.Gain = *job.Params.Gain
		outcome.GainKnown = true
		outcome.Override = true
		return nil
	}

	key, err := o.hasher.File(job.Input)
	if err != nil {
		return services.Wrap(services.ErrValidation, "orchestrator", "hash", job.Input, err)
	}
	outcome.Key = key

	if gain, ok := o.cache.Lookup(key); ok {
		outcome.Gain = gain
		outcome.GainKnown = true
		outcome.CacheHit = true
		report.CacheHits++
		logger.Debug("cache hit", logging.Key(key), logging.Gain(gain))
		return nil
	}

	if o.opts.SkipAnalysis {
		logger.Info(fmt.Sprintf("Would analyze %s.", job.Input))
		return nil
	}

	logger.Info("analyzing", logging.String("input", filepath.Base(job.Input)), logging.Key(key))
	measurements, err := o.runner.Analyze(ctx, job.Input)
	if err != nil {
		return err
	}
	report.Analyses++
	outcome.Measurements = measurements
	lufs, ok := measurements[progress.MetricIntegratedLUFS]
	if !ok {
		return services.Wrap(services.ErrProtocolParse, "orchestrator", "analyze", "no integrated loudness for "+job.Input, nil)
	}
	gain := progress.RoundTenth(job.Params.TargetLUFS - lufs)
	if err := o.cache.Store(key, gain); err != nil {
		return err
	}
	stored, ok := o.cache.Lookup(key)
	if !ok {
		return services.Wrap(services.ErrCacheIO, "orchestrator", "lookup", "entry vanished after store", nil)
	}
	outcome.Gain = stored
	outcome.GainKnown = true
	logger.Debug("gain computed",
		logging.Float64("integrated_lufs", lufs),
		logging.Float64("target_lufs", job.Params.TargetLUFS),
		logging.Gain(stored),
	)
	return nil
}
