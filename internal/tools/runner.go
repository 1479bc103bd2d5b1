package tools

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"normalizer/internal/config"
	"normalizer/internal/logging"
	"normalizer/internal/progress"
	"normalizer/internal/services"
	"normalizer/internal/streambridge"
)

// ObserverFactory returns the progress observer for one labelled run.
type ObserverFactory func(label string) progress.Observer

// Runner executes analysis and transform profiles.
type Runner struct {
	bins            Binaries
	mp3Encoder      string
	gracePeriod     time.Duration
	pollInterval    time.Duration
	shutdownTimeout time.Duration
	queueSize       int
	keepTranscript  bool
	logger          *slog.Logger
	observers       ObserverFactory
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logging.NewComponentLogger(logger, "tools")
		}
	}
}

// WithObservers replaces the default sampled log observer.
func WithObservers(factory ObserverFactory) Option {
	return func(r *Runner) {
		if factory != nil {
			r.observers = factory
		}
	}
}

// NewRunner builds a Runner for already resolved binaries.
func NewRunner(cfg *config.Config, bins Binaries, opts ...Option) *Runner {
	r := &Runner{
		bins:            bins,
		mp3Encoder:      cfg.Normalize.MP3Encoder,
		gracePeriod:     cfg.GracePeriod(),
		pollInterval:    cfg.PollInterval(),
		shutdownTimeout: cfg.ShutdownTimeout(),
		queueSize:       cfg.Process.QueueSize,
		keepTranscript:  cfg.Process.KeepTranscript,
		logger:          logging.NewComponentLogger(nil, "tools"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.observers == nil {
		logger := r.logger
		r.observers = func(label string) progress.Observer {
			return progress.NewLogObserver(logger, label, 10)
		}
	}
	return r
}

// Analyze measures input and returns its loudness measurements. A run that
// ends without an integrated loudness reading is a protocol error.
func (r *Runner) Analyze(ctx context.Context, input string) (progress.Measurements, error) {
	label := fmt.Sprintf("Analyzing %s", filepath.Base(input))
	result, err := r.run(ctx, AnalysisProfile(r.bins, input), label)
	if err != nil {
		return nil, err
	}
	if _, ok := result.Measurements[progress.MetricIntegratedLUFS]; !ok {
		return nil, services.Wrap(services.ErrProtocolParse, "analyze", "measure", fmt.Sprintf("no integrated loudness reported for %s", input), nil)
	}
	return result.Measurements, nil
}

// Transform encodes input into output in format with gain dB applied.
func (r *Runner) Transform(ctx context.Context, format, input, output string, gain float64) error {
	profile, err := TransformProfile(r.bins, format, r.mp3Encoder, input, output, gain)
	if err != nil {
		return err
	}
	label := fmt.Sprintf("Converting %s to %s", filepath.Base(input), filepath.Base(output))
	_, err = r.run(ctx, profile, label)
	return err
}

func (r *Runner) run(ctx context.Context, profile Profile, label string) (progress.Result, error) {
	spec := profile.Spec
	spec.GracePeriod = r.gracePeriod
	spec.KeepTranscript = r.keepTranscript
	spec.Logger = r.logger

	r.logger.Debug("launching tool",
		logging.String(logging.FieldStage, profile.Name),
		logging.String("binary", spec.Producer.Binary),
		logging.Strings("args", spec.Producer.Args),
	)
	started := time.Now()
	bridge := streambridge.Start(ctx, spec, streambridge.Options{QueueSize: r.queueSize, Logger: r.logger})
	model := progress.NewModel(profile.Patterns, progress.ModelOptions{
		Observer: r.observers(label),
		Logger:   r.logger,
		Label:    profile.Name,
	})
	result, err := progress.Watch(ctx, bridge, model, progress.WatchOptions{
		PollInterval:    r.pollInterval,
		ShutdownTimeout: r.shutdownTimeout,
	})
	if len(result.Transcript) > 0 {
		r.logger.Debug("tool transcript",
			logging.String(logging.FieldStage, profile.Name),
			logging.Strings("lines", result.Transcript),
		)
	}
	if err != nil {
		return result, err
	}
	r.logger.Debug("tool finished",
		logging.String(logging.FieldStage, profile.Name),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}
