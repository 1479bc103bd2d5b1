package progress

import (
	"log/slog"

	"normalizer/internal/logging"
)

// LogObserver reports progress as sampled log lines.
type LogObserver struct {
	logger  *slog.Logger
	label   string
	sampler *logging.ProgressSampler
}

// NewLogObserver logs at most one line per bucket percent of progress.
func NewLogObserver(logger *slog.Logger, label string, bucket float64) *LogObserver {
	return &LogObserver{
		logger:  logging.NewComponentLogger(logger, "progress"),
		label:   label,
		sampler: logging.NewProgressSampler(bucket),
	}
}

func (o *LogObserver) Start(total int) {
	o.sampler.Reset()
	o.logger.Info("started", logging.String("label", o.label), logging.Int("duration_seconds", total))
}

func (o *LogObserver) Update(r Reading) {
	percent := r.Percent()
	if !o.sampler.ShouldLog(percent, o.label) {
		return
	}
	o.logger.Info("progress",
		logging.String("label", o.label),
		logging.Float64(logging.FieldProgressPercent, percent),
		logging.Int("elapsed_seconds", r.Elapsed),
	)
}

func (o *LogObserver) Finish() {
	o.logger.Info("finished", logging.String("label", o.label))
}

// Observers fans one run out to several observers.
type Observers []Observer

func (obs Observers) Start(total int) {
	for _, o := range obs {
		o.Start(total)
	}
}

func (obs Observers) Update(r Reading) {
	for _, o := range obs {
		o.Update(r)
	}
}

func (obs Observers) Finish() {
	for _, o := range obs {
		o.Finish()
	}
}
