package orchestrator

import (
	"context"
	"time"

	"normalizer/internal/contenthash"
	"normalizer/internal/progress"
)

// Kind selects what a job does after its gain is known.
type Kind string

const (
	KindAnalyze   Kind = "analyze"
	KindTransform Kind = "transform"
)

// Params carries the per-job normalization settings.
type Params struct {
	TargetLUFS float64
	// Gain, when set, is applied as-is and skips cache and analysis.
	Gain *float64
}

// Job is one unit of work. Output and Format are empty for analyze jobs.
type Job struct {
	Input  string
	Output string
	Kind   Kind
	Format string
	Params Params
}

// Runner launches the external tools for a job.
type Runner interface {
	Analyze(ctx context.Context, input string) (progress.Measurements, error)
	Transform(ctx context.Context, format, input, output string, gain float64) error
}

// Outcome records what happened to one job.
type Outcome struct {
	Job          Job
	Key          contenthash.Key
	Gain         float64
	GainKnown    bool
	CacheHit     bool
	Override     bool
	Measurements progress.Measurements
	DryRun       bool
	Elapsed      time.Duration
	Err          error
}

// Report summarises a batch run.
type Report struct {
	BatchID    string
	Outcomes   []Outcome
	Analyses   int
	Transforms int
	CacheHits  int
	Elapsed    time.Duration
}

// Failed returns the first failed outcome, if any.
func (r Report) Failed() (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return o, true
		}
	}
	return Outcome{}, false
}
