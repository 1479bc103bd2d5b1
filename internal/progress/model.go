package progress

import (
	"log/slog"
	"maps"

	"normalizer/internal/logging"
	"normalizer/internal/services"
)

// Reading is one progress report in whole seconds. Elapsed never decreases
// and never exceeds Total.
type Reading struct {
	Elapsed int
	Total   int
}

// Percent returns the completion percentage, or -1 when the total is unknown.
func (r Reading) Percent() float64 {
	if r.Total <= 0 {
		return -1
	}
	return float64(r.Elapsed) * 100 / float64(r.Total)
}

// Measurements holds final scalar metrics keyed by name.
type Measurements map[string]float64

const (
	MetricIntegratedLUFS = "integrated_lufs"
	MetricPeakDBFS       = "peak_dbfs"
)

// Observer receives progress for a single run. Start is called once when the
// total duration becomes known; Finish only after a successful run.
type Observer interface {
	Start(total int)
	Update(r Reading)
	Finish()
}

// ModelOptions configures a Model.
type ModelOptions struct {
	Observer Observer
	Logger   *slog.Logger
	// Label identifies the run in log lines and error messages.
	Label string
}

// Model accumulates readings from one tool run. It is not safe for
// concurrent use; the foreground owns it.
type Model struct {
	matcher  Matcher
	observer Observer
	logger   *slog.Logger
	label    string

	total    int
	known    bool
	elapsed  int
	pending  int
	held     bool
	metrics  Measurements
	finished bool
}

// NewModel returns a Model that recognises lines with matcher.
func NewModel(matcher Matcher, opts ModelOptions) *Model {
	return &Model{
		matcher:  matcher,
		observer: opts.Observer,
		logger:   logging.NewComponentLogger(opts.Logger, "progress"),
		label:    opts.Label,
		metrics:  Measurements{},
	}
}

// Feed applies one diagnostic line. It returns an error wrapping
// services.ErrAbnormalTermination when the line carries the tool's error
// marker; malformed readings are logged and dropped.
func (m *Model) Feed(line string) error {
	if m.matcher == nil {
		return nil
	}
	if m.matcher.MatchError(line) {
		return services.Wrap(services.ErrAbnormalTermination, m.stage(), "diagnostics", line, nil)
	}

	if !m.known {
		total, ok, err := m.matcher.MatchDuration(line)
		switch {
		case err != nil:
			m.discard(line, err)
		case ok:
			m.setTotal(total)
		}
	}

	elapsed, ok, err := m.matcher.MatchElapsed(line)
	switch {
	case err != nil:
		m.discard(line, err)
	case ok:
		m.observe(elapsed)
	}

	values, err := m.matcher.MatchMetrics(line)
	if err != nil {
		m.discard(line, err)
	}
	maps.Copy(m.metrics, values)
	return nil
}

func (m *Model) setTotal(total int) {
	m.known = true
	m.total = total
	m.logger.Debug("duration detected", logging.String("label", m.label), logging.Int("seconds", total))
	if m.observer != nil {
		m.observer.Start(total)
	}
	if m.held {
		m.held = false
		m.advance(m.pending)
	}
}

func (m *Model) observe(elapsed int) {
	if !m.known {
		m.pending = max(m.pending, elapsed)
		m.held = true
		return
	}
	m.advance(elapsed)
}

func (m *Model) advance(elapsed int) {
	elapsed = min(elapsed, m.total)
	if elapsed <= m.elapsed {
		return
	}
	m.elapsed = elapsed
	if m.observer != nil {
		m.observer.Update(m.Reading())
	}
}

func (m *Model) discard(line string, err error) {
	m.logger.Debug("discarded malformed reading",
		logging.String("label", m.label),
		logging.String("line", line),
		logging.Error(err),
	)
}

func (m *Model) stage() string {
	if m.label == "" {
		return "progress"
	}
	return m.label
}

// Finish marks the run complete and notifies the observer once.
func (m *Model) Finish() {
	if m.finished {
		return
	}
	m.finished = true
	if m.observer != nil {
		m.observer.Finish()
	}
}

// Total returns the duration in whole seconds and whether it is known.
func (m *Model) Total() (int, bool) {
	return m.total, m.known
}

// Reading returns the current clamped progress.
func (m *Model) Reading() Reading {
	return Reading{Elapsed: m.elapsed, Total: m.total}
}

// Measurements returns a copy of the latest metric values.
func (m *Model) Measurements() Measurements {
	return maps.Clone(m.metrics)
}
