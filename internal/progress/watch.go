package progress

import (
	"context"
	"time"

	"normalizer/internal/services"
	"normalizer/internal/streambridge"
	"normalizer/internal/supervisor"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultShutdownTimeout outlasts the child's SIGTERM grace period so a
	// worker waiting on the kill still counts as a clean shutdown.
	DefaultShutdownTimeout = supervisor.DefaultGracePeriod + 2*time.Second
)

// Stream is the foreground side of a streambridge.Bridge.
type Stream interface {
	Poll(ctx context.Context, timeout time.Duration) (streambridge.Event, bool)
	Finished() bool
	Shutdown(timeout time.Duration) bool
}

// WatchOptions tunes the foreground loop.
type WatchOptions struct {
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
}

// Result summarises a watched run.
type Result struct {
	Reading      Reading
	Measurements Measurements
	Transcript   []string
}

// Watch feeds every line from stream into model until the stream ends. A
// cancelled ctx quits the stream and returns services.ErrInterrupted; failure
// events and error-marker lines are returned as errors.
func Watch(ctx context.Context, stream Stream, model *Model, opts WatchOptions) (Result, error) {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	shutdown := opts.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = DefaultShutdownTimeout
	}

	var result Result
	collect := func() Result {
		result.Reading = model.Reading()
		result.Measurements = model.Measurements()
		return result
	}

	for {
		if err := ctx.Err(); err != nil {
			stream.Shutdown(shutdown)
			return collect(), services.Wrap(services.ErrInterrupted, "progress", "watch", "cancelled", err)
		}
		if stream.Finished() {
			return collect(), services.Wrap(services.ErrAbnormalTermination, "progress", "watch", "stream closed without a terminal event", nil)
		}
		ev, ok := stream.Poll(ctx, poll)
		if !ok {
			continue
		}
		switch ev.Kind {
		case streambridge.EventLine:
			if err := model.Feed(ev.Line); err != nil {
				stream.Shutdown(shutdown)
				return collect(), err
			}
		case streambridge.EventTranscript:
			result.Transcript = ev.Transcript
		case streambridge.EventEnd:
			model.Finish()
			return collect(), nil
		case streambridge.EventFailure:
			return collect(), ev.Err
		}
	}
}
