// Package streambridge drains a supervised pipeline on a background goroutine
// so the foreground can poll for diagnostic lines with a deadline and stay
// responsive to cancellation.
package streambridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"normalizer/internal/logging"
	"normalizer/internal/services"
	"normalizer/internal/supervisor"
)

// DefaultQueueSize bounds the number of undelivered events.
const DefaultQueueSize = 256

// EventKind tags an Event.
type EventKind int

const (
	EventLine EventKind = iota
	EventTranscript
	EventEnd
	EventFailure
)

func (k EventKind) String() string {
	switch k {
	case EventLine:
		return "line"
	case EventTranscript:
		return "transcript"
	case EventEnd:
		return "end"
	case EventFailure:
		return "failure"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one item delivered to the foreground. Lines arrive in emission
// order; End or Failure is always the last event of a run.
type Event struct {
	Kind       EventKind
	Line       string
	Transcript []string
	Err        error
}

// Source is the line iterator the worker drains. *supervisor.Process
// satisfies it.
type Source interface {
	Next() supervisor.Read
	Close() error
	Transcript() []string
}

// Opener starts a Source bound to ctx; cancelling ctx must stop it.
type Opener func(ctx context.Context) (Source, error)

// Options configures a Bridge.
type Options struct {
	QueueSize int
	Logger    *slog.Logger
}

// Bridge owns one background worker and its event queue.
type Bridge struct {
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
	active atomic.Bool
	logger *slog.Logger
}

// Start launches spec through the supervisor on a background worker.
func Start(ctx context.Context, spec supervisor.Spec, opts Options) *Bridge {
	if spec.Logger == nil {
		spec.Logger = opts.Logger
	}
	return Run(ctx, func(ctx context.Context) (Source, error) {
		p, err := supervisor.Start(ctx, spec)
		if err != nil {
			return nil, err
		}
		return p, nil
	}, opts)
}

// Run starts a worker that opens a source and forwards its lines.
func Run(ctx context.Context, open Opener, opts Options) *Bridge {
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	workerCtx, cancel := context.WithCancel(ctx)
	b := &Bridge{
		events: make(chan Event, size),
		cancel: cancel,
		done:   make(chan struct{}),
		logger: logging.NewComponentLogger(opts.Logger, "streambridge"),
	}
	b.active.Store(true)
	go b.work(workerCtx, open)
	return b
}

func (b *Bridge) work(ctx context.Context, open Opener) {
	defer close(b.done)
	// Cleared only after the final send so Finished never races a buffered event.
	defer b.active.Store(false)
	var src Source
	defer func() {
		if r := recover(); r != nil {
			if src != nil {
				_ = src.Close()
			}
			b.deliver(ctx, Event{Kind: EventFailure, Err: services.Wrap(services.ErrAbnormalTermination, "streambridge", "worker", fmt.Sprintf("panic: %v", r), nil)})
		}
	}()

	var err error
	src, err = open(ctx)
	if err != nil {
		b.deliver(ctx, Event{Kind: EventFailure, Err: err})
		return
	}

	var failure error
drain:
	for ctx.Err() == nil {
		read := src.Next()
		switch read.Kind {
		case supervisor.ReadLine:
			if read.Line == "" {
				continue
			}
			select {
			case b.events <- Event{Kind: EventLine, Line: read.Line}:
			case <-ctx.Done():
				break drain
			}
		case supervisor.ReadEnd:
			break drain
		default:
			failure = read.Err
			break drain
		}
	}

	if closeErr := src.Close(); failure == nil {
		failure = closeErr
	}
	if failure == nil && ctx.Err() != nil {
		failure = services.Wrap(services.ErrInterrupted, "streambridge", "drain", "quit requested", context.Cause(ctx))
	}
	if failure != nil {
		b.deliver(ctx, Event{Kind: EventFailure, Err: failure})
		return
	}
	if transcript := src.Transcript(); transcript != nil {
		b.deliver(ctx, Event{Kind: EventTranscript, Transcript: transcript})
	}
	b.deliver(ctx, Event{Kind: EventEnd})
}

// deliver sends a terminal event. After a quit nobody may be receiving, so
// the send becomes best effort instead of blocking the worker forever.
func (b *Bridge) deliver(ctx context.Context, ev Event) {
	if ctx.Err() == nil {
		select {
		case b.events <- ev:
			return
		case <-ctx.Done():
		}
	}
	select {
	case b.events <- ev:
	default:
		b.logger.Debug("dropped terminal event after quit", logging.String("kind", ev.Kind.String()))
	}
}

// Poll waits up to timeout for the next event. ok is false on timeout or
// when ctx is done.
func (b *Bridge) Poll(ctx context.Context, timeout time.Duration) (Event, bool) {
	select {
	case ev := <-b.events:
		return ev, true
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-b.events:
		return ev, true
	case <-timer.C:
		return Event{}, false
	case <-ctx.Done():
		return Event{}, false
	}
}

// Finished reports whether the worker has exited and every event has been
// consumed. Both halves are required: a dead worker can still have events
// queued.
func (b *Bridge) Finished() bool {
	return !b.active.Load() && len(b.events) == 0
}

// Quit asks the worker to stop forwarding; the supervisor then terminates
// the pipeline.
func (b *Bridge) Quit() {
	b.cancel()
}

// Shutdown quits the worker and waits up to timeout for it to exit. It
// reports whether the worker exited cleanly.
func (b *Bridge) Shutdown(timeout time.Duration) bool {
	b.Quit()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-b.done:
		return true
	case <-timer.C:
		logging.WarnWithContext(b.logger, "stream worker still running after shutdown timeout", "bridge_shutdown_unclean",
			logging.Duration("timeout", timeout),
			logging.String(logging.FieldImpact, "external tool may still be running"),
			logging.String(logging.FieldErrorHint, "check for orphaned ffmpeg/qaac/lame processes"))
		return false
	}
}

// Done is closed when the worker exits.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}
