package streambridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"normalizer/internal/services"
	"normalizer/internal/supervisor"
	"normalizer/internal/testsupport"
)

type fakeSource struct {
	ctx        context.Context
	lines      []string
	failure    error
	closeErr   error
	transcript []string
	block      chan struct{}
	panicAt    int
	reads      int
	closed     bool
}

func (f *fakeSource) Next() supervisor.Read {
	f.reads++
	if f.panicAt > 0 && f.reads == f.panicAt {
		panic("decoder exploded")
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-f.ctx.Done():
		}
		return supervisor.Read{Kind: supervisor.ReadEnd}
	}
	if len(f.lines) > 0 {
		line := f.lines[0]
		f.lines = f.lines[1:]
		return supervisor.Read{Kind: supervisor.ReadLine, Line: line}
	}
	if f.failure != nil {
		return supervisor.Read{Kind: supervisor.ReadFailure, Err: f.failure}
	}
	return supervisor.Read{Kind: supervisor.ReadEnd}
}

func (f *fakeSource) Close() error {
	f.closed = true
	if f.ctx.Err() != nil {
		return services.ErrInterrupted
	}
	return f.closeErr
}

func (f *fakeSource) Transcript() []string { return f.transcript }

func opener(src *fakeSource) Opener {
	return func(ctx context.Context) (Source, error) {
		src.ctx = ctx
		return src, nil
	}
}

func waitDone(t *testing.T, b *Bridge) {
	t.Helper()
	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit")
	}
}

func TestFinishedOnlyAfterLastEventConsumed(t *testing.T) {
	const n = 5
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	src := &fakeSource{lines: lines}
	b := Run(context.Background(), opener(src), Options{QueueSize: 16})
	waitDone(t, b)

	for i := 0; i < n; i++ {
		if b.Finished() {
			t.Fatalf("finished before line %d was consumed", i)
		}
		ev, ok := b.Poll(context.Background(), time.Second)
		if !ok || ev.Kind != EventLine || ev.Line != lines[i] {
			t.Fatalf("unexpected event %d: %+v ok=%v", i, ev, ok)
		}
	}
	if b.Finished() {
		t.Fatal("finished before the end event was consumed")
	}
	ev, ok := b.Poll(context.Background(), time.Second)
	if !ok || ev.Kind != EventEnd {
		t.Fatalf("expected end event, got %+v", ev)
	}
	if !b.Finished() {
		t.Fatal("expected finished after all events were consumed")
	}
	if !src.closed {
		t.Fatal("expected source to be closed")
	}
}

func TestFailuresAreForwardedAsEvents(t *testing.T) {
	boom := services.Wrap(services.ErrAbnormalTermination, "ffmpeg", "wait", "exit status 1", nil)
	cases := []struct {
		name string
		src  *fakeSource
		want error
	}{
		{"read failure", &fakeSource{lines: []string{"a"}, failure: boom, closeErr: errors.New("ignored")}, services.ErrAbnormalTermination},
		{"close failure", &fakeSource{lines: []string{"a"}, closeErr: boom}, services.ErrAbnormalTermination},
		{"panic", &fakeSource{panicAt: 1}, services.ErrAbnormalTermination},
	}
	for _, tc := range cases {
		b := Run(context.Background(), opener(tc.src), Options{})
		var last Event
		for !b.Finished() {
			if ev, ok := b.Poll(context.Background(), 100*time.Millisecond); ok {
				last = ev
			}
		}
		if last.Kind != EventFailure || !errors.Is(last.Err, tc.want) {
			t.Fatalf("%s: expected failure event, got %+v", tc.name, last)
		}
	}
}

func TestOpenErrorIsForwarded(t *testing.T) {
	b := Run(context.Background(), func(context.Context) (Source, error) {
		return nil, services.ErrBinaryNotFound
	}, Options{})
	ev, ok := b.Poll(context.Background(), time.Second)
	if !ok || ev.Kind != EventFailure || !errors.Is(ev.Err, services.ErrBinaryNotFound) {
		t.Fatalf("unexpected event: %+v", ev)
	}
	waitDone(t, b)
	if !b.Finished() {
		t.Fatal("expected finished")
	}
}

func TestTranscriptPrecedesEnd(t *testing.T) {
	src := &fakeSource{lines: []string{"x"}, transcript: []string{"x"}}
	b := Run(context.Background(), opener(src), Options{})
	var kinds []EventKind
	for !b.Finished() {
		if ev, ok := b.Poll(context.Background(), 100*time.Millisecond); ok {
			kinds = append(kinds, ev.Kind)
		}
	}
	if len(kinds) != 3 || kinds[1] != EventTranscript || kinds[2] != EventEnd {
		t.Fatalf("unexpected event order: %v", kinds)
	}
}

func TestQuitStopsWorkerAndReportsInterrupted(t *testing.T) {
	src := &fakeSource{block: make(chan struct{})}
	b := Run(context.Background(), opener(src), Options{})
	if _, ok := b.Poll(context.Background(), 20*time.Millisecond); ok {
		t.Fatal("expected poll timeout while the source is blocked")
	}
	if !b.Shutdown(time.Second) {
		t.Fatal("expected clean shutdown")
	}
	ev, ok := b.Poll(context.Background(), time.Second)
	if !ok || ev.Kind != EventFailure || !errors.Is(ev.Err, services.ErrInterrupted) {
		t.Fatalf("expected interrupted failure, got %+v", ev)
	}
	if !b.Finished() {
		t.Fatal("expected finished after shutdown")
	}
}

type stuckSource struct {
	release chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (s *stuckSource) Next() supervisor.Read {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return supervisor.Read{Kind: supervisor.ReadEnd}
}
func (*stuckSource) Close() error         { return nil }
func (*stuckSource) Transcript() []string { return nil }

func TestShutdownTimesOutOnStuckWorker(t *testing.T) {
	src := &stuckSource{release: make(chan struct{}), entered: make(chan struct{})}
	defer close(src.release)
	b := Run(context.Background(), func(context.Context) (Source, error) { return src, nil }, Options{})
	select {
	case <-src.entered:
	case <-time.After(time.Second):
		t.Fatal("worker never started reading")
	}

	begin := time.Now()
	if b.Shutdown(50 * time.Millisecond) {
		t.Fatal("expected unclean shutdown")
	}
	if time.Since(begin) > 2*time.Second {
		t.Fatal("shutdown blocked past its timeout")
	}
	if b.Finished() {
		t.Fatal("a stuck worker is not finished")
	}
}

func TestPollObservesContext(t *testing.T) {
	src := &fakeSource{block: make(chan struct{})}
	b := Run(context.Background(), opener(src), Options{})
	defer b.Shutdown(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	begin := time.Now()
	if _, ok := b.Poll(ctx, 10*time.Second); ok {
		t.Fatal("expected no event")
	}
	if time.Since(begin) > time.Second {
		t.Fatal("poll ignored the cancelled context")
	}
}

func TestStartDrainsRealProcessInOrder(t *testing.T) {
	dir := t.TempDir()
	tool := testsupport.WriteScript(t, dir, "tool", "for i in 1 2 3 4 5 6 7 8; do printf \"time=$i\\r\" >&2; done\n")

	b := Start(context.Background(), supervisor.Spec{Producer: supervisor.Stage{Binary: tool}}, Options{QueueSize: 2})
	var lines []string
	var last Event
	for !b.Finished() {
		ev, ok := b.Poll(context.Background(), 100*time.Millisecond)
		if !ok {
			continue
		}
		if ev.Kind == EventLine {
			lines = append(lines, ev.Line)
			continue
		}
		last = ev
	}
	if last.Kind != EventEnd {
		t.Fatalf("expected end, got %+v", last)
	}
	if len(lines) != 8 || lines[0] != "time=1" || lines[7] != "time=8" {
		t.Fatalf("unexpected lines: %q", lines)
	}
}
