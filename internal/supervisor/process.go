package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"normalizer/internal/logging"
	"normalizer/internal/services"
)

const (
	// DefaultGracePeriod is how long a terminated child gets before SIGKILL.
	DefaultGracePeriod = 5 * time.Second
	// consumerSettle is how long the producer may keep running after the
	// consumer exits before the pipeline counts as truncated.
	consumerSettle  = 250 * time.Millisecond
	stderrTailBytes = 8 << 10
)

// Stage is one external program in a pipeline.
type Stage struct {
	Binary string
	Args   []string
}

func (s Stage) name() string {
	return filepath.Base(s.Binary)
}

// Spec describes a supervised run: a producer whose stderr is the diagnostic
// stream and, optionally, a consumer reading the producer's stdout.
type Spec struct {
	Producer Stage
	Consumer *Stage
	// Delimiters overrides the scanner's line terminators.
	Delimiters     string
	KeepTranscript bool
	// GracePeriod defaults to DefaultGracePeriod.
	GracePeriod time.Duration
	// AllowNonZeroExit suppresses ErrAbnormalTermination for non-zero exit
	// codes; probes that expect a failing exit use it.
	AllowNonZeroExit bool
	Logger           *slog.Logger
}

// ReadKind tags the result of Process.Next.
type ReadKind int

const (
	ReadLine ReadKind = iota
	ReadEnd
	ReadFailure
)

func (k ReadKind) String() string {
	switch k {
	case ReadLine:
		return "line"
	case ReadEnd:
		return "end"
	case ReadFailure:
		return "failure"
	default:
		return fmt.Sprintf("ReadKind(%d)", int(k))
	}
}

// Read is one tagged result from the diagnostic stream.
type Read struct {
	Kind ReadKind
	Line string
	Err  error
}

type child struct {
	stage Stage
	cmd   *exec.Cmd
	done  chan struct{}
	err   error
}

func (c *child) running() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *child) exitCode() int {
	if c.cmd.ProcessState == nil {
		return -1
	}
	return c.cmd.ProcessState.ExitCode()
}

// Process is a handle on a running supervised pipeline. Callers must call
// Close on every path; Close tears down whatever is still running.
type Process struct {
	spec     Spec
	parent   context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
	children []*child
	waiters  errgroup.Group
	diag     *os.File
	scanner  *Scanner
	stderr   *tailBuffer

	interrupted atomic.Bool
	truncated   atomic.Bool
	terminal    *Read
	lastLine    string
	closeOnce   sync.Once
	closeErr    error
}

// Start launches the pipeline described by spec. A missing binary fails with
// services.ErrBinaryNotFound; any other spawn error with services.ErrLaunchFailure.
func Start(ctx context.Context, spec Spec) (*Process, error) {
	if spec.GracePeriod <= 0 {
		spec.GracePeriod = DefaultGracePeriod
	}
	logger := logging.NewComponentLogger(spec.Logger, "supervisor")
	procCtx, cancel := context.WithCancel(ctx)
	p := &Process{
		spec:   spec,
		parent: ctx,
		cancel: cancel,
		logger: logger,
		stderr: &tailBuffer{limit: stderrTailBytes},
	}

	diagR, diagW, err := os.Pipe()
	if err != nil {
		cancel()
		return nil, services.Wrap(services.ErrLaunchFailure, spec.Producer.name(), "start", "create stderr pipe", err)
	}
	producer := p.command(procCtx, spec.Producer)
	producer.cmd.Stderr = diagW

	var dataR, dataW *os.File
	if spec.Consumer != nil {
		if dataR, dataW, err = os.Pipe(); err != nil {
			closeAll(diagR, diagW)
			cancel()
			return nil, services.Wrap(services.ErrLaunchFailure, spec.Producer.name(), "start", "create data pipe", err)
		}
		producer.cmd.Stdout = dataW
	}

	if err := producer.cmd.Start(); err != nil {
		closeAll(diagR, diagW, dataR, dataW)
		cancel()
		return nil, launchError(spec.Producer, err)
	}
	closeAll(diagW, dataW)
	p.track(producer)
	p.diag = diagR
	p.scanner = NewScanner(diagR, ScannerOptions{Delimiters: spec.Delimiters, KeepTranscript: spec.KeepTranscript})

	if spec.Consumer != nil {
		consumer := p.command(procCtx, *spec.Consumer)
		consumer.cmd.Stdin = dataR
		consumer.cmd.Stderr = p.stderr
		err := consumer.cmd.Start()
		closeAll(dataR)
		if err != nil {
			cancel()
			_ = p.waiters.Wait()
			closeAll(diagR)
			return nil, launchError(*spec.Consumer, err)
		}
		p.track(consumer)
		go p.watchConsumer(producer, consumer)
	}

	logger.Debug("pipeline started",
		logging.String("producer", spec.Producer.Binary),
		logging.Strings("producer_args", spec.Producer.Args),
		logging.Bool("pipeline", spec.Consumer != nil))
	return p, nil
}

func (p *Process) command(ctx context.Context, stage Stage) *child {
	cmd := exec.CommandContext(ctx, stage.Binary, stage.Args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(unix.SIGTERM)
	}
	cmd.WaitDelay = p.spec.GracePeriod
	return &child{stage: stage, cmd: cmd, done: make(chan struct{})}
}

func (p *Process) track(c *child) {
	p.children = append(p.children, c)
	p.waiters.Go(func() error {
		c.err = c.cmd.Wait()
		close(c.done)
		return nil
	})
}

// watchConsumer flags a pipeline whose consumer exits while the producer is
// still writing, then stops the producer so the diagnostic stream ends.
func (p *Process) watchConsumer(producer, consumer *child) {
	select {
	case <-producer.done:
		return
	case <-consumer.done:
	}
	timer := time.NewTimer(consumerSettle)
	defer timer.Stop()
	select {
	case <-producer.done:
		// A producer that dies writing into the closed pipe still counts.
		if producer.exitCode() == 0 {
			return
		}
		p.truncated.Store(true)
		return
	case <-timer.C:
	}
	p.truncated.Store(true)
	p.logger.Debug("consumer exited before producer",
		logging.String("consumer", consumer.stage.Binary),
		logging.Int("exit_code", consumer.exitCode()))
	p.cancel()
}

// Next returns the next diagnostic line, ReadEnd once the stream is
// exhausted, or ReadFailure when the pipeline was truncated, interrupted or
// the stream could not be read. Terminal results repeat on later calls.
func (p *Process) Next() Read {
	if p.terminal != nil {
		return *p.terminal
	}
	if p.truncated.Load() {
		return p.finish(Read{Kind: ReadFailure, Err: p.truncationError()})
	}
	line, err := p.scanner.Next()
	if err == nil {
		p.lastLine = line
		return Read{Kind: ReadLine, Line: line}
	}
	switch {
	case p.truncated.Load():
		return p.finish(Read{Kind: ReadFailure, Err: p.truncationError()})
	case p.wasInterrupted():
		return p.finish(Read{Kind: ReadFailure, Err: p.interruptError()})
	case errors.Is(err, io.EOF):
		return p.finish(Read{Kind: ReadEnd})
	default:
		return p.finish(Read{Kind: ReadFailure, Err: services.Wrap(services.ErrAbnormalTermination, p.spec.Producer.name(), "read", "diagnostic stream", err)})
	}
}

func (p *Process) finish(r Read) Read {
	p.terminal = &r
	return r
}

// Interrupt requests cooperative cancellation; Close will report ErrInterrupted.
func (p *Process) Interrupt() {
	p.interrupted.Store(true)
	p.cancel()
}

func (p *Process) wasInterrupted() bool {
	return p.interrupted.Load() || p.parent.Err() != nil
}

// Close terminates any stage still running (SIGTERM, then SIGKILL after the
// grace period), reaps every stage and classifies the outcome. A completed
// stream waits for the stages to exit on their own.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		clean := p.terminal != nil && p.terminal.Kind == ReadEnd
		if !clean {
			p.cancel()
		}
		_ = p.waiters.Wait()
		p.cancel()
		closeAll(p.diag)
		p.closeErr = p.outcome()
		if p.closeErr != nil {
			p.logger.Debug("pipeline closed", logging.Error(p.closeErr), logging.Any("exit_codes", p.ExitCodes()))
		}
	})
	return p.closeErr
}

func (p *Process) outcome() error {
	if p.wasInterrupted() {
		return p.interruptError()
	}
	if p.truncated.Load() {
		return p.truncationError()
	}
	if p.spec.AllowNonZeroExit {
		return nil
	}
	for _, c := range p.children {
		if code := c.exitCode(); code != 0 {
			msg := fmt.Sprintf("exit status %d", code)
			if code < 0 {
				msg = "terminated by signal"
			}
			return services.Wrap(services.ErrAbnormalTermination, c.stage.name(), "wait", msg+p.detail(c), c.err)
		}
	}
	return nil
}

func (p *Process) detail(c *child) string {
	last := p.lastLine
	if c != p.children[0] {
		last = p.stderr.lastLine()
	}
	if last == "" {
		return ""
	}
	return " (" + last + ")"
}

func (p *Process) truncationError() error {
	consumer := p.spec.Consumer
	name := "consumer"
	if consumer != nil {
		name = consumer.name()
	}
	return services.Wrap(services.ErrAbnormalTermination, name, "pipeline", "unexpected termination", nil)
}

func (p *Process) interruptError() error {
	return services.Wrap(services.ErrInterrupted, p.spec.Producer.name(), "run", "cancelled", context.Cause(p.parent))
}

// ExitCodes returns the exit code of each stage in pipeline order; -1 marks
// a stage that was killed by a signal or never reaped. Valid after Close.
func (p *Process) ExitCodes() []int {
	codes := make([]int, 0, len(p.children))
	for _, c := range p.children {
		if c.running() {
			codes = append(codes, -1)
			continue
		}
		codes = append(codes, c.exitCode())
	}
	return codes
}

// Transcript returns the retained diagnostic lines when KeepTranscript is set.
func (p *Process) Transcript() []string {
	return p.scanner.Transcript()
}

// ConsumerStderr returns the tail of the consumer's stderr output.
func (p *Process) ConsumerStderr() string {
	return p.stderr.String()
}

func launchError(stage Stage, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrBinaryNotFound, stage.name(), "start", stage.Binary, err)
	}
	return services.Wrap(services.ErrLaunchFailure, stage.name(), "start", stage.Binary, err)
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(b)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(b), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

func (t *tailBuffer) lastLine() string {
	lines := strings.FieldsFunc(t.String(), func(r rune) bool { return r == '\n' || r == '\r' })
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
