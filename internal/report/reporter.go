/*
PURPOSE:
  Drives the per-test lifecycle and feeds the two report artifacts.
  start -> outcome signal(s) -> stop, one test at a time.

REQUIREMENTS:
  User-specified:
  - Every finished test becomes one sample row.
  - Failed/errored tests additionally become one diagnostic entry.
  - A run with zero tests is fatal.

  Implementation-discovered:
  - The last outcome signal before EndTest wins. Each signal rewrites
    code, success flag and stashed exception together so a late skip or
    success never leaves a stale diagnostic behind.
  - Timing comes from an injectable clock; the go test adapter replays
    event timestamps through it.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Uses: internal/identity, internal/model, internal/output

ERROR HANDLING:
  - Output write errors are returned from EndTest and abort the run.
  - Out-of-order lifecycle calls return ErrNoTestRunning/ErrTestInProgress.
  - Finalize returns ErrNothingToTest when no test was reported.

IMPLEMENTATION RULES:
  - Single goroutine. No locks.
  - Callers defer Close() right after Open()/New().

USAGE:
  r, err := report.Open(ctx, report.Options{SamplesPath: "s.jtl", ErrorsPath: "e.jtl"})
  defer r.Close()
  r.BeginTest("TestAdd (example.com/calc.TestAdd)")
  r.OnSuccess()
  r.EndTest(ctx)
  stats, err := r.Finalize(ctx)

RELATED FILES:
  - internal/output/csv.go
  - internal/output/xml.go
  - internal/engine/gotest.go
*/

package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/daryltucker/gotest-jtl/internal/identity"
	"github.com/daryltucker/gotest-jtl/internal/model"
	"github.com/daryltucker/gotest-jtl/internal/output"
)

var (
	ErrNothingToTest  = errors.New("nothing to test")
	ErrNoTestRunning  = errors.New("no test is running")
	ErrTestInProgress = errors.New("a test is already running")
	ErrFinalized      = errors.New("reporter already finalized")
)

// MissingOutcomeType is the exception type recorded when a test ends without an outcome signal.
const MissingOutcomeType = "MissingOutcome"

// SampleSink receives every finished sample.
type SampleSink interface {
	Append(s *model.Sample) error
	Close() error
}

// DiagnosticSink receives entries for failed and errored tests.
type DiagnosticSink interface {
	AddEntry(e model.DiagnosticEntry) error
	Close() error
}

// Observer is notified after a sample has been written.
type Observer interface {
	ObserveSample(ctx context.Context, s *model.Sample)
}

// RunStats holds the run-level counters.
type RunStats struct {
	Run         int
	Succeeded   int
	Failed      int
	Errored     int
	Skipped     int
	Diagnostics int
}

type state int

const (
	stateIdle state = iota
	stateRunning
	stateErrorSeen
	stateFailureSeen
	stateSkipSeen
	stateSuccessSeen
)

// Reporter turns lifecycle calls into samples and diagnostic entries.
type Reporter struct {
	samples   SampleSink
	diags     DiagnosticSink
	clock     func() time.Time
	observers []Observer
	progress  io.Writer

	state     state
	current   *model.Sample
	exc       *model.ExceptionInfo
	stats     RunStats
	finalized bool
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithClock sets the time source used for start and stop times.
func WithClock(clock func() time.Time) Option {
	return func(r *Reporter) { r.clock = clock }
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(r *Reporter) { r.observers = append(r.observers, o) }
}

// WithProgress writes a one-line running total after each test.
func WithProgress(w io.Writer) Option {
	return func(r *Reporter) { r.progress = w }
}

// New creates a Reporter over already opened sinks. It takes ownership of both.
func New(samples SampleSink, diags DiagnosticSink, opts ...Option) *Reporter {
	r := &Reporter{
		samples: samples,
		diags:   diags,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Options describes the output files of a run.
type Options struct {
	SamplesPath string
	ErrorsPath  string
}

// Open creates both output files and returns a Reporter writing to them.
func Open(ctx context.Context, o Options, opts ...Option) (*Reporter, error) {
	samples, err := output.NewSampleLog(o.SamplesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sample log %s: %w", o.SamplesPath, err)
	}
	diags, err := output.CreateDiagnosticWriter(o.ErrorsPath)
	if err != nil {
		samples.Close()
		return nil, fmt.Errorf("failed to open diagnostic document %s: %w", o.ErrorsPath, err)
	}
	clog.FromContext(ctx).Debug("Report outputs opened", "samples", o.SamplesPath, "errors", o.ErrorsPath)
	return New(samples, diags, opts...), nil
}

// BeginTest starts a new test described by descriptor ("method (module.Class)").
func (r *Reporter) BeginTest(descriptor string) error {
	if r.finalized {
		return ErrFinalized
	}
	if r.state != stateIdle {
		return fmt.Errorf("%w: %s", ErrTestInProgress, r.current.Label)
	}
	r.current = model.NewSample(identity.Parse(descriptor), r.clock())
	r.exc = nil
	r.state = stateRunning
	return nil
}

// OnError records an uncaught error in the running test.
func (r *Reporter) OnError(exc model.ExceptionInfo) error {
	return r.signal(stateErrorSeen, model.CodeError, &exc)
}

// OnFailure records a failed assertion in the running test.
func (r *Reporter) OnFailure(exc model.ExceptionInfo) error {
	return r.signal(stateFailureSeen, model.CodeFailure, &exc)
}

// OnSkip marks the running test as skipped.
func (r *Reporter) OnSkip() error {
	return r.signal(stateSkipSeen, model.CodeSkipped, nil)
}

// OnSuccess marks the running test as passed.
func (r *Reporter) OnSuccess() error {
	return r.signal(stateSuccessSeen, model.CodeSuccess, nil)
}

func (r *Reporter) signal(next state, code model.ResponseCode, exc *model.ExceptionInfo) error {
	if r.state == stateIdle {
		return ErrNoTestRunning
	}
	r.current.SetOutcome(code)
	r.exc = exc
	r.state = next
	return nil
}

// EndTest finishes the running test and writes it out.
func (r *Reporter) EndTest(ctx context.Context) error {
	if r.state == stateIdle {
		return ErrNoTestRunning
	}
	s, exc := r.current, r.exc
	r.current, r.exc, r.state = nil, nil, stateIdle

	s.Finish(r.clock())
	if s.ResponseCode == model.CodeUnset {
		s.SetOutcome(model.CodeError)
		exc = &model.ExceptionInfo{TypeName: MissingOutcomeType, Message: "test ended without an outcome"}
	}

	log := clog.FromContext(ctx)
	if exc != nil {
		s.ResponseMessage = exc.TypeName
		if err := r.diags.AddEntry(model.NewDiagnosticEntry(s, *exc)); err != nil {
			return fmt.Errorf("failed to write diagnostic for %s: %w", s.Label, err)
		}
		r.stats.Diagnostics++
		log.Info("Test did not pass", "test", s.Label, "group", s.ThreadGroup, "outcome", s.ResponseCode.Outcome(), "type", exc.TypeName)
	}
	if err := r.samples.Append(s); err != nil {
		return fmt.Errorf("failed to write sample for %s: %w", s.Label, err)
	}

	r.count(s)
	log.Debug("Test reported", "test", s.Label, "code", s.ResponseCode, "elapsed_ms", s.ElapsedMs)

	for _, o := range r.observers {
		o.ObserveSample(ctx, s)
	}
	if r.progress != nil {
		fmt.Fprintf(r.progress, "%s.%s,Total:%d Pass:%d Failed:%d\n",
			s.ThreadGroup, s.Label, r.stats.Run, r.stats.Succeeded, r.stats.Run-r.stats.Succeeded)
	}
	return nil
}

func (r *Reporter) count(s *model.Sample) {
	r.stats.Run++
	switch s.ResponseCode {
	case model.CodeSuccess:
		r.stats.Succeeded++
	case model.CodeFailure:
		r.stats.Failed++
	case model.CodeError:
		r.stats.Errored++
	case model.CodeSkipped:
		r.stats.Skipped++
	}
}

// Stats returns the counters so far.
func (r *Reporter) Stats() RunStats {
	return r.stats
}

// Finalize closes both outputs and reports ErrNothingToTest for an empty run.
func (r *Reporter) Finalize(ctx context.Context) (RunStats, error) {
	if r.finalized {
		return r.stats, ErrFinalized
	}
	if r.state != stateIdle {
		clog.FromContext(ctx).Warn("Dropping unfinished test", "test", r.current.Label)
		r.current, r.exc, r.state = nil, nil, stateIdle
	}

	err := r.close()
	if r.stats.Run == 0 {
		err = errors.Join(err, ErrNothingToTest)
	}
	return r.stats, err
}

// Close releases both outputs if Finalize has not run. Safe to defer.
func (r *Reporter) Close() error {
	if r.finalized {
		return nil
	}
	return r.close()
}

func (r *Reporter) close() error {
	r.finalized = true
	return errors.Join(r.diags.Close(), r.samples.Close())
}
