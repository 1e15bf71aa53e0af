/*
PURPOSE:
  High-level runner that orchestrates one reporting run.
  Opens the two report outputs, feeds them from a live `go test` process
  or a saved event stream, and finalizes them.

REQUIREMENTS:
  User-specified:
  - Produce the sample log and the diagnostic document for a test run.
  - A run that reports no test at all is fatal.

  Implementation-discovered:
  - Needs to report progress to the CLI (one line per test).
  - Optional raw event capture, metrics textfile and summary table.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/config, internal/report, internal/output,
    internal/metrics, internal/exitcodes

ERROR HANDLING:
  - Output I/O failures abort the run (RuntimeError, exit 2).
  - Empty run: RuntimeError wrapping report.ErrNothingToTest.
  - Test failures: TestFailureError (exit 1).

USAGE:
  res, err := engine.New(cfg).Run(ctx, []string{"./..."})
  os.Exit(exitcodes.FromError(err))

SELF-HEALING INSTRUCTIONS:
  - If go test changes its exit codes, update exitPolicy.

RELATED FILES:
  - internal/engine/command.go
  - internal/engine/gotest.go
  - internal/report/reporter.go
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"github.com/daryltucker/gotest-jtl/internal/config"
	"github.com/daryltucker/gotest-jtl/internal/exitcodes"
	"github.com/daryltucker/gotest-jtl/internal/metrics"
	"github.com/daryltucker/gotest-jtl/internal/output"
	"github.com/daryltucker/gotest-jtl/internal/report"
)

// Result describes a finished run.
type Result struct {
	RunID    string
	Stats    report.RunStats
	ExitCode int
}

// Runner ties configuration to output streams.
type Runner struct {
	Config *config.Config
	// Stdout receives progress lines and the summary table.
	Stdout io.Writer
	// Stderr receives the go tool's stderr.
	Stderr io.Writer
}

// New creates a Runner writing to the process streams.
func New(cfg *config.Config) *Runner {
	return &Runner{
		Config: cfg,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// feedFunc streams events into the translator and returns the exit code of
// the test process, or -1 when there is none.
type feedFunc func(ctx context.Context, tee LineSink, tr *Translator) (int, error)

// Run executes go test on targets and reports it.
func (r *Runner) Run(ctx context.Context, targets []string) (Result, error) {
	cmd := NewCommand(r.Config, targets)
	return r.pipeline(ctx, func(ctx context.Context, tee LineSink, tr *Translator) (int, error) {
		return cmd.Exec(ctx, func(ctx context.Context, stdout io.Reader) error {
			return Decode(ctx, stdout, tee, tr.Handle)
		}, r.Stderr)
	})
}

// Convert reports a saved `go test -json` stream.
func (r *Runner) Convert(ctx context.Context, in io.Reader) (Result, error) {
	return r.pipeline(ctx, func(ctx context.Context, tee LineSink, tr *Translator) (int, error) {
		return -1, Decode(ctx, in, tee, tr.Handle)
	})
}

func (r *Runner) pipeline(ctx context.Context, feed feedFunc) (Result, error) {
	cfg := r.Config
	res := Result{RunID: uuid.NewString(), ExitCode: exitcodes.RuntimeErr}

	log := clog.FromContext(ctx).With("run_id", res.RunID)
	ctx = clog.WithLogger(ctx, log)

	if err := cfg.Validate(); err != nil {
		return res, exitcodes.NewRuntimeError(fmt.Errorf("invalid configuration: %w", err))
	}

	// Ensure output directories exist
	for _, path := range []string{cfg.SamplesPath(), cfg.ErrorsPath()} {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return res, exitcodes.NewRuntimeError(fmt.Errorf("failed to create output directory %s: %w", dir, err))
		}
	}

	m := metrics.New()
	clock := &EventClock{}
	opts := []report.Option{report.WithClock(clock.Now), report.WithObserver(m)}

	var summary *output.Summary
	if cfg.Summary {
		summary = output.NewSummary()
		opts = append(opts, report.WithObserver(summary))
	}
	if cfg.Progress {
		opts = append(opts, report.WithProgress(r.Stdout))
	}

	rep, err := report.Open(ctx, report.Options{SamplesPath: cfg.SamplesPath(), ErrorsPath: cfg.ErrorsPath()}, opts...)
	if err != nil {
		return res, exitcodes.NewRuntimeError(err)
	}
	defer rep.Close()

	var tee LineSink
	if cfg.EventsFile != "" {
		events, err := output.NewEventLog(cfg.EventsFile)
		if err != nil {
			return res, exitcodes.NewRuntimeError(fmt.Errorf("failed to init event log at %s: %w", cfg.EventsFile, err))
		}
		defer events.Close()
		tee = events
	}

	tr := NewTranslator(rep, clock)
	code, feedErr := feed(ctx, tee, tr)
	if feedErr != nil {
		return res, exitcodes.NewRuntimeError(feedErr)
	}
	tr.Flush(ctx)

	stats, finErr := rep.Finalize(ctx)
	res.Stats = stats
	log.Info("Run finished",
		"tests", stats.Run,
		"passed", stats.Succeeded,
		"failed", stats.Failed,
		"errors", stats.Errored,
		"skipped", stats.Skipped,
		"samples", cfg.SamplesPath(),
		"diagnostics", cfg.ErrorsPath(),
	)

	m.MarkFinished(res.RunID, float64(time.Now().Unix()))
	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(ctx, cfg.MetricsFile); err != nil {
			finErr = errors.Join(finErr, fmt.Errorf("failed to write metrics to %s: %w", cfg.MetricsFile, err))
		}
	}
	if summary != nil && stats.Run > 0 {
		if err := summary.Render(r.Stdout); err != nil {
			log.Warn("Failed to render summary", "error", err)
		}
	}

	if finErr != nil {
		return res, exitcodes.NewRuntimeError(finErr)
	}

	res.ExitCode = exitPolicy(code, stats)
	if res.ExitCode == exitcodes.TestFailure {
		return res, &exitcodes.TestFailureError{Failed: stats.Failed + stats.Errored}
	}
	if res.ExitCode != exitcodes.Success {
		return res, exitcodes.NewRuntimeError(fmt.Errorf("go test exited with code %d", code))
	}
	return res, nil
}

// exitPolicy maps the go tool's exit code to ours. Without a process
// (convert) the reported outcomes decide.
func exitPolicy(code int, stats report.RunStats) int {
	switch {
	case code < 0:
		if stats.Failed+stats.Errored > 0 {
			return exitcodes.TestFailure
		}
		return exitcodes.Success
	case code == 0:
		return exitcodes.Success
	case code == 1:
		return exitcodes.TestFailure
	default:
		return exitcodes.RuntimeErr
	}
}
