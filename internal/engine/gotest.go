/*
PURPOSE:
  Translates go test events into the strictly sequential
  begin -> outcome -> end lifecycle of the reporter.

REQUIREMENTS:
  Implementation-discovered:
  - go test interleaves tests: subtests run inside their parent and
    t.Parallel tests pause and continue. The reporter only understands one
    running test at a time, so state is buffered per test and the whole
    lifecycle is replayed when the test reaches pass, fail or skip.
  - Sample times come from the event stream, not from the wall clock, so a
    replayed stream (`convert`) produces the same report as the live run.
  - Packages that fail without reporting a test (build errors, init panics,
    TestMain exits) still need a row, otherwise the failure is invisible.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go (through Decode)
  - Drives: internal/report.Reporter
  - Uses: internal/identity, internal/model

ERROR HANDLING:
  - Reporter errors are returned and abort the run.
  - Output for unknown tests is ignored.

IMPLEMENTATION RULES:
  - Descriptor is "<Test> (<Package>.<TopLevelTest>)".
  - A failing test whose output contains a panic is an error, any other
    failing test is a failure.
  - Start times handed to the reporter never decrease, so row timestamps
    stay ordered even for parents reported after their subtests.

USAGE:
  clock := &engine.EventClock{}
  rep, _ := report.Open(ctx, opts, report.WithClock(clock.Now))
  tr := engine.NewTranslator(rep, clock)
  err := engine.Decode(ctx, stdout, nil, tr.Handle)
  tr.Flush(ctx)

RELATED FILES:
  - internal/engine/events.go
  - internal/report/reporter.go
*/

package engine

import (
	"context"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/daryltucker/gotest-jtl/internal/identity"
	"github.com/daryltucker/gotest-jtl/internal/model"
)

// Exception type names recorded in the diagnostic document.
const (
	TypeTestFailure    = "TestFailure"
	TypePanic          = "Panic"
	TypeRuntimeError   = "runtime.Error"
	TypeTimeout        = "Timeout"
	TypeBuildFailure   = "BuildFailure"
	TypePackageFailure = "PackageFailure"
)

// PackageLabel labels the sample of a package that failed without a test.
const PackageLabel = "[package]"

// Lifecycle is the per-test surface of the reporter.
type Lifecycle interface {
	BeginTest(descriptor string) error
	OnError(exc model.ExceptionInfo) error
	OnFailure(exc model.ExceptionInfo) error
	OnSkip() error
	OnSuccess() error
	EndTest(ctx context.Context) error
}

// EventClock hands event timestamps to the reporter.
// A zero time falls back to the wall clock.
type EventClock struct {
	t time.Time
}

// Now returns the time last set.
func (c *EventClock) Now() time.Time {
	if c.t.IsZero() {
		return time.Now()
	}
	return c.t
}

// Set moves the clock to t.
func (c *EventClock) Set(t time.Time) {
	c.t = t
}

type pendingTest struct {
	pkg    string
	name   string
	start  time.Time
	output []string
}

type packageState struct {
	start       time.Time
	reported    int
	output      []string
	buildOutput []string
	buildFailed bool
}

// Translator replays go test events on a Lifecycle.
type Translator struct {
	target   Lifecycle
	clock    *EventClock
	pending  map[string]*pendingTest
	order    []string
	packages map[string]*packageState

	// lastBegin is the latest start handed to the reporter.
	lastBegin time.Time
}

// NewTranslator creates a Translator. clock must be the one the reporter reads.
func NewTranslator(target Lifecycle, clock *EventClock) *Translator {
	return &Translator{
		target:   target,
		clock:    clock,
		pending:  make(map[string]*pendingTest),
		packages: make(map[string]*packageState),
	}
}

func testKey(pkg, test string) string {
	return pkg + "\x00" + test
}

func (t *Translator) pkg(name string) *packageState {
	ps, ok := t.packages[name]
	if !ok {
		ps = &packageState{}
		t.packages[name] = ps
	}
	return ps
}

// Handle consumes one event.
func (t *Translator) Handle(ctx context.Context, ev TestEvent) error {
	switch ev.Action {
	case ActionBuildOutput:
		ps := t.pkg(buildPackage(ev.ImportPath))
		ps.buildOutput = append(ps.buildOutput, ev.Output)
		return nil
	case ActionBuildFail:
		t.pkg(buildPackage(ev.ImportPath)).buildFailed = true
		return nil
	}

	if ev.Test == "" {
		return t.handlePackage(ctx, ev)
	}

	key := testKey(ev.Package, ev.Test)
	switch ev.Action {
	case ActionRun:
		if _, ok := t.pending[key]; !ok {
			t.pending[key] = &pendingTest{pkg: ev.Package, name: ev.Test, start: ev.Time}
			t.order = append(t.order, key)
		}
	case ActionOutput:
		if p, ok := t.pending[key]; ok {
			p.output = append(p.output, ev.Output)
		}
	case ActionPass, ActionFail, ActionSkip:
		p, ok := t.pending[key]
		if !ok {
			start := ev.Time.Add(-time.Duration(ev.Elapsed * float64(time.Second)))
			p = &pendingTest{pkg: ev.Package, name: ev.Test, start: start}
		}
		t.forget(key)
		return t.report(ctx, p, ev.Action, ev.Time, nil)
	}
	return nil
}

func (t *Translator) handlePackage(ctx context.Context, ev TestEvent) error {
	ps := t.pkg(ev.Package)
	switch ev.Action {
	case ActionStart:
		ps.start = ev.Time
	case ActionOutput:
		ps.output = append(ps.output, ev.Output)
		if strings.Contains(ev.Output, "[build failed]") || strings.Contains(ev.Output, "[setup failed]") {
			ps.buildFailed = true
		}
	case ActionFail:
		if ev.FailedBuild != "" {
			ps.buildFailed = true
		}
		// Tests still running when the package dies (timeout, os.Exit) carry
		// the package output, which holds the panic.
		for _, p := range t.pendingIn(ev.Package) {
			t.forget(testKey(p.pkg, p.name))
			if err := t.report(ctx, p, ActionFail, ev.Time, ps.output); err != nil {
				return err
			}
		}
		if ps.reported == 0 {
			if err := t.reportPackage(ctx, ev.Package, ps, ev.Time); err != nil {
				return err
			}
		}
		delete(t.packages, ev.Package)
	case ActionPass, ActionSkip:
		for _, p := range t.pendingIn(ev.Package) {
			clog.FromContext(ctx).Warn("Dropping test without outcome", "package", p.pkg, "test", p.name)
			t.forget(testKey(p.pkg, p.name))
		}
		delete(t.packages, ev.Package)
	}
	return nil
}

func (t *Translator) report(ctx context.Context, p *pendingTest, action string, stop time.Time, extra []string) error {
	t.begin(p.start)
	if err := t.target.BeginTest(identity.Descriptor(p.name, p.pkg+"."+topLevel(p.name))); err != nil {
		return err
	}

	var err error
	switch action {
	case ActionPass:
		err = t.target.OnSuccess()
	case ActionSkip:
		err = t.target.OnSkip()
	default:
		exc, panicked := classify(append(p.output, extra...))
		if panicked {
			err = t.target.OnError(exc)
		} else {
			err = t.target.OnFailure(exc)
		}
	}
	if err != nil {
		return err
	}

	t.clock.Set(stop)
	t.pkg(p.pkg).reported++
	return t.target.EndTest(ctx)
}

func (t *Translator) reportPackage(ctx context.Context, pkg string, ps *packageState, stop time.Time) error {
	start := ps.start
	if start.IsZero() {
		start = stop
	}
	t.begin(start)
	if err := t.target.BeginTest(identity.Descriptor(PackageLabel, pkg)); err != nil {
		return err
	}

	exc := model.ExceptionInfo{TypeName: TypePackageFailure, Message: "package " + pkg + " failed"}
	lines := ps.output
	if ps.buildFailed || len(ps.buildOutput) > 0 {
		exc.TypeName = TypeBuildFailure
		exc.Message = "package " + pkg + " failed to build"
		lines = append(append([]string(nil), ps.buildOutput...), ps.output...)
	}
	exc.Stack = strings.TrimRight(strings.Join(lines, ""), "\n")

	if err := t.target.OnError(exc); err != nil {
		return err
	}
	t.clock.Set(stop)
	ps.reported++
	return t.target.EndTest(ctx)
}

// begin sets the clock for a BeginTest. Starts never go backwards: a parent
// reported after its subtests, or a parallel test reported after a later
// starter, begins at the previous start and its elapsed time shrinks to match.
func (t *Translator) begin(start time.Time) {
	if start.Before(t.lastBegin) {
		start = t.lastBegin
	}
	t.lastBegin = start
	t.clock.Set(start)
}

func (t *Translator) pendingIn(pkg string) []*pendingTest {
	var out []*pendingTest
	for _, key := range t.order {
		if p := t.pending[key]; p != nil && p.pkg == pkg {
			out = append(out, p)
		}
	}
	return out
}

func (t *Translator) forget(key string) {
	if _, ok := t.pending[key]; !ok {
		return
	}
	delete(t.pending, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Pending returns the number of tests started but not finished.
func (t *Translator) Pending() int {
	return len(t.pending)
}

// Flush drops tests that never finished, typically because the process was killed.
func (t *Translator) Flush(ctx context.Context) {
	log := clog.FromContext(ctx)
	for _, key := range t.order {
		p := t.pending[key]
		log.Warn("Dropping unfinished test", "package", p.pkg, "test", p.name)
	}
	t.pending = make(map[string]*pendingTest)
	t.order = nil
}

// classify turns captured test output into an exception. The bool reports a panic.
func classify(lines []string) (model.ExceptionInfo, bool) {
	var kept []string
	for _, l := range lines {
		if isFraming(l) {
			continue
		}
		kept = append(kept, strings.TrimRight(l, "\n"))
	}

	exc := model.ExceptionInfo{TypeName: TypeTestFailure, Message: "test failed"}
	msgAt := -1
	panicked := false
	for i, l := range kept {
		trimmed := strings.TrimSpace(l)
		if strings.HasPrefix(trimmed, "panic:") {
			panicked = true
			msgAt = i
			exc.Message = trimmed
			switch {
			case strings.HasPrefix(trimmed, "panic: test timed out"):
				exc.TypeName = TypeTimeout
			case strings.HasPrefix(trimmed, "panic: runtime error"):
				exc.TypeName = TypeRuntimeError
			default:
				exc.TypeName = TypePanic
			}
			break
		}
		if msgAt < 0 && strings.HasPrefix(trimmed, "--- FAIL:") {
			msgAt = i
			exc.Message = trimmed
		}
	}

	if msgAt >= 0 {
		kept = append(kept[:msgAt:msgAt], kept[msgAt+1:]...)
	}
	exc.Stack = strings.Join(kept, "\n")
	return exc, panicked
}

func isFraming(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range []string{"=== RUN", "=== PAUSE", "=== CONT", "=== NAME"} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

func topLevel(test string) string {
	if i := strings.Index(test, "/"); i >= 0 {
		return test[:i]
	}
	return test
}

// buildPackage strips the " [pkg.test]" suffix go adds to build import paths.
func buildPackage(importPath string) string {
	if i := strings.Index(importPath, " ["); i >= 0 {
		return importPath[:i]
	}
	return importPath
}
