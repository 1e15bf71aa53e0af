package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/gotest-jtl/internal/model"
)

// calcStream is a go test -json run with one test of each outcome.
const calcStream = `{"Time":"2026-10-19T10:00:00Z","Action":"start","Package":"example.com/calc"}
{"Time":"2026-10-19T10:00:00.001Z","Action":"run","Package":"example.com/calc","Test":"TestAdd"}
{"Time":"2026-10-19T10:00:00.001Z","Action":"output","Package":"example.com/calc","Test":"TestAdd","Output":"=== RUN   TestAdd\n"}
{"Time":"2026-10-19T10:00:00.011Z","Action":"output","Package":"example.com/calc","Test":"TestAdd","Output":"--- PASS: TestAdd (0.01s)\n"}
{"Time":"2026-10-19T10:00:00.011Z","Action":"pass","Package":"example.com/calc","Test":"TestAdd","Elapsed":0.01}
{"Time":"2026-10-19T10:00:00.012Z","Action":"run","Package":"example.com/calc","Test":"TestDiv"}
{"Time":"2026-10-19T10:00:00.012Z","Action":"output","Package":"example.com/calc","Test":"TestDiv","Output":"=== RUN   TestDiv\n"}
{"Time":"2026-10-19T10:00:00.020Z","Action":"output","Package":"example.com/calc","Test":"TestDiv","Output":"    calc_test.go:20: got 1, want 2\n"}
{"Time":"2026-10-19T10:00:00.020Z","Action":"output","Package":"example.com/calc","Test":"TestDiv","Output":"--- FAIL: TestDiv (0.01s)\n"}
{"Time":"2026-10-19T10:00:00.020Z","Action":"fail","Package":"example.com/calc","Test":"TestDiv","Elapsed":0.01}
{"Time":"2026-10-19T10:00:00.021Z","Action":"run","Package":"example.com/calc","Test":"TestSqrt"}
{"Time":"2026-10-19T10:00:00.021Z","Action":"output","Package":"example.com/calc","Test":"TestSqrt","Output":"=== RUN   TestSqrt\n"}
{"Time":"2026-10-19T10:00:00.022Z","Action":"output","Package":"example.com/calc","Test":"TestSqrt","Output":"    calc_test.go:30: not on this platform\n"}
{"Time":"2026-10-19T10:00:00.022Z","Action":"output","Package":"example.com/calc","Test":"TestSqrt","Output":"--- SKIP: TestSqrt (0.00s)\n"}
{"Time":"2026-10-19T10:00:00.022Z","Action":"skip","Package":"example.com/calc","Test":"TestSqrt","Elapsed":0}
{"Time":"2026-10-19T10:00:00.023Z","Action":"run","Package":"example.com/calc","Test":"TestMod"}
{"Time":"2026-10-19T10:00:00.023Z","Action":"output","Package":"example.com/calc","Test":"TestMod","Output":"=== RUN   TestMod\n"}
{"Time":"2026-10-19T10:00:00.024Z","Action":"output","Package":"example.com/calc","Test":"TestMod","Output":"--- FAIL: TestMod (0.00s)\n"}
{"Time":"2026-10-19T10:00:00.024Z","Action":"output","Package":"example.com/calc","Test":"TestMod","Output":"panic: runtime error: integer divide by zero [recovered]\n"}
{"Time":"2026-10-19T10:00:00.024Z","Action":"output","Package":"example.com/calc","Test":"TestMod","Output":"goroutine 7 [running]:\n"}
{"Time":"2026-10-19T10:00:00.025Z","Action":"fail","Package":"example.com/calc","Test":"TestMod","Elapsed":0}
{"Time":"2026-10-19T10:00:00.026Z","Action":"output","Package":"example.com/calc","Output":"FAIL\n"}
{"Time":"2026-10-19T10:00:00.026Z","Action":"fail","Package":"example.com/calc","Elapsed":0.026}
`

type call struct {
	Kind  string
	Arg   string
	Type  string
	Msg   string
	Stack string
	At    time.Time
}

// recorder is a Lifecycle that records every call and the clock at begin and end.
type recorder struct {
	clock   *EventClock
	calls   []call
	failOn  string
	failErr error
}

func (r *recorder) add(c call) error {
	if r.failOn == c.Kind {
		return r.failErr
	}
	r.calls = append(r.calls, c)
	return nil
}

func (r *recorder) BeginTest(d string) error {
	return r.add(call{Kind: "begin", Arg: d, At: r.clock.Now()})
}

func (r *recorder) OnError(e model.ExceptionInfo) error {
	return r.add(call{Kind: "error", Type: e.TypeName, Msg: e.Message, Stack: e.Stack})
}

func (r *recorder) OnFailure(e model.ExceptionInfo) error {
	return r.add(call{Kind: "failure", Type: e.TypeName, Msg: e.Message, Stack: e.Stack})
}

func (r *recorder) OnSkip() error    { return r.add(call{Kind: "skip"}) }
func (r *recorder) OnSuccess() error { return r.add(call{Kind: "success"}) }

func (r *recorder) EndTest(context.Context) error {
	return r.add(call{Kind: "end", At: r.clock.Now()})
}

func translate(t *testing.T, stream string) (*recorder, *Translator) {
	t.Helper()
	clock := &EventClock{}
	rec := &recorder{clock: clock}
	tr := NewTranslator(rec, clock)
	require.NoError(t, Decode(context.Background(), strings.NewReader(stream), nil, tr.Handle))
	return rec, tr
}

func at(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339Nano, s)
	require.NoError(t, err)
	return tm
}

// withoutTimes compares calls ignoring the clock readings.
var withoutTimes = cmpopts.IgnoreFields(call{}, "At")

func TestTranslatorOutcomes(t *testing.T) {
	rec, tr := translate(t, calcStream)

	want := []call{
		{Kind: "begin", Arg: "TestAdd (example.com/calc.TestAdd)"},
		{Kind: "success"},
		{Kind: "end"},
		{Kind: "begin", Arg: "TestDiv (example.com/calc.TestDiv)"},
		{Kind: "failure", Type: TypeTestFailure, Msg: "--- FAIL: TestDiv (0.01s)", Stack: "    calc_test.go:20: got 1, want 2"},
		{Kind: "end"},
		{Kind: "begin", Arg: "TestSqrt (example.com/calc.TestSqrt)"},
		{Kind: "skip"},
		{Kind: "end"},
		{Kind: "begin", Arg: "TestMod (example.com/calc.TestMod)"},
		{
			Kind:  "error",
			Type:  TypeRuntimeError,
			Msg:   "panic: runtime error: integer divide by zero [recovered]",
			Stack: "--- FAIL: TestMod (0.00s)\ngoroutine 7 [running]:",
		},
		{Kind: "end"},
	}
	if diff := cmp.Diff(want, rec.calls, withoutTimes); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, tr.Pending())

	assert.WithinDuration(t, at(t, "2026-10-19T10:00:00.001Z"), rec.calls[0].At, 0)
	assert.WithinDuration(t, at(t, "2026-10-19T10:00:00.011Z"), rec.calls[2].At, 0)
}

func TestTranslatorParallelCompletionOrder(t *testing.T) {
	stream := `{"Time":"2026-10-19T10:00:00Z","Action":"run","Package":"example.com/p","Test":"TestA"}
{"Time":"2026-10-19T10:00:00Z","Action":"output","Package":"example.com/p","Test":"TestA","Output":"=== RUN   TestA\n"}
{"Time":"2026-10-19T10:00:00Z","Action":"output","Package":"example.com/p","Test":"TestA","Output":"=== PAUSE TestA\n"}
{"Time":"2026-10-19T10:00:00Z","Action":"pause","Package":"example.com/p","Test":"TestA"}
{"Time":"2026-10-19T10:00:00.001Z","Action":"run","Package":"example.com/p","Test":"TestB"}
{"Time":"2026-10-19T10:00:00.001Z","Action":"pause","Package":"example.com/p","Test":"TestB"}
{"Time":"2026-10-19T10:00:00.002Z","Action":"cont","Package":"example.com/p","Test":"TestA"}
{"Time":"2026-10-19T10:00:00.002Z","Action":"output","Package":"example.com/p","Test":"TestA","Output":"=== CONT  TestA\n"}
{"Time":"2026-10-19T10:00:00.002Z","Action":"cont","Package":"example.com/p","Test":"TestB"}
{"Time":"2026-10-19T10:00:00.003Z","Action":"pass","Package":"example.com/p","Test":"TestB","Elapsed":0}
{"Time":"2026-10-19T10:00:00.010Z","Action":"pass","Package":"example.com/p","Test":"TestA","Elapsed":0.01}
{"Time":"2026-10-19T10:00:00.011Z","Action":"pass","Package":"example.com/p","Elapsed":0.011}
`
	rec, _ := translate(t, stream)

	require.Len(t, rec.calls, 6)
	assert.Equal(t, "TestB (example.com/p.TestB)", rec.calls[0].Arg)
	assert.WithinDuration(t, at(t, "2026-10-19T10:00:00.001Z"), rec.calls[0].At, 0)
	assert.WithinDuration(t, at(t, "2026-10-19T10:00:00.003Z"), rec.calls[2].At, 0)
	assert.Equal(t, "TestA (example.com/p.TestA)", rec.calls[3].Arg)
	// TestA started first but is reported second; its start is held at TestB's.
	assert.WithinDuration(t, at(t, "2026-10-19T10:00:00.001Z"), rec.calls[3].At, 0)
	assert.WithinDuration(t, at(t, "2026-10-19T10:00:00.010Z"), rec.calls[5].At, 0)
}

func TestTranslatorSubtests(t *testing.T) {
	stream := `{"Time":"2026-10-19T10:00:00Z","Action":"run","Package":"calc","Test":"TestTable"}
{"Time":"2026-10-19T10:00:00Z","Action":"run","Package":"calc","Test":"TestTable/neg"}
{"Time":"2026-10-19T10:00:00Z","Action":"output","Package":"calc","Test":"TestTable/neg","Output":"=== RUN   TestTable/neg\n"}
{"Time":"2026-10-19T10:00:00Z","Action":"output","Package":"calc","Test":"TestTable/neg","Output":"    table_test.go:5: wrong sign\n"}
{"Time":"2026-10-19T10:00:00Z","Action":"output","Package":"calc","Test":"TestTable/neg","Output":"    --- FAIL: TestTable/neg (0.00s)\n"}
{"Time":"2026-10-19T10:00:00Z","Action":"fail","Package":"calc","Test":"TestTable/neg","Elapsed":0}
{"Time":"2026-10-19T10:00:00Z","Action":"output","Package":"calc","Test":"TestTable","Output":"--- FAIL: TestTable (0.00s)\n"}
{"Time":"2026-10-19T10:00:00Z","Action":"fail","Package":"calc","Test":"TestTable","Elapsed":0}
{"Time":"2026-10-19T10:00:00Z","Action":"fail","Package":"calc","Elapsed":0}
`
	rec, _ := translate(t, stream)

	want := []call{
		{Kind: "begin", Arg: "TestTable/neg (calc.TestTable)"},
		{Kind: "failure", Type: TypeTestFailure, Msg: "--- FAIL: TestTable/neg (0.00s)", Stack: "    table_test.go:5: wrong sign"},
		{Kind: "end"},
		{Kind: "begin", Arg: "TestTable (calc.TestTable)"},
		{Kind: "failure", Type: TypeTestFailure, Msg: "--- FAIL: TestTable (0.00s)"},
		{Kind: "end"},
	}
	if diff := cmp.Diff(want, rec.calls, withoutTimes); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestTranslatorNestedSubtestTimestamps(t *testing.T) {
	stream := `{"Time":"2026-10-19T10:00:00.001Z","Action":"run","Package":"calc","Test":"TestA"}
{"Time":"2026-10-19T10:00:00.002Z","Action":"run","Package":"calc","Test":"TestA/x"}
{"Time":"2026-10-19T10:00:00.003Z","Action":"pass","Package":"calc","Test":"TestA/x","Elapsed":0.001}
{"Time":"2026-10-19T10:00:00.004Z","Action":"run","Package":"calc","Test":"TestA/y"}
{"Time":"2026-10-19T10:00:00.006Z","Action":"pass","Package":"calc","Test":"TestA/y","Elapsed":0.002}
{"Time":"2026-10-19T10:00:00.007Z","Action":"pass","Package":"calc","Test":"TestA","Elapsed":0.006}
{"Time":"2026-10-19T10:00:00.008Z","Action":"pass","Package":"calc","Elapsed":0.008}
`
	rec, _ := translate(t, stream)

	type row struct {
		Test       string
		Begin, End string
	}
	var got []row
	for i := 0; i+2 < len(rec.calls); i += 3 {
		got = append(got, row{
			Test:  rec.calls[i].Arg,
			Begin: rec.calls[i].At.Format("05.000"),
			End:   rec.calls[i+2].At.Format("05.000"),
		})
	}
	want := []row{
		{Test: "TestA/x (calc.TestA)", Begin: "00.002", End: "00.003"},
		{Test: "TestA/y (calc.TestA)", Begin: "00.004", End: "00.006"},
		// The parent is reported last and begins where TestA/y began.
		{Test: "TestA (calc.TestA)", Begin: "00.004", End: "00.007"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("timestamps mismatch (-want +got):\n%s", diff)
	}
}

func TestTranslatorTimeoutCarriesPackageOutput(t *testing.T) {
	stream := `{"Time":"2026-10-19T10:00:00Z","Action":"start","Package":"example.com/slow"}
{"Time":"2026-10-19T10:00:00Z","Action":"run","Package":"example.com/slow","Test":"TestHang"}
{"Time":"2026-10-19T10:00:00Z","Action":"output","Package":"example.com/slow","Test":"TestHang","Output":"=== RUN   TestHang\n"}
{"Time":"2026-10-19T10:00:05Z","Action":"output","Package":"example.com/slow","Output":"panic: test timed out after 5s\n"}
{"Time":"2026-10-19T10:00:05Z","Action":"output","Package":"example.com/slow","Output":"\trunning tests:\n"}
{"Time":"2026-10-19T10:00:05Z","Action":"output","Package":"example.com/slow","Output":"\t\tTestHang (5s)\n"}
{"Time":"2026-10-19T10:00:05Z","Action":"fail","Package":"example.com/slow","Elapsed":5}
`
	rec, tr := translate(t, stream)

	want := []call{
		{Kind: "begin", Arg: "TestHang (example.com/slow.TestHang)"},
		{Kind: "error", Type: TypeTimeout, Msg: "panic: test timed out after 5s", Stack: "\trunning tests:\n\t\tTestHang (5s)"},
		{Kind: "end"},
	}
	if diff := cmp.Diff(want, rec.calls, withoutTimes); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, tr.Pending())
	assert.WithinDuration(t, at(t, "2026-10-19T10:00:05Z"), rec.calls[2].At, 0)
}

func TestTranslatorBuildFailure(t *testing.T) {
	stream := `{"ImportPath":"example.com/broken [example.com/broken.test]","Action":"build-output","Output":"# example.com/broken [example.com/broken.test]\n"}
{"ImportPath":"example.com/broken [example.com/broken.test]","Action":"build-output","Output":"./broken_test.go:9:2: undefined: missing\n"}
{"ImportPath":"example.com/broken [example.com/broken.test]","Action":"build-fail"}
{"Time":"2026-10-19T10:00:01Z","Action":"start","Package":"example.com/broken"}
{"Time":"2026-10-19T10:00:01Z","Action":"output","Package":"example.com/broken","Output":"FAIL\texample.com/broken [build failed]\n"}
{"Time":"2026-10-19T10:00:01Z","Action":"fail","Package":"example.com/broken","Elapsed":0,"FailedBuild":"example.com/broken [example.com/broken.test]"}
`
	rec, _ := translate(t, stream)

	want := []call{
		{Kind: "begin", Arg: "[package] (example.com/broken)"},
		{
			Kind:  "error",
			Type:  TypeBuildFailure,
			Msg:   "package example.com/broken failed to build",
			Stack: "# example.com/broken [example.com/broken.test]\n./broken_test.go:9:2: undefined: missing\nFAIL\texample.com/broken [build failed]",
		},
		{Kind: "end"},
	}
	if diff := cmp.Diff(want, rec.calls, withoutTimes); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestTranslatorPackageFailureWithoutTests(t *testing.T) {
	stream := `{"Time":"2026-10-19T10:00:00Z","Action":"start","Package":"example.com/mainexit"}
{"Time":"2026-10-19T10:00:00Z","Action":"output","Package":"example.com/mainexit","Output":"setup failed: no database\n"}
{"Time":"2026-10-19T10:00:00.003Z","Action":"output","Package":"example.com/mainexit","Output":"FAIL\texample.com/mainexit\t0.003s\n"}
{"Time":"2026-10-19T10:00:00.003Z","Action":"fail","Package":"example.com/mainexit","Elapsed":0.003}
{"Time":"2026-10-19T10:00:00.004Z","Action":"start","Package":"example.com/empty"}
{"Time":"2026-10-19T10:00:00.004Z","Action":"output","Package":"example.com/empty","Output":"?   \texample.com/empty\t[no test files]\n"}
{"Time":"2026-10-19T10:00:00.004Z","Action":"skip","Package":"example.com/empty","Elapsed":0}
`
	rec, _ := translate(t, stream)

	want := []call{
		{Kind: "begin", Arg: "[package] (example.com/mainexit)"},
		{
			Kind:  "error",
			Type:  TypePackageFailure,
			Msg:   "package example.com/mainexit failed",
			Stack: "setup failed: no database\nFAIL\texample.com/mainexit\t0.003s",
		},
		{Kind: "end"},
	}
	if diff := cmp.Diff(want, rec.calls, withoutTimes); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	assert.WithinDuration(t, at(t, "2026-10-19T10:00:00Z"), rec.calls[0].At, 0)
	assert.WithinDuration(t, at(t, "2026-10-19T10:00:00.003Z"), rec.calls[2].At, 0)
}

func TestTranslatorUnknownAndUnfinishedTests(t *testing.T) {
	stream := `{"Time":"2026-10-19T10:00:00Z","Action":"output","Package":"example.com/p","Test":"TestGhost","Output":"stray\n"}
{"Time":"2026-10-19T10:00:01Z","Action":"pass","Package":"example.com/p","Test":"TestGhost","Elapsed":0.5}
{"Time":"2026-10-19T10:00:02Z","Action":"run","Package":"example.com/p","Test":"TestStuck"}
`
	rec, tr := translate(t, stream)

	require.Len(t, rec.calls, 3)
	assert.Equal(t, "TestGhost (example.com/p.TestGhost)", rec.calls[0].Arg)
	assert.WithinDuration(t, at(t, "2026-10-19T10:00:00.5Z"), rec.calls[0].At, 0)

	assert.Equal(t, 1, tr.Pending())
	tr.Flush(context.Background())
	assert.Zero(t, tr.Pending())
	assert.Len(t, rec.calls, 3, "unfinished tests are dropped, not reported")
}

func TestTranslatorPropagatesReporterErrors(t *testing.T) {
	boom := errors.New("disk full")
	clock := &EventClock{}
	rec := &recorder{clock: clock, failOn: "end", failErr: boom}
	tr := NewTranslator(rec, clock)

	err := Decode(context.Background(), strings.NewReader(calcStream), nil, tr.Handle)
	assert.ErrorIs(t, err, boom)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		want     model.ExceptionInfo
		panicked bool
	}{
		{
			name:  "no summary line",
			lines: []string{"=== RUN   TestX\n", "    x_test.go:3: bad\n"},
			want:  model.ExceptionInfo{TypeName: TypeTestFailure, Message: "test failed", Stack: "    x_test.go:3: bad"},
		},
		{
			name:     "plain panic",
			lines:    []string{"--- FAIL: TestX (0.00s)\n", "panic: boom\n", "goroutine 1 [running]:\n"},
			want:     model.ExceptionInfo{TypeName: TypePanic, Message: "panic: boom", Stack: "--- FAIL: TestX (0.00s)\ngoroutine 1 [running]:"},
			panicked: true,
		},
		{
			name:  "framing only",
			lines: []string{"=== NAME  TestX\n", "=== CONT  TestX\n", "--- FAIL: TestX (0.00s)\n"},
			want:  model.ExceptionInfo{TypeName: TypeTestFailure, Message: "--- FAIL: TestX (0.00s)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, panicked := classify(tt.lines)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.panicked, panicked)
		})
	}
}

func TestEventClock(t *testing.T) {
	var c EventClock
	assert.WithinDuration(t, time.Now(), c.Now(), time.Minute)

	fixed := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	c.Set(fixed)
	assert.Equal(t, fixed, c.Now())
}
