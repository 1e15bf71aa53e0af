/*
PURPOSE:
  Decodes the newline-delimited JSON stream produced by `go test -json`
  (cmd/test2json) into TestEvent values.

REQUIREMENTS:
  Implementation-discovered:
  - The stream is not guaranteed clean: a test binary writing to stdout
    before test2json attaches, or a truncated last line, shows up as
    garbage. Those lines are skipped, never fatal.
  - Panic traces from large suites can produce very long output events.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go
  - Feeds: internal/engine/gotest.go (Translator)
  - Optional tee: internal/output.EventLog

ERROR HANDLING:
  - Garbage lines: Warn and continue.
  - Callback and tee errors abort decoding and are returned as is.
  - Scanner errors (line over maxEventLine, read failure) are returned.

USAGE:
  err := engine.Decode(ctx, stdout, eventLog, tr.Handle)

RELATED FILES:
  - internal/engine/gotest.go
  - internal/output/events.go
*/

package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/chainguard-dev/clog"
)

// test2json actions.
const (
	ActionStart       = "start"
	ActionRun         = "run"
	ActionPause       = "pause"
	ActionCont        = "cont"
	ActionPass        = "pass"
	ActionBench       = "bench"
	ActionFail        = "fail"
	ActionOutput      = "output"
	ActionSkip        = "skip"
	ActionBuildOutput = "build-output"
	ActionBuildFail   = "build-fail"
)

const maxEventLine = 4 << 20

// TestEvent is one line of `go test -json` output.
type TestEvent struct {
	Time        time.Time
	Action      string
	Package     string
	Test        string
	Output      string
	Elapsed     float64
	ImportPath  string
	FailedBuild string
}

// LineSink receives every non-empty raw line before it is decoded.
type LineSink interface {
	Write(line []byte) error
}

// Decode reads events from r and hands each one to fn, in stream order.
func Decode(ctx context.Context, r io.Reader, tee LineSink, fn func(context.Context, TestEvent) error) error {
	log := clog.FromContext(ctx)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if tee != nil {
			if err := tee.Write(line); err != nil {
				return fmt.Errorf("failed to record event: %w", err)
			}
		}

		var ev TestEvent
		// Garbage resilience: Ignore JSON errors
		if err := json.Unmarshal(line, &ev); err != nil || ev.Action == "" {
			log.Warn("Skipping invalid event line", "line", truncate(string(line), 200))
			continue
		}

		if err := fn(ctx, ev); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("event stream scanning error: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
