/*
PURPOSE:
  Provides the structured logger for the reporter.
  Wraps slog through clog so the logger can travel in a context.

REQUIREMENTS:
  User-specified:
  - "Sane" CLI output. Not spammy.

  Implementation-discovered:
  - stdout carries go test output and progress lines, so logs go to stderr.
  - CI wants JSON logs, terminals want text.

ARCHITECTURE INTEGRATION:
  - Used everywhere. Engine and report code use clog.FromContext(ctx).

ERROR HANDLING:
  - NewLogger rejects unknown levels and formats.

IMPLEMENTATION RULES:
  - Use `log/slog` handlers, wrapped by clog.

USAGE:
  output.Logger.Info("message", "key", "value")
  ctx = clog.WithLogger(ctx, output.Logger)

RELATED FILES:
  - internal/cli/root.go
*/

package output

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/chainguard-dev/clog"
)

// Logger is the process-wide logger, replaced once flags are parsed.
var Logger = clog.New(slog.NewTextHandler(os.Stderr, nil))

// SetLogger allows overriding the default logger (e.g. for testing or config changes)
func SetLogger(l *clog.Logger) {
	Logger = l
}

// NewLogger builds a logger writing to w with the given level and format ("text" or "json").
func NewLogger(w io.Writer, level, format string) (*clog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return clog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return clog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
