/*
PURPOSE:
  Keeps a verbatim copy of the go test -json event stream (NDJSON).
  The copy can be fed back through `gotest-jtl convert`.

REQUIREMENTS:
  Implementation-discovered:
  - Re-running a long suite just to regenerate reports is expensive; the
    raw stream is enough to rebuild both artifacts.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (one call per decoded line)

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Lines are written as received, newline terminated.
  - bufio + Flush per line so a crash keeps every complete line.

USAGE:
  w, err := output.NewEventLog("events.json")
  w.Write(line)
  w.Close()
*/

package output

import (
	"bufio"
	"os"
)

// EventLog handles writing raw test events to a JSON Lines file.
type EventLog struct {
	file *os.File
	buf  *bufio.Writer
}

// NewEventLog creates a new EventLog, truncating path.
func NewEventLog(path string) (*EventLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	return &EventLog{
		file: f,
		buf:  bufio.NewWriter(f),
	}, nil
}

// Write writes a single event line.
func (el *EventLog) Write(line []byte) error {
	if _, err := el.buf.Write(line); err != nil {
		return err
	}
	if err := el.buf.WriteByte('\n'); err != nil {
		return err
	}
	return el.buf.Flush()
}

// Close closes the underlying file.
func (el *EventLog) Close() error {
	err := el.buf.Flush()
	if cerr := el.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
