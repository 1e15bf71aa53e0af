/*
PURPOSE:
  Writes test samples to a JTL (JMeter CSV) file.
  Ensures data integrity by flushing writes immediately.

REQUIREMENTS:
  User-specified:
  - One row per completed test, fixed column order.
  - A crash must not lose previously written rows.

  Implementation-discovered:
  - Column names follow JMeter's CSV result format so JMeter/Taurus
    tooling reads the file unmodified.

ARCHITECTURE INTEGRATION:
  - Called by: internal/report
  - Consumes: internal/model.Sample

ERROR HANDLING:
  - Returns error on file creation, write or flush failure. No retries.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every write (critical for crash resilience).
  - Single writer; the reporter is strictly sequential.

USAGE:
  w, err := output.NewSampleLog("samples.jtl")
  w.Append(sample)
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - If the column set changes, update SampleHeader and record().

RELATED FILES:
  - internal/model/sample.go

MAINTENANCE:
  - Keep SampleHeader and record() in the same order.
*/

package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/daryltucker/gotest-jtl/internal/model"
)

// SampleHeader is the fixed column order of the sample log.
var SampleHeader = []string{
	"timeStamp", "elapsed", "label", "responseCode", "responseMessage",
	"threadName", "success", "grpThreads", "allThreads", "Latency", "Connect",
}

// SampleLog handles writing samples to a CSV file.
type SampleLog struct {
	file   *os.File
	writer *csv.Writer
	closed bool
}

// NewSampleLog creates a new SampleLog.
// It overwrites the file if it exists.
func NewSampleLog(path string) (*SampleLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	sl, err := newSampleLog(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	sl.file = f
	return sl, nil
}

// NewSampleLogWriter writes the sample log to a caller-owned stream.
func NewSampleLogWriter(w io.Writer) (*SampleLog, error) {
	return newSampleLog(w)
}

func newSampleLog(w io.Writer) (*SampleLog, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(SampleHeader); err != nil {
		return nil, fmt.Errorf("failed to write sample header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush sample header: %w", err)
	}
	return &SampleLog{writer: cw}, nil
}

// Append writes a single sample and flushes it.
func (sl *SampleLog) Append(s *model.Sample) error {
	if sl.closed {
		return os.ErrClosed
	}
	if err := sl.writer.Write(record(s)); err != nil {
		return err
	}
	sl.writer.Flush()
	return sl.writer.Error()
}

func record(s *model.Sample) []string {
	return []string{
		strconv.FormatInt(s.Timestamp, 10),
		strconv.FormatInt(s.ElapsedMs, 10),
		s.Label,
		string(s.ResponseCode),
		s.ResponseMessage,
		s.ThreadGroup,
		strconv.FormatBool(s.Success),
		strconv.Itoa(s.GroupThreads),
		strconv.Itoa(s.AllThreads),
		strconv.FormatInt(s.LatencyMs, 10),
		strconv.FormatInt(s.ConnectMs, 10),
	}
}

// Close flushes and closes the underlying file if this log opened it.
func (sl *SampleLog) Close() error {
	if sl.closed {
		return nil
	}
	sl.closed = true

	sl.writer.Flush()
	err := sl.writer.Error()
	if sl.file != nil {
		if cerr := sl.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
