package model

import (
	"strconv"

	"github.com/acarl005/stripansi"
)

// ExceptionInfo describes why a test failed or errored.
type ExceptionInfo struct {
	TypeName string
	Message  string
	Stack    string
}

// Trace is the stack text followed by the message.
func (e ExceptionInfo) Trace() string {
	return e.Stack + "\n" + e.Message
}

// DiagnosticEntry is the detail record written for failed and errored tests.
// All values are already rendered as the attribute strings of an httpSample.
type DiagnosticEntry struct {
	Elapsed         string
	Latency         string
	Connect         string
	Timestamp       string
	Success         string
	Label           string
	ResponseCode    string
	ResponseMessage string
	ThreadGroup     string
	DataType        string
	DataEncoding    string
	Bytes           string
	GroupCount      string
	AllCount        string

	ResponseData string
	URL          string
}

// NewDiagnosticEntry derives an entry from a finished sample.
// The trace is stored without ANSI escapes and Bytes counts what is stored.
func NewDiagnosticEntry(s *Sample, exc ExceptionInfo) DiagnosticEntry {
	trace := stripansi.Strip(exc.Trace())
	return DiagnosticEntry{
		Elapsed:         strconv.FormatInt(s.ElapsedMs, 10),
		Latency:         strconv.FormatInt(s.LatencyMs, 10),
		Connect:         strconv.FormatInt(s.ConnectMs, 10),
		Timestamp:       strconv.FormatInt(s.Timestamp, 10),
		Success:         strconv.FormatBool(s.Success),
		Label:           s.Label,
		ResponseCode:    string(s.ResponseCode),
		ResponseMessage: exc.TypeName,
		ThreadGroup:     s.ThreadGroup,
		DataType:        "text",
		DataEncoding:    "",
		Bytes:           strconv.Itoa(len(trace)),
		GroupCount:      "1",
		AllCount:        "1",
		ResponseData:    trace,
		URL:             s.Label,
	}
}
