/*
PURPOSE:
  Defines the core data structures used throughout the reporter.
  A Sample is one test outcome; a DiagnosticEntry is the failure detail
  derived from it.

REQUIREMENTS:
  User-specified:
  - Fixed columns for the JTL sample log.
  - Failure detail for failed/errored tests only.

  Implementation-discovered:
  - JMeter readers expect the concurrency columns (grpThreads/allThreads)
    and the Latency/Connect columns even though nothing measures them.

ARCHITECTURE INTEGRATION:
  - Used by: internal/report, internal/output, internal/metrics
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs).

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Success must always equal (ResponseCode == CodeSuccess).

USAGE:
  s := model.NewSample(id, time.Now())
  s.SetOutcome(model.CodeFailure)

RELATED FILES:
  - internal/output/csv.go
  - internal/output/xml.go

MAINTENANCE:
  - Update both writers when adding a field.
*/

package model

import (
	"time"

	"github.com/daryltucker/gotest-jtl/internal/identity"
)

// ResponseCode is the categorical outcome carried in the responseCode column.
type ResponseCode string

const (
	CodeUnset   ResponseCode = ""
	CodeSuccess ResponseCode = "200"
	CodeSkipped ResponseCode = "300"
	CodeFailure ResponseCode = "404"
	CodeError   ResponseCode = "500"
)

// Outcome returns the human name of the code.
func (c ResponseCode) Outcome() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeSkipped:
		return "skipped"
	case CodeFailure:
		return "failure"
	case CodeError:
		return "error"
	default:
		return "unset"
	}
}

// IsProblem reports whether the code produces a diagnostic entry.
func (c ResponseCode) IsProblem() bool {
	return c == CodeFailure || c == CodeError
}

// SuccessMessage is the responseMessage of passing samples.
const SuccessMessage = "OK"

// Sample represents the outcome of a single test.
type Sample struct {
	Timestamp       int64 // epoch ms at test start
	ElapsedMs       int64
	Label           string
	ResponseCode    ResponseCode
	ResponseMessage string
	ThreadGroup     string
	Success         bool
	GroupThreads    int
	AllThreads      int
	LatencyMs       int64 // not measured
	ConnectMs       int64 // not measured
}

// NewSample creates a sample for a test that started at start.
func NewSample(id identity.Identity, start time.Time) *Sample {
	return &Sample{
		Timestamp:    start.UnixMilli(),
		Label:        id.Method,
		ThreadGroup:  id.ThreadGroup(),
		GroupThreads: 1,
		AllThreads:   1,
	}
}

// SetOutcome records code and keeps Success consistent with it.
func (s *Sample) SetOutcome(code ResponseCode) {
	s.ResponseCode = code
	s.Success = code == CodeSuccess
	if s.Success {
		s.ResponseMessage = SuccessMessage
	} else if s.ResponseMessage == SuccessMessage {
		s.ResponseMessage = ""
	}
}

// Finish sets the elapsed time, clamped at zero.
func (s *Sample) Finish(stop time.Time) {
	elapsed := stop.UnixMilli() - s.Timestamp
	if elapsed < 0 {
		elapsed = 0
	}
	s.ElapsedMs = elapsed
}
