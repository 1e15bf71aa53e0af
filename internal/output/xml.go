/*
PURPOSE:
  Streams diagnostic entries into a JMeter XML result document.
  One <httpSample> per failed or errored test inside a single
  <testResults> root.

REQUIREMENTS:
  User-specified:
  - Push-based writer with explicit states Unopened -> Open -> Closed.
  - Each entry is flushed as one unit.
  - Closing the root element must survive early termination.

  Implementation-discovered:
  - go test output carries ANSI colour codes; they are stripped before
    encoding. encoding/xml replaces remaining illegal characters.

ARCHITECTURE INTEGRATION:
  - Called by: internal/report
  - Consumes: internal/model.DiagnosticEntry

ERROR HANDLING:
  - AddEntry outside the Open state returns ErrWriterNotOpen.
  - Write/flush failures are returned unchanged.

IMPLEMENTATION RULES:
  - Callers defer Close() right after Open() succeeds.
  - Close() from Unopened or Closed is a no-op.

USAGE:
  w, err := output.CreateDiagnosticWriter("errors.jtl")
  defer w.Close()
  w.AddEntry(entry)

RELATED FILES:
  - internal/model/diagnostic.go

MAINTENANCE:
  - Attribute and child order is part of the format. Do not reorder
    httpSample fields.
*/

package output

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/acarl005/stripansi"

	"github.com/daryltucker/gotest-jtl/internal/model"
)

// ResultsVersion is the version attribute of the testResults root.
const ResultsVersion = "1.2"

const javaString = "java.lang.String"

var (
	ErrWriterNotOpen = errors.New("diagnostic writer is not open")
	ErrWriterOpen    = errors.New("diagnostic writer already opened")
)

// WriterState is the lifecycle state of a DiagnosticWriter.
type WriterState int

const (
	StateUnopened WriterState = iota
	StateOpen
	StateClosed
)

func (s WriterState) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("WriterState(%d)", int(s))
	}
}

type classText struct {
	Class string `xml:"class,attr"`
	Text  string `xml:",chardata"`
}

type httpSample struct {
	XMLName xml.Name `xml:"httpSample"`

	T  string `xml:"t,attr"`
	Lt string `xml:"lt,attr"`
	Ct string `xml:"ct,attr"`
	Ts string `xml:"ts,attr"`
	S  string `xml:"s,attr"`
	Lb string `xml:"lb,attr"`
	Rc string `xml:"rc,attr"`
	Rm string `xml:"rm,attr"`
	Tn string `xml:"tn,attr"`
	Dt string `xml:"dt,attr"`
	De string `xml:"de,attr"`
	By string `xml:"by,attr"`
	Ng string `xml:"ng,attr"`
	Na string `xml:"na,attr"`

	ResponseHeader classText `xml:"responseHeader"`
	RequestHeader  classText `xml:"requestHeader"`
	ResponseData   classText `xml:"responseData"`
	Cookies        classText `xml:"cookies"`
	Method         classText `xml:"method"`
	QueryString    classText `xml:"queryString"`
	URL            string    `xml:"java.net.URL"`
}

func newHTTPSample(e model.DiagnosticEntry) httpSample {
	return httpSample{
		T:  e.Elapsed,
		Lt: e.Latency,
		Ct: e.Connect,
		Ts: e.Timestamp,
		S:  e.Success,
		Lb: e.Label,
		Rc: e.ResponseCode,
		Rm: e.ResponseMessage,
		Tn: e.ThreadGroup,
		Dt: e.DataType,
		De: e.DataEncoding,
		By: e.Bytes,
		Ng: e.GroupCount,
		Na: e.AllCount,

		ResponseHeader: classText{Class: javaString},
		RequestHeader:  classText{Class: javaString},
		ResponseData:   classText{Class: javaString, Text: stripansi.Strip(e.ResponseData)},
		Cookies:        classText{Class: javaString},
		Method:         classText{Class: javaString},
		QueryString:    classText{Class: javaString},
		URL:            e.URL,
	}
}

var rootElement = xml.StartElement{
	Name: xml.Name{Local: "testResults"},
	Attr: []xml.Attr{{Name: xml.Name{Local: "version"}, Value: ResultsVersion}},
}

// DiagnosticWriter writes diagnostic entries to an XML stream.
type DiagnosticWriter struct {
	w     io.Writer
	file  *os.File
	enc   *xml.Encoder
	state WriterState
}

// NewDiagnosticWriter creates an unopened writer over a caller-owned stream.
func NewDiagnosticWriter(w io.Writer) *DiagnosticWriter {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return &DiagnosticWriter{w: w, enc: enc}
}

// CreateDiagnosticWriter creates the file at path and opens a writer on it.
// The returned writer owns the file and releases it on Close.
func CreateDiagnosticWriter(path string) (*DiagnosticWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	dw := NewDiagnosticWriter(f)
	dw.file = f
	if err := dw.Open(); err != nil {
		f.Close()
		return nil, err
	}
	return dw, nil
}

// State returns the current lifecycle state.
func (dw *DiagnosticWriter) State() WriterState {
	return dw.state
}

// Open writes the prolog and the root start tag.
func (dw *DiagnosticWriter) Open() error {
	if dw.state != StateUnopened {
		return ErrWriterOpen
	}
	prolog := xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8"`)}
	if err := dw.enc.EncodeToken(prolog); err != nil {
		return fmt.Errorf("failed to write xml declaration: %w", err)
	}
	if err := dw.enc.EncodeToken(rootElement); err != nil {
		return fmt.Errorf("failed to open %s: %w", rootElement.Name.Local, err)
	}
	if err := dw.flush(); err != nil {
		return err
	}
	dw.state = StateOpen
	return nil
}

// AddEntry writes one httpSample and flushes it.
func (dw *DiagnosticWriter) AddEntry(e model.DiagnosticEntry) error {
	if dw.state != StateOpen {
		return ErrWriterNotOpen
	}
	if err := dw.enc.Encode(newHTTPSample(e)); err != nil {
		return fmt.Errorf("failed to write sample %q: %w", e.Label, err)
	}
	return dw.flush()
}

// Close ends the root element and releases an owned file.
func (dw *DiagnosticWriter) Close() error {
	if dw.state != StateOpen {
		return nil
	}
	dw.state = StateClosed

	err := dw.enc.EncodeToken(rootElement.End())
	if err == nil {
		err = dw.flush()
	}
	if dw.file != nil {
		if cerr := dw.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (dw *DiagnosticWriter) flush() error {
	if err := dw.enc.Flush(); err != nil {
		return err
	}
	if f, ok := dw.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
