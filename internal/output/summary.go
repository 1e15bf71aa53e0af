package output

import (
	"context"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/daryltucker/gotest-jtl/internal/model"
)

var summaryHeader = []string{"Thread Group", "Tests", "Passed", "Failed", "Errors", "Skipped", "Elapsed (ms)"}

type groupCounts struct {
	tests, passed, failed, errored, skipped int
	elapsedMs                               int64
}

// Summary counts outcomes per thread group and renders them as a table.
// Only counters are kept; samples are not retained.
type Summary struct {
	order  []string
	groups map[string]*groupCounts
}

// NewSummary creates an empty Summary.
func NewSummary() *Summary {
	return &Summary{groups: make(map[string]*groupCounts)}
}

// ObserveSample adds a finished sample to its group.
func (s *Summary) ObserveSample(_ context.Context, sample *model.Sample) {
	g, ok := s.groups[sample.ThreadGroup]
	if !ok {
		g = &groupCounts{}
		s.groups[sample.ThreadGroup] = g
		s.order = append(s.order, sample.ThreadGroup)
	}
	g.tests++
	g.elapsedMs += sample.ElapsedMs
	switch sample.ResponseCode {
	case model.CodeSuccess:
		g.passed++
	case model.CodeFailure:
		g.failed++
	case model.CodeError:
		g.errored++
	case model.CodeSkipped:
		g.skipped++
	}
}

// Render writes the table in first-seen group order, followed by a total row.
func (s *Summary) Render(w io.Writer) error {
	table := createStandardTable(summaryHeader, w)

	var total groupCounts
	for _, name := range s.order {
		g := s.groups[name]
		if err := table.Append(countsRow(name, g)); err != nil {
			return err
		}
		total.tests += g.tests
		total.passed += g.passed
		total.failed += g.failed
		total.errored += g.errored
		total.skipped += g.skipped
		total.elapsedMs += g.elapsedMs
	}
	if err := table.Append(countsRow("TOTAL", &total)); err != nil {
		return err
	}
	return table.Render()
}

func countsRow(name string, g *groupCounts) []string {
	if name == "" {
		name = "-"
	}
	return []string{
		name,
		strconv.Itoa(g.tests),
		strconv.Itoa(g.passed),
		strconv.Itoa(g.failed),
		strconv.Itoa(g.errored),
		strconv.Itoa(g.skipped),
		strconv.FormatInt(g.elapsedMs, 10),
	}
}

// createStandardTable creates a markdown-style table with left-aligned cells.
func createStandardTable(headers []string, w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}
