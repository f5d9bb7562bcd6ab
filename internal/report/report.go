// Package report prints events and sources for an operator.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JakeFAU/eventwatch/internal/harvest"
)

const (
	titleWidth       = 40
	urlWidth         = 60
	descriptionWidth = 60
)

// Printer renders event lists as tables.
type Printer struct {
	Out io.Writer
}

// NewPrinter writes to out, or stdout when out is nil.
func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{Out: out}
}

// Report prints heading followed by the events, or a notice when there are
// none.
func (p *Printer) Report(heading string, events []harvest.Candidate) {
	if len(events) == 0 {
		_, _ = fmt.Fprintf(p.Out, "%s: No relevant events found.\n", heading)
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(p.Out)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("%s (%d)", heading, len(events)))
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: titleWidth},
		{Number: 3, WidthMax: urlWidth},
		{Number: 4, WidthMax: descriptionWidth},
	})
	t.AppendHeader(table.Row{"#", "Title", "URL", "Description"})
	for i, ev := range events {
		t.AppendRow(table.Row{i + 1, ev.Title, ev.URL, strings.Join(strings.Fields(ev.Description), " ")})
	}
	t.Render()
}

// Sources prints the monitored source table.
func (p *Printer) Sources(sources []harvest.SourceDescriptor) {
	t := table.NewWriter()
	t.SetOutputMirror(p.Out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "URL", "Container", "Render"})
	for _, src := range sources {
		t.AppendRow(table.Row{src.ID, src.URL, src.ContainerSelector, renderMode(src.Render)})
	}
	t.AppendFooter(table.Row{"Total", len(sources), "", ""})
	t.Render()
}

func renderMode(profile *harvest.RenderProfile) string {
	if profile == nil {
		return "plain"
	}
	mode := "scripted"
	if profile.Stealth {
		mode += " (stealth)"
	}
	if n := len(profile.Steps); n > 0 {
		mode += fmt.Sprintf(", %d steps", n)
	}
	return mode
}
