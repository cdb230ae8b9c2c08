// Package report prints the download statistics of one package, either as
// a text chart with a summary block or as a JSON document.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/ippclub/pipstat/internal/chart"
	"github.com/ippclub/pipstat/internal/stats"
)

// DefaultDateFormat renders upload dates as yy/mm/dd.
const DefaultDateFormat = "06/01/02"

// Options configures a Writer.
type Options struct {
	// Width is the display width handed to the chart renderer.
	Width int
	// DateFormat is a Go time layout for chart labels.
	DateFormat string
	Renderer   chart.Renderer
	// Color enables ANSI colors for headers and warnings.
	Color bool
}

// Writer prints reports to an output stream.
type Writer struct {
	out  io.Writer
	opts Options

	header *color.Color
	warn   *color.Color
}

// New creates a Writer. Zero-valued options fall back to the defaults.
func New(out io.Writer, opts Options) *Writer {
	if opts.DateFormat == "" {
		opts.DateFormat = DefaultDateFormat
	}
	if opts.Renderer.Tick == "" {
		opts.Renderer = chart.NewRenderer()
	}

	w := &Writer{
		out:    out,
		opts:   opts,
		header: color.New(color.Bold),
		warn:   color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{w.header, w.warn} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return w
}

// Rows turns the version mapping into chart rows labeled "version  yy/mm/dd",
// keeping release order.
func Rows(s *stats.Stats, dateFormat string) []chart.Row {
	entries := s.Versions().Entries()
	rows := make([]chart.Row, 0, len(entries))
	for _, e := range entries {
		label := e.Version
		if date, ok := s.Date(e.Version); ok {
			label = fmt.Sprintf("%-7s %s", e.Version, date.Format(dateFormat))
		}
		rows = append(rows, chart.Row{Label: label, Value: e.Downloads})
	}
	return rows
}

// Text prints the header, the chart and the summary block. version, when
// not empty, adds the download count of that single version.
func (w *Writer) Text(s *stats.Stats, version string) error {
	var b strings.Builder

	header := fmt.Sprintf("Download statistics for %s", s.Name())
	b.WriteString("\n")
	b.WriteString(w.header.Sprint(header) + "\n")
	b.WriteString(strings.Repeat("=", len(header)) + "\n")
	b.WriteString("Downloads by version\n")
	if c := w.opts.Renderer.Render(Rows(s, w.opts.DateFormat), w.opts.Width); c != "" {
		b.WriteString(c + "\n")
	}
	b.WriteString("\n")

	sum := s.Summary()
	lowest, ok := s.MinVersion()
	fmt.Fprintf(&b, "Min downloads:   %12s (%s)\n", humanize.Comma(lowest.Downloads), versionOrNone(lowest, ok))
	highest, ok := s.MaxVersion()
	fmt.Fprintf(&b, "Max downloads:   %12s (%s)\n", humanize.Comma(highest.Downloads), versionOrNone(highest, ok))
	fmt.Fprintf(&b, "Avg downloads:   %12s\n", humanize.Comma(sum.Average))
	fmt.Fprintf(&b, "Total downloads: %12s\n", humanize.Comma(sum.Total))

	if version != "" {
		if n, ok := s.Versions().Get(version); ok {
			fmt.Fprintf(&b, "%-17s%12s\n", "Downloads for "+version+":", humanize.Comma(n))
		} else {
			b.WriteString(w.warn.Sprintf("Version %s has no downloadable files.", version) + "\n")
		}
	}

	if iv := sum.Intervals; iv != nil {
		b.WriteString("\n")
		fmt.Fprintf(&b, "Last day:    %12s\n", humanize.Comma(iv.LastDay))
		fmt.Fprintf(&b, "Last week:   %12s\n", humanize.Comma(iv.LastWeek))
		fmt.Fprintf(&b, "Last month:  %12s\n", humanize.Comma(iv.LastMonth))
	}

	_, err := io.WriteString(w.out, b.String())
	return err
}

func versionOrNone(e stats.Entry, ok bool) string {
	if !ok {
		return "none"
	}
	return e.Version
}

type jsonVersion struct {
	Version   string     `json:"version"`
	Downloads int64      `json:"downloads"`
	Uploaded  *time.Time `json:"uploaded,omitempty"`
}

type jsonReport struct {
	Package   string        `json:"package"`
	Versions  []jsonVersion `json:"versions"`
	Summary   stats.Summary `json:"summary"`
	Requested *jsonVersion  `json:"requested,omitempty"`
}

// JSON prints the report as one indented JSON document.
func (w *Writer) JSON(s *stats.Stats, version string) error {
	doc := jsonReport{
		Package:  s.Name(),
		Versions: make([]jsonVersion, 0, s.Versions().Len()),
		Summary:  s.Summary(),
	}
	for _, e := range s.Versions().Entries() {
		v := jsonVersion{Version: e.Version, Downloads: e.Downloads}
		if date, ok := s.Date(e.Version); ok {
			v.Uploaded = &date
		}
		doc.Versions = append(doc.Versions, v)
		if e.Version == version {
			requested := v
			doc.Requested = &requested
		}
	}

	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
