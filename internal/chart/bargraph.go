// Package chart renders labeled counts as a fixed-width text bar chart.
package chart

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

const (
	// DefaultTick is the glyph repeated to draw a bar.
	DefaultTick = "*"
	// DefaultMargin is the number of columns left free so a line never wraps.
	DefaultMargin = 5
	// DefaultMaxLabelWidth caps the label column.
	DefaultMaxLabelWidth = 20
)

// decorationWidth is the width of the literal " [ " and " ] " separators.
const decorationWidth = 3 + 3

// Row is one labeled value of the chart.
type Row struct {
	Label string
	Value int64
}

// Renderer draws bar charts. The zero value is not usable; start from
// NewRenderer.
type Renderer struct {
	Tick          string
	Margin        int
	MaxLabelWidth int
}

// NewRenderer returns a Renderer with the default tick, margin and label cap.
func NewRenderer() Renderer {
	return Renderer{
		Tick:          DefaultTick,
		Margin:        DefaultMargin,
		MaxLabelWidth: DefaultMaxLabelWidth,
	}
}

// Render draws rows with the default renderer.
func Render(rows []Row, width int) string {
	return NewRenderer().Render(rows, width)
}

// Render returns one line per row, in the given order, joined by a single
// newline:
//
//	label [ value ] ****
//
// Bars scale to the largest value so that the longest one fills the width
// left after the label, value and margin. When every value is zero all bars
// are empty.
func (r Renderer) Render(rows []Row, width int) string {
	if len(rows) == 0 {
		return ""
	}

	labelWidth := 0
	valueWidth := 0
	var maxValue int64
	for i, row := range rows {
		if n := utf8.RuneCountInString(row.Label); n > labelWidth {
			labelWidth = n
		}
		if n := len(humanize.Comma(row.Value)); n > valueWidth {
			valueWidth = n
		}
		if i == 0 || row.Value > maxValue {
			maxValue = row.Value
		}
	}
	if r.MaxLabelWidth > 0 && labelWidth > r.MaxLabelWidth {
		labelWidth = r.MaxLabelWidth
	}

	available := r.BarWidth(width, labelWidth, valueWidth)

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		bar := strings.Repeat(r.Tick, barLength(available, row.Value, maxValue))
		lines = append(lines, fmt.Sprintf("%-*s [ %*s ] %s",
			labelWidth, truncate(row.Label, labelWidth),
			valueWidth, humanize.Comma(row.Value),
			bar,
		))
	}
	return strings.Join(lines, "\n")
}

// BarWidth returns the number of columns left for the longest bar. It never
// goes below zero.
func (r Renderer) BarWidth(width, labelWidth, valueWidth int) int {
	available := width - r.Margin - (labelWidth + valueWidth + decorationWidth)
	if available < 0 {
		return 0
	}
	return available
}

// barLength is ceil(available * value / maxValue), or 0 when maxValue is 0.
func barLength(available int, value, maxValue int64) int {
	if maxValue <= 0 || value <= 0 || available <= 0 {
		return 0
	}
	n := (int64(available)*value + maxValue - 1) / maxValue
	if n > int64(available) {
		n = int64(available)
	}
	return int(n)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
