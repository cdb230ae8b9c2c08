package chart

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Layout(t *testing.T) {
	rows := []Row{
		{Label: "0.1", Value: 100},
		{Label: "0.2", Value: 50},
	}

	out := Render(rows, 40)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)

	// 40 - 5 margin - (3 label + 3 value + 6 decoration) = 23 columns.
	assert.Equal(t, "0.1 [ 100 ] "+strings.Repeat("*", 23), lines[0])
	assert.Equal(t, "0.2 [  50 ] "+strings.Repeat("*", 12), lines[1])
	assert.False(t, strings.HasSuffix(out, "\n"))
}

func TestRender_ZeroValueHasNoTicks(t *testing.T) {
	out := Render([]Row{{Label: "foo", Value: 0}}, 80)
	assert.NotContains(t, out, DefaultTick)
	assert.Equal(t, "foo [ 0 ] ", out)
}

func TestRender_AllZero(t *testing.T) {
	out := Render([]Row{{Label: "a", Value: 0}, {Label: "b", Value: 0}}, 80)
	assert.NotContains(t, out, DefaultTick)
	assert.Len(t, strings.Split(out, "\n"), 2)
}

func TestRender_SingleEntryFillsWidth(t *testing.T) {
	out := Render([]Row{{Label: "x", Value: 7}}, 30)
	// 30 - 5 - (1 + 1 + 6) = 17
	assert.Equal(t, 17, strings.Count(out, DefaultTick))
}

func TestRender_EqualValuesEqualBars(t *testing.T) {
	out := Render([]Row{{Label: "a", Value: 9}, {Label: "b", Value: 9}, {Label: "c", Value: 9}}, 50)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	want := strings.Count(lines[0], DefaultTick)
	assert.Greater(t, want, 0)
	for _, line := range lines {
		assert.Equal(t, want, strings.Count(line, DefaultTick))
	}
}

func TestRender_ThousandsSeparator(t *testing.T) {
	out := Render([]Row{{Label: "1.0", Value: 1234567}, {Label: "2.0", Value: 12}}, 80)
	lines := strings.Split(out, "\n")
	assert.Contains(t, lines[0], "[ 1,234,567 ]")
	assert.Contains(t, lines[1], "[        12 ]")
}

func TestRender_TruncatesLongLabels(t *testing.T) {
	long := "1.0.0-really-long-prerelease-tag"
	rows := []Row{{Label: long, Value: 3}, {Label: "2.0", Value: 1}}

	out := Render(rows, 80)
	lines := strings.Split(out, "\n")

	assert.True(t, strings.HasPrefix(lines[0], long[:20]+" [ "))
	assert.NotContains(t, out, long)
	assert.True(t, strings.HasPrefix(lines[1], "2.0"+strings.Repeat(" ", 17)+" [ "))
	assert.Equal(t, "1.0.0-really-long-prerelease-tag", rows[0].Label)
}

func TestRender_NarrowWidthNeverNegative(t *testing.T) {
	out := Render([]Row{{Label: "0.1", Value: 10}}, 5)
	assert.Equal(t, "0.1 [ 10 ] ", out)
}

func TestRender_BarsNeverExceedAvailable(t *testing.T) {
	rows := []Row{
		{Label: "a", Value: 1},
		{Label: "bb", Value: 999},
		{Label: "ccc", Value: 1000},
		{Label: "dddd", Value: 333},
	}
	r := NewRenderer()
	for width := 0; width <= 120; width += 7 {
		available := r.BarWidth(width, 4, len("1,000"))
		for _, line := range strings.Split(r.Render(rows, width), "\n") {
			assert.LessOrEqual(t, strings.Count(line, DefaultTick), available)
		}
	}
}

func TestRender_Empty(t *testing.T) {
	assert.Equal(t, "", Render(nil, 80))
}

func TestRenderer_CustomTickAndMargin(t *testing.T) {
	r := Renderer{Tick: "#", Margin: 0, MaxLabelWidth: 2}
	out := r.Render([]Row{{Label: "abc", Value: 2}}, 12)
	// 12 - 0 - (2 + 1 + 6) = 3
	assert.Equal(t, "ab [ 2 ] ###", out)
}
