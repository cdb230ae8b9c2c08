package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ippclub/pipstat/internal/chart"
	"github.com/ippclub/pipstat/internal/model"
	"github.com/ippclub/pipstat/internal/stats"
)

func day(d int) time.Time {
	return time.Date(2014, time.May, d, 12, 0, 0, 0, time.UTC)
}

func cheesetest(t *testing.T, intervals *model.Intervals) *stats.Stats {
	t.Helper()
	s, err := stats.Aggregate(&model.ReleaseManifest{
		Name: "cheesetest",
		Releases: []model.Release{
			{Version: "0.2", Files: []model.File{{Downloads: 250, UploadTime: day(2)}}},
			{Version: "0.1", Files: []model.File{{Downloads: 1000, UploadTime: day(1)}}},
			{Version: "0.3"},
		},
		Intervals: intervals,
	})
	require.NoError(t, err)
	return s
}

func TestRows(t *testing.T) {
	s, err := stats.Aggregate(&model.ReleaseManifest{
		Name: "undated",
		Releases: []model.Release{
			{Version: "1.0", Files: []model.File{{Downloads: 3}}},
			{Version: "1.1", Files: []model.File{{Downloads: 4, UploadTime: day(7)}}},
		},
	})
	require.NoError(t, err)

	rows := Rows(s, DefaultDateFormat)
	assert.Equal(t, []chart.Row{
		{Label: "1.0", Value: 3},
		{Label: "1.1     14/05/07", Value: 4},
	}, rows)
}

func TestText(t *testing.T) {
	var out bytes.Buffer
	w := New(&out, Options{Width: 60})

	require.NoError(t, w.Text(cheesetest(t, &model.Intervals{LastDay: 1, LastWeek: 20, LastMonth: 3000}), ""))

	want := strings.Join([]string{
		"",
		"Download statistics for cheesetest",
		"==================================",
		"Downloads by version",
		"0.1     14/05/01 [ 1,000 ] ****************************",
		"0.2     14/05/02 [   250 ] *******",
		"",
		"Min downloads:            250 (0.2)",
		"Max downloads:          1,000 (0.1)",
		"Avg downloads:            625",
		"Total downloads:        1,250",
		"",
		"Last day:               1",
		"Last week:             20",
		"Last month:         3,000",
		"",
	}, "\n")
	assert.Equal(t, want, out.String())
}

func TestText_WithoutIntervals(t *testing.T) {
	var out bytes.Buffer
	w := New(&out, Options{Width: 60})

	require.NoError(t, w.Text(cheesetest(t, nil), ""))
	assert.NotContains(t, out.String(), "Last day")
	assert.True(t, strings.HasSuffix(out.String(), "Total downloads:        1,250\n"))
}

func TestText_RequestedVersion(t *testing.T) {
	var out bytes.Buffer
	w := New(&out, Options{Width: 60})

	require.NoError(t, w.Text(cheesetest(t, nil), "0.2"))
	assert.Contains(t, out.String(), "Downloads for 0.2:         250\n")

	out.Reset()
	require.NoError(t, w.Text(cheesetest(t, nil), "0.3"))
	assert.Contains(t, out.String(), "Version 0.3 has no downloadable files.\n")
}

func TestText_NoVersions(t *testing.T) {
	s, err := stats.Aggregate(&model.ReleaseManifest{
		Name:     "empty",
		Releases: []model.Release{{Version: "1.0"}},
	})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, New(&out, Options{Width: 60}).Text(s, ""))
	assert.Contains(t, out.String(), "Downloads by version\n\nMin downloads:              0 (none)\n")
	assert.Contains(t, out.String(), "Avg downloads:              0\n")
}

func TestText_Color(t *testing.T) {
	var out bytes.Buffer
	w := New(&out, Options{Width: 60, Color: true})

	require.NoError(t, w.Text(cheesetest(t, nil), ""))
	assert.Contains(t, out.String(), "\x1b[1mDownload statistics for cheesetest\x1b[0m")
}

func TestText_CustomRenderer(t *testing.T) {
	var out bytes.Buffer
	w := New(&out, Options{
		Width:      40,
		DateFormat: "2006-01-02",
		Renderer:   chart.Renderer{Tick: "#", Margin: 0, MaxLabelWidth: 20},
	})

	require.NoError(t, w.Text(cheesetest(t, nil), ""))
	assert.Contains(t, out.String(), "0.1     2014-05-01 [ 1,000 ] ")
	assert.Contains(t, out.String(), "#")
	assert.NotContains(t, out.String(), "*")
}

func TestJSON(t *testing.T) {
	var out bytes.Buffer
	w := New(&out, Options{})

	require.NoError(t, w.JSON(cheesetest(t, &model.Intervals{LastDay: 1, LastWeek: 2, LastMonth: 3}), "0.1"))

	var doc struct {
		Package  string `json:"package"`
		Versions []struct {
			Version   string     `json:"version"`
			Downloads int64      `json:"downloads"`
			Uploaded  *time.Time `json:"uploaded"`
		} `json:"versions"`
		Summary   stats.Summary `json:"summary"`
		Requested *struct {
			Version   string `json:"version"`
			Downloads int64  `json:"downloads"`
		} `json:"requested"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))

	assert.Equal(t, "cheesetest", doc.Package)
	require.Len(t, doc.Versions, 2)
	assert.Equal(t, "0.1", doc.Versions[0].Version)
	assert.Equal(t, "0.2", doc.Versions[1].Version)
	require.NotNil(t, doc.Versions[0].Uploaded)
	assert.True(t, day(1).Equal(*doc.Versions[0].Uploaded))

	assert.Equal(t, int64(1250), doc.Summary.Total)
	assert.Equal(t, int64(625), doc.Summary.Average)
	assert.Equal(t, stats.Entry{Version: "0.2", Downloads: 250}, doc.Summary.Min)
	assert.Equal(t, 2, doc.Summary.Versions)
	assert.Equal(t, &model.Intervals{LastDay: 1, LastWeek: 2, LastMonth: 3}, doc.Summary.Intervals)

	require.NotNil(t, doc.Requested)
	assert.Equal(t, int64(1000), doc.Requested.Downloads)
}

func TestJSON_OmitsAbsentFields(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, New(&out, Options{}).JSON(cheesetest(t, nil), ""))

	assert.NotContains(t, out.String(), "intervals")
	assert.NotContains(t, out.String(), "requested")
}
