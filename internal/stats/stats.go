// Package stats aggregates a release manifest into per-version download
// totals and the summary figures derived from them.
package stats

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ippclub/pipstat/internal/model"
)

// ErrNoVersions is returned by AverageDownloads when no version has any
// distributed files.
var ErrNoVersions = errors.New("no versions with files")

// Entry is a version and its aggregated download count.
type Entry struct {
	Version   string `json:"version"`
	Downloads int64  `json:"downloads"`
}

// VersionStats is an ordered mapping of version to download count. The
// order is release order and is kept through rendering.
type VersionStats struct {
	entries []Entry
	index   map[string]int
}

func newVersionStats(n int) VersionStats {
	return VersionStats{
		entries: make([]Entry, 0, n),
		index:   make(map[string]int, n),
	}
}

func (vs *VersionStats) add(version string, downloads int64) {
	if i, ok := vs.index[version]; ok {
		vs.entries[i].Downloads += downloads
		return
	}
	vs.index[version] = len(vs.entries)
	vs.entries = append(vs.entries, Entry{Version: version, Downloads: downloads})
}

// Len returns the number of versions.
func (vs VersionStats) Len() int {
	return len(vs.entries)
}

// Get returns the download count of a version.
func (vs VersionStats) Get(version string) (int64, bool) {
	i, ok := vs.index[version]
	if !ok {
		return 0, false
	}
	return vs.entries[i].Downloads, true
}

// Entries returns a copy of the entries in order.
func (vs VersionStats) Entries() []Entry {
	out := make([]Entry, len(vs.entries))
	copy(out, vs.entries)
	return out
}

// Versions returns the version identifiers in order.
func (vs VersionStats) Versions() []string {
	out := make([]string, len(vs.entries))
	for i, e := range vs.entries {
		out[i] = e.Version
	}
	return out
}

// Summary holds the scalar statistics of one package.
type Summary struct {
	Total     int64            `json:"total"`
	Average   int64            `json:"average"`
	Min       Entry            `json:"min"`
	Max       Entry            `json:"max"`
	Versions  int              `json:"versions"`
	Intervals *model.Intervals `json:"intervals,omitempty"`
}

// Stats is the aggregate of one release manifest. It is immutable once
// built by Aggregate.
type Stats struct {
	name      string
	versions  VersionStats
	dates     map[string]time.Time
	intervals *model.Intervals

	total int64
	min   Entry
	max   Entry
}

// Aggregate sums file download counts per release. Releases without files
// are dropped and the rest are ordered by the upload time of their first
// listed file, keeping manifest order on ties. A manifest without any
// release yields model.ErrPackageNotFound.
func Aggregate(m *model.ReleaseManifest) (*Stats, error) {
	if m == nil || len(m.Releases) == 0 {
		name := ""
		if m != nil {
			name = m.Name
		}
		return nil, fmt.Errorf("%w: %q", model.ErrPackageNotFound, name)
	}

	filtered := make([]model.Release, 0, len(m.Releases))
	for _, r := range m.Releases {
		if len(r.Files) > 0 {
			filtered = append(filtered, r)
		}
	}

	// Only the first file decides a release's position.
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Files[0].UploadTime.Before(filtered[j].Files[0].UploadTime)
	})

	s := &Stats{
		name:      m.Name,
		versions:  newVersionStats(len(filtered)),
		dates:     make(map[string]time.Time, len(filtered)),
		intervals: m.Intervals,
	}
	for _, r := range filtered {
		s.versions.add(r.Version, r.Downloads())
		if ts := r.Files[0].UploadTime; !ts.IsZero() {
			if _, seen := s.dates[r.Version]; !seen {
				s.dates[r.Version] = ts
			}
		}
	}

	for i, e := range s.versions.entries {
		s.total += e.Downloads
		if i == 0 || e.Downloads < s.min.Downloads {
			s.min = e
		}
		if i == 0 || e.Downloads > s.max.Downloads {
			s.max = e
		}
	}

	return s, nil
}

// Name returns the package name of the aggregated manifest.
func (s *Stats) Name() string {
	return s.name
}

// Versions returns the ordered version to download count mapping.
func (s *Stats) Versions() VersionStats {
	return s.versions
}

// Date returns the upload time of the version's first listed file.
func (s *Stats) Date(version string) (time.Time, bool) {
	t, ok := s.dates[version]
	return t, ok
}

// Downloads returns the total download count over all versions.
func (s *Stats) Downloads() int64 {
	return s.total
}

// MinVersion returns the version with the fewest downloads. The earliest
// version wins a tie.
func (s *Stats) MinVersion() (Entry, bool) {
	return s.min, s.versions.Len() > 0
}

// MaxVersion returns the version with the most downloads. The earliest
// version wins a tie.
func (s *Stats) MaxVersion() (Entry, bool) {
	return s.max, s.versions.Len() > 0
}

// AverageDownloads returns the truncated mean download count per version.
func (s *Stats) AverageDownloads() (int64, error) {
	n := s.versions.Len()
	if n == 0 {
		return 0, ErrNoVersions
	}
	return s.total / int64(n), nil
}

// Intervals returns the recent-period counters reported by the index, or
// nil when the index does not supply them.
func (s *Stats) Intervals() *model.Intervals {
	return s.intervals
}

// Summary collects the scalar statistics. The average is 0 when there are
// no versions.
func (s *Stats) Summary() Summary {
	avg, _ := s.AverageDownloads()
	return Summary{
		Total:     s.total,
		Average:   avg,
		Min:       s.min,
		Max:       s.max,
		Versions:  s.versions.Len(),
		Intervals: s.intervals,
	}
}
