package model

import (
	"time"
)

// ReleaseManifest describes every published release of a package as
// returned by a package index.
type ReleaseManifest struct {
	Name      string     `json:"name"`
	Releases  []Release  `json:"releases"`
	Intervals *Intervals `json:"intervals,omitempty"`
}

// Release is one published version and the files distributed for it, in
// the order the index lists them.
type Release struct {
	Version string `json:"version"`
	Files   []File `json:"files"`
}

// File is a single distributed artifact of a release.
type File struct {
	Filename   string    `json:"filename,omitempty"`
	Downloads  int64     `json:"downloads"`
	UploadTime time.Time `json:"uploadTime"`
}

// Intervals holds the index-level download counters for recent periods.
// Older index protocols do not report them.
type Intervals struct {
	LastDay   int64 `json:"lastDay"`
	LastWeek  int64 `json:"lastWeek"`
	LastMonth int64 `json:"lastMonth"`
}

// Downloads returns the sum of the release's file download counts.
func (r Release) Downloads() int64 {
	var total int64
	for _, f := range r.Files {
		total += f.Downloads
	}
	return total
}
