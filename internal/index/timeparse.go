package index

import (
	"fmt"
	"strings"
	"time"
)

// uploadTimeLayouts are the timestamp shapes indexes have used for file
// uploads. Times without a zone are UTC.
var uploadTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"20060102T15:04:05",
	"2006-01-02",
}

// parseUploadTime returns the zero time for an empty string.
func parseUploadTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range uploadTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized upload time %q", s)
}
