// Package segments is the filesystem side of the uploader: it lists the
// segment files the recorder leaves under <root>/<camera>/, decides which of
// them are quiet long enough to be closed, and maps them to object keys.
package segments

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout is the start-time token every segment filename carries.
const TimestampLayout = "20060102_150405"

var ErrBadFilename = errors.New("filename is not a segment timestamp")

// Segment is one recorded chunk as seen on disk.
type Segment struct {
	Camera string
	Path   string
	Name   string
	Ext    string
	Size   int64

	// ModTime is the last filesystem modification time. It drives the quiet
	// gate, not key partitioning.
	ModTime time.Time

	// Timestamp is the logical start of the segment, parsed from Name in UTC.
	Timestamp time.Time
}

// CreatedAt is the logical creation time. There is no portable birth time on
// the filesystems we care about, so the filename token stands in for it.
func (s Segment) CreatedAt() time.Time {
	return s.Timestamp
}

// Age is how long the file has been untouched at now.
func (s Segment) Age(now time.Time) time.Duration {
	return now.Sub(s.ModTime)
}

// ParseTimestamp reads the YYYYMMDD_HHMMSS token from a filename such as
// "20240118_120000.mp4".
func ParseTimestamp(name string) (time.Time, error) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	ts, err := time.ParseInLocation(TimestampLayout, base, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadFilename, name)
	}
	return ts, nil
}
