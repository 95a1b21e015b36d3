package segments

import (
	"fmt"
	"path"
	"strings"
)

// KeyMapper derives remote object keys. The zero value maps to
// "camera/YYYY/MM/DD/filename".
type KeyMapper struct {
	Prefix string
}

// KeyFor returns the object key for seg. The date comes from the filename
// token, never from the upload time, so late uploads land in the right day.
func (m KeyMapper) KeyFor(seg Segment) string {
	ts := seg.Timestamp.UTC()
	key := fmt.Sprintf("%s/%04d/%02d/%02d/%s", seg.Camera, ts.Year(), int(ts.Month()), ts.Day(), seg.Name)

	prefix := strings.Trim(m.Prefix, "/")
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}

// KeyFor maps seg without a prefix.
func KeyFor(seg Segment) string {
	return KeyMapper{}.KeyFor(seg)
}
