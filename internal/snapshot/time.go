package snapshot

import (
	"fmt"
	"regexp"
	"time"
)

// Timestamped snapshot names look like "home.20250605T000001-0700" or
// "data.20240101T000001+0000": an arbitrary prefix, a dot, a compact
// timestamp, and a numeric zone offset.
var snapshotNameRe = regexp.MustCompile(`(\d{8}T\d{6})([+-]\d{4})$`)

// ParseTime extracts the creation time encoded in a snapshot name.
// Names without a recognizable timestamp return an error; callers
// that only need ordering can fall back to lexicographic name order.
func ParseTime(name string) (time.Time, error) {
	m := snapshotNameRe.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, fmt.Errorf("no timestamp in snapshot name %q", name)
	}
	ts, err := time.Parse("20060102T150405-0700", m[1]+m[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("snapshot name %q: %w", name, err)
	}
	return ts, nil
}
