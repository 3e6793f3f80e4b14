// Package timeutil provides the timestamp format used by every store.
//
// Timestamps are fixed-width ISO-8601 UTC strings. Fixed width matters:
// audit-log time filters compare timestamps as strings, which is only
// chronological when every timestamp has the same number of fractional
// digits.
package timeutil

import (
	"strings"
	"time"
)

// Layout is the canonical timestamp layout: microsecond precision,
// always six fractional digits, always UTC.
const Layout = "2006-01-02T15:04:05.000000Z"

// FileLayout is the compact form used in file names.
const FileLayout = "20060102_150405"

// Now returns the current UTC time formatted with Layout.
func Now() string {
	return Format(time.Now())
}

// Format formats t in UTC with Layout.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse parses a timestamp produced by Format.
func Parse(s string) (time.Time, error) {
	return time.Parse(Layout, s)
}

// NowFile returns the current UTC time formatted for file names.
func NowFile() string {
	return time.Now().UTC().Format(FileLayout)
}

// ForFile rewrites a Layout timestamp into a filename-safe form:
// colons become dashes and the fractional part is dropped.
func ForFile(ts string) string {
	if i := strings.IndexByte(ts, '.'); i >= 0 {
		ts = ts[:i]
	}
	return strings.ReplaceAll(ts, ":", "-")
}
