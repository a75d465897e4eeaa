package prescription

import (
	"regexp"
	"strings"
	"time"
)

// ParseStatus reports what ParseTimestamp found.
type ParseStatus int

const (
	// StatusNotFound means the text has no header line (legacy or freeform entry).
	StatusNotFound ParseStatus = iota
	// StatusFound means a well-formed header was parsed.
	StatusFound
	// StatusMalformed means a header line exists but its date or time is unusable.
	StatusMalformed
)

func (s ParseStatus) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusMalformed:
		return "malformed"
	default:
		return "not_found"
	}
}

var (
	headerPattern = regexp.MustCompile(`(?m)Prescribed on:[ \t]*(.*)$`)
	valuePattern  = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}) at (\d{2}:\d{2})(?: ([+-]\d{4}))?$`)
)

// ParseTimestamp extracts the header timestamp from a fragment. The wall-clock
// value is interpreted in loc (UTC when nil) unless the header carries an
// offset. It never fails: absent and malformed headers are reported through
// the status.
func ParseTimestamp(text string, loc *time.Location) (time.Time, ParseStatus) {
	if loc == nil {
		loc = time.UTC
	}
	m := headerPattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, StatusNotFound
	}
	parts := valuePattern.FindStringSubmatch(strings.TrimSpace(m[1]))
	if parts == nil {
		return time.Time{}, StatusMalformed
	}
	if parts[3] != "" {
		ts, err := time.Parse(dateLayout+" "+timeLayout+" "+offsetLayout, parts[1]+" "+parts[2]+" "+parts[3])
		if err != nil {
			return time.Time{}, StatusMalformed
		}
		return ts.In(loc), StatusFound
	}
	ts, err := time.ParseInLocation(dateLayout+" "+timeLayout, parts[1]+" "+parts[2], loc)
	if err != nil {
		return time.Time{}, StatusMalformed
	}
	return ts, StatusFound
}
