// Package isotime provides a timestamp that decodes every ISO-8601 form the
// planner's data files and clients use, including zone-less values
// such as "2024-01-15T10:30:00.123456".
package isotime

import (
	"bytes"
	"fmt"
	"time"
)

// Layouts tried in order after RFC 3339. Zone-less values are read as UTC.
// Parsing accepts an optional fractional second after the seconds field.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time is a time.Time that encodes as RFC 3339 and decodes RFC 3339 or a
// zone-less ISO-8601 timestamp.
type Time struct {
	time.Time
}

// New wraps t.
func New(t time.Time) Time {
	return Time{Time: t}
}

// Ptr returns a pointer to a Time wrapping t.
func Ptr(t time.Time) *Time {
	v := New(t)
	return &v
}

// Parse reads s as RFC 3339, falling back to zone-less ISO-8601 in UTC.
func Parse(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing time %q: not an ISO-8601 timestamp", s)
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text is the zero
// time.
func (t *Time) UnmarshalText(text []byte) error {
	if len(bytes.TrimSpace(text)) == 0 {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := Parse(string(bytes.TrimSpace(text)))
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for a JSON string or null.
func (t *Time) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("parsing time %s: expected a JSON string", data)
	}
	return t.UnmarshalText(data[1 : len(data)-1])
}
