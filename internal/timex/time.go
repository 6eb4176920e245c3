// Package timex holds time helpers shared by the wire format and the config
// layer: a Time type serializing as ISO-8601 with millisecond precision, and
// a Duration type accepting "3s"-style strings in JSON config files.
package timex

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// WireFormat is the canonical timestamp layout used everywhere a timestamp
// crosses a process boundary: millisecond precision, UTC, Z suffix.
const WireFormat = "2006-01-02T15:04:05.000Z"

// Time wraps time.Time with ISO-8601/millisecond JSON encoding. The embedded
// time.Time keeps all comparison and arithmetic methods available.
type Time struct {
	time.Time
}

// Now returns the current moment truncated to wire precision.
func Now() Time {
	return Time{time.Now().UTC().Truncate(time.Millisecond)}
}

// FromTime converts a time.Time into a wire Time, truncating to millisecond
// precision in UTC.
func FromTime(t time.Time) Time {
	return Time{t.UTC().Truncate(time.Millisecond)}
}

// Format renders the value in the canonical wire layout.
func (t Time) Format() string {
	return t.UTC().Format(WireFormat)
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format())
}

func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Parse reads a timestamp in the canonical layout, falling back to RFC 3339
// with any sub-second precision so foreign producers are accepted.
func Parse(s string) (Time, error) {
	if ts, err := time.Parse(WireFormat, s); err == nil {
		return FromTime(ts), nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return FromTime(ts), nil
}

// Duration is a time.Duration that unmarshals from JSON either as a string
// ("3s", "150ms") or as integer nanoseconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		parsed, err := time.ParseDuration(str)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	}

	var ns int64
	if err := json.Unmarshal(data, &ns); err != nil {
		return errors.New("duration must be a string or integer nanoseconds")
	}
	d.Duration = time.Duration(ns)
	return nil
}
