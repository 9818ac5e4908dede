// Package timeparse normalizes the NLU engine's heterogeneous date-time slot
// shapes into a single absolute instant, and owns the display-format
// round-trip used at the presentation boundary.
package timeparse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
)

// ErrTimeParse marks any failure to extract an instant from a slot value.
var ErrTimeParse = errors.New("unrecognized date-time value")

// rangeSlot covers the structured range/object shape. When both a start and
// an end bound are present the end bound is authoritative: a range means
// "remind me at the end of it". Earlier revisions of the source used the
// start bound and silently fired at the wrong instant.
type rangeSlot struct {
	StartDateTime json.RawMessage `json:"startDateTime"`
	EndDateTime   json.RawMessage `json:"endDateTime"`
	StartTime     json.RawMessage `json:"startTime"`
	EndTime       json.RawMessage `json:"endTime"`
	DateTime      json.RawMessage `json:"date_time"`
}

// Normalize converts a raw date-time slot into an absolute instant.
// Accepted shapes: an ISO-8601 string, a list wrapping any accepted shape
// (first element wins), or a range object. Malformed input returns an error
// wrapping ErrTimeParse; it never panics.
func Normalize(raw json.RawMessage) (time.Time, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return time.Time{}, fmt.Errorf("%w: empty slot", ErrTimeParse)
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrTimeParse, err)
		}
		return parseInstant(s)
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrTimeParse, err)
		}
		for _, el := range list {
			if t, err := Normalize(el); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: no parseable list element", ErrTimeParse)
	case '{':
		var r rangeSlot
		if err := json.Unmarshal(trimmed, &r); err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrTimeParse, err)
		}
		// End bound first, then unbounded single values, then start bounds.
		for _, candidate := range []json.RawMessage{r.EndDateTime, r.EndTime, r.DateTime, r.StartDateTime, r.StartTime} {
			if len(bytes.TrimSpace(candidate)) == 0 {
				continue
			}
			if t, err := Normalize(candidate); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: range object carries no parseable bound", ErrTimeParse)
	}
	return time.Time{}, fmt.Errorf("%w: unsupported slot shape", ErrTimeParse)
}

func parseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty string", ErrTimeParse)
	}
	dt, err := strfmt.ParseDateTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrTimeParse, err)
	}
	t := time.Time(dt)
	if t.IsZero() {
		return time.Time{}, fmt.Errorf("%w: zero instant", ErrTimeParse)
	}
	return t, nil
}
