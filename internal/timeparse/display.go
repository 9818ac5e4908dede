package timeparse

import "time"

// displayLayout matches the assistant's spoken time format,
// e.g. "08:00 PM on July 03, 2025".
const displayLayout = "03:04 PM on January 02, 2006"

// FormatDisplay renders an instant in the fixed presentation zone.
func FormatDisplay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(displayLayout)
}

// ParseDisplay parses a string previously produced by FormatDisplay.
// Selection by time compares against exactly what the user was shown, so the
// display string must round-trip back to an instant.
func ParseDisplay(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(displayLayout, s, loc)
}
