package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is the cadence at which occurrences of an agreement are scheduled.
type Frequency string

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Biweekly  Frequency = "biweekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
)

var frequencies = []Frequency{Daily, Weekly, Biweekly, Monthly, Quarterly}

func (f Frequency) Valid() bool {
	for _, known := range frequencies {
		if f == known {
			return true
		}
	}
	return false
}

func (f Frequency) String() string {
	return string(f)
}

// ParseFrequency accepts the enum value case-insensitively.
func ParseFrequency(raw string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(raw)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown frequency %q", raw)
	}
	return f, nil
}

// NextDate returns the occurrence that follows anchor. Month based frequencies
// clamp to the last day of the target month (Jan 31 -> Feb 28/29).
// An unknown frequency returns anchor unchanged.
func NextDate(anchor time.Time, f Frequency) time.Time {
	switch f {
	case Daily:
		return anchor.AddDate(0, 0, 1)
	case Weekly:
		return anchor.AddDate(0, 0, 7)
	case Biweekly:
		return anchor.AddDate(0, 0, 14)
	case Monthly:
		return addMonthsClamped(anchor, 1)
	case Quarterly:
		return addMonthsClamped(anchor, 3)
	}
	return anchor
}

// NextOnOrAfter advances from anchor until the result is not before floor.
// The first step is always taken.
func NextOnOrAfter(anchor time.Time, f Frequency, floor time.Time) time.Time {
	next := NextDate(anchor, f)
	if !f.Valid() {
		return next
	}
	for next.Before(floor) {
		next = NextDate(next, f)
	}
	return next
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
