package schedule

import "time"

const DateLayout = "2006-01-02"

// Calendar dates are carried as midnight UTC so that arithmetic and storage
// never shift them across a day boundary.

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf returns the calendar date t falls on in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return Date(y, m, d)
}

// Normalize drops any clock component, keeping the date as written.
func Normalize(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Clock supplies the current instant. Services take one so tests can pin time.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now()
}
