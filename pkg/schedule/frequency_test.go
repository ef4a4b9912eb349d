package schedule

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextDate(t *testing.T) {
	tests := []struct {
		name      string
		anchor    time.Time
		frequency Frequency
		want      time.Time
	}{
		{"daily", Date(2024, time.January, 1), Daily, Date(2024, time.January, 2)},
		{"daily across year end", Date(2023, time.December, 31), Daily, Date(2024, time.January, 1)},
		{"weekly", Date(2024, time.January, 1), Weekly, Date(2024, time.January, 8)},
		{"biweekly", Date(2024, time.January, 25), Biweekly, Date(2024, time.February, 8)},
		{"monthly", Date(2024, time.January, 15), Monthly, Date(2024, time.February, 15)},
		{"monthly clamps in leap year", Date(2024, time.January, 31), Monthly, Date(2024, time.February, 29)},
		{"monthly clamps in common year", Date(2023, time.January, 31), Monthly, Date(2023, time.February, 28)},
		{"monthly clamps to 30 day month", Date(2024, time.March, 31), Monthly, Date(2024, time.April, 30)},
		{"monthly across year end", Date(2024, time.December, 31), Monthly, Date(2025, time.January, 31)},
		{"quarterly", Date(2024, time.January, 10), Quarterly, Date(2024, time.April, 10)},
		{"quarterly clamps", Date(2023, time.November, 30), Quarterly, Date(2024, time.February, 29)},
		{"quarterly clamps from 31st", Date(2024, time.May, 31), Quarterly, Date(2024, time.August, 31)},
		{"unknown returns anchor", Date(2024, time.January, 1), Frequency("yearly"), Date(2024, time.January, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextDate(tt.anchor, tt.frequency))
		})
	}
}

func TestNextDateIsDeterministic(t *testing.T) {
	anchor := Date(2024, time.January, 31)
	for _, f := range frequencies {
		assert.Equal(t, NextDate(anchor, f), NextDate(anchor, f), f.String())
		assert.True(t, NextDate(anchor, f).After(anchor), f.String())
	}
}

func TestNextOnOrAfter(t *testing.T) {
	floor := Date(2024, time.March, 10)

	assert.Equal(t, Date(2024, time.March, 11), NextOnOrAfter(Date(2024, time.January, 1), Weekly, floor))
	assert.Equal(t, Date(2024, time.March, 10), NextOnOrAfter(Date(2024, time.March, 3), Weekly, floor))
	// the first step is always taken even when the anchor is already past the floor
	assert.Equal(t, Date(2024, time.April, 1), NextOnOrAfter(Date(2024, time.March, 25), Weekly, floor))
	assert.Equal(t, Date(2024, time.March, 10), NextOnOrAfter(Date(2024, time.March, 10), Frequency("never"), floor))
}

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency(" Weekly ")
	require.NoError(t, err)
	assert.Equal(t, Weekly, f)

	_, err = ParseFrequency("fortnightly")
	assert.Error(t, err)
}

func TestDateOf(t *testing.T) {
	santiago, err := time.LoadLocation("America/Santiago")
	require.NoError(t, err)

	// 02:00 UTC on Jan 2 is still Jan 1 in Santiago (UTC-3 in summer)
	instant := time.Date(2024, time.January, 2, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, Date(2024, time.January, 1), DateOf(instant, santiago))
	assert.Equal(t, Date(2024, time.January, 2), DateOf(instant, nil))
}

func TestParseAndFormatDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.February, 29), d)
	assert.Equal(t, "2024-02-29", FormatDate(d))

	_, err = ParseDate("2023-02-29")
	assert.Error(t, err)
}
