package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDateValidation(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month time.Month
		day   int
		valid bool
	}{
		{"regular date", 2024, time.January, 15, true},
		{"leap day in leap year", 2024, time.February, 29, true},
		{"leap day in non-leap year", 2023, time.February, 29, false},
		{"month 13", 2024, time.Month(13), 1, false},
		{"month 0", 2024, time.Month(0), 1, false},
		{"day 0", 2024, time.January, 0, false},
		{"day 32", 2024, time.January, 32, false},
		{"April 31", 2024, time.April, 31, false},
		{"year 0", 0, time.January, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDate(tt.year, tt.month, tt.day)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				var invalid *InvalidDate
				require.ErrorAs(t, err, &invalid)
			}
		})
	}
}

func TestNewDateTimeValidation(t *testing.T) {
	_, err := NewDateTime(2024, time.January, 1, 24, 0, 0, time.UTC)
	var invalid *InvalidDate
	require.ErrorAs(t, err, &invalid)

	_, err = NewDateTime(2024, time.January, 1, 12, 60, 0, time.UTC)
	require.ErrorAs(t, err, &invalid)

	i, err := NewDateTime(2024, time.January, 1, 23, 59, 59, nil)
	require.NoError(t, err)
	assert.Equal(t, "20240101T235959Z", i.Encode())
}

func TestAddMonthsClamps(t *testing.T) {
	// Jan 31 stepped month by month; the clamp applies per target month
	// and never sticks.
	tests := []struct {
		name string
		year int
		days []int
	}{
		{"non-leap year", 2023, []int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}},
		{"leap year", 2024, []int{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			anchor, err := NewDate(tt.year, time.January, 31)
			require.NoError(t, err)

			for n, wantDay := range tt.days {
				got := anchor.AddMonths(n)
				y, m, d := got.Time().Date()
				assert.Equal(t, tt.year, y)
				assert.Equal(t, time.Month(n+1), m)
				assert.Equal(t, wantDay, d, "month %d", n+1)
			}
		})
	}
}

func TestAddMonthsPreservesClock(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	i, err := NewDateTime(2024, time.January, 31, 18, 30, 0, tokyo)
	require.NoError(t, err)

	got := i.AddMonths(1)
	assert.Equal(t, "20240229T183000", got.Encode())
	assert.Equal(t, "Asia/Tokyo", got.TZID())
}

func TestAddYearsClampsLeapDay(t *testing.T) {
	i, err := NewDate(2024, time.February, 29)
	require.NoError(t, err)
	assert.Equal(t, "20250228", i.AddYears(1).Encode())
	assert.Equal(t, "20280229", i.AddYears(4).Encode())
}

func TestEncode(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	allDay, err := NewDate(2024, time.January, 15)
	require.NoError(t, err)
	assert.Equal(t, "20240115", allDay.Encode())
	assert.Empty(t, allDay.TZID())

	utc, err := NewDateTime(2024, time.January, 15, 18, 0, 0, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "20240115T180000Z", utc.Encode())
	assert.Empty(t, utc.TZID())

	zoned, err := NewDateTime(2024, time.January, 15, 18, 0, 0, tokyo)
	require.NoError(t, err)
	assert.Equal(t, "20240115T180000", zoned.Encode())
	assert.Equal(t, "Asia/Tokyo", zoned.TZID())
}

func TestKeyNormalizesToUTC(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	zoned, err := NewDateTime(2024, time.January, 15, 18, 0, 0, tokyo)
	require.NoError(t, err)
	assert.Equal(t, "20240115T090000Z", zoned.Key())

	allDay, err := NewDate(2024, time.January, 15)
	require.NoError(t, err)
	assert.Equal(t, "20240115", allDay.Key())
}

func TestParseKey(t *testing.T) {
	i, err := ParseKey("20240115")
	require.NoError(t, err)
	assert.True(t, i.AllDay())
	assert.Equal(t, "20240115", i.Key())

	i, err = ParseKey("20240115T090000Z")
	require.NoError(t, err)
	assert.False(t, i.AllDay())
	assert.Equal(t, "20240115T090000Z", i.Key())

	_, err = ParseKey("2024-01-15")
	var invalid *InvalidDate
	require.ErrorAs(t, err, &invalid)
}

func TestWindow(t *testing.T) {
	w := Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	inside, err := NewDateTime(2024, time.January, 15, 12, 0, 0, time.UTC)
	require.NoError(t, err)
	assert.True(t, w.Contains(inside))
	assert.False(t, w.EndsBefore(inside))

	atEnd, err := NewDateTime(2024, time.February, 1, 0, 0, 0, time.UTC)
	require.NoError(t, err)
	assert.False(t, w.Contains(atEnd))
	assert.True(t, w.EndsBefore(atEnd))

	before, err := NewDateTime(2023, time.December, 31, 23, 59, 59, time.UTC)
	require.NoError(t, err)
	assert.False(t, w.Contains(before))
}
