// Package temporal provides the date/time primitives used throughout the
// feed pipeline: zoned and all-day instants, RFC 5545 text encodings, and
// calendar-unit arithmetic with a defined month-end clamping policy.
package temporal

import (
	"fmt"
	"time"
)

const (
	dateLayout     = "20060102"
	dateTimeLayout = "20060102T150405"
	utcLayout      = "20060102T150405Z"
)

// InvalidDate reports a calendar unit outside its valid range, or an
// occurrence key that does not parse as one of the RFC 5545 date encodings.
type InvalidDate struct {
	Message string
}

func (e *InvalidDate) Error() string {
	return "invalid date: " + e.Message
}

// Instant is a single point on an event timeline: either a zoned date-time
// or an all-day date with no time component. The zero value is no instant at
// all; callers must construct instants through NewDate, NewDateTime or the
// From helpers so validation cannot be skipped.
type Instant struct {
	t      time.Time
	allDay bool
}

// NewDate constructs an all-day instant. Out-of-range units fail with
// InvalidDate; units are never normalized into neighboring months.
func NewDate(year int, month time.Month, day int) (Instant, error) {
	if err := checkDate(year, month, day); err != nil {
		return Instant{}, err
	}
	return Instant{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), allDay: true}, nil
}

// NewDateTime constructs a timed instant in loc (UTC when loc is nil).
func NewDateTime(year int, month time.Month, day, hour, min, sec int, loc *time.Location) (Instant, error) {
	if err := checkDate(year, month, day); err != nil {
		return Instant{}, err
	}
	if hour < 0 || hour > 23 {
		return Instant{}, &InvalidDate{Message: fmt.Sprintf("hour %d out of range", hour)}
	}
	if min < 0 || min > 59 {
		return Instant{}, &InvalidDate{Message: fmt.Sprintf("minute %d out of range", min)}
	}
	if sec < 0 || sec > 59 {
		return Instant{}, &InvalidDate{Message: fmt.Sprintf("second %d out of range", sec)}
	}
	if loc == nil {
		loc = time.UTC
	}
	return Instant{t: time.Date(year, month, day, hour, min, sec, 0, loc)}, nil
}

// FromTime wraps an already-zoned time.Time as a timed instant. Sub-second
// precision is dropped; RFC 5545 date-times carry none.
func FromTime(t time.Time) Instant {
	return Instant{t: t.Truncate(time.Second)}
}

// FromDate wraps the calendar date of t as an all-day instant, discarding
// the time of day and zone.
func FromDate(t time.Time) Instant {
	y, m, d := t.Date()
	return Instant{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), allDay: true}
}

func checkDate(year int, month time.Month, day int) error {
	if year < 1 || year > 9999 {
		return &InvalidDate{Message: fmt.Sprintf("year %d out of range", year)}
	}
	if month < time.January || month > time.December {
		return &InvalidDate{Message: fmt.Sprintf("month %d out of range", month)}
	}
	if day < 1 || day > DaysIn(year, month) {
		return &InvalidDate{Message: fmt.Sprintf("day %d out of range for %04d-%02d", day, year, month)}
	}
	return nil
}

// DaysIn reports the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Time returns the underlying time. For all-day instants this is midnight
// UTC of the date and is only meaningful for ordering.
func (i Instant) Time() time.Time { return i.t }

// AllDay reports whether the instant is an all-day date.
func (i Instant) AllDay() bool { return i.allDay }

// IsZero reports whether the instant is the zero value.
func (i Instant) IsZero() bool { return i.t.IsZero() }

// Before reports whether i is strictly earlier than o.
func (i Instant) Before(o Instant) bool { return i.t.Before(o.t) }

// After reports whether i is strictly later than o.
func (i Instant) After(o Instant) bool { return i.t.After(o.t) }

// Equal reports whether i and o denote the same point in time.
func (i Instant) Equal(o Instant) bool { return i.t.Equal(o.t) }

// AddDays returns the instant n days later, preserving the time of day.
func (i Instant) AddDays(n int) Instant {
	y, m, d := i.t.Date()
	hh, mm, ss := i.t.Clock()
	return Instant{t: time.Date(y, m, d+n, hh, mm, ss, 0, i.t.Location()), allDay: i.allDay}
}

// AddMonths steps by whole calendar months, clamping the day of month to the
// last valid day of the target month: Jan 31 + 1 month is Feb 28 (29 in a
// leap year). The clamp is per target month, never cumulative.
func (i Instant) AddMonths(n int) Instant {
	y, m, d := i.t.Date()
	ym := y*12 + int(m) - 1 + n
	ty, tm := ym/12, time.Month(ym%12+1)
	if dim := DaysIn(ty, tm); d > dim {
		d = dim
	}
	hh, mm, ss := i.t.Clock()
	return Instant{t: time.Date(ty, tm, d, hh, mm, ss, 0, i.t.Location()), allDay: i.allDay}
}

// AddYears steps by whole years with the same clamping policy as AddMonths
// (Feb 29 lands on Feb 28 in non-leap years).
func (i Instant) AddYears(n int) Instant {
	return i.AddMonths(12 * n)
}

// WithDay returns the instant moved to the given day of its month, keeping
// the time of day. The day must exist in that month.
func (i Instant) WithDay(day int) (Instant, error) {
	y, m, _ := i.t.Date()
	if err := checkDate(y, m, day); err != nil {
		return Instant{}, err
	}
	hh, mm, ss := i.t.Clock()
	return Instant{t: time.Date(y, m, day, hh, mm, ss, 0, i.t.Location()), allDay: i.allDay}, nil
}

// Encode renders the instant in its RFC 5545 value form: YYYYMMDD for
// all-day dates, YYYYMMDDTHHMMSS for zoned date-times with a trailing Z when
// the zone is UTC.
func (i Instant) Encode() string {
	if i.allDay {
		return i.t.Format(dateLayout)
	}
	if i.t.Location() == time.UTC {
		return i.t.Format(utcLayout)
	}
	return i.t.Format(dateTimeLayout)
}

// TZID returns the zone identifier to emit as a TZID parameter, or "" when
// the value needs none (all-day dates, UTC, floating local time).
func (i Instant) TZID() string {
	if i.allDay {
		return ""
	}
	name := i.t.Location().String()
	if name == "UTC" || name == "Local" || name == "" {
		return ""
	}
	return name
}

// Key is the canonical occurrence key used to match exceptions against
// generated occurrences. All-day instants key by date; timed instants key by
// the UTC instant, so the same moment keys identically across zones.
func (i Instant) Key() string {
	if i.allDay {
		return i.t.Format(dateLayout)
	}
	return i.t.UTC().Format(utcLayout)
}

// ParseKey parses an occurrence key produced by Key, or supplied as text by
// the acquisition layer: either YYYYMMDD (all-day) or YYYYMMDDTHHMMSSZ.
func ParseKey(s string) (Instant, error) {
	if t, err := time.ParseInLocation(dateLayout, s, time.UTC); err == nil {
		return Instant{t: t, allDay: true}, nil
	}
	if t, err := time.ParseInLocation(utcLayout, s, time.UTC); err == nil {
		return Instant{t: t}, nil
	}
	return Instant{}, &InvalidDate{Message: fmt.Sprintf("occurrence key %q is neither a DATE nor a UTC DATE-TIME", s)}
}

// Window bounds recurrence expansion to the half-open interval
// [Start, End). The caller supplies it; the engine never expands an
// unbounded rule beyond it.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the instant falls inside the window.
func (w Window) Contains(i Instant) bool {
	return !i.t.Before(w.Start) && i.t.Before(w.End)
}

// EndsBefore reports whether the instant lies at or past the window end,
// i.e. expansion may stop once raw occurrences reach it.
func (w Window) EndsBefore(i Instant) bool {
	return !i.t.Before(w.End)
}
