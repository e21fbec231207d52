package core

import (
	"errors"
	"time"
)

// DayMS is the length of one budget day in milliseconds.
const DayMS int64 = 24 * 60 * 60 * 1000

// Day is a millisecond Unix timestamp aligned to a local midnight.
//
// Clients send days already aligned to their own timezone, so all day
// arithmetic is done on the raw millisecond values.
type Day int64

// NoDay marks an unset optional day (open-ended recurring items, never
// generated watermarks).
const NoDay Day = 0

// DayOf returns the midnight of t in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	y, m, d := t.Date()
	return Day(time.Date(y, m, d, 0, 0, 0, 0, loc).UnixMilli())
}

// NewDay builds the midnight of the given calendar date in loc.
func NewDay(year int, month time.Month, day int, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	return Day(time.Date(year, month, day, 0, 0, 0, 0, loc).UnixMilli())
}

// Time converts the day back to a wall-clock time in loc.
func (d Day) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(int64(d)).In(loc)
}

// AddDays shifts the day by n fixed-length days.
func (d Day) AddDays(n int64) Day {
	return d + Day(n*DayMS)
}

// IsSet reports whether the day carries a value.
func (d Day) IsSet() bool { return d != NoDay }

// Format renders the day as yyyy-MM-dd in loc.
func (d Day) Format(loc *time.Location) string {
	return d.Time(loc).Format("2006-01-02")
}

// MaxDay is 3000-01-01T00:00Z. Later days are rejected as out of range.
const MaxDay Day = 32503680000000

// Validate rejects unset, negative and out of range days.
func (d Day) Validate() error {
	if d <= 0 {
		return errors.New("date cannot be zero")
	}
	if d > MaxDay {
		return errors.New("date is out of range")
	}
	return nil
}

// gridZone is the fixed zone in which anchor falls on a midnight, with the
// offset normalized to (-12h, +12h].
func gridZone(anchor Day) *time.Location {
	rem := int64(anchor) % DayMS
	if rem < 0 {
		rem += DayMS
	}
	offset := -rem / 1000
	if offset <= -12*60*60 {
		offset += 24 * 60 * 60
	}
	return time.FixedZone("", int(offset))
}

// CalendarOn returns the calendar date of d on anchor's day grid, that is in
// the client timezone anchor was aligned to. Up to an hour of DST drift from
// the grid still resolves to the intended date.
func (d Day) CalendarOn(anchor Day) (year int, month time.Month, day int) {
	return d.Time(gridZone(anchor)).Add(12 * time.Hour).Date()
}

// DaysBetween returns floor((to - from) / day).
func DaysBetween(from, to Day) int64 {
	diff := int64(to - from)
	q := diff / DayMS
	if diff%DayMS != 0 && diff < 0 {
		q--
	}
	return q
}

// DaysBetweenCeil returns ceil((to - from) / day).
func DaysBetweenCeil(from, to Day) int64 {
	diff := int64(to - from)
	q := diff / DayMS
	if diff%DayMS != 0 && diff > 0 {
		q++
	}
	return q
}

// ParseDay parses a yyyy-MM-dd date as midnight in loc.
func ParseDay(s string, loc *time.Location) (Day, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return NoDay, err
	}
	return Day(t.UnixMilli()), nil
}
