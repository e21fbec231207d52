package services

import (
	"fmt"
	"time"

	"dailybudget/internal/core"
)

// DuenessChecker decides whether a recurring item has an occurrence on a
// given day. Both days sit on the grid of the client timezone start was
// aligned to, and calendar fields are read on that grid.
type DuenessChecker interface {
	OccursOn(day, start core.Day) bool
}

// DailyChecker fires every day.
type DailyChecker struct{}

func (DailyChecker) OccursOn(_, _ core.Day) bool { return true }

// WeeklyChecker fires on the weekday of the start date.
type WeeklyChecker struct{}

func (WeeklyChecker) OccursOn(day, start core.Day) bool {
	return weekday(day, start) == weekday(start, start)
}

func weekday(d, anchor core.Day) time.Weekday {
	y, m, dd := d.CalendarOn(anchor)
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC).Weekday()
}

// MonthlyChecker fires on the day-of-month of the start date. Anchors past
// the end of a shorter month fire on that month's last day.
type MonthlyChecker struct{}

func (MonthlyChecker) OccursOn(day, start core.Day) bool {
	y, m, d := day.CalendarOn(start)
	_, _, target := start.CalendarOn(start)
	lastDayOfMonth := time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if target > lastDayOfMonth {
		target = lastDayOfMonth
	}
	return d == target
}

var duenessStrategies = map[core.Frequency]DuenessChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
}

// GetDuenessChecker returns the checker for a frequency.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return checker, nil
}
