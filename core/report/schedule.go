package report

import (
	"time"

	"github.com/pkg/errors"
)

const (
	minDayOfMonth = 1
	maxDayOfMonth = 28 // every month has it
)

var (
	ErrInvalidFrequency  = errors.New("frequency must be one of daily, weekly, monthly or quarterly")
	ErrInvalidTime       = errors.New("scheduled time must be formatted as HH:MM")
	ErrInvalidDayOfWeek  = errors.New("day of week must be between 0 (Monday) and 6 (Sunday)")
	ErrInvalidDayOfMonth = errors.New("day of month must be between 1 and 28")
	ErrMissingDayOfWeek  = errors.New("day of week is required for weekly schedules")
	ErrMissingDayOfMonth = errors.New("day of month is required for monthly and quarterly schedules")
)

func validDayOfMonth(d int) bool {
	return d >= minDayOfMonth && d <= maxDayOfMonth
}

func parseTimeOfDay(s string) (hour, minute int, err error) {
	if len(s) != len("15:04") {
		return 0, 0, ErrInvalidTime
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, ErrInvalidTime
	}
	return t.Hour(), t.Minute(), nil
}

// NextRun returns the first instant strictly after now, in now's location, matching the schedule:
//   - daily: every day at timeOfDay
//   - weekly: every dayOfWeek (0 = Monday) at timeOfDay
//   - monthly: every month on dayOfMonth at timeOfDay
//   - quarterly: on dayOfMonth of March, June, September and December at timeOfDay
func NextRun(frequency, timeOfDay string, dayOfWeek, dayOfMonth *int, now time.Time) (time.Time, error) {
	hour, minute, err := parseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	at := func(year int, month time.Month, day int) time.Time {
		return time.Date(year, month, day, hour, minute, 0, 0, now.Location())
	}
	y, m, d := now.Date()

	switch frequency {
	case FrequencyDaily:
		next := at(y, m, d)
		if !next.After(now) {
			next = at(y, m, d+1)
		}
		return next, nil

	case FrequencyWeekly:
		if dayOfWeek == nil {
			return time.Time{}, ErrMissingDayOfWeek
		}
		if *dayOfWeek < 0 || *dayOfWeek > 6 {
			return time.Time{}, ErrInvalidDayOfWeek
		}
		weekday := time.Weekday((*dayOfWeek + 1) % 7)
		ahead := (int(weekday) - int(now.Weekday()) + 7) % 7
		next := at(y, m, d+ahead)
		if !next.After(now) {
			next = at(y, m, d+ahead+7)
		}
		return next, nil

	case FrequencyMonthly, FrequencyQuarterly:
		if dayOfMonth == nil {
			return time.Time{}, ErrMissingDayOfMonth
		}
		if !validDayOfMonth(*dayOfMonth) {
			return time.Time{}, ErrInvalidDayOfMonth
		}
		step := 1
		if frequency == FrequencyQuarterly {
			step = 3
		}
		// months beyond December are normalised by time.Date
		for month := firstMonth(m, frequency); ; month += time.Month(step) {
			if next := at(y, month, *dayOfMonth); next.After(now) {
				return next, nil
			}
		}

	default:
		return time.Time{}, ErrInvalidFrequency
	}
}

// firstMonth is the first candidate month on or after m.
func firstMonth(m time.Month, frequency string) time.Month {
	if frequency != FrequencyQuarterly {
		return m
	}
	for m%3 != 0 {
		m++
	}
	return m
}

// ShouldRun reports whether s is due at now: active and never planned, or planned at or before now.
func ShouldRun(s Schedule, now time.Time) bool {
	if !s.IsActive {
		return false
	}
	return !s.NextRun.Valid || !now.Before(s.NextRun.Time)
}
