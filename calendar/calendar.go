/*
Package calendar provides working-day arithmetic over a set of non-working
dates.

PURPOSE:
  Every duration in the leave engine is ultimately expressed in working days:
  a calendar day that is neither a weekend day (Saturday/Sunday) nor a member
  of the supplied holiday set. This package owns that definition and the three
  calculations built on it:

  - CountWorkingDays: how many working days fall inside an inclusive range
  - AddWorkingDays:   the date reached after consuming N working days
  - NextWorkingDay:   the first working day strictly after a date (used as
                      the return-to-work date, regardless of leave type)

DESIGN:
  Pure functions over an immutable DateSet. No clock access, no I/O. The
  caller is responsible for supplying a holiday set with enough lookahead
  (the providers in this repo always load at least two years past the end of
  the requested period, so year-boundary ranges never get truncated).

  Dates are normalized to UTC midnight before any comparison; time-of-day and
  zone information on inputs is irrelevant and discarded.
*/
package calendar

import "time"

// DateSet is a set of non-working dates, keyed by UTC midnight.
type DateSet map[time.Time]struct{}

// NewDateSet builds a DateSet from the given dates.
func NewDateSet(dates ...time.Time) DateSet {
	s := make(DateSet, len(dates))
	for _, d := range dates {
		s.Add(d)
	}
	return s
}

// Add inserts a date into the set. The date is normalized first.
func (s DateSet) Add(d time.Time) {
	s[Normalize(d)] = struct{}{}
}

// Contains reports whether the set holds the given date.
func (s DateSet) Contains(d time.Time) bool {
	_, ok := s[Normalize(d)]
	return ok
}

// Normalize truncates a time to UTC midnight of the same calendar day.
func Normalize(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsWorkingDay reports whether d is a Monday–Friday day outside the
// non-working set.
func IsWorkingDay(d time.Time, nonWorking DateSet) bool {
	wd := d.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !nonWorking.Contains(d)
}

// CountWorkingDays counts the working days in [start, end] inclusive.
// Returns 0 when end is before start.
func CountWorkingDays(start, end time.Time, nonWorking DateSet) int {
	day := Normalize(start)
	last := Normalize(end)
	if last.Before(day) {
		return 0
	}

	count := 0
	for !day.After(last) {
		if IsWorkingDay(day, nonWorking) {
			count++
		}
		day = day.AddDate(0, 0, 1)
	}
	return count
}

// AddWorkingDays returns the date reached after accumulating count working
// days starting from start. If start itself is a working day it counts as
// day one. A count of zero or less returns start unchanged.
func AddWorkingDays(start time.Time, count int, nonWorking DateSet) time.Time {
	day := Normalize(start)
	if count <= 0 {
		return day
	}

	counted := 0
	for {
		if IsWorkingDay(day, nonWorking) {
			counted++
		}
		if counted >= count {
			return day
		}
		day = day.AddDate(0, 0, 1)
	}
}

// NextWorkingDay returns the first working day strictly after d.
func NextWorkingDay(d time.Time, nonWorking DateSet) time.Time {
	day := Normalize(d).AddDate(0, 0, 1)
	for !IsWorkingDay(day, nonWorking) {
		day = day.AddDate(0, 0, 1)
	}
	return day
}
