package coach

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"

	// MinPlanWeeks is the floor applied to the computed plan length.
	MinPlanWeeks = 8
)

// ErrInvalidCoordinate is returned for week numbers below 1 or weekdays outside 1..7.
var ErrInvalidCoordinate = errors.New("invalid week/day coordinate")

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate reads a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &FormatError{Field: "date", Value: s, Reason: "expected YYYY-MM-DD"}
	}
	return t, nil
}

// Weekday returns the ISO day of week, 1=Monday through 7=Sunday.
func Weekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// WeekdayName returns the English name for an ISO day of week.
func WeekdayName(dow int) string {
	if dow < 1 || dow > 7 {
		return ""
	}
	return time.Weekday(dow % 7).String()
}

// NextMonday returns t itself when it is a Monday, otherwise the following Monday.
func NextMonday(t time.Time) time.Time {
	d := DateOnly(t)
	wd := Weekday(d)
	if wd == 1 {
		return d
	}
	return d.AddDate(0, 0, 8-wd)
}

// DaysRemainingInFirstWeek counts start's weekday through Sunday, inclusive.
func DaysRemainingInFirstWeek(start time.Time) int {
	return 8 - Weekday(start)
}

// FirstWeekDays lists the weekdays of week 1 for a plan starting on start.
func FirstWeekDays(start time.Time) []int {
	days := make([]int, 0, 7)
	for d := Weekday(start); d <= 7; d++ {
		days = append(days, d)
	}
	return days
}

// DateForCoordinate maps (week, day-of-week) to a calendar date. With a
// non-Monday start and allowPartialFirstWeek, week 1 runs from start through
// Sunday and earlier weekdays of week 1 fall into week 2. All other weeks are
// Monday to Sunday blocks anchored on the first Monday on or after start.
func DateForCoordinate(start time.Time, week, dayOfWeek int, allowPartialFirstWeek bool) (time.Time, error) {
	if week < 1 || dayOfWeek < 1 || dayOfWeek > 7 {
		return time.Time{}, fmt.Errorf("%w: week %d day %d", ErrInvalidCoordinate, week, dayOfWeek)
	}
	start = DateOnly(start)
	startDow := Weekday(start)
	monday := NextMonday(start)

	if startDow == 1 || !allowPartialFirstWeek {
		return monday.AddDate(0, 0, (week-1)*7+dayOfWeek-1), nil
	}
	if week == 1 {
		if dayOfWeek >= startDow {
			return start.AddDate(0, 0, dayOfWeek-startDow), nil
		}
		week = 2
	}
	return monday.AddDate(0, 0, (week-2)*7+dayOfWeek-1), nil
}

// WeekSpan returns the first and last dates of a week, honouring the partial first week.
func WeekSpan(start time.Time, week int) (time.Time, time.Time, error) {
	firstDow := 1
	if week == 1 {
		firstDow = Weekday(start)
	}
	first, err := DateForCoordinate(start, week, firstDow, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	last, err := DateForCoordinate(start, week, 7, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return first, last, nil
}

// TotalWeeks is the number of whole weeks between start and race, never below MinPlanWeeks.
func TotalWeeks(start, race time.Time) int {
	days := int(DateOnly(race).Sub(DateOnly(start)).Hours() / 24)
	weeks := days / 7
	if weeks < MinPlanWeeks {
		return MinPlanWeeks
	}
	return weeks
}
