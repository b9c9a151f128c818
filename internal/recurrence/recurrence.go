// Package recurrence expands weekly and monthly patterns into concrete
// availability candidates. It has no side effects; callers persist the result.
package recurrence

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hackgods/practitioner-scheduling/internal/apperror"
	"github.com/hackgods/practitioner-scheduling/internal/calendar"
)

type Pattern string

const (
	PatternWeekly  Pattern = "weekly"
	PatternMonthly Pattern = "monthly"
)

// Position is the ordinal occurrence of a weekday inside a month.
type Position string

const (
	PositionFirst  Position = "first"
	PositionSecond Position = "second"
	PositionThird  Position = "third"
	PositionFourth Position = "fourth"
	PositionLast   Position = "last"
)

func (p Position) ordinal() (int, bool) {
	switch p {
	case PositionFirst:
		return 1, true
	case PositionSecond:
		return 2, true
	case PositionThird:
		return 3, true
	case PositionFourth:
		return 4, true
	case PositionLast:
		return 0, true
	}
	return 0, false
}

// Rule is a recurrence pattern plus its pattern-specific configuration.
// Weekday numbers run Monday=1 ... Saturday=6.
type Rule struct {
	Pattern    Pattern  `json:"pattern"`
	DaysOfWeek []int    `json:"days_of_week,omitempty"`
	Weekday    int      `json:"weekday,omitempty"`
	Position   Position `json:"position,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// Candidate is one concrete block the caller may insert.
type Candidate struct {
	Date   calendar.Date
	Window calendar.Window
	Reason string
}

var (
	ErrInvalidRange    = apperror.Validation("date_from must not be after date_to")
	ErrUnknownPattern  = apperror.Validation("unknown recurrence pattern")
	ErrEmptyDaysOfWeek = apperror.Validation("weekly pattern needs at least one day of week")
	ErrInvalidPosition = apperror.Validation("monthly position must be one of first, second, third, fourth, last")
)

func validWeekday(n int) bool {
	return n >= 1 && n <= 6
}

// Weekly returns every date in [from, to] whose weekday is in daysOfWeek.
func Weekly(from, to calendar.Date, daysOfWeek []int) ([]calendar.Date, error) {
	if from.After(to) {
		return nil, ErrInvalidRange
	}
	if len(daysOfWeek) == 0 {
		return nil, ErrEmptyDaysOfWeek
	}
	for _, n := range daysOfWeek {
		if !validWeekday(n) {
			return nil, apperror.Validationf("day of week %d out of range (Monday=1 ... Saturday=6)", n)
		}
	}

	var out []calendar.Date
	for _, d := range calendar.Days(from, to) {
		if slices.Contains(daysOfWeek, d.ISOWeekday()) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Monthly returns the dates in [from, to] that are the given ordinal
// occurrence of weekday in their month. Days 1-7 are the first occurrence,
// 8-14 the second and so on; a fifth occurrence never matches "fourth".
// PositionLast matches the final occurrence of weekday in each month.
func Monthly(from, to calendar.Date, weekday int, position Position) ([]calendar.Date, error) {
	if from.After(to) {
		return nil, ErrInvalidRange
	}
	if !validWeekday(weekday) {
		return nil, apperror.Validationf("weekday %d out of range (Monday=1 ... Saturday=6)", weekday)
	}
	want, ok := position.ordinal()
	if !ok {
		return nil, ErrInvalidPosition
	}

	var out []calendar.Date
	for _, d := range calendar.Days(from, to) {
		if d.ISOWeekday() != weekday {
			continue
		}
		if position == PositionLast {
			if d == lastOccurrence(d, weekday) {
				out = append(out, d)
			}
			continue
		}
		if (d.Day-1)/7+1 == want {
			out = append(out, d)
		}
	}
	return out, nil
}

// lastOccurrence scans backward from the end of d's month for weekday.
func lastOccurrence(d calendar.Date, weekday int) calendar.Date {
	last := d.LastOfMonth()
	for last.ISOWeekday() != weekday {
		last = last.AddDays(-1)
	}
	return last
}

// Expand enumerates the rule over [from, to] with the given working hours.
func Expand(rule Rule, from, to calendar.Date, hours calendar.Window) ([]Candidate, error) {
	var (
		dates []calendar.Date
		err   error
	)
	switch rule.Pattern {
	case PatternWeekly:
		dates, err = Weekly(from, to, rule.DaysOfWeek)
	case PatternMonthly:
		dates, err = Monthly(from, to, rule.Weekday, rule.Position)
	default:
		return nil, ErrUnknownPattern
	}
	if err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(rule.Reason)
	out := make([]Candidate, 0, len(dates))
	for _, d := range dates {
		out = append(out, Candidate{Date: d, Window: hours, Reason: reason})
	}
	return out, nil
}

// Describe renders the rule for audit logs.
func (r Rule) Describe() string {
	switch r.Pattern {
	case PatternWeekly:
		return fmt.Sprintf("weekly on %v", r.DaysOfWeek)
	case PatternMonthly:
		return fmt.Sprintf("monthly on the %s weekday %d", r.Position, r.Weekday)
	}
	return string(r.Pattern)
}
