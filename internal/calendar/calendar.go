// Package calendar holds the time primitives shared by the scheduling core:
// civil dates, minute-of-day clock values and the half-open overlap predicate.
package calendar

import (
	"cmp"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// MinutesPerDay is the largest valid Clock value ("24:00").
const MinutesPerDay = 24 * 60

// Overlaps reports whether the half-open intervals [s1, e1) and [s2, e2)
// share an instant. Touching boundaries (e1 == s2) do not overlap.
func Overlaps[T cmp.Ordered](s1, e1, s2, e2 T) bool {
	return s1 < e2 && s2 < e1
}

// Contains reports whether [innerStart, innerEnd) lies within [outerStart, outerEnd).
func Contains[T cmp.Ordered](outerStart, outerEnd, innerStart, innerEnd T) bool {
	return outerStart <= innerStart && outerEnd >= innerEnd
}

// Date is a calendar day without time or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes y/m/d the way time.Date does (e.g. March 32 -> April 1).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// At returns the instant at clock c on d in loc.
func (d Date) At(c Clock, loc *time.Location) time.Time {
	return d.In(loc).Add(time.Duration(c) * time.Minute)
}

func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

func (d Date) Weekday() time.Weekday {
	return d.In(time.UTC).Weekday()
}

// ISOWeekday numbers days Monday=1 ... Sunday=7.
func (d Date) ISOWeekday() int {
	wd := int(d.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func (d Date) Compare(o Date) int {
	if c := cmp.Compare(d.Year, o.Year); c != 0 {
		return c
	}
	if c := cmp.Compare(d.Month, o.Month); c != 0 {
		return c
	}
	return cmp.Compare(d.Day, o.Day)
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// LastOfMonth returns the final day of d's month.
func (d Date) LastOfMonth() Date {
	return NewDate(d.Year, d.Month+1, 0)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Days returns every date in [from, to], inclusive. An inverted range yields nil.
func Days(from, to Date) []Date {
	var out []Date
	for d := from; !d.After(to); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

// Clock is a wall-clock time of day in minutes since midnight.
type Clock int

// ClockAt builds a Clock from hours and minutes.
func ClockAt(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock accepts "HH:MM" (and "HH:MM:SS", seconds ignored). "24:00" is allowed.
func ParseClock(s string) (Clock, error) {
	var h, m, sec int
	n, _ := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec)
	if n < 2 {
		return 0, fmt.Errorf("parse clock %q: want HH:MM", s)
	}
	c := ClockAt(h, m)
	if h < 0 || m < 0 || m > 59 || c > MinutesPerDay {
		return 0, fmt.Errorf("parse clock %q: out of range", s)
	}
	return c, nil
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) Add(minutes int) Clock { return c + Clock(minutes) }

// Valid reports whether c lies within a single day.
func (c Clock) Valid() bool { return c >= 0 && c <= MinutesPerDay }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Split breaks an instant into its date and clock in loc. Seconds are truncated.
func Split(t time.Time, loc *time.Location) (Date, Clock) {
	local := t.In(loc)
	return DateOf(local), ClockAt(local.Hour(), local.Minute())
}

// Window is a half-open range of clock minutes on a single day.
type Window struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

func (w Window) Minutes() int { return int(w.End - w.Start) }

func (w Window) Overlaps(o Window) bool {
	return Overlaps(w.Start, w.End, o.Start, o.End)
}

func (w Window) Contains(o Window) bool {
	return Contains(w.Start, w.End, o.Start, o.End)
}
