package recurrence

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/practitioner-scheduling/internal/apperror"
	"github.com/hackgods/practitioner-scheduling/internal/calendar"
)

func date(y int, m time.Month, d int) calendar.Date {
	return calendar.NewDate(y, m, d)
}

func TestWeekly_MondaysAndWednesdays(t *testing.T) {
	got, err := Weekly(date(2025, time.March, 3), date(2025, time.March, 16), []int{1, 3})
	require.NoError(t, err)

	want := []calendar.Date{
		date(2025, time.March, 3),
		date(2025, time.March, 5),
		date(2025, time.March, 10),
		date(2025, time.March, 12),
	}
	assert.Equal(t, want, got)
}

func TestWeekly_ExactlyMatchingWeekdays(t *testing.T) {
	from, to := date(2025, time.January, 1), date(2025, time.June, 30)
	days := []int{2, 4, 6}

	got, err := Weekly(from, to, days)
	require.NoError(t, err)

	var want []calendar.Date
	for _, d := range calendar.Days(from, to) {
		if slices.Contains(days, d.ISOWeekday()) {
			want = append(want, d)
		}
	}
	assert.Equal(t, want, got)
}

func TestWeekly_RejectsSundayAndEmpty(t *testing.T) {
	_, err := Weekly(date(2025, time.March, 3), date(2025, time.March, 9), []int{7})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = Weekly(date(2025, time.March, 3), date(2025, time.March, 9), nil)
	assert.ErrorIs(t, err, ErrEmptyDaysOfWeek)

	_, err = Weekly(date(2025, time.March, 9), date(2025, time.March, 3), []int{1})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestMonthly_Ordinals(t *testing.T) {
	// March 2025: Mondays are 3, 10, 17, 24, 31.
	from, to := date(2025, time.March, 1), date(2025, time.March, 31)

	tests := []struct {
		position Position
		want     []calendar.Date
	}{
		{PositionFirst, []calendar.Date{date(2025, time.March, 3)}},
		{PositionSecond, []calendar.Date{date(2025, time.March, 10)}},
		{PositionThird, []calendar.Date{date(2025, time.March, 17)}},
		{PositionFourth, []calendar.Date{date(2025, time.March, 24)}},
		{PositionLast, []calendar.Date{date(2025, time.March, 31)}},
	}
	for _, tt := range tests {
		t.Run(string(tt.position), func(t *testing.T) {
			got, err := Monthly(from, to, 1, tt.position)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMonthly_LastIsTrueFinalOccurrence(t *testing.T) {
	// Across a year, "last" must match the final weekday of every month,
	// including months with five occurrences.
	from, to := date(2025, time.January, 1), date(2025, time.December, 31)
	for weekday := 1; weekday <= 6; weekday++ {
		got, err := Monthly(from, to, weekday, PositionLast)
		require.NoError(t, err)
		require.Len(t, got, 12)

		for _, d := range got {
			assert.Equal(t, weekday, d.ISOWeekday())
			assert.NotEqual(t, d.Month, d.AddDays(7).Month, "%s is not the last weekday %d", d, weekday)
		}
	}
}

func TestMonthly_FourthSkipsFifthOccurrence(t *testing.T) {
	got, err := Monthly(date(2025, time.March, 29), date(2025, time.March, 31), 1, PositionFourth)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMonthly_InvalidInput(t *testing.T) {
	_, err := Monthly(date(2025, time.March, 1), date(2025, time.March, 31), 1, "fifth")
	assert.ErrorIs(t, err, ErrInvalidPosition)

	_, err = Monthly(date(2025, time.March, 1), date(2025, time.March, 31), 0, PositionFirst)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestExpand(t *testing.T) {
	hours := calendar.Window{Start: calendar.ClockAt(9, 0), End: calendar.ClockAt(17, 0)}
	rule := Rule{Pattern: PatternWeekly, DaysOfWeek: []int{1, 3}, Reason: "  regular clinic  "}

	got, err := Expand(rule, date(2025, time.March, 3), date(2025, time.March, 16), hours)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for _, c := range got {
		assert.Equal(t, hours, c.Window)
		assert.Equal(t, "regular clinic", c.Reason)
	}

	_, err = Expand(Rule{Pattern: "daily"}, date(2025, time.March, 3), date(2025, time.March, 16), hours)
	assert.ErrorIs(t, err, ErrUnknownPattern)
}
