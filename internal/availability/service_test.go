package availability_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/practitioner-scheduling/internal/apperror"
	"github.com/hackgods/practitioner-scheduling/internal/availability"
	"github.com/hackgods/practitioner-scheduling/internal/calendar"
	"github.com/hackgods/practitioner-scheduling/internal/lock"
	"github.com/hackgods/practitioner-scheduling/internal/memstore"
	"github.com/hackgods/practitioner-scheduling/internal/recurrence"
)

type pendingStub map[calendar.Date][]calendar.Window

func (p pendingStub) PendingWindows(_ context.Context, _ uuid.UUID, d calendar.Date) ([]calendar.Window, error) {
	return p[d], nil
}

var (
	doctor = uuid.New()
	day    = calendar.NewDate(2025, time.March, 10)
)

func newService(pending pendingStub) *availability.Service {
	return availability.NewService(memstore.New().Blocks, pending, lock.NewLocal(), zap.NewNop(),
		availability.WithClock(func() time.Time { return time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC) }),
	)
}

func input(start, end calendar.Clock, kind availability.Kind, reason string) availability.CreateInput {
	return availability.CreateInput{
		PractitionerID: doctor,
		Date:           day,
		Start:          start,
		End:            end,
		Kind:           kind,
		Reason:         reason,
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newService(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		in   availability.CreateInput
		want error
	}{
		{"end before start", input(calendar.ClockAt(10, 0), calendar.ClockAt(9, 0), availability.KindWorkable, ""), availability.ErrInvalidWindow},
		{"end equals start", input(calendar.ClockAt(10, 0), calendar.ClockAt(10, 0), availability.KindWorkable, ""), availability.ErrInvalidWindow},
		{"shorter than an hour", input(calendar.ClockAt(10, 0), calendar.ClockAt(10, 59), availability.KindWorkable, ""), availability.ErrBlockTooShort},
		{"non workable without reason", input(calendar.ClockAt(10, 0), calendar.ClockAt(12, 0), availability.KindNonWorkable, "  "), availability.ErrReasonRequired},
		{"unknown kind", input(calendar.ClockAt(10, 0), calendar.ClockAt(12, 0), "holiday", ""), availability.ErrInvalidKind},
		{"past midnight", input(calendar.ClockAt(23, 0), calendar.ClockAt(24, 30), availability.KindWorkable, ""), availability.ErrClockOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
		})
	}

	_, err := svc.Create(ctx, input(calendar.ClockAt(23, 0), calendar.ClockAt(24, 0), availability.KindWorkable, ""))
	assert.NoError(t, err, "a block may end at midnight")
}

func TestCreateOverlap(t *testing.T) {
	svc := newService(nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, input(calendar.ClockAt(9, 0), calendar.ClockAt(12, 0), availability.KindWorkable, ""))
	require.NoError(t, err)

	_, err = svc.Create(ctx, input(calendar.ClockAt(11, 0), calendar.ClockAt(13, 0), availability.KindNonWorkable, "lunch"))
	require.ErrorIs(t, err, availability.ErrBlockOverlap)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))

	_, err = svc.Create(ctx, input(calendar.ClockAt(12, 0), calendar.ClockAt(13, 0), availability.KindNonWorkable, "lunch"))
	require.NoError(t, err, "touching blocks do not overlap")

	other := input(calendar.ClockAt(9, 0), calendar.ClockAt(12, 0), availability.KindWorkable, "")
	other.PractitionerID = uuid.New()
	_, err = svc.Create(ctx, other)
	require.NoError(t, err, "other practitioners are independent")

	listed, err := svc.ByDate(ctx, day, doctor)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, calendar.ClockAt(9, 0), listed[0].Start)
	assert.Equal(t, calendar.ClockAt(12, 0), listed[1].Start)
}

func TestUpdateExcludesItself(t *testing.T) {
	svc := newService(nil)
	ctx := context.Background()

	b, err := svc.Create(ctx, input(calendar.ClockAt(9, 0), calendar.ClockAt(12, 0), availability.KindWorkable, ""))
	require.NoError(t, err)
	_, err = svc.Create(ctx, input(calendar.ClockAt(14, 0), calendar.ClockAt(16, 0), availability.KindWorkable, ""))
	require.NoError(t, err)

	end := calendar.ClockAt(13, 0)
	updated, err := svc.Update(ctx, b.ID, availability.Changes{End: &end})
	require.NoError(t, err)
	assert.Equal(t, end, updated.End)

	end = calendar.ClockAt(15, 0)
	_, err = svc.Update(ctx, b.ID, availability.Changes{End: &end})
	assert.ErrorIs(t, err, availability.ErrBlockOverlap)

	kind := availability.KindNonWorkable
	_, err = svc.Update(ctx, b.ID, availability.Changes{Kind: &kind})
	assert.ErrorIs(t, err, availability.ErrReasonRequired)

	_, err = svc.Update(ctx, uuid.New(), availability.Changes{End: &end})
	assert.ErrorIs(t, err, availability.ErrBlockNotFound)
}

func TestRemoveRespectsPendingAppointments(t *testing.T) {
	pending := pendingStub{day: {{Start: calendar.ClockAt(10, 0), End: calendar.ClockAt(10, 30)}}}
	svc := newService(pending)
	ctx := context.Background()

	busy, err := svc.Create(ctx, input(calendar.ClockAt(9, 0), calendar.ClockAt(12, 0), availability.KindWorkable, ""))
	require.NoError(t, err)
	free, err := svc.Create(ctx, input(calendar.ClockAt(13, 0), calendar.ClockAt(15, 0), availability.KindWorkable, ""))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Remove(ctx, busy.ID), availability.ErrBlockHasPending)
	require.NoError(t, svc.Remove(ctx, free.ID))
	assert.ErrorIs(t, svc.Remove(ctx, free.ID), availability.ErrBlockNotFound)
}

func TestValidateContainment(t *testing.T) {
	svc := newService(nil)
	ctx := context.Background()

	b, err := svc.Create(ctx, input(calendar.ClockAt(9, 0), calendar.ClockAt(12, 0), availability.KindWorkable, ""))
	require.NoError(t, err)

	ok, err := svc.ValidateContainment(ctx, day, calendar.ClockAt(9, 0), calendar.ClockAt(12, 0), doctor, nil)
	require.NoError(t, err)
	assert.True(t, ok, "edges are inclusive")

	ok, err = svc.ValidateContainment(ctx, day, calendar.ClockAt(11, 30), calendar.ClockAt(12, 30), doctor, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.ValidateContainment(ctx, day, calendar.ClockAt(10, 0), calendar.ClockAt(11, 0), doctor, &b.ID)
	require.NoError(t, err)
	assert.False(t, ok, "excluded block does not count")
}

func TestByRangeAndPractitioner(t *testing.T) {
	svc := newService(nil)
	ctx := context.Background()

	res, err := svc.GenerateRecurring(ctx, doctor,
		recurrence.Rule{Pattern: recurrence.PatternMonthly, Weekday: 1, Position: recurrence.PositionLast},
		calendar.NewDate(2025, time.January, 1), calendar.NewDate(2025, time.March, 31),
		calendar.Window{Start: calendar.ClockAt(9, 0), End: calendar.ClockAt(13, 0)},
	)
	require.NoError(t, err)
	require.Equal(t, 3, res.Created)

	inRange, err := svc.ByRange(ctx, calendar.NewDate(2025, time.February, 1), calendar.NewDate(2025, time.March, 31), doctor)
	require.NoError(t, err)
	require.Len(t, inRange, 2)
	assert.Equal(t, "2025-02-24", inRange[0].Date.String())
	assert.Equal(t, "2025-03-31", inRange[1].Date.String())

	_, err = svc.ByRange(ctx, calendar.NewDate(2025, time.March, 31), calendar.NewDate(2025, time.February, 1), doctor)
	assert.ErrorIs(t, err, availability.ErrInvalidRange)

	all, err := svc.ByPractitioner(ctx, doctor)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "2025-01-27", all[0].Date.String())
}
