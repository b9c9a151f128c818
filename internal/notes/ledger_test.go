package notes_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/practitioner-scheduling/internal/apperror"
	"github.com/hackgods/practitioner-scheduling/internal/memstore"
	"github.com/hackgods/practitioner-scheduling/internal/notes"
)

func newLedger() (*notes.Ledger, *time.Time) {
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	l := notes.NewLedger(memstore.New().Notes, zap.NewNop()).WithClock(func() time.Time { return now })
	return l, &now
}

func TestAppendAndListNewestFirst(t *testing.T) {
	l, now := newLedger()
	ctx := context.Background()
	appt, author := uuid.New(), uuid.New()

	first, err := l.Append(ctx, appt, author, "  first  ", false)
	require.NoError(t, err)
	assert.Equal(t, "first", first.Body)

	*now = now.Add(time.Minute)
	_, err = l.Append(ctx, appt, author, "second", true)
	require.NoError(t, err)
	_, err = l.Append(ctx, uuid.New(), author, "elsewhere", false)
	require.NoError(t, err)

	list, err := l.List(ctx, appt)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Body)
	assert.Equal(t, "first", list[1].Body)
}

func TestAppendRejectsBlankBody(t *testing.T) {
	l, _ := newLedger()
	_, err := l.Append(context.Background(), uuid.New(), uuid.New(), " \n ", false)
	assert.ErrorIs(t, err, notes.ErrEmptyBody)
}

func TestEditAndDeleteRules(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()
	appt, author := uuid.New(), uuid.New()

	manual, err := l.Append(ctx, appt, author, "manual", false)
	require.NoError(t, err)
	system, err := l.Append(ctx, appt, author, "Cancelled: sick", true)
	require.NoError(t, err)

	tests := []struct {
		name string
		run  func() error
		want error
		kind apperror.Kind
	}{
		{
			name: "edit by another user",
			run:  func() error { _, err := l.Edit(ctx, manual.ID, uuid.New(), "x"); return err },
			want: notes.ErrNotAuthor,
			kind: apperror.KindForbidden,
		},
		{
			name: "delete by another user",
			run:  func() error { return l.Delete(ctx, manual.ID, uuid.New()) },
			want: notes.ErrNotAuthor,
			kind: apperror.KindForbidden,
		},
		{
			name: "edit system note",
			run:  func() error { _, err := l.Edit(ctx, system.ID, author, "x"); return err },
			want: notes.ErrSystemNote,
			kind: apperror.KindValidation,
		},
		{
			name: "delete system note",
			run:  func() error { return l.Delete(ctx, system.ID, author) },
			want: notes.ErrSystemNote,
			kind: apperror.KindValidation,
		},
		{
			name: "edit with blank body",
			run:  func() error { _, err := l.Edit(ctx, manual.ID, author, ""); return err },
			want: notes.ErrEmptyBody,
			kind: apperror.KindValidation,
		},
		{
			name: "missing note",
			run:  func() error { return l.Delete(ctx, uuid.New(), author) },
			want: notes.ErrNoteNotFound,
			kind: apperror.KindNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}

	edited, err := l.Edit(ctx, manual.ID, author, "manual, revised")
	require.NoError(t, err)
	assert.Equal(t, "manual, revised", edited.Body)
	require.NoError(t, l.Delete(ctx, manual.ID, author))

	require.NoError(t, l.DeleteByAppointment(ctx, appt))
	left, err := l.List(ctx, appt)
	require.NoError(t, err)
	assert.Empty(t, left)
}
