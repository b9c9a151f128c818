package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-scheduling/internal/calendar"
)

// Intervals is the read-only view of a practitioner's booked time that the
// availability and slot components depend on. It reads the repository
// directly so it can be built before the Service.
type Intervals struct {
	repo Repository
	loc  *time.Location
}

func NewIntervals(repo Repository, loc *time.Location) *Intervals {
	if loc == nil {
		loc = time.UTC
	}
	return &Intervals{repo: repo, loc: loc}
}

// PendingWindows returns the time-of-day windows of PENDING appointments on d.
func (i *Intervals) PendingWindows(ctx context.Context, practitionerID uuid.UUID, d calendar.Date) ([]calendar.Window, error) {
	return i.windows(ctx, practitionerID, d, []AppointmentStatus{StatusPending})
}

// ActiveWindows returns the windows of every non-CANCELLED appointment on d.
func (i *Intervals) ActiveWindows(ctx context.Context, practitionerID uuid.UUID, d calendar.Date) ([]calendar.Window, error) {
	return i.windows(ctx, practitionerID, d, activeStatuses)
}

func (i *Intervals) windows(ctx context.Context, practitionerID uuid.UUID, d calendar.Date, statuses []AppointmentStatus) ([]calendar.Window, error) {
	from := d.In(i.loc)
	to := d.AddDays(1).In(i.loc)
	appts, err := i.repo.ListStarting(ctx, practitionerID, from, to, statuses)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	out := make([]calendar.Window, 0, len(appts))
	for _, a := range appts {
		_, start := calendar.Split(a.Start, i.loc)
		out = append(out, calendar.Window{Start: start, End: start.Add(a.DurationMinutes)})
	}
	return out, nil
}
