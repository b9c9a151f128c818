// Package scheduling assembles the availability, slot, appointment and note
// components into the single surface consumed by the HTTP layer and tools.
package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/practitioner-scheduling/internal/appointment"
	"github.com/hackgods/practitioner-scheduling/internal/availability"
	"github.com/hackgods/practitioner-scheduling/internal/calendar"
	"github.com/hackgods/practitioner-scheduling/internal/directory"
	"github.com/hackgods/practitioner-scheduling/internal/lock"
	"github.com/hackgods/practitioner-scheduling/internal/notes"
	"github.com/hackgods/practitioner-scheduling/internal/recurrence"
	"github.com/hackgods/practitioner-scheduling/internal/slots"
)

// Stores are the persistence ports the core runs on.
type Stores struct {
	Blocks       availability.Repository
	Appointments appointment.Repository
	Notes        notes.Repository
}

type Options struct {
	Directory directory.Directory
	// Locker defaults to an in-process lock.Local.
	Locker lock.Locker
	// Location is the clinic wall-clock zone. Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger
}

type Core struct {
	availability *availability.Service
	appointments *appointment.Service
	slots        *slots.Generator
	notes        *notes.Ledger
}

func New(stores Stores, opts Options) *Core {
	if opts.Locker == nil {
		opts.Locker = lock.NewLocal()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	intervals := appointment.NewIntervals(stores.Appointments, opts.Location)
	avail := availability.NewService(stores.Blocks, intervals, opts.Locker, opts.Logger.Named("availability"),
		availability.WithDirectory(opts.Directory),
		availability.WithClock(opts.Now),
	)
	ledger := notes.NewLedger(stores.Notes, opts.Logger.Named("notes")).WithClock(opts.Now)
	appts := appointment.NewService(stores.Appointments, ledger, avail, opts.Locker, opts.Logger.Named("appointment"),
		appointment.WithDirectory(opts.Directory),
		appointment.WithClock(opts.Now),
		appointment.WithLocation(opts.Location),
	)

	return &Core{
		availability: avail,
		appointments: appts,
		slots:        slots.NewGenerator(avail, intervals, opts.Logger.Named("slots")),
		notes:        ledger,
	}
}

// Availability

func (c *Core) CreateAvailability(ctx context.Context, in availability.CreateInput) (*availability.Block, error) {
	return c.availability.Create(ctx, in)
}

func (c *Core) UpdateAvailability(ctx context.Context, id uuid.UUID, changes availability.Changes) (*availability.Block, error) {
	return c.availability.Update(ctx, id, changes)
}

func (c *Core) DeleteAvailability(ctx context.Context, id uuid.UUID) error {
	return c.availability.Remove(ctx, id)
}

func (c *Core) GetAvailability(ctx context.Context, id uuid.UUID) (*availability.Block, error) {
	return c.availability.ByID(ctx, id)
}

func (c *Core) ListAvailabilityByDate(ctx context.Context, d calendar.Date, practitionerID uuid.UUID) ([]availability.Block, error) {
	return c.availability.ByDate(ctx, d, practitionerID)
}

func (c *Core) ListAvailabilityByRange(ctx context.Context, from, to calendar.Date, practitionerID uuid.UUID) ([]availability.Block, error) {
	return c.availability.ByRange(ctx, from, to, practitionerID)
}

func (c *Core) ListAvailabilityByPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]availability.Block, error) {
	return c.availability.ByPractitioner(ctx, practitionerID)
}

// ValidateAvailability reports whether [start, end) on d is bookable time.
func (c *Core) ValidateAvailability(ctx context.Context, d calendar.Date, start, end calendar.Clock, practitionerID uuid.UUID, excludeBlockID *uuid.UUID) (bool, error) {
	if practitionerID == uuid.Nil {
		return false, availability.ErrMissingPractitioner
	}
	if d.IsZero() {
		return false, availability.ErrMissingDate
	}
	if !start.Valid() || !end.Valid() {
		return false, availability.ErrClockOutOfRange
	}
	if end <= start {
		return false, availability.ErrInvalidWindow
	}
	return c.availability.ValidateContainment(ctx, d, start, end, practitionerID, excludeBlockID)
}

func (c *Core) GenerateAutomaticAvailability(ctx context.Context, practitionerID uuid.UUID, from, to calendar.Date, hours calendar.Window) ([]availability.Block, error) {
	return c.availability.GenerateAutomatic(ctx, practitionerID, from, to, hours)
}

func (c *Core) GenerateRecurringAvailability(ctx context.Context, practitionerID uuid.UUID, rule recurrence.Rule, from, to calendar.Date, hours calendar.Window) (*availability.GenerateResult, error) {
	return c.availability.GenerateRecurring(ctx, practitionerID, rule, from, to, hours)
}

// Slots

func (c *Core) GenerateSlots(ctx context.Context, d calendar.Date, practitionerID uuid.UUID, duration int) ([]slots.Slot, error) {
	return c.slots.Generate(ctx, d, practitionerID, duration)
}

// Appointments

func (c *Core) CreateAppointment(ctx context.Context, in appointment.CreateInput, creatorID uuid.UUID) (*appointment.Detail, error) {
	return c.appointments.Create(ctx, in, creatorID)
}

func (c *Core) UpdateAppointment(ctx context.Context, id uuid.UUID, changes appointment.Changes) (*appointment.Appointment, error) {
	return c.appointments.Update(ctx, id, changes)
}

func (c *Core) CancelAppointment(ctx context.Context, id uuid.UUID, reason string, actor uuid.UUID) (*appointment.Detail, error) {
	return c.appointments.Cancel(ctx, id, reason, actor)
}

func (c *Core) MarkAttended(ctx context.Context, id uuid.UUID, note string, actor uuid.UUID) (*appointment.Detail, error) {
	return c.appointments.MarkAttended(ctx, id, note, actor)
}

func (c *Core) MarkAbsent(ctx context.Context, id uuid.UUID, reason string, actor uuid.UUID) (*appointment.Detail, error) {
	return c.appointments.MarkAbsent(ctx, id, reason, actor)
}

func (c *Core) RescheduleAppointment(ctx context.Context, id uuid.UUID, newStart time.Time, actor uuid.UUID) (*appointment.Detail, error) {
	return c.appointments.Reschedule(ctx, id, newStart, actor)
}

func (c *Core) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	return c.appointments.Remove(ctx, id)
}

func (c *Core) GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Detail, error) {
	return c.appointments.ByID(ctx, id)
}

func (c *Core) GetAgenda(ctx context.Context, d calendar.Date, practitionerID uuid.UUID) ([]appointment.Appointment, error) {
	return c.appointments.ByDate(ctx, d, practitionerID)
}

func (c *Core) ListAppointments(ctx context.Context, f appointment.Filter) (*appointment.Page, error) {
	return c.appointments.Filtered(ctx, f)
}

func (c *Core) OverdueToMark(ctx context.Context) ([]appointment.Appointment, error) {
	return c.appointments.OverdueToMark(ctx)
}

// Notes

// AddNote appends a manual note authored by actor to an existing appointment.
func (c *Core) AddNote(ctx context.Context, appointmentID, actor uuid.UUID, body string) (*notes.Note, error) {
	if _, err := c.appointments.ByID(ctx, appointmentID); err != nil {
		return nil, err
	}
	return c.notes.Append(ctx, appointmentID, actor, body, false)
}

func (c *Core) ListNotes(ctx context.Context, appointmentID uuid.UUID) ([]notes.Note, error) {
	d, err := c.appointments.ByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	return d.Notes, nil
}

func (c *Core) EditNote(ctx context.Context, id, actor uuid.UUID, body string) (*notes.Note, error) {
	return c.notes.Edit(ctx, id, actor, body)
}

func (c *Core) DeleteNote(ctx context.Context, id, actor uuid.UUID) error {
	return c.notes.Delete(ctx, id, actor)
}
