package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/practitioner-scheduling/internal/apperror"
	"github.com/hackgods/practitioner-scheduling/internal/calendar"
	"github.com/hackgods/practitioner-scheduling/internal/directory"
	"github.com/hackgods/practitioner-scheduling/internal/lock"
	"github.com/hackgods/practitioner-scheduling/internal/notes"
)

// DefaultAbsenceReason is recorded when an absence is marked without a reason.
const DefaultAbsenceReason = "Patient did not attend"

var (
	ErrStartNotFuture        = apperror.Validation("scheduled start must be in the future")
	ErrInvalidDuration       = apperror.Validation(fmt.Sprintf("duration must be between %d and %d minutes", MinDurationMinutes, MaxDurationMinutes))
	ErrMissingPractitioner   = apperror.Validation("practitioner_id is required")
	ErrMissingPatient        = apperror.Validation("patient_id is required")
	ErrMissingStart          = apperror.Validation("start is required")
	ErrNotPending            = apperror.Validation("only PENDING appointments may be modified")
	ErrAttendanceBeforeStart = apperror.Validation("cannot confirm attendance before the scheduled time")
	ErrReasonRequired        = apperror.Validation("a cancellation reason is required")
	ErrOverlap               = apperror.Conflict("appointment overlaps another appointment of the practitioner")
	ErrOutsideAvailability   = apperror.Conflict("appointment is not inside a workable availability block")
)

// activeStatuses are the statuses that occupy a practitioner's time.
var activeStatuses = []AppointmentStatus{StatusPending, StatusAttended, StatusAbsent}

type Service struct {
	repo         Repository
	notes        NoteLedger
	availability Containment
	directory    directory.Directory
	locker       lock.Locker
	loc          *time.Location
	logger       *zap.Logger
	now          func() time.Time
}

type Option func(*Service)

// WithDirectory makes the service confirm practitioners and patients before booking.
func WithDirectory(d directory.Directory) Option {
	return func(s *Service) { s.directory = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the clinic wall-clock zone used to place appointments on
// availability blocks. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewService(repo Repository, ledger NoteLedger, availability Containment, locker lock.Locker, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		notes:        ledger,
		availability: availability,
		locker:       locker,
		loc:          time.UTC,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) dayKey(a Appointment) string {
	d, _ := calendar.Split(a.Start, s.loc)
	return lock.PractitionerDay(a.PractitionerID, d)
}

// stillOn reports lock.ErrCalendarBusy when a concurrent update moved the
// appointment off the day locked for current.
func (s *Service) stillOn(current, fresh Appointment) error {
	if s.dayKey(fresh) != s.dayKey(current) {
		return lock.ErrCalendarBusy
	}
	return nil
}

func validate(a Appointment) error {
	if a.PractitionerID == uuid.Nil {
		return ErrMissingPractitioner
	}
	if a.PatientID == uuid.Nil {
		return ErrMissingPatient
	}
	if a.Start.IsZero() {
		return ErrMissingStart
	}
	if a.DurationMinutes < MinDurationMinutes || a.DurationMinutes > MaxDurationMinutes {
		return ErrInvalidDuration
	}
	return nil
}

func (s *Service) requireFuture(start time.Time) error {
	if !start.After(s.now()) {
		return ErrStartNotFuture
	}
	return nil
}

// checkPlacement runs the overlap and containment checks for a against
// committed state. exclude is skipped in the overlap scan.
func (s *Service) checkPlacement(ctx context.Context, a Appointment, exclude uuid.UUID) error {
	// Anything starting up to MaxDurationMinutes earlier may still reach into a.
	from := a.Start.Add(-MaxDurationMinutes * time.Minute)
	nearby, err := s.repo.ListStarting(ctx, a.PractitionerID, from, a.End(), activeStatuses)
	if err != nil {
		return fmt.Errorf("list nearby appointments: %w", err)
	}
	for _, other := range nearby {
		if other.ID == exclude {
			continue
		}
		if calendar.Overlaps(a.Start.Unix(), a.End().Unix(), other.Start.Unix(), other.End().Unix()) {
			return ErrOverlap
		}
	}

	d, start := calendar.Split(a.Start, s.loc)
	end := start.Add(a.DurationMinutes)
	if end > calendar.MinutesPerDay {
		return ErrOutsideAvailability
	}
	ok, err := s.availability.ValidateContainment(ctx, d, start, end, a.PractitionerID, nil)
	if err != nil {
		return fmt.Errorf("validate containment: %w", err)
	}
	if !ok {
		return ErrOutsideAvailability
	}
	return nil
}

// Create books a new PENDING appointment on behalf of creatorID.
func (s *Service) Create(ctx context.Context, in CreateInput, creatorID uuid.UUID) (*Detail, error) {
	a := Appointment{
		ID:              uuid.New(),
		PractitionerID:  in.PractitionerID,
		PatientID:       in.PatientID,
		CreatorID:       creatorID,
		Start:           in.Start.Truncate(time.Minute),
		DurationMinutes: in.DurationMinutes,
		Motive:          strings.TrimSpace(in.Motive),
		Status:          StatusPending,
	}
	if err := validate(a); err != nil {
		return nil, err
	}
	if err := s.requireFuture(a.Start); err != nil {
		return nil, err
	}
	if err := directory.RequirePractitioner(ctx, s.directory, a.PractitionerID); err != nil {
		return nil, err
	}
	if err := directory.RequirePatient(ctx, s.directory, a.PatientID); err != nil {
		return nil, err
	}

	err := lock.Run(ctx, s.locker, []string{s.dayKey(a)}, func(ctx context.Context) error {
		if err := s.checkPlacement(ctx, a, uuid.Nil); err != nil {
			return err
		}
		now := s.now()
		a.CreatedAt, a.UpdatedAt = now, now
		if err := s.repo.Create(ctx, &a); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment created",
		zap.String("appointment_id", a.ID.String()),
		zap.String("practitioner_id", a.PractitionerID.String()),
		zap.Time("start", a.Start),
		zap.Int("duration_minutes", a.DurationMinutes),
	)
	return &Detail{Appointment: a, Notes: []notes.Note{}}, nil
}

// pending loads id and fails unless it is still PENDING.
func (s *Service) pending(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusPending {
		return nil, ErrNotPending
	}
	return a, nil
}

// Update edits a PENDING appointment. Changing its practitioner, start or
// duration re-runs the overlap and containment checks with itself excluded.
func (s *Service) Update(ctx context.Context, id uuid.UUID, changes Changes) (*Appointment, error) {
	current, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}
	merged := changes.apply(*current)
	merged.Motive = strings.TrimSpace(merged.Motive)
	if err := validate(merged); err != nil {
		return nil, err
	}
	if changes.timing() {
		if err := s.requireFuture(merged.Start); err != nil {
			return nil, err
		}
	}
	if changes.PractitionerID != nil {
		if err := directory.RequirePractitioner(ctx, s.directory, merged.PractitionerID); err != nil {
			return nil, err
		}
	}
	if changes.PatientID != nil {
		if err := directory.RequirePatient(ctx, s.directory, merged.PatientID); err != nil {
			return nil, err
		}
	}

	keys := []string{s.dayKey(*current), s.dayKey(merged)}
	err = lock.Run(ctx, s.locker, keys, func(ctx context.Context) error {
		fresh, err := s.pending(ctx, id)
		if err != nil {
			return err
		}
		if err := s.stillOn(*current, *fresh); err != nil {
			return err
		}
		merged = changes.apply(*fresh)
		merged.Motive = strings.TrimSpace(merged.Motive)
		if changes.timing() {
			if err := s.checkPlacement(ctx, merged, merged.ID); err != nil {
				return err
			}
		}
		merged.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, &merged); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment updated",
		zap.String("appointment_id", merged.ID.String()),
		zap.String("practitioner_id", merged.PractitionerID.String()),
	)
	return &merged, nil
}

// transition moves a PENDING appointment to a terminal status and records
// note, when non-empty, authored by actor.
func (s *Service) transition(ctx context.Context, a *Appointment, to AppointmentStatus, note string, system bool, actor uuid.UUID) (*Detail, error) {
	if !a.Status.CanTransition(to) {
		return nil, ErrNotPending
	}
	updated, err := s.repo.UpdateStatus(ctx, a.ID, a.Status, to, s.now())
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race with another transition.
			return nil, ErrNotPending
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	if note != "" {
		s.appendNote(ctx, a.ID, actor, note, system)
	}

	s.logger.Info("appointment status changed",
		zap.String("appointment_id", a.ID.String()),
		zap.String("practitioner_id", a.PractitionerID.String()),
		zap.String("from", string(a.Status)),
		zap.String("to", string(to)),
		zap.String("actor_id", actor.String()),
	)
	return s.detail(ctx, updated)
}

// Cancel frees the appointment's time and records reason as a note.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string, actor uuid.UUID) (*Detail, error) {
	reason = strings.TrimSpace(reason)
	a, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, ErrReasonRequired
	}
	return s.transition(ctx, a, StatusCancelled, "Cancelled: "+reason, true, actor)
}

// MarkAttended confirms attendance once the scheduled start has passed.
func (s *Service) MarkAttended(ctx context.Context, id uuid.UUID, note string, actor uuid.UUID) (*Detail, error) {
	a, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.now().Before(a.Start) {
		return nil, ErrAttendanceBeforeStart
	}
	return s.transition(ctx, a, StatusAttended, strings.TrimSpace(note), false, actor)
}

func (s *Service) MarkAbsent(ctx context.Context, id uuid.UUID, reason string, actor uuid.UUID) (*Detail, error) {
	a, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultAbsenceReason
	}
	return s.transition(ctx, a, StatusAbsent, "Absent: "+reason, true, actor)
}

// Reschedule moves a PENDING appointment to newStart, keeping its duration.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newStart time.Time, actor uuid.UUID) (*Detail, error) {
	current, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}
	newStart = newStart.Truncate(time.Minute)
	if newStart.IsZero() {
		return nil, ErrMissingStart
	}
	if err := s.requireFuture(newStart); err != nil {
		return nil, err
	}

	moved := *current
	moved.Start = newStart
	keys := []string{s.dayKey(*current), s.dayKey(moved)}

	var oldStart time.Time
	err = lock.Run(ctx, s.locker, keys, func(ctx context.Context) error {
		fresh, err := s.pending(ctx, id)
		if err != nil {
			return err
		}
		if err := s.stillOn(*current, *fresh); err != nil {
			return err
		}
		oldStart = fresh.Start
		moved = *fresh
		moved.Start = newStart
		if err := s.checkPlacement(ctx, moved, moved.ID); err != nil {
			return err
		}
		moved.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, &moved); err != nil {
			return fmt.Errorf("reschedule appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	body := fmt.Sprintf("Rescheduled from %s to %s",
		oldStart.In(s.loc).Format(noteTimeLayout), moved.Start.In(s.loc).Format(noteTimeLayout))
	s.appendNote(ctx, moved.ID, actor, body, true)

	s.logger.Info("appointment rescheduled",
		zap.String("appointment_id", moved.ID.String()),
		zap.String("practitioner_id", moved.PractitionerID.String()),
		zap.Time("from", oldStart),
		zap.Time("to", moved.Start),
		zap.String("actor_id", actor.String()),
	)
	return s.detail(ctx, &moved)
}

const noteTimeLayout = "2006-01-02 15:04"

// appendNote records the note for an already committed change. Failures are
// logged; the change stands either way.
func (s *Service) appendNote(ctx context.Context, id, actor uuid.UUID, body string, system bool) {
	if _, err := s.notes.Append(ctx, id, actor, body, system); err != nil {
		s.logger.Error("append note after commit",
			zap.String("appointment_id", id.String()),
			zap.String("actor_id", actor.String()),
			zap.String("note", body),
			zap.Error(err),
		)
	}
}

// Remove soft-deletes a PENDING appointment together with its notes.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	current, err := s.pending(ctx, id)
	if err != nil {
		return err
	}

	err = lock.Run(ctx, s.locker, []string{s.dayKey(*current)}, func(ctx context.Context) error {
		fresh, err := s.pending(ctx, id)
		if err != nil {
			return err
		}
		if err := s.stillOn(*current, *fresh); err != nil {
			return err
		}
		if err := s.repo.SoftDelete(ctx, id, s.now()); err != nil {
			return fmt.Errorf("delete appointment: %w", err)
		}
		if err := s.notes.DeleteByAppointment(ctx, id); err != nil {
			return fmt.Errorf("delete notes: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("appointment deleted",
		zap.String("appointment_id", id.String()),
		zap.String("practitioner_id", current.PractitionerID.String()),
	)
	return nil
}

func (s *Service) detail(ctx context.Context, a *Appointment) (*Detail, error) {
	ns, err := s.notes.List(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return &Detail{Appointment: *a, Notes: ns}, nil
}

// ByID returns the appointment with its notes, newest first.
func (s *Service) ByID(ctx context.Context, id uuid.UUID) (*Detail, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, a)
}

// Filtered lists appointments matching f, one page at a time.
func (s *Service) Filtered(ctx context.Context, f Filter) (*Page, error) {
	f = f.Normalize()
	if f.Page > MaxPage {
		return nil, apperror.Validationf("page must be at most %d", MaxPage)
	}
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, apperror.Validationf("unknown status %q", st)
		}
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return nil, apperror.Validation("from must not be after to")
	}

	items, total, err := s.repo.Find(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("find appointments: %w", err)
	}
	return &Page{Items: items, Total: total, Page: f.Page, PerPage: f.PerPage}, nil
}

// ByDate is the agenda for d in the clinic zone, sorted by start. A nil
// practitioner id returns every practitioner's agenda.
func (s *Service) ByDate(ctx context.Context, d calendar.Date, practitionerID uuid.UUID) ([]Appointment, error) {
	if d.IsZero() {
		return nil, apperror.Validation("date is required")
	}
	from := d.In(s.loc)
	to := d.AddDays(1).In(s.loc)
	return s.repo.ListStarting(ctx, practitionerID, from, to, nil)
}

// OverdueToMark returns PENDING appointments whose start has passed.
func (s *Service) OverdueToMark(ctx context.Context) ([]Appointment, error) {
	return s.repo.ListOverdue(ctx, s.now())
}
