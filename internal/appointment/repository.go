package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-scheduling/internal/apperror"
	"github.com/hackgods/practitioner-scheduling/internal/calendar"
	"github.com/hackgods/practitioner-scheduling/internal/notes"
)

var ErrAppointmentNotFound = apperror.NotFound("appointment not found")

// Repository contains all DB interactions needed by the service.
// Soft-deleted appointments are invisible to every read.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	// UpdateStatus moves id from one status to another and fails with
	// ErrAppointmentNotFound if the row is not in the from status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, at time.Time) (*Appointment, error)
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error

	// ListStarting returns appointments whose start lies in [from, to),
	// ordered by start. A nil practitioner id matches all practitioners;
	// an empty status list matches all statuses.
	ListStarting(ctx context.Context, practitionerID uuid.UUID, from, to time.Time, statuses []AppointmentStatus) ([]Appointment, error)
	Find(ctx context.Context, f Filter) ([]Appointment, int, error)
	// ListOverdue returns PENDING appointments that started before now.
	ListOverdue(ctx context.Context, now time.Time) ([]Appointment, error)
}

// NoteLedger is the audit trail the service writes to.
type NoteLedger interface {
	Append(ctx context.Context, appointmentID, authorID uuid.UUID, body string, system bool) (*notes.Note, error)
	List(ctx context.Context, appointmentID uuid.UUID) ([]notes.Note, error)
	DeleteByAppointment(ctx context.Context, appointmentID uuid.UUID) error
}

// Containment answers whether a time range lies inside workable availability.
type Containment interface {
	ValidateContainment(ctx context.Context, d calendar.Date, start, end calendar.Clock, practitionerID uuid.UUID, excludeBlockID *uuid.UUID) (bool, error)
}
