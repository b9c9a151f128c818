package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-scheduling/internal/notes"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusAttended  AppointmentStatus = "attended"
	StatusAbsent    AppointmentStatus = "absent"
	StatusCancelled AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAttended, StatusAbsent, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case StatusAttended, StatusAbsent, StatusCancelled:
		return true
	case StatusPending:
		return false
	}
	return true
}

// CanTransition encodes PENDING -> {ATTENDED, ABSENT, CANCELLED}. The
// PENDING -> PENDING reschedule loop is not a status transition.
func (s AppointmentStatus) CanTransition(to AppointmentStatus) bool {
	switch s {
	case StatusPending:
		switch to {
		case StatusAttended, StatusAbsent, StatusCancelled:
			return true
		case StatusPending:
			return false
		}
	case StatusAttended, StatusAbsent, StatusCancelled:
		return false
	}
	return false
}

const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 120
)

type Appointment struct {
	ID              uuid.UUID
	PractitionerID  uuid.UUID
	PatientID       uuid.UUID
	CreatorID       uuid.UUID
	Start           time.Time
	DurationMinutes int
	Motive          string
	Status          AppointmentStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

func (a Appointment) End() time.Time {
	return a.Start.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Detail is an appointment with its notes, newest first.
type Detail struct {
	Appointment
	Notes []notes.Note
}

// CreateInput is what front-desk staff submit to book a patient.
type CreateInput struct {
	PractitionerID  uuid.UUID
	PatientID       uuid.UUID
	Start           time.Time
	DurationMinutes int
	Motive          string
}

// Changes carries the fields of an update; nil fields keep their value.
type Changes struct {
	PractitionerID  *uuid.UUID
	PatientID       *uuid.UUID
	Start           *time.Time
	DurationMinutes *int
	Motive          *string
}

func (c Changes) timing() bool {
	return c.PractitionerID != nil || c.Start != nil || c.DurationMinutes != nil
}

func (c Changes) apply(a Appointment) Appointment {
	if c.PractitionerID != nil {
		a.PractitionerID = *c.PractitionerID
	}
	if c.PatientID != nil {
		a.PatientID = *c.PatientID
	}
	if c.Start != nil {
		a.Start = c.Start.Truncate(time.Minute)
	}
	if c.DurationMinutes != nil {
		a.DurationMinutes = *c.DurationMinutes
	}
	if c.Motive != nil {
		a.Motive = *c.Motive
	}
	return a
}

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
	// MaxPage keeps (Page-1)*PerPage far from overflowing an int or a
	// Postgres OFFSET.
	MaxPage = 1_000_000
)

// Filter selects appointments for listing. Zero values mean "any".
type Filter struct {
	PractitionerID *uuid.UUID
	PatientID      *uuid.UUID
	Statuses       []AppointmentStatus
	From           *time.Time
	To             *time.Time
	Page           int
	PerPage        int
}

// Normalize applies paging defaults and bounds.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = DefaultPerPage
	}
	if f.PerPage > MaxPerPage {
		f.PerPage = MaxPerPage
	}
	return f
}

func (f Filter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

type Page struct {
	Items   []Appointment
	Total   int
	Page    int
	PerPage int
}

func (p Page) HasMore() bool {
	return p.Page*p.PerPage < p.Total
}
