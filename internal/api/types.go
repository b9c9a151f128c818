package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-scheduling/internal/appointment"
	"github.com/hackgods/practitioner-scheduling/internal/availability"
	"github.com/hackgods/practitioner-scheduling/internal/calendar"
	"github.com/hackgods/practitioner-scheduling/internal/notes"
	"github.com/hackgods/practitioner-scheduling/internal/slots"
)

// Requests. Clock values are "HH:MM", dates "YYYY-MM-DD".

type CreateAvailabilityRequest struct {
	PractitionerID string `json:"practitioner_id" validate:"required,uuid"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	Start          string `json:"start" validate:"required"`
	End            string `json:"end" validate:"required"`
	Kind           string `json:"kind" validate:"required,oneof=workable non_workable"`
	Reason         string `json:"reason"`
}

type UpdateAvailabilityRequest struct {
	Date   *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Start  *string `json:"start"`
	End    *string `json:"end"`
	Kind   *string `json:"kind" validate:"omitempty,oneof=workable non_workable"`
	Reason *string `json:"reason"`
}

type WorkingHours struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

type GenerateAutomaticRequest struct {
	PractitionerID string       `json:"practitioner_id" validate:"required,uuid"`
	DateFrom       string       `json:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo         string       `json:"date_to" validate:"required,datetime=2006-01-02"`
	WorkingHours   WorkingHours `json:"working_hours"`
}

type RecurrenceConfig struct {
	DaysOfWeek []int  `json:"days_of_week" validate:"omitempty,dive,min=1,max=6"`
	Weekday    int    `json:"weekday" validate:"omitempty,min=1,max=6"`
	Position   string `json:"position" validate:"omitempty,oneof=first second third fourth last"`
	Reason     string `json:"reason"`
}

type GenerateRecurringRequest struct {
	PractitionerID string           `json:"practitioner_id" validate:"required,uuid"`
	Pattern        string           `json:"pattern" validate:"required,oneof=weekly monthly"`
	Config         RecurrenceConfig `json:"config"`
	DateFrom       string           `json:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo         string           `json:"date_to" validate:"required,datetime=2006-01-02"`
	WorkingHours   WorkingHours     `json:"working_hours"`
}

type CreateAppointmentRequest struct {
	PractitionerID  string     `json:"practitioner_id" validate:"required,uuid"`
	PatientID       string     `json:"patient_id" validate:"required,uuid"`
	Start           *time.Time `json:"start" validate:"required"`
	DurationMinutes int        `json:"duration" validate:"required"`
	Motive          string     `json:"motive" validate:"max=500"`
}

type UpdateAppointmentRequest struct {
	PractitionerID  *string    `json:"practitioner_id" validate:"omitempty,uuid"`
	PatientID       *string    `json:"patient_id" validate:"omitempty,uuid"`
	Start           *time.Time `json:"start"`
	DurationMinutes *int       `json:"duration"`
	Motive          *string    `json:"motive" validate:"omitempty,max=500"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type AttendedRequest struct {
	Note string `json:"note"`
}

type AbsentRequest struct {
	Reason string `json:"reason"`
}

type RescheduleRequest struct {
	Start *time.Time `json:"start" validate:"required"`
}

type NoteRequest struct {
	Body string `json:"body" validate:"required"`
}

// Responses

type BlockResponse struct {
	ID             uuid.UUID      `json:"id"`
	PractitionerID uuid.UUID      `json:"practitioner_id"`
	Date           calendar.Date  `json:"date"`
	Start          calendar.Clock `json:"start"`
	End            calendar.Clock `json:"end"`
	Kind           string         `json:"kind"`
	Reason         string         `json:"reason,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func toBlockResponse(b availability.Block) BlockResponse {
	return BlockResponse{
		ID:             b.ID,
		PractitionerID: b.PractitionerID,
		Date:           b.Date,
		Start:          b.Start,
		End:            b.End,
		Kind:           string(b.Kind),
		Reason:         b.Reason,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func toBlockResponses(blocks []availability.Block) []BlockResponse {
	out := make([]BlockResponse, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, toBlockResponse(b))
	}
	return out
}

type GenerateResponse struct {
	Created int             `json:"created"`
	Blocks  []BlockResponse `json:"blocks"`
}

type ValidateResponse struct {
	Valid bool `json:"valid"`
}

type SlotsResponse struct {
	Date           calendar.Date `json:"date"`
	PractitionerID uuid.UUID     `json:"practitioner_id"`
	Duration       int           `json:"duration"`
	Slots          []slots.Slot  `json:"slots"`
}

type NoteResponse struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	AuthorID      uuid.UUID `json:"author_id"`
	Body          string    `json:"body"`
	System        bool      `json:"system"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toNoteResponse(n notes.Note) NoteResponse {
	return NoteResponse{
		ID:            n.ID,
		AppointmentID: n.AppointmentID,
		AuthorID:      n.AuthorID,
		Body:          n.Body,
		System:        n.System,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
	}
}

func toNoteResponses(ns []notes.Note) []NoteResponse {
	out := make([]NoteResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, toNoteResponse(n))
	}
	return out
}

type AppointmentResponse struct {
	ID              uuid.UUID      `json:"id"`
	PractitionerID  uuid.UUID      `json:"practitioner_id"`
	PatientID       uuid.UUID      `json:"patient_id"`
	CreatorID       uuid.UUID      `json:"creator_id"`
	Start           time.Time      `json:"start"`
	End             time.Time      `json:"end"`
	DurationMinutes int            `json:"duration"`
	Motive          string         `json:"motive,omitempty"`
	Status          string         `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Notes           []NoteResponse `json:"notes,omitempty"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PractitionerID:  a.PractitionerID,
		PatientID:       a.PatientID,
		CreatorID:       a.CreatorID,
		Start:           a.Start,
		End:             a.End(),
		DurationMinutes: a.DurationMinutes,
		Motive:          a.Motive,
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toDetailResponse(d appointment.Detail) AppointmentResponse {
	resp := toAppointmentResponse(d.Appointment)
	resp.Notes = toNoteResponses(d.Notes)
	return resp
}

func toAppointmentResponses(as []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(as))
	for _, a := range as {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

type PageResponse struct {
	Items   []AppointmentResponse `json:"items"`
	Total   int                   `json:"total"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"per_page"`
	HasMore bool                  `json:"has_more"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
