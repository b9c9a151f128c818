// Package memstore keeps every repository in process memory. It backs
// STORE=memory and the test suites.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-scheduling/internal/appointment"
	"github.com/hackgods/practitioner-scheduling/internal/availability"
	"github.com/hackgods/practitioner-scheduling/internal/calendar"
	"github.com/hackgods/practitioner-scheduling/internal/notes"
)

type Store struct {
	Blocks       *Blocks
	Appointments *Appointments
	Notes        *Notes
}

func New() *Store {
	return &Store{
		Blocks:       &Blocks{rows: make(map[uuid.UUID]availability.Block)},
		Appointments: &Appointments{rows: make(map[uuid.UUID]appointment.Appointment)},
		Notes:        &Notes{rows: make(map[uuid.UUID]notes.Note)},
	}
}

// Blocks implements availability.Repository.
type Blocks struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]availability.Block
}

var _ availability.Repository = (*Blocks)(nil)

func (s *Blocks) Create(_ context.Context, b *availability.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[b.ID] = *b
	return nil
}

func (s *Blocks) CreateMany(_ context.Context, blocks []*availability.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range blocks {
		s.rows[b.ID] = *b
	}
	return nil
}

func (s *Blocks) GetByID(_ context.Context, id uuid.UUID) (*availability.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.rows[id]
	if !ok || b.DeletedAt != nil {
		return nil, availability.ErrBlockNotFound
	}
	return &b, nil
}

func (s *Blocks) Update(_ context.Context, b *availability.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[b.ID]
	if !ok || cur.DeletedAt != nil {
		return availability.ErrBlockNotFound
	}
	s.rows[b.ID] = *b
	return nil
}

func (s *Blocks) SoftDelete(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[id]
	if !ok || b.DeletedAt != nil {
		return availability.ErrBlockNotFound
	}
	b.DeletedAt = &at
	b.UpdatedAt = at
	s.rows[id] = b
	return nil
}

func (s *Blocks) list(keep func(availability.Block) bool) []availability.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []availability.Block{}
	for _, b := range s.rows {
		if b.DeletedAt == nil && keep(b) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b availability.Block) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.Start, b.Start)
	})
	return out
}

func (s *Blocks) ListByDate(_ context.Context, practitionerID uuid.UUID, d calendar.Date) ([]availability.Block, error) {
	return s.list(func(b availability.Block) bool {
		return b.Date == d && matches(practitionerID, b.PractitionerID)
	}), nil
}

func (s *Blocks) ListByRange(_ context.Context, practitionerID uuid.UUID, from, to calendar.Date) ([]availability.Block, error) {
	return s.list(func(b availability.Block) bool {
		return !b.Date.Before(from) && !b.Date.After(to) && matches(practitionerID, b.PractitionerID)
	}), nil
}

func (s *Blocks) ListByPractitioner(_ context.Context, practitionerID uuid.UUID) ([]availability.Block, error) {
	return s.list(func(b availability.Block) bool { return b.PractitionerID == practitionerID }), nil
}

// matches treats a nil filter id as a wildcard.
func matches(filter, id uuid.UUID) bool {
	return filter == uuid.Nil || filter == id
}

// Appointments implements appointment.Repository.
type Appointments struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]appointment.Appointment
}

var _ appointment.Repository = (*Appointments)(nil)

func (s *Appointments) Create(_ context.Context, a *appointment.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[a.ID] = *a
	return nil
}

func (s *Appointments) live(id uuid.UUID) (appointment.Appointment, bool) {
	a, ok := s.rows[id]
	return a, ok && a.DeletedAt == nil
}

func (s *Appointments) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.live(id)
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (s *Appointments) Update(_ context.Context, a *appointment.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.live(a.ID)
	if !ok {
		return appointment.ErrAppointmentNotFound
	}
	next := *a
	next.Status = cur.Status
	s.rows[a.ID] = next
	return nil
}

func (s *Appointments) UpdateStatus(_ context.Context, id uuid.UUID, from, to appointment.AppointmentStatus, at time.Time) (*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.live(id)
	if !ok || a.Status != from {
		return nil, appointment.ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = at
	s.rows[id] = a
	return &a, nil
}

func (s *Appointments) SoftDelete(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.live(id)
	if !ok {
		return appointment.ErrAppointmentNotFound
	}
	a.DeletedAt = &at
	a.UpdatedAt = at
	s.rows[id] = a
	return nil
}

func (s *Appointments) list(keep func(appointment.Appointment) bool) []appointment.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []appointment.Appointment{}
	for _, a := range s.rows {
		if a.DeletedAt == nil && keep(a) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b appointment.Appointment) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

func (s *Appointments) ListStarting(_ context.Context, practitionerID uuid.UUID, from, to time.Time, statuses []appointment.AppointmentStatus) ([]appointment.Appointment, error) {
	return s.list(func(a appointment.Appointment) bool {
		return !a.Start.Before(from) && a.Start.Before(to) &&
			matches(practitionerID, a.PractitionerID) &&
			(len(statuses) == 0 || slices.Contains(statuses, a.Status))
	}), nil
}

func (s *Appointments) Find(_ context.Context, f appointment.Filter) ([]appointment.Appointment, int, error) {
	all := s.list(func(a appointment.Appointment) bool {
		if f.PractitionerID != nil && a.PractitionerID != *f.PractitionerID {
			return false
		}
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			return false
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, a.Status) {
			return false
		}
		if f.From != nil && a.Start.Before(*f.From) {
			return false
		}
		if f.To != nil && !a.Start.Before(*f.To) {
			return false
		}
		return true
	})

	total := len(all)
	lo := max(0, min(f.Offset(), total))
	hi := min(lo+f.PerPage, total)
	return all[lo:hi], total, nil
}

func (s *Appointments) ListOverdue(_ context.Context, now time.Time) ([]appointment.Appointment, error) {
	return s.list(func(a appointment.Appointment) bool {
		return a.Status == appointment.StatusPending && a.Start.Before(now)
	}), nil
}

// Notes implements notes.Repository.
type Notes struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]notes.Note
}

var _ notes.Repository = (*Notes)(nil)

func (s *Notes) Create(_ context.Context, n *notes.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[n.ID] = *n
	return nil
}

func (s *Notes) GetByID(_ context.Context, id uuid.UUID) (*notes.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.rows[id]
	if !ok {
		return nil, notes.ErrNoteNotFound
	}
	return &n, nil
}

func (s *Notes) Update(_ context.Context, n *notes.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[n.ID]; !ok {
		return notes.ErrNoteNotFound
	}
	s.rows[n.ID] = *n
	return nil
}

func (s *Notes) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return notes.ErrNoteNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *Notes) ListByAppointment(_ context.Context, appointmentID uuid.UUID) ([]notes.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []notes.Note{}
	for _, n := range s.rows {
		if n.AppointmentID == appointmentID {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b notes.Note) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.String(), a.ID.String())
	})
	return out, nil
}

func (s *Notes) DeleteByAppointment(_ context.Context, appointmentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.rows {
		if n.AppointmentID == appointmentID {
			delete(s.rows, id)
		}
	}
	return nil
}
