// Package directory is the practitioner/patient lookup the scheduling core
// consults before accepting a booking. It exposes existence checks only.
package directory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-scheduling/internal/apperror"
)

var (
	ErrPractitionerNotFound = apperror.NotFound("practitioner not found")
	ErrPatientNotFound      = apperror.NotFound("patient not found")
)

type Directory interface {
	PractitionerExists(ctx context.Context, id uuid.UUID) (bool, error)
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type Practitioner struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RequirePractitioner returns ErrPractitionerNotFound unless id is known.
// A nil directory accepts every id.
func RequirePractitioner(ctx context.Context, d Directory, id uuid.UUID) error {
	if d == nil {
		return nil
	}
	ok, err := d.PractitionerExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPractitionerNotFound
	}
	return nil
}

// RequirePatient returns ErrPatientNotFound unless id is known.
func RequirePatient(ctx context.Context, d Directory, id uuid.UUID) error {
	if d == nil {
		return nil
	}
	ok, err := d.PatientExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPatientNotFound
	}
	return nil
}

// Memory is an in-process Directory.
type Memory struct {
	mu            sync.RWMutex
	practitioners map[uuid.UUID]Practitioner
	patients      map[uuid.UUID]Patient
}

func NewMemory() *Memory {
	return &Memory{
		practitioners: make(map[uuid.UUID]Practitioner),
		patients:      make(map[uuid.UUID]Patient),
	}
}

func (m *Memory) AddPractitioner(p Practitioner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.practitioners[p.ID] = p
}

func (m *Memory) AddPatient(p Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = p
}

func (m *Memory) PractitionerExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.practitioners[id]
	return ok, nil
}

func (m *Memory) PatientExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.patients[id]
	return ok, nil
}
