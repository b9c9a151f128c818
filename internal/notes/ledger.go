// Package notes is the append-only audit trail attached to appointments.
package notes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/practitioner-scheduling/internal/apperror"
)

type Note struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	AuthorID      uuid.UUID
	Body          string
	// System notes are written by the scheduling core itself (cancel,
	// absence, reschedule) and cannot be edited or deleted by staff.
	System    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	ErrNoteNotFound = apperror.NotFound("note not found")
	ErrEmptyBody    = apperror.Validation("note body is required")
	ErrSystemNote   = apperror.Validation("system notes cannot be modified")
	ErrNotAuthor    = apperror.Forbidden("only the author may modify this note")
)

type Repository interface {
	Create(ctx context.Context, n *Note) error
	GetByID(ctx context.Context, id uuid.UUID) (*Note, error)
	Update(ctx context.Context, n *Note) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByAppointment is ordered newest first.
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Note, error)
	DeleteByAppointment(ctx context.Context, appointmentID uuid.UUID) error
}

type Ledger struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewLedger(repo Repository, logger *zap.Logger) *Ledger {
	return &Ledger{repo: repo, logger: logger, now: time.Now}
}

// WithClock replaces the ledger's time source.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) Append(ctx context.Context, appointmentID, authorID uuid.UUID, body string, system bool) (*Note, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}

	now := l.now()
	n := &Note{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		AuthorID:      authorID,
		Body:          body,
		System:        system,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := l.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}
	return n, nil
}

func (l *Ledger) List(ctx context.Context, appointmentID uuid.UUID) ([]Note, error) {
	return l.repo.ListByAppointment(ctx, appointmentID)
}

func (l *Ledger) authored(ctx context.Context, id, actor uuid.UUID) (*Note, error) {
	n, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.System {
		return nil, ErrSystemNote
	}
	if n.AuthorID != actor {
		return nil, ErrNotAuthor
	}
	return n, nil
}

// Edit replaces the body of a manual note. Only its author may do so.
func (l *Ledger) Edit(ctx context.Context, id, actor uuid.UUID, body string) (*Note, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}
	n, err := l.authored(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	n.Body = body
	n.UpdatedAt = l.now()
	if err := l.repo.Update(ctx, n); err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	return n, nil
}

// Delete removes a manual note. Only its author may do so.
func (l *Ledger) Delete(ctx context.Context, id, actor uuid.UUID) error {
	if _, err := l.authored(ctx, id, actor); err != nil {
		return err
	}
	if err := l.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	l.logger.Info("note deleted", zap.String("note_id", id.String()), zap.String("actor_id", actor.String()))
	return nil
}

func (l *Ledger) DeleteByAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	return l.repo.DeleteByAppointment(ctx, appointmentID)
}
