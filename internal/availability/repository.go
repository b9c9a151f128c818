package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-scheduling/internal/apperror"
	"github.com/hackgods/practitioner-scheduling/internal/calendar"
)

var ErrBlockNotFound = apperror.NotFound("availability block not found")

// Repository contains all storage interactions needed by the service.
// Soft-deleted blocks are invisible to every read.
type Repository interface {
	Create(ctx context.Context, b *Block) error
	// CreateMany inserts all blocks or none.
	CreateMany(ctx context.Context, blocks []*Block) error
	GetByID(ctx context.Context, id uuid.UUID) (*Block, error)
	Update(ctx context.Context, b *Block) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error

	// Listings are ordered by date then start time. A nil practitioner id
	// matches every practitioner.
	ListByDate(ctx context.Context, practitionerID uuid.UUID, d calendar.Date) ([]Block, error)
	ListByRange(ctx context.Context, practitionerID uuid.UUID, from, to calendar.Date) ([]Block, error)
	ListByPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]Block, error)
}

// AppointmentReader is the read-only view of booked appointments the
// service needs before it may remove a block.
type AppointmentReader interface {
	PendingWindows(ctx context.Context, practitionerID uuid.UUID, d calendar.Date) ([]calendar.Window, error)
}
