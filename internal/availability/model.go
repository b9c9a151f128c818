package availability

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-scheduling/internal/calendar"
)

// Kind says whether a block is time the practitioner can be booked in.
type Kind string

const (
	KindWorkable    Kind = "workable"
	KindNonWorkable Kind = "non_workable"
)

func (k Kind) Valid() bool {
	switch k {
	case KindWorkable, KindNonWorkable:
		return true
	}
	return false
}

// MinBlockMinutes is the shortest block staff may declare.
const MinBlockMinutes = 60

type Block struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	Date           calendar.Date
	Start          calendar.Clock
	End            calendar.Clock
	Kind           Kind
	Reason         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

func (b Block) Window() calendar.Window {
	return calendar.Window{Start: b.Start, End: b.End}
}

// Changes carries the fields of an update; nil fields keep their value.
type Changes struct {
	Date   *calendar.Date
	Start  *calendar.Clock
	End    *calendar.Clock
	Kind   *Kind
	Reason *string
}

func (c Changes) apply(b Block) Block {
	if c.Date != nil {
		b.Date = *c.Date
	}
	if c.Start != nil {
		b.Start = *c.Start
	}
	if c.End != nil {
		b.End = *c.End
	}
	if c.Kind != nil {
		b.Kind = *c.Kind
	}
	if c.Reason != nil {
		b.Reason = *c.Reason
	}
	return b
}

// GenerateResult reports the blocks a bulk generation actually inserted.
type GenerateResult struct {
	Created int
	Blocks  []Block
}
