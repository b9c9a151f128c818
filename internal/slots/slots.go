// Package slots carves bookable slots out of a practitioner's workable time.
package slots

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/practitioner-scheduling/internal/availability"
	"github.com/hackgods/practitioner-scheduling/internal/calendar"
)

// Supported slot lengths in minutes. Anything else falls back to DefaultDuration.
const (
	DefaultDuration = 30
	LongDuration    = 60
)

type Slot struct {
	Start           calendar.Clock `json:"start"`
	End             calendar.Clock `json:"end"`
	DurationMinutes int            `json:"duration"`
}

func (s Slot) Window() calendar.Window {
	return calendar.Window{Start: s.Start, End: s.End}
}

// BlockSource yields the WORKABLE blocks of a practitioner day, ordered by start.
type BlockSource interface {
	WorkableBlocks(ctx context.Context, practitionerID uuid.UUID, d calendar.Date) ([]availability.Block, error)
}

// BookedSource yields the windows taken by non-CANCELLED appointments.
type BookedSource interface {
	ActiveWindows(ctx context.Context, practitionerID uuid.UUID, d calendar.Date) ([]calendar.Window, error)
}

// NormalizeDuration clamps a requested length to one of the supported values.
func NormalizeDuration(minutes int) int {
	switch minutes {
	case DefaultDuration, LongDuration:
		return minutes
	default:
		return DefaultDuration
	}
}

// Carve splits every block into back-to-back slots of duration aligned to the
// block start and drops the ones that overlap a booked window. No slot
// crosses a block boundary; a trailing remainder shorter than duration is
// discarded.
func Carve(blocks []calendar.Window, booked []calendar.Window, duration int) []Slot {
	out := []Slot{}
	for _, b := range blocks {
		for t := b.Start; t.Add(duration) <= b.End; t = t.Add(duration) {
			s := Slot{Start: t, End: t.Add(duration), DurationMinutes: duration}
			if taken(s.Window(), booked) {
				continue
			}
			out = append(out, s)
		}
	}
	return out
}

func taken(w calendar.Window, booked []calendar.Window) bool {
	for _, b := range booked {
		if w.Overlaps(b) {
			return true
		}
	}
	return false
}

type Generator struct {
	blocks BlockSource
	booked BookedSource
	logger *zap.Logger
}

func NewGenerator(blocks BlockSource, booked BookedSource, logger *zap.Logger) *Generator {
	return &Generator{blocks: blocks, booked: booked, logger: logger}
}

// Generate returns the free slots of practitionerID on d, ordered by start.
func (g *Generator) Generate(ctx context.Context, d calendar.Date, practitionerID uuid.UUID, duration int) ([]Slot, error) {
	if practitionerID == uuid.Nil {
		return nil, availability.ErrMissingPractitioner
	}
	if d.IsZero() {
		return nil, availability.ErrMissingDate
	}
	duration = NormalizeDuration(duration)

	blocks, err := g.blocks.WorkableBlocks(ctx, practitionerID, d)
	if err != nil {
		return nil, fmt.Errorf("load workable blocks: %w", err)
	}
	if len(blocks) == 0 {
		return []Slot{}, nil
	}
	windows := make([]calendar.Window, 0, len(blocks))
	for _, b := range blocks {
		windows = append(windows, b.Window())
	}

	booked, err := g.booked.ActiveWindows(ctx, practitionerID, d)
	if err != nil {
		return nil, fmt.Errorf("load booked windows: %w", err)
	}

	out := Carve(windows, booked, duration)
	g.logger.Debug("slots generated",
		zap.String("practitioner_id", practitionerID.String()),
		zap.String("date", d.String()),
		zap.Int("duration", duration),
		zap.Int("count", len(out)),
	)
	return out, nil
}
