package availability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/practitioner-scheduling/internal/apperror"
	"github.com/hackgods/practitioner-scheduling/internal/calendar"
	"github.com/hackgods/practitioner-scheduling/internal/directory"
	"github.com/hackgods/practitioner-scheduling/internal/lock"
	"github.com/hackgods/practitioner-scheduling/internal/recurrence"
)

var (
	ErrInvalidWindow       = apperror.Validation("end time must be after start time")
	ErrClockOutOfRange     = apperror.Validation("times must lie between 00:00 and 24:00")
	ErrBlockTooShort       = apperror.Validation(fmt.Sprintf("availability block must last at least %d minutes", MinBlockMinutes))
	ErrInvalidKind         = apperror.Validation("kind must be workable or non_workable")
	ErrReasonRequired      = apperror.Validation("reason is required for non-workable blocks")
	ErrMissingDate         = apperror.Validation("date is required")
	ErrMissingPractitioner = apperror.Validation("practitioner_id is required")
	ErrInvalidRange        = apperror.Validation("date_from must not be after date_to")
	ErrBlockOverlap        = apperror.Conflict("availability block overlaps an existing block")
	ErrBlockHasPending     = apperror.Conflict("availability block has pending appointments inside it")
)

// CreateInput describes a block staff want to declare.
type CreateInput struct {
	PractitionerID uuid.UUID
	Date           calendar.Date
	Start          calendar.Clock
	End            calendar.Clock
	Kind           Kind
	Reason         string
}

type Service struct {
	repo         Repository
	appointments AppointmentReader
	directory    directory.Directory
	locker       lock.Locker
	logger       *zap.Logger
	now          func() time.Time
}

type Option func(*Service)

// WithDirectory makes the service confirm practitioners before writing.
func WithDirectory(d directory.Directory) Option {
	return func(s *Service) { s.directory = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, appointments AppointmentReader, locker lock.Locker, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		appointments: appointments,
		locker:       locker,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validate(b Block) error {
	if b.PractitionerID == uuid.Nil {
		return ErrMissingPractitioner
	}
	if b.Date.IsZero() {
		return ErrMissingDate
	}
	if err := validateHours(b.Window()); err != nil {
		return err
	}
	if !b.Kind.Valid() {
		return ErrInvalidKind
	}
	if b.Kind == KindNonWorkable && strings.TrimSpace(b.Reason) == "" {
		return ErrReasonRequired
	}
	return nil
}

func validateHours(hours calendar.Window) error {
	if !hours.Start.Valid() || !hours.End.Valid() {
		return ErrClockOutOfRange
	}
	if hours.End <= hours.Start {
		return ErrInvalidWindow
	}
	if hours.Minutes() < MinBlockMinutes {
		return ErrBlockTooShort
	}
	return nil
}

// overlapping returns the first block in existing that overlaps b, skipping b itself.
func overlapping(existing []Block, b Block) *Block {
	for i := range existing {
		if existing[i].ID == b.ID {
			continue
		}
		if calendar.Overlaps(existing[i].Start, existing[i].End, b.Start, b.End) {
			return &existing[i]
		}
	}
	return nil
}

// Create declares a new block after checking it against the practitioner's day.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Block, error) {
	b := Block{
		ID:             uuid.New(),
		PractitionerID: in.PractitionerID,
		Date:           in.Date,
		Start:          in.Start,
		End:            in.End,
		Kind:           in.Kind,
		Reason:         strings.TrimSpace(in.Reason),
	}
	if err := validate(b); err != nil {
		return nil, err
	}
	if err := directory.RequirePractitioner(ctx, s.directory, b.PractitionerID); err != nil {
		return nil, err
	}

	keys := []string{lock.PractitionerDay(b.PractitionerID, b.Date)}
	err := lock.Run(ctx, s.locker, keys, func(ctx context.Context) error {
		existing, err := s.repo.ListByDate(ctx, b.PractitionerID, b.Date)
		if err != nil {
			return fmt.Errorf("list blocks: %w", err)
		}
		if overlapping(existing, b) != nil {
			return ErrBlockOverlap
		}

		now := s.now()
		b.CreatedAt, b.UpdatedAt = now, now
		if err := s.repo.Create(ctx, &b); err != nil {
			return fmt.Errorf("create block: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("availability block created",
		zap.String("block_id", b.ID.String()),
		zap.String("practitioner_id", b.PractitionerID.String()),
		zap.String("date", b.Date.String()),
		zap.String("window", b.Start.String()+"-"+b.End.String()),
		zap.String("kind", string(b.Kind)),
	)
	return &b, nil
}

// Update merges changes into a block and re-validates the result, excluding
// the block itself from the overlap scan.
func (s *Service) Update(ctx context.Context, id uuid.UUID, changes Changes) (*Block, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	merged := changes.apply(*current)
	merged.Reason = strings.TrimSpace(merged.Reason)
	if err := validate(merged); err != nil {
		return nil, err
	}

	keys := []string{
		lock.PractitionerDay(current.PractitionerID, current.Date),
		lock.PractitionerDay(merged.PractitionerID, merged.Date),
	}
	err = lock.Run(ctx, s.locker, keys, func(ctx context.Context) error {
		// Re-read under the lock; the block may have changed meanwhile.
		fresh, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := stillOn(*current, *fresh); err != nil {
			return err
		}
		merged = changes.apply(*fresh)
		merged.Reason = strings.TrimSpace(merged.Reason)
		if err := validate(merged); err != nil {
			return err
		}
		if err := s.checkStranded(ctx, *fresh, merged); err != nil {
			return err
		}

		existing, err := s.repo.ListByDate(ctx, merged.PractitionerID, merged.Date)
		if err != nil {
			return fmt.Errorf("list blocks: %w", err)
		}
		if overlapping(existing, merged) != nil {
			return ErrBlockOverlap
		}

		merged.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, &merged); err != nil {
			return fmt.Errorf("update block: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("availability block updated",
		zap.String("block_id", merged.ID.String()),
		zap.String("practitioner_id", merged.PractitionerID.String()),
		zap.String("date", merged.Date.String()),
	)
	return &merged, nil
}

// checkStranded refuses an edit that would leave a pending appointment held by
// the old block outside the new one.
func (s *Service) checkStranded(ctx context.Context, before, after Block) error {
	if before.Kind != KindWorkable {
		return nil
	}
	pending, err := s.appointments.PendingWindows(ctx, before.PractitionerID, before.Date)
	if err != nil {
		return fmt.Errorf("load pending appointments: %w", err)
	}
	keeps := after.Kind == KindWorkable &&
		after.PractitionerID == before.PractitionerID &&
		after.Date == before.Date
	for _, w := range pending {
		if !before.Window().Contains(w) {
			continue
		}
		if !keeps || !after.Window().Contains(w) {
			return ErrBlockHasPending
		}
	}
	return nil
}

// Remove soft-deletes a block unless a pending appointment lies inside it.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	keys := []string{lock.PractitionerDay(current.PractitionerID, current.Date)}
	err = lock.Run(ctx, s.locker, keys, func(ctx context.Context) error {
		b, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := stillOn(*current, *b); err != nil {
			return err
		}
		pending, err := s.appointments.PendingWindows(ctx, b.PractitionerID, b.Date)
		if err != nil {
			return fmt.Errorf("load pending appointments: %w", err)
		}
		for _, w := range pending {
			if b.Window().Contains(w) {
				return ErrBlockHasPending
			}
		}
		if err := s.repo.SoftDelete(ctx, b.ID, s.now()); err != nil {
			return fmt.Errorf("delete block: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("availability block deleted",
		zap.String("block_id", id.String()),
		zap.String("practitioner_id", current.PractitionerID.String()),
		zap.String("date", current.Date.String()),
	)
	return nil
}

func (s *Service) ByID(ctx context.Context, id uuid.UUID) (*Block, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ByDate(ctx context.Context, d calendar.Date, practitionerID uuid.UUID) ([]Block, error) {
	return s.repo.ListByDate(ctx, practitionerID, d)
}

func (s *Service) ByRange(ctx context.Context, from, to calendar.Date, practitionerID uuid.UUID) ([]Block, error) {
	if from.After(to) {
		return nil, ErrInvalidRange
	}
	return s.repo.ListByRange(ctx, practitionerID, from, to)
}

func (s *Service) ByPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]Block, error) {
	if practitionerID == uuid.Nil {
		return nil, ErrMissingPractitioner
	}
	return s.repo.ListByPractitioner(ctx, practitionerID)
}

// WorkableBlocks returns the practitioner's WORKABLE blocks for d ordered by start.
func (s *Service) WorkableBlocks(ctx context.Context, practitionerID uuid.UUID, d calendar.Date) ([]Block, error) {
	all, err := s.repo.ListByDate(ctx, practitionerID, d)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	out := all[:0]
	for _, b := range all {
		if b.Kind == KindWorkable {
			out = append(out, b)
		}
	}
	return out, nil
}

// ValidateContainment reports whether [start, end) lies inside a WORKABLE
// block of the practitioner on d. excludeBlockID, when set, is ignored.
func (s *Service) ValidateContainment(ctx context.Context, d calendar.Date, start, end calendar.Clock, practitionerID uuid.UUID, excludeBlockID *uuid.UUID) (bool, error) {
	blocks, err := s.WorkableBlocks(ctx, practitionerID, d)
	if err != nil {
		return false, err
	}
	want := calendar.Window{Start: start, End: end}
	for _, b := range blocks {
		if excludeBlockID != nil && b.ID == *excludeBlockID {
			continue
		}
		if b.Window().Contains(want) {
			return true, nil
		}
	}
	return false, nil
}

// GenerateAutomatic creates one WORKABLE block with the given hours on every
// Monday to Friday in [from, to]. Days that would overlap an existing block are
// skipped silently.
func (s *Service) GenerateAutomatic(ctx context.Context, practitionerID uuid.UUID, from, to calendar.Date, hours calendar.Window) ([]Block, error) {
	if practitionerID == uuid.Nil {
		return nil, ErrMissingPractitioner
	}
	if from.After(to) {
		return nil, ErrInvalidRange
	}
	if err := validateHours(hours); err != nil {
		return nil, err
	}

	var candidates []recurrence.Candidate
	for _, d := range calendar.Days(from, to) {
		if d.ISOWeekday() <= 5 {
			candidates = append(candidates, recurrence.Candidate{Date: d, Window: hours})
		}
	}

	res, err := s.insertCandidates(ctx, practitionerID, candidates)
	if err != nil {
		return nil, err
	}
	return res.Blocks, nil
}

// GenerateRecurring expands rule over [from, to] and inserts every candidate
// that does not overlap an existing block.
func (s *Service) GenerateRecurring(ctx context.Context, practitionerID uuid.UUID, rule recurrence.Rule, from, to calendar.Date, hours calendar.Window) (*GenerateResult, error) {
	if practitionerID == uuid.Nil {
		return nil, ErrMissingPractitioner
	}
	if err := validateHours(hours); err != nil {
		return nil, err
	}
	candidates, err := recurrence.Expand(rule, from, to, hours)
	if err != nil {
		return nil, err
	}

	res, err := s.insertCandidates(ctx, practitionerID, candidates)
	if err != nil {
		return nil, err
	}
	s.logger.Info("recurring availability generated",
		zap.String("practitioner_id", practitionerID.String()),
		zap.String("rule", rule.Describe()),
		zap.Int("created", res.Created),
		zap.Int("candidates", len(candidates)),
	)
	return res, nil
}

func (s *Service) insertCandidates(ctx context.Context, practitionerID uuid.UUID, candidates []recurrence.Candidate) (*GenerateResult, error) {
	res := &GenerateResult{Blocks: []Block{}}
	if len(candidates) == 0 {
		return res, nil
	}
	if err := directory.RequirePractitioner(ctx, s.directory, practitionerID); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(candidates))
	for _, c := range candidates {
		keys = append(keys, lock.PractitionerDay(practitionerID, c.Date))
	}

	err := lock.Run(ctx, s.locker, keys, func(ctx context.Context) error {
		existing, err := s.repo.ListByRange(ctx, practitionerID, candidates[0].Date, candidates[len(candidates)-1].Date)
		if err != nil {
			return fmt.Errorf("list blocks: %w", err)
		}
		byDate := make(map[calendar.Date][]Block)
		for _, b := range existing {
			byDate[b.Date] = append(byDate[b.Date], b)
		}

		now := s.now()
		var toInsert []*Block
		for _, c := range candidates {
			b := Block{
				ID:             uuid.New(),
				PractitionerID: practitionerID,
				Date:           c.Date,
				Start:          c.Window.Start,
				End:            c.Window.End,
				Kind:           KindWorkable,
				Reason:         c.Reason,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if overlapping(byDate[c.Date], b) != nil {
				continue
			}
			byDate[c.Date] = append(byDate[c.Date], b)
			toInsert = append(toInsert, &b)
		}
		if len(toInsert) == 0 {
			return nil
		}
		if err := s.repo.CreateMany(ctx, toInsert); err != nil {
			return fmt.Errorf("create blocks: %w", err)
		}
		for _, b := range toInsert {
			res.Blocks = append(res.Blocks, *b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Created = len(res.Blocks)
	s.logger.Info("availability blocks generated",
		zap.String("practitioner_id", practitionerID.String()),
		zap.Int("created", res.Created),
		zap.Int("skipped", len(candidates)-res.Created),
	)
	return res, nil
}

// stillOn reports lock.ErrCalendarBusy when a concurrent update moved the
// block off the practitioner-day locked for current.
func stillOn(current, fresh Block) error {
	if fresh.PractitionerID != current.PractitionerID || fresh.Date != current.Date {
		return lock.ErrCalendarBusy
	}
	return nil
}
