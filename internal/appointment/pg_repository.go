package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// exclusion_violation, raised by the no-overlap constraint on appointments.
const pgExclusionViolation = "23P01"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, practitioner_id, patient_id, creator_id, start_at, duration_minutes, motive, status, created_at, updated_at, deleted_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a      Appointment
		motive *string
	)

	err := row.Scan(
		&a.ID,
		&a.PractitionerID,
		&a.PatientID,
		&a.CreatorID,
		&a.Start,
		&a.DurationMinutes,
		&motive,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if motive != nil {
		a.Motive = *motive
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
		return ErrOverlap
	}
	return err
}

func statusStrings(statuses []AppointmentStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

// Core operations

func (r *PgRepository) Create(ctx context.Context, a *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (id, practitioner_id, patient_id, creator_id, start_at, end_at, duration_minutes, motive, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, a.PractitionerID, a.PatientID, a.CreatorID, a.Start, a.End(), a.DurationMinutes,
		nullableText(a.Motive), a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET practitioner_id = $2,
		    patient_id = $3,
		    start_at = $4,
		    end_at = $5,
		    duration_minutes = $6,
		    motive = $7,
		    updated_at = $8
		WHERE id = $1 AND deleted_at IS NULL
	`, a.ID, a.PractitionerID, a.PatientID, a.Start, a.End(), a.DurationMinutes, nullableText(a.Motive), a.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2 AND deleted_at IS NULL
		RETURNING `+appointmentColumns,
		id, from, to, at,
	)
	return scanAppointment(row)
}

func (r *PgRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// Queries

func (r *PgRepository) ListStarting(ctx context.Context, practitionerID uuid.UUID, from, to time.Time, statuses []AppointmentStatus) ([]Appointment, error) {
	var pid *uuid.UUID
	if practitionerID != uuid.Nil {
		pid = &practitionerID
	}
	var st []string
	if len(statuses) > 0 {
		st = statusStrings(statuses)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE deleted_at IS NULL
		  AND start_at >= $1 AND start_at < $2
		  AND ($3::uuid IS NULL OR practitioner_id = $3)
		  AND ($4::text[] IS NULL OR status = ANY($4))
		ORDER BY start_at, practitioner_id
	`, from, to, pid, st)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) Find(ctx context.Context, f Filter) ([]Appointment, int, error) {
	conds := []string{"deleted_at IS NULL"}
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.PractitionerID != nil {
		add("practitioner_id = $%d", *f.PractitionerID)
	}
	if f.PatientID != nil {
		add("patient_id = $%d", *f.PatientID)
	}
	if len(f.Statuses) > 0 {
		add("status = ANY($%d)", statusStrings(f.Statuses))
	}
	if f.From != nil {
		add("start_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("start_at < $%d", *f.To)
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	args = append(args, f.PerPage, f.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM appointments
		WHERE %s
		ORDER BY start_at, id
		LIMIT $%d OFFSET $%d
	`, appointmentColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectAppointments(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PgRepository) ListOverdue(ctx context.Context, now time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE deleted_at IS NULL
		  AND status = $1
		  AND start_at < $2
		ORDER BY start_at
	`, StatusPending, now)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}
