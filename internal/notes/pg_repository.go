package notes

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanNote(row pgx.Row) (*Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.AppointmentID, &n.AuthorID, &n.Body, &n.System, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (r *PgRepository) Create(ctx context.Context, n *Note) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_notes (id, appointment_id, author_id, body, system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.ID, n.AppointmentID, n.AuthorID, n.Body, n.System, n.CreatedAt, n.UpdatedAt)
	return err
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Note, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, author_id, body, system, created_at, updated_at
		FROM appointment_notes
		WHERE id = $1
	`, id)
	return scanNote(row)
}

func (r *PgRepository) Update(ctx context.Context, n *Note) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointment_notes SET body = $2, updated_at = $3 WHERE id = $1
	`, n.ID, n.Body, n.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoteNotFound
	}
	return nil
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointment_notes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoteNotFound
	}
	return nil
}

func (r *PgRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Note, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, author_id, body, system, created_at, updated_at
		FROM appointment_notes
		WHERE appointment_id = $1
		ORDER BY created_at DESC, id DESC
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

func (r *PgRepository) DeleteByAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM appointment_notes WHERE appointment_id = $1`, appointmentID)
	return err
}
