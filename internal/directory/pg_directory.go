package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func (d *PgDirectory) PractitionerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM practitioners WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check practitioner: %w", err)
	}
	return exists, nil
}

func (d *PgDirectory) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check patient: %w", err)
	}
	return exists, nil
}

// ListPractitionerIDs returns up to limit practitioner ids, oldest first.
func (d *PgDirectory) ListPractitionerIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	return d.listIDs(ctx, `SELECT id FROM practitioners ORDER BY created_at, id LIMIT $1`, limit)
}

func (d *PgDirectory) ListPatientIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	return d.listIDs(ctx, `SELECT id FROM patients ORDER BY created_at, id LIMIT $1`, limit)
}

func (d *PgDirectory) listIDs(ctx context.Context, query string, limit int) ([]uuid.UUID, error) {
	rows, err := d.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("collect ids: %w", err)
	}
	return ids, nil
}

// InsertPractitioner and InsertPatient are used by the seeding tool.
func (d *PgDirectory) InsertPractitioner(ctx context.Context, tx pgx.Tx, p Practitioner) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO practitioners (id, name, specialty, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
	`, p.ID, p.Name, p.Specialty)
	return err
}

func (d *PgDirectory) InsertPatient(ctx context.Context, tx pgx.Tx, p Patient) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO patients (id, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
	`, p.ID, p.Name, p.Email)
	return err
}
