package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/practitioner-scheduling/internal/calendar"
)

// exclusion_violation, raised by the no-overlap constraint on availability_blocks.
const pgExclusionViolation = "23P01"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const blockColumns = `id, practitioner_id, date, start_minute, end_minute, kind, reason, created_at, updated_at, deleted_at`

func scanBlock(row pgx.Row) (*Block, error) {
	var (
		b      Block
		day    time.Time
		start  int
		end    int
		reason *string
	)

	err := row.Scan(
		&b.ID,
		&b.PractitionerID,
		&day,
		&start,
		&end,
		&b.Kind,
		&reason,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}

	b.Date = calendar.DateOf(day)
	b.Start = calendar.Clock(start)
	b.End = calendar.Clock(end)
	if reason != nil {
		b.Reason = *reason
	}
	return &b, nil
}

func collectBlocks(rows pgx.Rows) ([]Block, error) {
	defer rows.Close()

	result := []Block{}
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullableReason(r string) *string {
	if r == "" {
		return nil
	}
	return &r
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
		return ErrBlockOverlap
	}
	return err
}

const insertBlock = `
	INSERT INTO availability_blocks (id, practitioner_id, date, start_minute, end_minute, kind, reason, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

func blockArgs(b *Block) []any {
	return []any{
		b.ID, b.PractitionerID, b.Date.In(time.UTC), int(b.Start), int(b.End),
		b.Kind, nullableReason(b.Reason), b.CreatedAt, b.UpdatedAt,
	}
}

func (r *PgRepository) Create(ctx context.Context, b *Block) error {
	if _, err := r.pool.Exec(ctx, insertBlock, blockArgs(b)...); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r *PgRepository) CreateMany(ctx context.Context, blocks []*Block) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, b := range blocks {
		batch.Queue(insertBlock, blockArgs(b)...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return mapWriteError(err)
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Block, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+blockColumns+`
		FROM availability_blocks
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return scanBlock(row)
}

func (r *PgRepository) Update(ctx context.Context, b *Block) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE availability_blocks
		SET date = $2,
		    start_minute = $3,
		    end_minute = $4,
		    kind = $5,
		    reason = $6,
		    updated_at = $7
		WHERE id = $1 AND deleted_at IS NULL
	`, b.ID, b.Date.In(time.UTC), int(b.Start), int(b.End), b.Kind, nullableReason(b.Reason), b.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

func (r *PgRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE availability_blocks
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

func (r *PgRepository) ListByDate(ctx context.Context, practitionerID uuid.UUID, d calendar.Date) ([]Block, error) {
	return r.ListByRange(ctx, practitionerID, d, d)
}

func (r *PgRepository) ListByRange(ctx context.Context, practitionerID uuid.UUID, from, to calendar.Date) ([]Block, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+blockColumns+`
		FROM availability_blocks
		WHERE deleted_at IS NULL
		  AND date BETWEEN $1 AND $2
		  AND ($3::uuid IS NULL OR practitioner_id = $3)
		ORDER BY date, start_minute, practitioner_id
	`, from.In(time.UTC), to.In(time.UTC), nullableID(practitionerID))
	if err != nil {
		return nil, err
	}
	return collectBlocks(rows)
}

func (r *PgRepository) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]Block, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+blockColumns+`
		FROM availability_blocks
		WHERE deleted_at IS NULL
		  AND practitioner_id = $1
		ORDER BY date, start_minute
	`, practitionerID)
	if err != nil {
		return nil, err
	}
	return collectBlocks(rows)
}

func nullableID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
