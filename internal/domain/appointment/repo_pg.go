package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a Repository backed by Postgres.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const apptCols = `id, nhs_number, status, scheduled_time, duration, clinician, department, postcode, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.NHSNumber, &a.Status, &a.ScheduledTime, &a.Duration,
		&a.Clinician, &a.Department, &a.Postcode, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (id, nhs_number, status, scheduled_time, duration, clinician, department, postcode, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.NHSNumber, string(a.Status), a.ScheduledTime, a.Duration,
		a.Clinician, a.Department, a.Postcode, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments SET nhs_number=$2, status=$3, scheduled_time=$4, duration=$5,
			clinician=$6, department=$7, postcode=$8, updated_at=$9
		WHERE id = $1`,
		a.ID, a.NHSNumber, string(a.Status), a.ScheduledTime, a.Duration,
		a.Clinician, a.Department, a.Postcode, a.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	query := `SELECT ` + apptCols + ` FROM appointments WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM appointments WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.NHSNumber != "" {
		query += fmt.Sprintf(` AND nhs_number = $%d`, idx)
		countQuery += fmt.Sprintf(` AND nhs_number = $%d`, idx)
		args = append(args, f.NHSNumber)
		idx++
	}
	if f.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, string(f.Status))
		idx++
	}
	if f.Department != "" {
		query += fmt.Sprintf(` AND LOWER(department) = LOWER($%d)`, idx)
		countQuery += fmt.Sprintf(` AND LOWER(department) = LOWER($%d)`, idx)
		args = append(args, f.Department)
		idx++
	}
	if f.Clinician != "" {
		query += fmt.Sprintf(` AND clinician ILIKE $%d`, idx)
		countQuery += fmt.Sprintf(` AND clinician ILIKE $%d`, idx)
		args = append(args, "%"+f.Clinician+"%")
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY scheduled_time, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListByPatient(ctx context.Context, nhsNumber string) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE nhs_number = $1 ORDER BY scheduled_time, id`, nhsNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) FindOverdue(ctx context.Context, asOf time.Time) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE status = $1 AND scheduled_time < $2 ORDER BY scheduled_time, id`,
		string(StatusScheduled), asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to Status, updatedAt time.Time) (*Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx, `
		UPDATE appointments SET status=$3, updated_at=$4
		WHERE id = $1 AND status = $2
		RETURNING `+apptCols,
		id, string(from), string(to), updatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStatusChanged
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}
