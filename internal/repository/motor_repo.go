package repository

import (
	"context"
	"fmt"

	"motorent/internal/db"
	"motorent/internal/entities"
)

const motorColumns = `id, brand, type, price_per_day, specs, description, image_ref, status, created_at, updated_at`

type MotorRepository struct{}

func NewMotorRepository() *MotorRepository {
	return &MotorRepository{}
}

func scanMotor(s scanner) (*db.Motor, error) {
	var m db.Motor
	err := s.Scan(&m.ID, &m.Brand, &m.Type, &m.PricePerDay, &m.Specs, &m.Description, &m.ImageRef, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (r *MotorRepository) Get(ctx context.Context, q Querier, id int64) (*db.Motor, error) {
	return scanMotor(q.QueryRowContext(ctx, `SELECT `+motorColumns+` FROM motors WHERE id = $1`, id))
}

// GetForUpdate locks the motor row until the surrounding transaction ends.
// Every booking decision for a motor serialises on this lock.
func (r *MotorRepository) GetForUpdate(ctx context.Context, q Querier, id int64) (*db.Motor, error) {
	return scanMotor(q.QueryRowContext(ctx, `SELECT `+motorColumns+` FROM motors WHERE id = $1 FOR UPDATE`, id))
}

func (r *MotorRepository) List(ctx context.Context, q Querier, f entities.MotorFilter) ([]db.Motor, error) {
	var w filter
	if f.Search != "" {
		w.add("(brand ILIKE ? OR type ILIKE ?)", likePattern(f.Search), likePattern(f.Search))
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}

	rows, err := q.QueryContext(ctx, `SELECT `+motorColumns+` FROM motors`+w.where()+` ORDER BY brand, type, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("error querying motors: %w", err)
	}
	defer rows.Close()

	motors := []db.Motor{}
	for rows.Next() {
		m, err := scanMotor(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning motor: %w", err)
		}
		motors = append(motors, *m)
	}
	return motors, rows.Err()
}

func (r *MotorRepository) Create(ctx context.Context, q Querier, m *db.Motor) error {
	query := `
		INSERT INTO motors (brand, type, price_per_day, specs, description, image_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	err := q.QueryRowContext(ctx, query,
		m.Brand, m.Type, m.PricePerDay, m.Specs, m.Description, m.ImageRef, m.Status,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	return mapErr(err)
}

func (r *MotorRepository) Update(ctx context.Context, q Querier, m *db.Motor) error {
	query := `
		UPDATE motors
		SET brand = $2, type = $3, price_per_day = $4, specs = $5, description = $6, image_ref = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := q.QueryRowContext(ctx, query,
		m.ID, m.Brand, m.Type, m.PricePerDay, m.Specs, m.Description, m.ImageRef,
	).Scan(&m.UpdatedAt)
	return mapErr(err)
}

func (r *MotorRepository) UpdateStatus(ctx context.Context, q Querier, id int64, status db.MotorStatus) error {
	return expectOne(q.ExecContext(ctx, `UPDATE motors SET status = $2, updated_at = NOW() WHERE id = $1`, id, status))
}

func (r *MotorRepository) Delete(ctx context.Context, q Querier, id int64) error {
	return expectOne(q.ExecContext(ctx, `DELETE FROM motors WHERE id = $1`, id))
}
