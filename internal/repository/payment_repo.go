package repository

import (
	"context"
	"database/sql"
	"fmt"

	"motorent/internal/db"
	"motorent/internal/entities"
)

const paymentColumns = `p.id, p.reservation_id, p.amount, p.proof_ref, p.note, p.status, p.admin_note, p.created_at, p.updated_at`

type PaymentRepository struct{}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{}
}

func paymentDest(p *db.Payment) []any {
	return []any{&p.ID, &p.ReservationID, &p.Amount, &p.ProofRef, &p.Note, &p.Status, &p.AdminNote, &p.CreatedAt, &p.UpdatedAt}
}

func scanPayment(s scanner) (*db.Payment, error) {
	var p db.Payment
	if err := s.Scan(paymentDest(&p)...); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *PaymentRepository) Get(ctx context.Context, q Querier, id int64) (*db.Payment, error) {
	return scanPayment(q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments p WHERE p.id = $1`, id))
}

func (r *PaymentRepository) GetForUpdate(ctx context.Context, q Querier, id int64) (*db.Payment, error) {
	return scanPayment(q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments p WHERE p.id = $1 FOR UPDATE`, id))
}

// GetByReservation returns ErrNotFound when no proof was ever submitted.
func (r *PaymentRepository) GetByReservation(ctx context.Context, q Querier, reservationID int64) (*db.Payment, error) {
	return scanPayment(q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments p WHERE p.reservation_id = $1`, reservationID))
}

func (r *PaymentRepository) Create(ctx context.Context, q Querier, p *db.Payment) error {
	query := `
		INSERT INTO payments (reservation_id, amount, proof_ref, note, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	err := q.QueryRowContext(ctx, query,
		p.ReservationID, p.Amount, p.ProofRef, p.Note, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return mapErr(err)
}

// ReplaceProof swaps the proof of an existing payment and puts it back
// in review.
func (r *PaymentRepository) ReplaceProof(ctx context.Context, q Querier, id int64, proofRef, note string) error {
	query := `
		UPDATE payments
		SET proof_ref = $2, note = $3, status = 'pending', admin_note = '', updated_at = NOW()
		WHERE id = $1`
	return expectOne(q.ExecContext(ctx, query, id, proofRef, note))
}

func (r *PaymentRepository) Decide(ctx context.Context, q Querier, id int64, status db.PaymentStatus, adminNote string) error {
	query := `UPDATE payments SET status = $2, admin_note = $3, updated_at = NOW() WHERE id = $1`
	return expectOne(q.ExecContext(ctx, query, id, status, adminNote))
}

const paymentDetailQuery = `
	SELECT ` + paymentColumns + `,
		r.status, r.start_date, r.duration_days,
		u.id, u.name, u.email, u.phone,
		r.motor_id, COALESCE(m.brand, ''), COALESCE(m.type, '')
	FROM payments p
	JOIN reservations r ON r.id = p.reservation_id
	JOIN users u ON u.id = r.user_id
	LEFT JOIN motors m ON m.id = r.motor_id`

func scanPaymentDetail(s scanner) (*entities.PaymentDetail, error) {
	var d entities.PaymentDetail
	var motorID sql.NullInt64
	dest := append(paymentDest(&d.Payment),
		&d.ReservationStatus, &d.StartDate, &d.DurationDays,
		&d.UserID, &d.UserName, &d.UserEmail, &d.UserPhone,
		&motorID, &d.MotorBrand, &d.MotorType,
	)
	if err := s.Scan(dest...); err != nil {
		return nil, mapErr(err)
	}
	d.MotorID = motorID.Int64
	return &d, nil
}

func (r *PaymentRepository) GetDetail(ctx context.Context, q Querier, id int64) (*entities.PaymentDetail, error) {
	return scanPaymentDetail(q.QueryRowContext(ctx, paymentDetailQuery+` WHERE p.id = $1`, id))
}

func (r *PaymentRepository) List(ctx context.Context, q Querier, f entities.PaymentFilter) ([]entities.PaymentDetail, error) {
	var w filter
	if f.Search != "" {
		p := likePattern(f.Search)
		w.add("(u.name ILIKE ? OR u.email ILIKE ? OR m.brand ILIKE ? OR m.type ILIKE ?)", p, p, p, p)
	}
	if f.Status != "" {
		w.add("p.status = ?", f.Status)
	}

	rows, err := q.QueryContext(ctx, paymentDetailQuery+w.where()+` ORDER BY p.updated_at DESC, p.id DESC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("error querying payments: %w", err)
	}
	defer rows.Close()

	list := []entities.PaymentDetail{}
	for rows.Next() {
		d, err := scanPaymentDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning payment: %w", err)
		}
		list = append(list, *d)
	}
	return list, rows.Err()
}
