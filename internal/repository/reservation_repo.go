package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"motorent/internal/availability"
	"motorent/internal/db"
	"motorent/internal/entities"
)

const reservationColumns = `r.id, r.user_id, r.motor_id, r.start_date, r.duration_days, r.total_price, r.status, r.note, r.created_at, r.updated_at`

// blockingStatuses are the reservation statuses that occupy their dates.
var blockingStatuses = pq.Array([]string{
	string(db.ReservationPending), string(db.ReservationConfirmed), string(db.ReservationCompleted),
})

var activeStatuses = pq.Array([]string{
	string(db.ReservationPending), string(db.ReservationConfirmed),
})

type ReservationRepository struct{}

func NewReservationRepository() *ReservationRepository {
	return &ReservationRepository{}
}

func reservationDest(res *db.Reservation, motorID *sql.NullInt64) []any {
	return []any{&res.ID, &res.UserID, motorID, &res.StartDate, &res.DurationDays, &res.TotalPrice, &res.Status, &res.Note, &res.CreatedAt, &res.UpdatedAt}
}

func scanReservation(s scanner) (*db.Reservation, error) {
	var res db.Reservation
	var motorID sql.NullInt64
	if err := s.Scan(reservationDest(&res, &motorID)...); err != nil {
		return nil, mapErr(err)
	}
	res.MotorID = motorID.Int64
	return &res, nil
}

func (r *ReservationRepository) Get(ctx context.Context, q Querier, id int64) (*db.Reservation, error) {
	return scanReservation(q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations r WHERE r.id = $1`, id))
}

func (r *ReservationRepository) GetForUpdate(ctx context.Context, q Querier, id int64) (*db.Reservation, error) {
	return scanReservation(q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations r WHERE r.id = $1 FOR UPDATE`, id))
}

func (r *ReservationRepository) Create(ctx context.Context, q Querier, res *db.Reservation) error {
	query := `
		INSERT INTO reservations (user_id, motor_id, start_date, duration_days, total_price, status, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	err := q.QueryRowContext(ctx, query,
		res.UserID, res.MotorID, res.StartDate, res.DurationDays, res.TotalPrice, res.Status, res.Note,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	return mapErr(err)
}

func (r *ReservationRepository) UpdateStatus(ctx context.Context, q Querier, id int64, status db.ReservationStatus) error {
	return expectOne(q.ExecContext(ctx, `UPDATE reservations SET status = $2, updated_at = NOW() WHERE id = $1`, id, status))
}

// ListBlocking returns reservations that occupy dates overlapping p.
// motorID 0 means every motor; excludeID skips one reservation.
// The SQL predicate mirrors availability.Period.Overlaps and callers
// re-apply the Go predicate on the result.
func (r *ReservationRepository) ListBlocking(ctx context.Context, q Querier, motorID int64, p availability.Period, excludeID int64) ([]db.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations r
		WHERE r.status = ANY($1)
		  AND r.motor_id IS NOT NULL
		  AND NOT ((r.start_date + r.duration_days) < $2::date OR $3::date < r.start_date)
		  AND ($4 = 0 OR r.motor_id = $4)
		  AND r.id <> $5
		ORDER BY r.motor_id, r.start_date`

	rows, err := q.QueryContext(ctx, query, blockingStatuses, p.Start, p.End, motorID, excludeID)
	if err != nil {
		return nil, fmt.Errorf("error querying blocking reservations: %w", err)
	}
	defer rows.Close()

	var out []db.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning reservation: %w", err)
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// ActiveIDsForMotor lists pending and confirmed reservations of a motor.
func (r *ReservationRepository) ActiveIDsForMotor(ctx context.Context, q Querier, motorID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM reservations WHERE motor_id = $1 AND status = ANY($2) ORDER BY id`, motorID, activeStatuses)
	if err != nil {
		return nil, fmt.Errorf("error querying active reservations: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning reservation ID: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ReservationRepository) CountForUser(ctx context.Context, q Querier, userID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE user_id = $1`, userID).Scan(&n)
	return n, mapErr(err)
}

const reservationDetailQuery = `
	SELECT ` + reservationColumns + `,
		u.name, u.email, u.phone,
		COALESCE(m.brand, ''), COALESCE(m.type, ''),
		p.id, p.status
	FROM reservations r
	JOIN users u ON u.id = r.user_id
	LEFT JOIN motors m ON m.id = r.motor_id
	LEFT JOIN payments p ON p.reservation_id = r.id`

func scanReservationDetail(s scanner) (*entities.ReservationDetail, error) {
	var d entities.ReservationDetail
	var motorID, paymentID sql.NullInt64
	var paymentStatus sql.NullString
	dest := append(reservationDest(&d.Reservation, &motorID),
		&d.UserName, &d.UserEmail, &d.UserPhone,
		&d.MotorBrand, &d.MotorType,
		&paymentID, &paymentStatus,
	)
	if err := s.Scan(dest...); err != nil {
		return nil, mapErr(err)
	}
	d.MotorID = motorID.Int64
	d.EndDate = d.Reservation.EndDate()
	if paymentID.Valid {
		id := paymentID.Int64
		st := db.PaymentStatus(paymentStatus.String)
		d.PaymentID, d.PaymentStatus = &id, &st
	}
	return &d, nil
}

func (r *ReservationRepository) GetDetail(ctx context.Context, q Querier, id int64) (*entities.ReservationDetail, error) {
	return scanReservationDetail(q.QueryRowContext(ctx, reservationDetailQuery+` WHERE r.id = $1`, id))
}

// List filters by free text over the renter and the motor, and by status.
func (r *ReservationRepository) List(ctx context.Context, q Querier, f entities.ReservationFilter) ([]entities.ReservationDetail, error) {
	var w filter
	if f.Search != "" {
		p := likePattern(f.Search)
		w.add("(u.name ILIKE ? OR u.email ILIKE ? OR u.phone ILIKE ? OR m.brand ILIKE ? OR m.type ILIKE ?)", p, p, p, p, p)
	}
	if f.Status != "" {
		w.add("r.status = ?", f.Status)
	}
	return r.listDetails(ctx, q, reservationDetailQuery+w.where()+` ORDER BY r.created_at DESC, r.id DESC`, w.args...)
}

func (r *ReservationRepository) ListForUser(ctx context.Context, q Querier, userID int64) ([]entities.ReservationDetail, error) {
	return r.listDetails(ctx, q, reservationDetailQuery+` WHERE r.user_id = $1 ORDER BY r.start_date DESC, r.id DESC`, userID)
}

func (r *ReservationRepository) listDetails(ctx context.Context, q Querier, query string, args ...any) ([]entities.ReservationDetail, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying reservations: %w", err)
	}
	defer rows.Close()

	list := []entities.ReservationDetail{}
	for rows.Next() {
		d, err := scanReservationDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning reservation: %w", err)
		}
		list = append(list, *d)
	}
	return list, rows.Err()
}
