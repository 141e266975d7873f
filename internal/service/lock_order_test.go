package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"motorent/internal/config"
	"motorent/internal/entities"
	apperr "motorent/internal/errors"
	"motorent/internal/repository"
)

// Decide must take the reservation lock before the payment lock, in the
// same order as SubmitProof, and a deadlock abort is retryable.
func TestDecideLocksReservationBeforePayment(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	tx := repository.NewTransactor(conn, time.Second)
	st := NewStores()
	res := NewReservationService(tx, st, config.HoldOnPayment, time.UTC, nil)
	payments := NewPaymentService(tx, st, nil, nil, res, nil)

	now := time.Now()
	paymentCols := []string{"id", "reservation_id", "amount", "proof_ref", "note", "status", "admin_note", "created_at", "updated_at"}
	reservationCols := []string{"id", "user_id", "motor_id", "start_date", "duration_days", "total_price", "status", "note", "created_at", "updated_at"}

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM payments p WHERE p.id = \$1$`).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(paymentCols).
			AddRow(int64(7), int64(3), int64(100000), "proofs/x.png", "", "pending", "", now, now))
	mock.ExpectQuery(`FROM reservations r WHERE r.id = \$1 FOR UPDATE`).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(reservationCols).
			AddRow(int64(3), int64(2), int64(9), now, int64(2), int64(100000), "pending", "", now, now))
	mock.ExpectQuery(`FROM payments p WHERE p.id = \$1 FOR UPDATE`).WithArgs(int64(7)).
		WillReturnError(&pq.Error{Code: "40P01", Message: "deadlock detected"})
	mock.ExpectRollback()

	_, err = payments.Decide(context.Background(), 7, entities.PaymentDecisionRequest{Status: "verified"})
	require.Error(t, err)
	require.Equal(t, apperr.KindTransient, apperr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
