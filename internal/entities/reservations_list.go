package entities

import (
	"time"

	"motorent/internal/db"
)

// ReservationDetail is a reservation joined with the identity of its user,
// its motor and, when present, its payment.
type ReservationDetail struct {
	db.Reservation
	EndDate       time.Time         `json:"end_date"`
	UserName      string            `json:"user_name"`
	UserEmail     string            `json:"user_email"`
	UserPhone     string            `json:"user_phone"`
	MotorBrand    string            `json:"motor_brand"`
	MotorType     string            `json:"motor_type"`
	PaymentID     *int64            `json:"payment_id,omitempty"`
	PaymentStatus *db.PaymentStatus `json:"payment_status,omitempty"`
}

type ReservationsList struct {
	Total        int                 `json:"total"`
	Reservations []ReservationDetail `json:"reservations"`
}
