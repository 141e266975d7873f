package entities

import (
	"time"

	"motorent/internal/db"
)

type PaymentDecisionRequest struct {
	Status    string `json:"status" validate:"required"`
	AdminNote string `json:"admin_note" validate:"max=1000"`
}

type PaymentFilter struct {
	Search string
	Status string
}

// PaymentDetail is a payment joined with its reservation, user and motor.
type PaymentDetail struct {
	db.Payment
	ReservationStatus db.ReservationStatus `json:"reservation_status"`
	StartDate         time.Time            `json:"start_date"`
	DurationDays      int                  `json:"duration_days"`
	UserID            int64                `json:"user_id"`
	UserName          string               `json:"user_name"`
	UserEmail         string               `json:"user_email"`
	UserPhone         string               `json:"user_phone"`
	MotorID           int64                `json:"motor_id"`
	MotorBrand        string               `json:"motor_brand"`
	MotorType         string               `json:"motor_type"`
}
