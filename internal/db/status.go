package db

import (
	"fmt"
	"strings"
)

type MotorStatus string

const (
	MotorAvailable   MotorStatus = "available"
	MotorRented      MotorStatus = "rented"
	MotorMaintenance MotorStatus = "maintenance"
)

func (s MotorStatus) Valid() bool {
	switch s {
	case MotorAvailable, MotorRented, MotorMaintenance:
		return true
	}
	return false
}

func ParseMotorStatus(v string) (MotorStatus, error) {
	s := MotorStatus(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("invalid motor status %q", v)
	}
	return s, nil
}

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationConfirmed, ReservationCompleted, ReservationCancelled:
		return true
	}
	return false
}

// Blocks reports whether a reservation in this status occupies its dates.
func (s ReservationStatus) Blocks() bool {
	return s == ReservationPending || s == ReservationConfirmed || s == ReservationCompleted
}

// Active reservations prevent their motor from being deleted.
func (s ReservationStatus) Active() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

func (s ReservationStatus) Terminal() bool {
	return s == ReservationCompleted || s == ReservationCancelled
}

func ParseReservationStatus(v string) (ReservationStatus, error) {
	s := ReservationStatus(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("invalid reservation status %q", v)
	}
	return s, nil
}

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:   {ReservationConfirmed, ReservationCancelled},
	ReservationConfirmed: {ReservationCompleted, ReservationCancelled},
}

// CanTransition checks an admin or user driven status change. Re-uploading
// a payment proof is the only other way a reservation changes state and is
// checked by CanResubmit.
func (s ReservationStatus) CanTransition(to ReservationStatus) bool {
	return contains(reservationTransitions[s], to)
}

// CanResubmit reports whether a new payment proof may move a reservation in
// status s back to pending. paymentStatus is the status of the existing
// payment row, or "" when none exists.
func (s ReservationStatus) CanResubmit(paymentStatus PaymentStatus) bool {
	switch s {
	case ReservationPending, ReservationConfirmed:
		return paymentStatus != PaymentVerified
	case ReservationCancelled:
		return paymentStatus == PaymentRejected
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentVerified PaymentStatus = "verified"
	PaymentRejected PaymentStatus = "rejected"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentVerified, PaymentRejected:
		return true
	}
	return false
}

func ParsePaymentStatus(v string) (PaymentStatus, error) {
	s := PaymentStatus(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("invalid payment status %q", v)
	}
	return s, nil
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentVerified, PaymentRejected},
}

// CanTransition covers admin decisions. Re-upload resets are separate, see
// ReservationStatus.CanResubmit.
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	return contains(paymentTransitions[s], to)
}

// Effects returns the reservation and motor statuses a terminal payment
// decision cascades into.
func (s PaymentStatus) Effects() (ReservationStatus, MotorStatus, bool) {
	switch s {
	case PaymentVerified:
		return ReservationConfirmed, MotorRented, true
	case PaymentRejected:
		return ReservationCancelled, MotorAvailable, true
	}
	return "", "", false
}

type TestimonialStatus string

const (
	TestimonialPending  TestimonialStatus = "pending"
	TestimonialApproved TestimonialStatus = "approved"
	TestimonialRejected TestimonialStatus = "rejected"
)

func (s TestimonialStatus) Valid() bool {
	switch s {
	case TestimonialPending, TestimonialApproved, TestimonialRejected:
		return true
	}
	return false
}

func ParseTestimonialStatus(v string) (TestimonialStatus, error) {
	s := TestimonialStatus(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("invalid testimonial status %q", v)
	}
	return s, nil
}

var testimonialTransitions = map[TestimonialStatus][]TestimonialStatus{
	TestimonialPending: {TestimonialApproved, TestimonialRejected},
}

func (s TestimonialStatus) CanTransition(to TestimonialStatus) bool {
	return contains(testimonialTransitions[s], to)
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
