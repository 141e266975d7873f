package api

import (
	"context"

	"motorent/internal/availability"
	"motorent/internal/db"
	"motorent/internal/entities"
	"motorent/internal/service"
	"motorent/internal/storage"
)

// The handlers depend on these method sets, implemented by the service
// package.

type UserService interface {
	Register(ctx context.Context, req entities.RegisterRequest, document storage.Upload) (*db.PendingUser, error)
	Login(ctx context.Context, req entities.LoginRequest) (*entities.LoginResponse, error)
	ListPending(ctx context.Context) ([]db.PendingUser, error)
	Approve(ctx context.Context, pendingID int64) (*db.User, error)
	Reject(ctx context.Context, pendingID int64) error
	ListUsers(ctx context.Context) ([]db.User, error)
	SetVerified(ctx context.Context, id int64, req entities.VerificationRequest) (*db.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

type MotorService interface {
	Create(ctx context.Context, req entities.MotorRequest, image *storage.Upload) (*db.Motor, error)
	Update(ctx context.Context, id int64, req entities.MotorRequest, image *storage.Upload) (*db.Motor, error)
	Get(ctx context.Context, id int64) (*db.Motor, error)
	List(ctx context.Context, f entities.MotorFilter) ([]db.Motor, error)
	SetStatus(ctx context.Context, id int64, req entities.MotorStatusRequest) (*db.Motor, error)
	Delete(ctx context.Context, id int64) error
	BulkDelete(ctx context.Context, req entities.BulkDeleteRequest) (int, error)
}

type ReservationService interface {
	Create(ctx context.Context, userID int64, req entities.CreateReservationRequest) (*db.Reservation, error)
	UpdateStatus(ctx context.Context, id int64, req entities.UpdateReservationStatusRequest) (*db.Reservation, error)
	Cancel(ctx context.Context, userID, id int64) (*db.Reservation, error)
	Get(ctx context.Context, viewer service.Viewer, id int64) (*entities.ReservationDetail, error)
	ListForUser(ctx context.Context, userID int64) (*entities.ReservationsList, error)
	List(ctx context.Context, f entities.ReservationFilter) (*entities.ReservationsList, error)
	CheckAvailability(ctx context.Context, motorID int64, aq entities.AvailabilityQuery) (*availability.Result, error)
	AvailableMotors(ctx context.Context, aq entities.AvailabilityQuery) (*entities.AvailableMotorsResponse, error)
}

type PaymentService interface {
	SubmitProof(ctx context.Context, userID, reservationID int64, proof storage.Upload, note string) (*db.Payment, error)
	Decide(ctx context.Context, paymentID int64, req entities.PaymentDecisionRequest) (*entities.PaymentDetail, error)
	GetForReservation(ctx context.Context, viewer service.Viewer, reservationID int64) (*db.Payment, error)
	Get(ctx context.Context, id int64) (*entities.PaymentDetail, error)
	List(ctx context.Context, f entities.PaymentFilter) ([]entities.PaymentDetail, error)
}

type TestimonialService interface {
	Create(ctx context.Context, userID int64, req entities.TestimonialRequest) (*db.Testimonial, error)
	ListPublic(ctx context.Context) ([]entities.TestimonialDetail, error)
	List(ctx context.Context, status string) ([]entities.TestimonialDetail, error)
	Moderate(ctx context.Context, id int64, req entities.TestimonialStatusRequest) (*db.Testimonial, error)
	Delete(ctx context.Context, id int64) error
}

var (
	_ UserService        = (*service.UserService)(nil)
	_ MotorService       = (*service.MotorService)(nil)
	_ ReservationService = (*service.ReservationService)(nil)
	_ PaymentService     = (*service.PaymentService)(nil)
	_ TestimonialService = (*service.TestimonialService)(nil)
)
