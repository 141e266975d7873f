package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"motorent/internal/availability"
	"motorent/internal/db"
	"motorent/internal/entities"
	apperr "motorent/internal/errors"
	"motorent/internal/logger"
	"motorent/internal/repository"
	"motorent/internal/storage"
)

// The stores below are implemented by the repository package. Every method
// receives the Querier it must run on, so callers decide whether a call
// joins a transaction.

type MotorStore interface {
	Get(ctx context.Context, q repository.Querier, id int64) (*db.Motor, error)
	GetForUpdate(ctx context.Context, q repository.Querier, id int64) (*db.Motor, error)
	List(ctx context.Context, q repository.Querier, f entities.MotorFilter) ([]db.Motor, error)
	Create(ctx context.Context, q repository.Querier, m *db.Motor) error
	Update(ctx context.Context, q repository.Querier, m *db.Motor) error
	UpdateStatus(ctx context.Context, q repository.Querier, id int64, status db.MotorStatus) error
	Delete(ctx context.Context, q repository.Querier, id int64) error
}

type ReservationStore interface {
	Get(ctx context.Context, q repository.Querier, id int64) (*db.Reservation, error)
	GetForUpdate(ctx context.Context, q repository.Querier, id int64) (*db.Reservation, error)
	GetDetail(ctx context.Context, q repository.Querier, id int64) (*entities.ReservationDetail, error)
	Create(ctx context.Context, q repository.Querier, r *db.Reservation) error
	UpdateStatus(ctx context.Context, q repository.Querier, id int64, status db.ReservationStatus) error
	ListBlocking(ctx context.Context, q repository.Querier, motorID int64, p availability.Period, excludeID int64) ([]db.Reservation, error)
	ActiveIDsForMotor(ctx context.Context, q repository.Querier, motorID int64) ([]int64, error)
	CountForUser(ctx context.Context, q repository.Querier, userID int64) (int, error)
	List(ctx context.Context, q repository.Querier, f entities.ReservationFilter) ([]entities.ReservationDetail, error)
	ListForUser(ctx context.Context, q repository.Querier, userID int64) ([]entities.ReservationDetail, error)
}

type PaymentStore interface {
	Get(ctx context.Context, q repository.Querier, id int64) (*db.Payment, error)
	GetForUpdate(ctx context.Context, q repository.Querier, id int64) (*db.Payment, error)
	GetByReservation(ctx context.Context, q repository.Querier, reservationID int64) (*db.Payment, error)
	GetDetail(ctx context.Context, q repository.Querier, id int64) (*entities.PaymentDetail, error)
	Create(ctx context.Context, q repository.Querier, p *db.Payment) error
	ReplaceProof(ctx context.Context, q repository.Querier, id int64, proofRef, note string) error
	Decide(ctx context.Context, q repository.Querier, id int64, status db.PaymentStatus, adminNote string) error
	List(ctx context.Context, q repository.Querier, f entities.PaymentFilter) ([]entities.PaymentDetail, error)
}

type UserStore interface {
	Get(ctx context.Context, q repository.Querier, id int64) (*db.User, error)
	GetByEmail(ctx context.Context, q repository.Querier, email string) (*db.User, error)
	List(ctx context.Context, q repository.Querier) ([]db.User, error)
	Create(ctx context.Context, q repository.Querier, u *db.User) error
	SetVerified(ctx context.Context, q repository.Querier, id int64, verified bool) error
	Delete(ctx context.Context, q repository.Querier, id int64) error
	EmailTaken(ctx context.Context, q repository.Querier, email string) (bool, error)
	CreatePending(ctx context.Context, q repository.Querier, u *db.PendingUser) error
	GetPending(ctx context.Context, q repository.Querier, id int64) (*db.PendingUser, error)
	GetPendingForUpdate(ctx context.Context, q repository.Querier, id int64) (*db.PendingUser, error)
	GetPendingByEmail(ctx context.Context, q repository.Querier, email string) (*db.PendingUser, error)
	ListPending(ctx context.Context, q repository.Querier) ([]db.PendingUser, error)
	DeletePending(ctx context.Context, q repository.Querier, id int64) error
}

type TestimonialStore interface {
	Get(ctx context.Context, q repository.Querier, id int64) (*db.Testimonial, error)
	Create(ctx context.Context, q repository.Querier, t *db.Testimonial) error
	List(ctx context.Context, q repository.Querier, status db.TestimonialStatus) ([]entities.TestimonialDetail, error)
	UpdateStatus(ctx context.Context, q repository.Querier, id int64, status db.TestimonialStatus) error
	Delete(ctx context.Context, q repository.Querier, id int64) error
}

type JobStore interface {
	StalePendingReservationIDs(ctx context.Context, q repository.Querier, cutoff time.Time) ([]int64, error)
}

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError is one failed rule of an input schema.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// validateInput checks v against its validate tags and reports every
// failing field.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.ErrValidation("invalid request").Wrap(err)
	}
	fields := make([]FieldError, 0, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		fields = append(fields, FieldError{Field: name, Rule: fe.Tag(), Param: fe.Param()})
		names = append(names, name)
	}
	return apperr.ErrValidation("invalid fields: " + strings.Join(names, ", ")).WithDetail(fields)
}

// notFound translates a repository miss into a typed error; other errors
// pass through unchanged.
func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.ErrNotFound(what + " not found")
	}
	return err
}

// storeUpload stores u and translates storage rejections into validation
// errors.
func storeUpload(ctx context.Context, files storage.Files, category storage.Category, u storage.Upload) (string, error) {
	ref, err := files.Store(ctx, category, u)
	switch {
	case err == nil:
		return ref, nil
	case errors.Is(err, storage.ErrTooLarge):
		return "", apperr.NewHTTPError(http.StatusRequestEntityTooLarge, "file is too large")
	case errors.Is(err, storage.ErrUnsupportedType):
		return "", apperr.ErrValidation("unsupported file type").Wrap(err)
	case errors.Is(err, storage.ErrEmpty):
		return "", apperr.ErrValidation(fmt.Sprintf("%s file is required", category))
	}
	return "", apperr.Transient("could not store the uploaded file, please retry", err)
}

// removeFile deletes ref on a best-effort basis; a failure leaves an
// orphan that is logged.
func removeFile(ctx context.Context, files storage.Files, ref string) {
	if ref == "" {
		return
	}
	if err := files.Remove(context.WithoutCancel(ctx), ref); err != nil {
		logger.WithCtx(ctx).Warn("could not remove stored file", "ref", ref, "error", err)
	}
}

func parsePeriod(q entities.AvailabilityQuery) (availability.Period, error) {
	start, err := availability.ParseDate(q.StartDate)
	if err != nil {
		return availability.Period{}, apperr.ErrValidation(err.Error())
	}
	switch {
	case q.Duration != "" && q.EndDate != "":
		return availability.Period{}, apperr.ErrValidation("use either duration or end_date, not both")
	case q.EndDate != "":
		end, err := availability.ParseDate(q.EndDate)
		if err != nil {
			return availability.Period{}, apperr.ErrValidation(err.Error())
		}
		p, err := availability.Between(start, end)
		if err != nil {
			return availability.Period{}, apperr.ErrValidation(err.Error())
		}
		return p, nil
	}
	days, err := parseDuration(q.Duration)
	if err != nil {
		return availability.Period{}, err
	}
	p, err := availability.NewPeriod(start, days)
	if err != nil {
		return availability.Period{}, apperr.ErrValidation(err.Error())
	}
	return p, nil
}

func parseDuration(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, apperr.ErrValidation("duration is required")
	}
	days, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.ErrValidation(fmt.Sprintf("duration %q must be a whole number of days", v))
	}
	if days <= 0 {
		return 0, apperr.ErrValidation(availability.ErrInvalidDuration.Error())
	}
	return days, nil
}

// Stores bundles the persistence dependencies of the services.
type Stores struct {
	Motors       MotorStore
	Reservations ReservationStore
	Payments     PaymentStore
	Users        UserStore
	Testimonials TestimonialStore
	Jobs         JobStore
}

// NewStores returns the PostgreSQL-backed stores.
func NewStores() Stores {
	return Stores{
		Motors:       repository.NewMotorRepository(),
		Reservations: repository.NewReservationRepository(),
		Payments:     repository.NewPaymentRepository(),
		Users:        repository.NewUserRepository(),
		Testimonials: repository.NewTestimonialRepository(),
		Jobs:         repository.NewJobRepository(),
	}
}

// Viewer is the caller on whose behalf a read runs.
type Viewer struct {
	UserID int64
	Admin  bool
}

func (v Viewer) owns(userID int64) bool { return v.Admin || v.UserID == userID }
