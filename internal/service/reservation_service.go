package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"motorent/internal/availability"
	"motorent/internal/config"
	"motorent/internal/db"
	"motorent/internal/entities"
	apperr "motorent/internal/errors"
	"motorent/internal/logger"
	"motorent/internal/metrics"
	"motorent/internal/repository"
)

type ReservationService struct {
	tx      repository.Transactor
	st      Stores
	hold    config.HoldPolicy
	loc     *time.Location
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewReservationService(tx repository.Transactor, st Stores, hold config.HoldPolicy, loc *time.Location, m *metrics.Metrics) *ReservationService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReservationService{tx: tx, st: st, hold: hold, loc: loc, metrics: m, now: time.Now}
}

func (s *ReservationService) today() time.Time { return s.now().In(s.loc) }

// Create books a motor for a user. The motor row is locked for the whole
// check-then-insert, so two overlapping requests for the same motor cannot
// both succeed.
func (s *ReservationService) Create(ctx context.Context, userID int64, req entities.CreateReservationRequest) (*db.Reservation, error) {
	if err := validateInput(req); err != nil {
		return nil, err
	}
	start, err := availability.ParseDate(req.StartDate)
	if err != nil {
		return nil, apperr.ErrValidation(err.Error())
	}
	if err := availability.ValidateStart(start, s.today()); err != nil {
		return nil, apperr.ErrValidation(err.Error())
	}
	period, err := availability.NewPeriod(start, req.DurationDays)
	if err != nil {
		return nil, apperr.ErrValidation(err.Error())
	}

	var created *db.Reservation
	err = s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		user, err := s.st.Users.Get(ctx, q, userID)
		if err != nil {
			return notFound(err, "user")
		}
		if !user.IsVerified {
			return apperr.ErrForbidden("account is not verified")
		}

		motor, err := s.st.Motors.GetForUpdate(ctx, q, req.MotorID)
		if err != nil {
			return notFound(err, "motor")
		}
		blocking, err := s.st.Reservations.ListBlocking(ctx, q, motor.ID, period, 0)
		if err != nil {
			return err
		}
		if res := availability.Evaluate(*motor, period, blocking); !res.Available {
			return apperr.ErrConflict(res.Reason).WithDetail(res)
		}

		r := &db.Reservation{
			UserID:       user.ID,
			MotorID:      motor.ID,
			StartDate:    period.Start,
			DurationDays: req.DurationDays,
			TotalPrice:   motor.PricePerDay * int64(req.DurationDays),
			Status:       db.ReservationPending,
			Note:         req.Note,
		}
		if err := s.st.Reservations.Create(ctx, q, r); err != nil {
			return err
		}
		if s.hold == config.HoldOnCreate {
			if err := s.st.Motors.UpdateStatus(ctx, q, motor.ID, db.MotorRented); err != nil {
				return notFound(err, "motor")
			}
		}
		created = r
		return nil
	})
	if err != nil {
		s.metrics.Reservation(outcome(err))
		return nil, err
	}
	s.metrics.Reservation("created")
	logger.WithCtx(ctx).Info("reservation created",
		"reservation_id", created.ID, "motor_id", created.MotorID, "user_id", userID,
		"period", availability.Of(*created).String(), "total_price", created.TotalPrice)
	return created, nil
}

// UpdateStatus is the admin transition. Payments and, under the default
// hold policy, the motor are left alone.
func (s *ReservationService) UpdateStatus(ctx context.Context, id int64, req entities.UpdateReservationStatusRequest) (*db.Reservation, error) {
	if err := validateInput(req); err != nil {
		return nil, err
	}
	to, err := db.ParseReservationStatus(req.Status)
	if err != nil {
		return nil, apperr.ErrValidation(err.Error())
	}

	var out *db.Reservation
	err = s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		r, err := s.st.Reservations.GetForUpdate(ctx, q, id)
		if err != nil {
			return notFound(err, "reservation")
		}
		if err := s.transition(ctx, q, r, to); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.WithCtx(ctx).Info("reservation status updated", "reservation_id", id, "status", to)
	return out, nil
}

// Cancel lets a user withdraw their own reservation while it is pending.
func (s *ReservationService) Cancel(ctx context.Context, userID, id int64) (*db.Reservation, error) {
	var out *db.Reservation
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		r, err := s.st.Reservations.GetForUpdate(ctx, q, id)
		if err != nil {
			return notFound(err, "reservation")
		}
		if r.UserID != userID {
			return apperr.ErrForbidden("reservation belongs to another user")
		}
		if r.Status != db.ReservationPending {
			return apperr.ErrConflict(fmt.Sprintf("only pending reservations can be cancelled, this one is %s", r.Status))
		}
		if err := s.transition(ctx, q, r, db.ReservationCancelled); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.WithCtx(ctx).Info("reservation cancelled by user", "reservation_id", id, "user_id", userID)
	return out, nil
}

// ExpireUnpaid cancels a pending reservation that still has no payment
// proof. It reports false when the reservation no longer qualifies.
func (s *ReservationService) ExpireUnpaid(ctx context.Context, id int64) (bool, error) {
	expired := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		r, err := s.st.Reservations.GetForUpdate(ctx, q, id)
		if err != nil {
			return notFound(err, "reservation")
		}
		if r.Status != db.ReservationPending {
			return nil
		}
		if _, err := s.st.Payments.GetByReservation(ctx, q, id); err == nil {
			return nil
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if err := s.transition(ctx, q, r, db.ReservationCancelled); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}

// transition applies one edge of the reservation table inside q.
func (s *ReservationService) transition(ctx context.Context, q repository.Querier, r *db.Reservation, to db.ReservationStatus) error {
	if !r.Status.CanTransition(to) {
		return apperr.ErrConflict(fmt.Sprintf("reservation cannot move from %s to %s", r.Status, to))
	}
	if err := s.st.Reservations.UpdateStatus(ctx, q, r.ID, to); err != nil {
		return notFound(err, "reservation")
	}
	// Under HoldOnCreate the cancelled reservation was the one holding
	// the motor.
	if to == db.ReservationCancelled && s.hold == config.HoldOnCreate && r.MotorID != 0 {
		if err := s.st.Motors.UpdateStatus(ctx, q, r.MotorID, db.MotorAvailable); err != nil {
			return notFound(err, "motor")
		}
	}
	r.Status = to
	return nil
}

func (s *ReservationService) Get(ctx context.Context, viewer Viewer, id int64) (*entities.ReservationDetail, error) {
	ctx, cancel := s.tx.WithTimeout(ctx)
	defer cancel()

	d, err := s.st.Reservations.GetDetail(ctx, s.tx.Reader(), id)
	if err != nil {
		return nil, notFound(err, "reservation")
	}
	if !viewer.owns(d.UserID) {
		// Do not reveal other users' reservations exist.
		return nil, apperr.ErrNotFound("reservation not found")
	}
	return d, nil
}

func (s *ReservationService) ListForUser(ctx context.Context, userID int64) (*entities.ReservationsList, error) {
	ctx, cancel := s.tx.WithTimeout(ctx)
	defer cancel()

	list, err := s.st.Reservations.ListForUser(ctx, s.tx.Reader(), userID)
	if err != nil {
		return nil, err
	}
	return &entities.ReservationsList{Total: len(list), Reservations: list}, nil
}

func (s *ReservationService) List(ctx context.Context, f entities.ReservationFilter) (*entities.ReservationsList, error) {
	if f.Status != "" {
		st, err := db.ParseReservationStatus(f.Status)
		if err != nil {
			return nil, apperr.ErrValidation(err.Error())
		}
		f.Status = string(st)
	}
	ctx, cancel := s.tx.WithTimeout(ctx)
	defer cancel()

	list, err := s.st.Reservations.List(ctx, s.tx.Reader(), f)
	if err != nil {
		return nil, err
	}
	return &entities.ReservationsList{Total: len(list), Reservations: list}, nil
}

// CheckAvailability evaluates one motor for the requested period and
// lists the reservations in the way.
func (s *ReservationService) CheckAvailability(ctx context.Context, motorID int64, aq entities.AvailabilityQuery) (*availability.Result, error) {
	p, err := s.requestedPeriod(aq)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.tx.WithTimeout(ctx)
	defer cancel()

	q := s.tx.Reader()
	motor, err := s.st.Motors.Get(ctx, q, motorID)
	if err != nil {
		return nil, notFound(err, "motor")
	}
	blocking, err := s.st.Reservations.ListBlocking(ctx, q, motorID, p, 0)
	if err != nil {
		return nil, err
	}
	res := availability.Evaluate(*motor, p, blocking)
	return &res, nil
}

// AvailableMotors lists every motor Evaluate would accept for the period.
func (s *ReservationService) AvailableMotors(ctx context.Context, aq entities.AvailabilityQuery) (*entities.AvailableMotorsResponse, error) {
	p, err := s.requestedPeriod(aq)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.tx.WithTimeout(ctx)
	defer cancel()

	q := s.tx.Reader()
	motors, err := s.st.Motors.List(ctx, q, entities.MotorFilter{})
	if err != nil {
		return nil, err
	}
	blocking, err := s.st.Reservations.ListBlocking(ctx, q, 0, p, 0)
	if err != nil {
		return nil, err
	}
	return &entities.AvailableMotorsResponse{Period: p, Motors: availability.FilterAvailable(motors, p, blocking)}, nil
}

func (s *ReservationService) requestedPeriod(aq entities.AvailabilityQuery) (availability.Period, error) {
	p, err := parsePeriod(aq)
	if err != nil {
		return p, err
	}
	if err := availability.ValidateStart(p.Start, s.today()); err != nil {
		return p, apperr.ErrValidation(err.Error())
	}
	return p, nil
}

func outcome(err error) string {
	if apperr.KindOf(err) == apperr.KindConflict {
		return "conflict"
	}
	return "rejected"
}
