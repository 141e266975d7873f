package service

import (
	"context"
	"errors"
	"fmt"

	"motorent/internal/availability"
	"motorent/internal/config"
	"motorent/internal/db"
	"motorent/internal/entities"
	apperr "motorent/internal/errors"
	"motorent/internal/logger"
	"motorent/internal/metrics"
	"motorent/internal/repository"
	"motorent/internal/storage"
)

const maxNoteLen = 1000

type PaymentService struct {
	tx       repository.Transactor
	st       Stores
	files    storage.Files
	notifier Notifier
	hold     config.HoldPolicy
	metrics  *metrics.Metrics
	res      *ReservationService
}

func NewPaymentService(tx repository.Transactor, st Stores, files storage.Files, notifier Notifier, res *ReservationService, m *metrics.Metrics) *PaymentService {
	return &PaymentService{tx: tx, st: st, files: files, notifier: notifier, hold: res.hold, metrics: m, res: res}
}

// SubmitProof stores a proof of transfer for the caller's reservation.
// A second upload replaces the proof of the existing payment row and puts
// both the payment and the reservation back in review. A reservation that
// was cancelled by a rejected payment is revived only if its dates are
// still free.
func (s *PaymentService) SubmitProof(ctx context.Context, userID, reservationID int64, proof storage.Upload, note string) (*db.Payment, error) {
	if len(note) > maxNoteLen {
		return nil, apperr.ErrValidation(fmt.Sprintf("note must be at most %d characters", maxNoteLen))
	}
	ref, err := storeUpload(ctx, s.files, storage.Proofs, proof)
	s.metrics.Upload(string(storage.Proofs), err)
	if err != nil {
		return nil, err
	}

	var (
		out    *db.Payment
		oldRef string
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		r, err := s.st.Reservations.GetForUpdate(ctx, q, reservationID)
		if err != nil {
			return notFound(err, "reservation")
		}
		if r.UserID != userID {
			return apperr.ErrForbidden("reservation belongs to another user")
		}

		existing, err := s.st.Payments.GetByReservation(ctx, q, r.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		var current db.PaymentStatus
		if existing != nil {
			current = existing.Status
		}
		if !r.Status.CanResubmit(current) {
			if current == db.PaymentVerified {
				return apperr.ErrConflict("payment is already verified")
			}
			return apperr.ErrConflict(fmt.Sprintf("cannot submit a payment for a %s reservation", r.Status))
		}

		if r.Status == db.ReservationCancelled {
			if err := s.revive(ctx, q, r); err != nil {
				return err
			}
		}

		if existing != nil {
			oldRef = existing.ProofRef
			if err := s.st.Payments.ReplaceProof(ctx, q, existing.ID, ref, note); err != nil {
				return notFound(err, "payment")
			}
		} else {
			p := &db.Payment{ReservationID: r.ID, Amount: r.TotalPrice, ProofRef: ref, Note: note, Status: db.PaymentPending}
			if err := s.st.Payments.Create(ctx, q, p); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return apperr.ErrConflict("a payment for this reservation is being submitted, retry")
				}
				return err
			}
		}
		if r.Status != db.ReservationPending {
			if err := s.st.Reservations.UpdateStatus(ctx, q, r.ID, db.ReservationPending); err != nil {
				return notFound(err, "reservation")
			}
		}

		out, err = s.st.Payments.GetByReservation(ctx, q, r.ID)
		return err
	})
	if err != nil {
		removeFile(ctx, s.files, ref)
		return nil, err
	}
	removeFile(ctx, s.files, oldRef)

	logger.WithCtx(ctx).Info("payment proof submitted",
		"payment_id", out.ID, "reservation_id", reservationID, "replaced", oldRef != "")
	return out, nil
}

// revive re-checks that a cancelled reservation can be reinstated: its
// motor must still exist, be bookable, and have no other reservation on
// the same dates.
func (s *PaymentService) revive(ctx context.Context, q repository.Querier, r *db.Reservation) error {
	if r.MotorID == 0 {
		return apperr.ErrConflict("the reserved motor no longer exists")
	}
	period := availability.Of(*r)
	if err := availability.ValidateStart(period.Start, s.res.today()); err != nil {
		return apperr.ErrConflict("the reservation dates have already passed")
	}
	motor, err := s.st.Motors.GetForUpdate(ctx, q, r.MotorID)
	if err != nil {
		return notFound(err, "motor")
	}
	blocking, err := s.st.Reservations.ListBlocking(ctx, q, motor.ID, period, r.ID)
	if err != nil {
		return err
	}
	if res := availability.Evaluate(*motor, period, blocking); !res.Available {
		return apperr.ErrConflict(res.Reason).WithDetail(res)
	}
	if s.hold == config.HoldOnCreate {
		if err := s.st.Motors.UpdateStatus(ctx, q, motor.ID, db.MotorRented); err != nil {
			return notFound(err, "motor")
		}
	}
	return nil
}

// Decide records the admin verdict and cascades it to the reservation and
// the motor in one transaction. Any failing step rolls the whole cascade
// back.
func (s *PaymentService) Decide(ctx context.Context, paymentID int64, req entities.PaymentDecisionRequest) (*entities.PaymentDetail, error) {
	if err := validateInput(req); err != nil {
		return nil, err
	}
	to, err := db.ParsePaymentStatus(req.Status)
	if err != nil {
		return nil, apperr.ErrValidation(err.Error())
	}
	resStatus, motorStatus, ok := to.Effects()
	if !ok {
		return nil, apperr.ErrValidation("status must be verified or rejected")
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		// Lock order is reservation then payment, as in SubmitProof.
		// reservation_id is immutable.
		unlocked, err := s.st.Payments.Get(ctx, q, paymentID)
		if err != nil {
			return notFound(err, "payment")
		}
		r, err := s.st.Reservations.GetForUpdate(ctx, q, unlocked.ReservationID)
		if err != nil {
			return notFound(err, "reservation")
		}
		p, err := s.st.Payments.GetForUpdate(ctx, q, paymentID)
		if err != nil {
			return notFound(err, "payment")
		}
		if !p.Status.CanTransition(to) {
			return apperr.ErrConflict(fmt.Sprintf("payment is already %s", p.Status))
		}
		if r.Status != resStatus && !r.Status.CanTransition(resStatus) {
			return apperr.ErrConflict(fmt.Sprintf("reservation is %s and cannot become %s", r.Status, resStatus))
		}
		if r.MotorID == 0 {
			return apperr.ErrNotFound("motor not found")
		}

		if err := s.st.Payments.Decide(ctx, q, p.ID, to, req.AdminNote); err != nil {
			return notFound(err, "payment")
		}
		if r.Status != resStatus {
			if err := s.st.Reservations.UpdateStatus(ctx, q, r.ID, resStatus); err != nil {
				return notFound(err, "reservation")
			}
		}
		if err := s.st.Motors.UpdateStatus(ctx, q, r.MotorID, motorStatus); err != nil {
			return notFound(err, "motor")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.PaymentDecision(string(to))
	logger.WithCtx(ctx).Info("payment decided", "payment_id", paymentID, "status", to)

	rctx, cancel := s.tx.WithTimeout(ctx)
	defer cancel()
	d, err := s.st.Payments.GetDetail(rctx, s.tx.Reader(), paymentID)
	if err != nil {
		// The decision is committed; only the response read failed.
		return nil, err
	}
	s.notifier.PaymentDecided(ctx, paymentNotice(d))
	return d, nil
}

func paymentNotice(d *entities.PaymentDetail) entities.PaymentNotice {
	r := db.Reservation{StartDate: d.StartDate, DurationDays: d.DurationDays}
	return entities.PaymentNotice{
		UserName:      d.UserName,
		UserEmail:     d.UserEmail,
		UserPhone:     d.UserPhone,
		ReservationID: d.ReservationID,
		MotorName:     d.MotorBrand + " " + d.MotorType,
		StartDate:     d.StartDate.Format(availability.DateLayout),
		EndDate:       r.EndDate().Format(availability.DateLayout),
		TotalPrice:    d.Amount,
		Status:        string(d.Status),
		AdminNote:     d.AdminNote,
	}
}

// GetForReservation returns the payment of a reservation the viewer may see.
func (s *PaymentService) GetForReservation(ctx context.Context, viewer Viewer, reservationID int64) (*db.Payment, error) {
	ctx, cancel := s.tx.WithTimeout(ctx)
	defer cancel()

	q := s.tx.Reader()
	r, err := s.st.Reservations.Get(ctx, q, reservationID)
	if err != nil {
		return nil, notFound(err, "reservation")
	}
	if !viewer.owns(r.UserID) {
		return nil, apperr.ErrNotFound("reservation not found")
	}
	p, err := s.st.Payments.GetByReservation(ctx, q, reservationID)
	if err != nil {
		return nil, notFound(err, "payment")
	}
	return p, nil
}

func (s *PaymentService) Get(ctx context.Context, id int64) (*entities.PaymentDetail, error) {
	ctx, cancel := s.tx.WithTimeout(ctx)
	defer cancel()

	d, err := s.st.Payments.GetDetail(ctx, s.tx.Reader(), id)
	if err != nil {
		return nil, notFound(err, "payment")
	}
	return d, nil
}

func (s *PaymentService) List(ctx context.Context, f entities.PaymentFilter) ([]entities.PaymentDetail, error) {
	if f.Status != "" {
		st, err := db.ParsePaymentStatus(f.Status)
		if err != nil {
			return nil, apperr.ErrValidation(err.Error())
		}
		f.Status = string(st)
	}
	ctx, cancel := s.tx.WithTimeout(ctx)
	defer cancel()

	return s.st.Payments.List(ctx, s.tx.Reader(), f)
}
