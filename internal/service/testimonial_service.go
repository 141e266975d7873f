package service

import (
	"context"
	"fmt"

	"motorent/internal/db"
	"motorent/internal/entities"
	apperr "motorent/internal/errors"
	"motorent/internal/logger"
	"motorent/internal/repository"
)

type TestimonialService struct {
	tx repository.Transactor
	st Stores
}

func NewTestimonialService(tx repository.Transactor, st Stores) *TestimonialService {
	return &TestimonialService{tx: tx, st: st}
}

// Create files a testimonial for moderation.
func (s *TestimonialService) Create(ctx context.Context, userID int64, req entities.TestimonialRequest) (*db.Testimonial, error) {
	if err := validateInput(req); err != nil {
		return nil, err
	}
	t := &db.Testimonial{UserID: userID, Content: req.Content, Rating: req.Rating, Status: db.TestimonialPending}
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		if _, err := s.st.Users.Get(ctx, q, userID); err != nil {
			return notFound(err, "user")
		}
		return s.st.Testimonials.Create(ctx, q, t)
	})
	if err != nil {
		return nil, err
	}
	logger.WithCtx(ctx).Info("testimonial submitted", "testimonial_id", t.ID, "user_id", userID)
	return t, nil
}

func (s *TestimonialService) ListPublic(ctx context.Context) ([]entities.TestimonialDetail, error) {
	ctx, cancel := s.tx.WithTimeout(ctx)
	defer cancel()
	return s.st.Testimonials.List(ctx, s.tx.Reader(), db.TestimonialApproved)
}

// List returns testimonials in the given status, or all of them for "".
func (s *TestimonialService) List(ctx context.Context, status string) ([]entities.TestimonialDetail, error) {
	var st db.TestimonialStatus
	if status != "" {
		var err error
		if st, err = db.ParseTestimonialStatus(status); err != nil {
			return nil, apperr.ErrValidation(err.Error())
		}
	}
	ctx, cancel := s.tx.WithTimeout(ctx)
	defer cancel()
	return s.st.Testimonials.List(ctx, s.tx.Reader(), st)
}

func (s *TestimonialService) Moderate(ctx context.Context, id int64, req entities.TestimonialStatusRequest) (*db.Testimonial, error) {
	if err := validateInput(req); err != nil {
		return nil, err
	}
	to, err := db.ParseTestimonialStatus(req.Status)
	if err != nil {
		return nil, apperr.ErrValidation(err.Error())
	}

	var t *db.Testimonial
	err = s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		var err error
		if t, err = s.st.Testimonials.Get(ctx, q, id); err != nil {
			return notFound(err, "testimonial")
		}
		if !t.Status.CanTransition(to) {
			return apperr.ErrConflict(fmt.Sprintf("testimonial cannot move from %s to %s", t.Status, to))
		}
		if err := s.st.Testimonials.UpdateStatus(ctx, q, id, to); err != nil {
			return notFound(err, "testimonial")
		}
		t.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.WithCtx(ctx).Info("testimonial moderated", "testimonial_id", id, "status", to)
	return t, nil
}

func (s *TestimonialService) Delete(ctx context.Context, id int64) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		return notFound(s.st.Testimonials.Delete(ctx, q, id), "testimonial")
	})
	if err != nil {
		return err
	}
	logger.WithCtx(ctx).Info("testimonial deleted", "testimonial_id", id)
	return nil
}
