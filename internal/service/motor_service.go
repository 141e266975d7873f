package service

import (
	"context"
	"fmt"
	"slices"

	"motorent/internal/db"
	"motorent/internal/entities"
	apperr "motorent/internal/errors"
	"motorent/internal/logger"
	"motorent/internal/metrics"
	"motorent/internal/repository"
	"motorent/internal/storage"
)

type MotorService struct {
	tx      repository.Transactor
	st      Stores
	files   storage.Files
	metrics *metrics.Metrics
}

func NewMotorService(tx repository.Transactor, st Stores, files storage.Files, m *metrics.Metrics) *MotorService {
	return &MotorService{tx: tx, st: st, files: files, metrics: m}
}

// uploadImage stores an optional motor image. A nil upload yields "".
func (s *MotorService) uploadImage(ctx context.Context, image *storage.Upload) (string, error) {
	if image == nil {
		return "", nil
	}
	ref, err := storeUpload(ctx, s.files, storage.Motors, *image)
	s.metrics.Upload(string(storage.Motors), err)
	return ref, err
}

func (s *MotorService) Create(ctx context.Context, req entities.MotorRequest, image *storage.Upload) (*db.Motor, error) {
	if err := validateInput(req); err != nil {
		return nil, err
	}
	ref, err := s.uploadImage(ctx, image)
	if err != nil {
		return nil, err
	}

	m := &db.Motor{
		Brand:       req.Brand,
		Type:        req.Type,
		PricePerDay: req.PricePerDay,
		Specs:       req.Specs,
		Description: req.Description,
		ImageRef:    ref,
		Status:      db.MotorAvailable,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		return s.st.Motors.Create(ctx, q, m)
	})
	if err != nil {
		removeFile(ctx, s.files, ref)
		return nil, err
	}
	logger.WithCtx(ctx).Info("motor created", "motor_id", m.ID, "brand", m.Brand, "type", m.Type)
	return m, nil
}

// Update replaces the descriptive fields of a motor and, when an image is
// given, its picture. The status is changed through SetStatus only.
func (s *MotorService) Update(ctx context.Context, id int64, req entities.MotorRequest, image *storage.Upload) (*db.Motor, error) {
	if err := validateInput(req); err != nil {
		return nil, err
	}
	ref, err := s.uploadImage(ctx, image)
	if err != nil {
		return nil, err
	}

	var (
		m      *db.Motor
		oldRef string
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		var err error
		if m, err = s.st.Motors.GetForUpdate(ctx, q, id); err != nil {
			return notFound(err, "motor")
		}
		m.Brand, m.Type, m.PricePerDay = req.Brand, req.Type, req.PricePerDay
		m.Specs, m.Description = req.Specs, req.Description
		if ref != "" {
			oldRef, m.ImageRef = m.ImageRef, ref
		}
		return notFound(s.st.Motors.Update(ctx, q, m), "motor")
	})
	if err != nil {
		removeFile(ctx, s.files, ref)
		return nil, err
	}
	removeFile(ctx, s.files, oldRef)
	logger.WithCtx(ctx).Info("motor updated", "motor_id", id, "image_replaced", oldRef != "")
	return m, nil
}

func (s *MotorService) Get(ctx context.Context, id int64) (*db.Motor, error) {
	ctx, cancel := s.tx.WithTimeout(ctx)
	defer cancel()

	m, err := s.st.Motors.Get(ctx, s.tx.Reader(), id)
	if err != nil {
		return nil, notFound(err, "motor")
	}
	return m, nil
}

func (s *MotorService) List(ctx context.Context, f entities.MotorFilter) ([]db.Motor, error) {
	if f.Status != "" {
		st, err := db.ParseMotorStatus(f.Status)
		if err != nil {
			return nil, apperr.ErrValidation(err.Error())
		}
		f.Status = string(st)
	}
	ctx, cancel := s.tx.WithTimeout(ctx)
	defer cancel()

	return s.st.Motors.List(ctx, s.tx.Reader(), f)
}

// SetStatus is the admin override, used for example to make a motor
// available again once its rental has completed.
func (s *MotorService) SetStatus(ctx context.Context, id int64, req entities.MotorStatusRequest) (*db.Motor, error) {
	if err := validateInput(req); err != nil {
		return nil, err
	}
	status, err := db.ParseMotorStatus(req.Status)
	if err != nil {
		return nil, apperr.ErrValidation(err.Error())
	}

	var m *db.Motor
	err = s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		var err error
		if m, err = s.st.Motors.GetForUpdate(ctx, q, id); err != nil {
			return notFound(err, "motor")
		}
		if err := s.st.Motors.UpdateStatus(ctx, q, id, status); err != nil {
			return notFound(err, "motor")
		}
		m.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.WithCtx(ctx).Info("motor status set", "motor_id", id, "status", status)
	return m, nil
}

func (s *MotorService) Delete(ctx context.Context, id int64) error {
	return s.deleteMotors(ctx, []int64{id})
}

// BulkDelete removes every listed motor or none of them.
func (s *MotorService) BulkDelete(ctx context.Context, req entities.BulkDeleteRequest) (int, error) {
	if err := validateInput(req); err != nil {
		return 0, err
	}
	ids := slices.Clone(req.IDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if err := s.deleteMotors(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// deleteMotors locks the motors in id order, so concurrent bookings and
// deletions cannot slip an active reservation in between the check and the
// delete.
func (s *MotorService) deleteMotors(ctx context.Context, ids []int64) error {
	var images []string
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		var blocks []entities.DeleteBlock
		images = images[:0]
		for _, id := range ids {
			m, err := s.st.Motors.GetForUpdate(ctx, q, id)
			if err != nil {
				return notFound(err, fmt.Sprintf("motor %d", id))
			}
			active, err := s.st.Reservations.ActiveIDsForMotor(ctx, q, id)
			if err != nil {
				return err
			}
			if len(active) > 0 {
				blocks = append(blocks, entities.DeleteBlock{MotorID: id, Count: len(active), ReservationIDs: active})
				continue
			}
			if m.ImageRef != "" {
				images = append(images, m.ImageRef)
			}
		}
		if len(blocks) > 0 {
			msg := fmt.Sprintf("motor %d has %d active reservations", blocks[0].MotorID, blocks[0].Count)
			if len(blocks) > 1 {
				msg = fmt.Sprintf("%d motors have active reservations", len(blocks))
			}
			return apperr.ErrConflict(msg).WithDetail(blocks)
		}
		for _, id := range ids {
			if err := s.st.Motors.Delete(ctx, q, id); err != nil {
				return notFound(err, fmt.Sprintf("motor %d", id))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, ref := range images {
		removeFile(ctx, s.files, ref)
	}
	logger.WithCtx(ctx).Info("motors deleted", "motor_ids", ids)
	return nil
}
