package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"motorent/internal/logger"
	"motorent/internal/metrics"
	"motorent/internal/repository"
)

// JobService runs the periodic housekeeping of reservations.
type JobService struct {
	tx      repository.Transactor
	jobs    JobStore
	res     *ReservationService
	expiry  time.Duration
	metrics *metrics.Metrics
}

func NewJobService(tx repository.Transactor, st Stores, res *ReservationService, expiry time.Duration, m *metrics.Metrics) *JobService {
	return &JobService{tx: tx, jobs: st.Jobs, res: res, expiry: expiry, metrics: m}
}

func (s *JobService) Enabled() bool { return s.expiry > 0 }

// ExpireStalePending cancels pending reservations that never got a payment
// proof within the expiry window. Each one is cancelled in its own
// transaction; a failure is logged and the sweep moves on.
func (s *JobService) ExpireStalePending(ctx context.Context) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}
	log := logger.WithCtx(ctx)
	cutoff := s.res.now().Add(-s.expiry)

	qctx, cancel := s.tx.WithTimeout(ctx)
	ids, err := s.jobs.StalePendingReservationIDs(qctx, s.tx.Reader(), cutoff)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("cron job: failed to list stale pending reservations: %w", err)
	}
	if len(ids) == 0 {
		log.Debug("cron job: no stale pending reservations")
		return 0, nil
	}

	expired := 0
	for _, id := range ids {
		ok, err := s.res.ExpireUnpaid(ctx, id)
		if err != nil {
			log.Error("cron job: failed to expire reservation", "reservation_id", id, "error", err)
			continue
		}
		if ok {
			expired++
		}
	}
	s.metrics.Expired(expired)
	log.Info("cron job: expired unpaid reservations", "found", len(ids), "expired", expired, "cutoff", cutoff)
	return expired, nil
}

// Schedule registers the sweep on c. It is a no-op when expiry is disabled.
func (s *JobService) Schedule(c *cron.Cron, spec string) error {
	if !s.Enabled() {
		logger.L.Info("pending reservation expiry disabled")
		return nil
	}
	_, err := c.AddFunc(spec, func() {
		if _, err := s.ExpireStalePending(context.Background()); err != nil {
			logger.L.Error("cron job failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	logger.L.Info("pending reservation expiry scheduled", "schedule", spec, "expiry", s.expiry)
	return nil
}
