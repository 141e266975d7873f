package repository

import (
	"context"
	"fmt"
	"time"
)

type JobRepository struct{}

func NewJobRepository() *JobRepository {
	return &JobRepository{}
}

// StalePendingReservationIDs returns pending reservations created before
// cutoff that never received a payment proof.
func (r *JobRepository) StalePendingReservationIDs(ctx context.Context, q Querier, cutoff time.Time) ([]int64, error) {
	query := `
		SELECT r.id FROM reservations r
		WHERE r.status = 'pending' AND r.created_at < $1
		  AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.reservation_id = r.id)
		ORDER BY r.id`
	rows, err := q.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("error querying stale pending reservations: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning reservation ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating rows: %w", err)
	}
	return ids, nil
}
