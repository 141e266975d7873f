package repository

import (
	"context"
	"fmt"

	"motorent/internal/db"
	"motorent/internal/entities"
)

type TestimonialRepository struct{}

func NewTestimonialRepository() *TestimonialRepository {
	return &TestimonialRepository{}
}

func (r *TestimonialRepository) Get(ctx context.Context, q Querier, id int64) (*db.Testimonial, error) {
	var t db.Testimonial
	err := q.QueryRowContext(ctx,
		`SELECT id, user_id, content, rating, status, created_at FROM testimonials WHERE id = $1`, id,
	).Scan(&t.ID, &t.UserID, &t.Content, &t.Rating, &t.Status, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (r *TestimonialRepository) Create(ctx context.Context, q Querier, t *db.Testimonial) error {
	query := `
		INSERT INTO testimonials (user_id, content, rating, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := q.QueryRowContext(ctx, query, t.UserID, t.Content, t.Rating, t.Status).Scan(&t.ID, &t.CreatedAt)
	return mapErr(err)
}

// List returns testimonials with the author's name; an empty status
// returns all of them.
func (r *TestimonialRepository) List(ctx context.Context, q Querier, status db.TestimonialStatus) ([]entities.TestimonialDetail, error) {
	var w filter
	if status != "" {
		w.add("t.status = ?", status)
	}
	query := `
		SELECT t.id, t.user_id, t.content, t.rating, t.status, t.created_at, u.name
		FROM testimonials t
		JOIN users u ON u.id = t.user_id` + w.where() + `
		ORDER BY t.created_at DESC, t.id DESC`

	rows, err := q.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("error querying testimonials: %w", err)
	}
	defer rows.Close()

	list := []entities.TestimonialDetail{}
	for rows.Next() {
		var d entities.TestimonialDetail
		if err := rows.Scan(&d.ID, &d.UserID, &d.Content, &d.Rating, &d.Status, &d.CreatedAt, &d.UserName); err != nil {
			return nil, fmt.Errorf("error scanning testimonial: %w", err)
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

func (r *TestimonialRepository) UpdateStatus(ctx context.Context, q Querier, id int64, status db.TestimonialStatus) error {
	return expectOne(q.ExecContext(ctx, `UPDATE testimonials SET status = $2 WHERE id = $1`, id, status))
}

func (r *TestimonialRepository) Delete(ctx context.Context, q Querier, id int64) error {
	return expectOne(q.ExecContext(ctx, `DELETE FROM testimonials WHERE id = $1`, id))
}
