package repository

import (
	"context"
	"fmt"

	"motorent/internal/db"
)

const (
	userColumns        = `id, name, email, phone, password_hash, is_verified, role, document_ref, created_at`
	pendingUserColumns = `id, name, email, phone, password_hash, document_ref, created_at`
)

type UserRepository struct{}

func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

func scanUser(s scanner) (*db.User, error) {
	var u db.User
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.IsVerified, &u.Role, &u.DocumentRef, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func scanPendingUser(s scanner) (*db.PendingUser, error) {
	var u db.PendingUser
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.DocumentRef, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *UserRepository) Get(ctx context.Context, q Querier, id int64) (*db.User, error) {
	return scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, q Querier, email string) (*db.User, error) {
	return scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *UserRepository) List(ctx context.Context, q Querier) ([]db.User, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("error querying users: %w", err)
	}
	defer rows.Close()

	users := []db.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Create(ctx context.Context, q Querier, u *db.User) error {
	query := `
		INSERT INTO users (name, email, phone, password_hash, is_verified, role, document_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	err := q.QueryRowContext(ctx, query,
		u.Name, u.Email, u.Phone, u.PasswordHash, u.IsVerified, u.Role, u.DocumentRef,
	).Scan(&u.ID, &u.CreatedAt)
	return mapErr(err)
}

func (r *UserRepository) SetVerified(ctx context.Context, q Querier, id int64, verified bool) error {
	return expectOne(q.ExecContext(ctx, `UPDATE users SET is_verified = $2 WHERE id = $1`, id, verified))
}

func (r *UserRepository) Delete(ctx context.Context, q Querier, id int64) error {
	return expectOne(q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id))
}

// EmailTaken checks both verified accounts and registrations in review.
func (r *UserRepository) EmailTaken(ctx context.Context, q Querier, email string) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)
		    OR EXISTS (SELECT 1 FROM pending_users WHERE email = $1)`
	var taken bool
	err := q.QueryRowContext(ctx, query, email).Scan(&taken)
	return taken, mapErr(err)
}

func (r *UserRepository) CreatePending(ctx context.Context, q Querier, u *db.PendingUser) error {
	query := `
		INSERT INTO pending_users (name, email, phone, password_hash, document_ref)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := q.QueryRowContext(ctx, query,
		u.Name, u.Email, u.Phone, u.PasswordHash, u.DocumentRef,
	).Scan(&u.ID, &u.CreatedAt)
	return mapErr(err)
}

func (r *UserRepository) GetPending(ctx context.Context, q Querier, id int64) (*db.PendingUser, error) {
	return scanPendingUser(q.QueryRowContext(ctx, `SELECT `+pendingUserColumns+` FROM pending_users WHERE id = $1`, id))
}

func (r *UserRepository) GetPendingForUpdate(ctx context.Context, q Querier, id int64) (*db.PendingUser, error) {
	return scanPendingUser(q.QueryRowContext(ctx, `SELECT `+pendingUserColumns+` FROM pending_users WHERE id = $1 FOR UPDATE`, id))
}

func (r *UserRepository) GetPendingByEmail(ctx context.Context, q Querier, email string) (*db.PendingUser, error) {
	return scanPendingUser(q.QueryRowContext(ctx, `SELECT `+pendingUserColumns+` FROM pending_users WHERE email = $1`, email))
}

func (r *UserRepository) ListPending(ctx context.Context, q Querier) ([]db.PendingUser, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+pendingUserColumns+` FROM pending_users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("error querying pending users: %w", err)
	}
	defer rows.Close()

	users := []db.PendingUser{}
	for rows.Next() {
		u, err := scanPendingUser(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning pending user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) DeletePending(ctx context.Context, q Querier, id int64) error {
	return expectOne(q.ExecContext(ctx, `DELETE FROM pending_users WHERE id = $1`, id))
}
