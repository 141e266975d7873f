package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Transactor hands out the connection pool for single reads and scoped
// transactions for everything that writes.
type Transactor interface {
	Reader() Querier
	WithinTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error
	WithTimeout(ctx context.Context) (context.Context, context.CancelFunc)
}

type SQLTransactor struct {
	DB      *sql.DB
	Timeout time.Duration
}

func NewTransactor(db *sql.DB, timeout time.Duration) *SQLTransactor {
	return &SQLTransactor{DB: db, Timeout: timeout}
}

func (t *SQLTransactor) Reader() Querier { return t.DB }

// WithTimeout bounds a database operation.
func (t *SQLTransactor) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.Timeout)
}

// WithinTx runs fn in one transaction. The transaction commits only when fn
// returns nil; any error, and any panic, rolls it back.
func (t *SQLTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) (err error) {
	ctx, cancel := t.WithTimeout(ctx)
	defer cancel()

	tx, err := t.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// mapErr converts driver errors into repository sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}

// expectOne turns an UPDATE/DELETE that touched no rows into ErrNotFound.
func expectOne(res sql.Result, err error) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// likePattern builds an ILIKE pattern with metacharacters escaped.
func likePattern(s string) string {
	out := make([]rune, 0, len(s)+2)
	out = append(out, '%')
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(append(out, '%'))
}
