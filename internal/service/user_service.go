package service

import (
	"context"
	"errors"
	"strings"

	"motorent/internal/auth"
	"motorent/internal/db"
	"motorent/internal/entities"
	apperr "motorent/internal/errors"
	"motorent/internal/logger"
	"motorent/internal/repository"
	"motorent/internal/storage"
)

type UserService struct {
	tx       repository.Transactor
	st       Stores
	files    storage.Files
	tokens   *auth.Tokens
	notifier Notifier
}

func NewUserService(tx repository.Transactor, st Stores, files storage.Files, tokens *auth.Tokens, notifier Notifier) *UserService {
	return &UserService{tx: tx, st: st, files: files, tokens: tokens, notifier: notifier}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register files a registration for admin review. Nothing is bookable
// until an admin approves the identity document.
func (s *UserService) Register(ctx context.Context, req entities.RegisterRequest, document storage.Upload) (*db.PendingUser, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateInput(req); err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(ctx, s.tx.Reader(), req.Email); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	ref, err := storeUpload(ctx, s.files, storage.Documents, document)
	if err != nil {
		return nil, err
	}

	p := &db.PendingUser{Name: req.Name, Email: req.Email, Phone: req.Phone, PasswordHash: hash, DocumentRef: ref}
	err = s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		// Checked again, another registration may have won the race.
		if err := s.ensureEmailFree(ctx, q, req.Email); err != nil {
			return err
		}
		if err := s.st.Users.CreatePending(ctx, q, p); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.ErrConflict("email is already registered")
			}
			return err
		}
		return nil
	})
	if err != nil {
		removeFile(ctx, s.files, ref)
		return nil, err
	}
	logger.WithCtx(ctx).Info("registration received", "pending_id", p.ID, "email", p.Email)
	return p, nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, q repository.Querier, email string) error {
	taken, err := s.st.Users.EmailTaken(ctx, q, email)
	if err != nil {
		return err
	}
	if taken {
		return apperr.ErrConflict("email is already registered")
	}
	return nil
}

func (s *UserService) Login(ctx context.Context, req entities.LoginRequest) (*entities.LoginResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validateInput(req); err != nil {
		return nil, err
	}
	ctx, cancel := s.tx.WithTimeout(ctx)
	defer cancel()

	q := s.tx.Reader()
	u, err := s.st.Users.GetByEmail(ctx, q, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		if p, perr := s.st.Users.GetPendingByEmail(ctx, q, req.Email); perr == nil && auth.CheckPassword(p.PasswordHash, req.Password) {
			return nil, apperr.ErrUnauthorized("your registration is awaiting admin approval")
		}
		return nil, apperr.ErrUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, apperr.ErrUnauthorized("invalid credentials")
	}
	if !u.IsVerified {
		return nil, apperr.ErrUnauthorized("account is deactivated")
	}

	token, err := s.tokens.Issue(*u)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &entities.LoginResponse{Token: token, User: *u}, nil
}

func (s *UserService) ListPending(ctx context.Context) ([]db.PendingUser, error) {
	ctx, cancel := s.tx.WithTimeout(ctx)
	defer cancel()
	return s.st.Users.ListPending(ctx, s.tx.Reader())
}

// Approve promotes a pending registration to a verified user.
func (s *UserService) Approve(ctx context.Context, pendingID int64) (*db.User, error) {
	var u *db.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		p, err := s.st.Users.GetPendingForUpdate(ctx, q, pendingID)
		if err != nil {
			return notFound(err, "pending user")
		}
		u = &db.User{
			Name:         p.Name,
			Email:        p.Email,
			Phone:        p.Phone,
			PasswordHash: p.PasswordHash,
			IsVerified:   true,
			Role:         db.RoleUser,
			DocumentRef:  p.DocumentRef,
		}
		if err := s.st.Users.Create(ctx, q, u); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.ErrConflict("email is already registered")
			}
			return err
		}
		return notFound(s.st.Users.DeletePending(ctx, q, p.ID), "pending user")
	})
	if err != nil {
		return nil, err
	}
	logger.WithCtx(ctx).Info("registration approved", "pending_id", pendingID, "user_id", u.ID)
	s.notifier.AccountReviewed(ctx, entities.AccountNotice{UserName: u.Name, UserEmail: u.Email, UserPhone: u.Phone, Approved: true})
	return u, nil
}

func (s *UserService) Reject(ctx context.Context, pendingID int64) error {
	var p *db.PendingUser
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		var err error
		p, err = s.st.Users.GetPendingForUpdate(ctx, q, pendingID)
		if err != nil {
			return notFound(err, "pending user")
		}
		return notFound(s.st.Users.DeletePending(ctx, q, p.ID), "pending user")
	})
	if err != nil {
		return err
	}
	removeFile(ctx, s.files, p.DocumentRef)
	logger.WithCtx(ctx).Info("registration rejected", "pending_id", pendingID, "email", p.Email)
	s.notifier.AccountReviewed(ctx, entities.AccountNotice{UserName: p.Name, UserEmail: p.Email, UserPhone: p.Phone})
	return nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]db.User, error) {
	ctx, cancel := s.tx.WithTimeout(ctx)
	defer cancel()
	return s.st.Users.List(ctx, s.tx.Reader())
}

// SetVerified activates or deactivates an account. Deactivated users
// cannot log in or book.
func (s *UserService) SetVerified(ctx context.Context, id int64, req entities.VerificationRequest) (*db.User, error) {
	if err := validateInput(req); err != nil {
		return nil, err
	}
	var u *db.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		var err error
		if u, err = s.st.Users.Get(ctx, q, id); err != nil {
			return notFound(err, "user")
		}
		if u.Role == db.RoleAdmin && !*req.Verified {
			return apperr.ErrForbidden("admin accounts cannot be deactivated")
		}
		if err := s.st.Users.SetVerified(ctx, q, id, *req.Verified); err != nil {
			return notFound(err, "user")
		}
		u.IsVerified = *req.Verified
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.WithCtx(ctx).Info("user verification changed", "user_id", id, "verified", u.IsVerified)
	return u, nil
}

// DeleteUser removes an account that never booked. Users with
// reservations are kept for the record and can be deactivated instead.
func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	var u *db.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		var err error
		if u, err = s.st.Users.Get(ctx, q, id); err != nil {
			return notFound(err, "user")
		}
		if u.Role == db.RoleAdmin {
			return apperr.ErrForbidden("admin accounts cannot be deleted")
		}
		n, err := s.st.Reservations.CountForUser(ctx, q, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.ErrConflict("user has reservations, deactivate the account instead").WithDetail(map[string]int{"reservations": n})
		}
		return notFound(s.st.Users.Delete(ctx, q, id), "user")
	})
	if err != nil {
		return err
	}
	removeFile(ctx, s.files, u.DocumentRef)
	logger.WithCtx(ctx).Info("user deleted", "user_id", id)
	return nil
}

// CreateAdmin seeds an administrator account.
func (s *UserService) CreateAdmin(ctx context.Context, name, email, password string) (*db.User, error) {
	email = normalizeEmail(email)
	req := entities.CreateAdminRequest{Name: strings.TrimSpace(name), Email: email, Password: password}
	if err := validateInput(req); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	u := &db.User{Name: req.Name, Email: email, PasswordHash: hash, IsVerified: true, Role: db.RoleAdmin}
	err = s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		if err := s.ensureEmailFree(ctx, q, email); err != nil {
			return err
		}
		if err := s.st.Users.Create(ctx, q, u); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.ErrConflict("email is already registered")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.WithCtx(ctx).Info("admin created", "user_id", u.ID, "email", u.Email)
	return u, nil
}
