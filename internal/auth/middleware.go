package auth

import (
	"context"
	"net/http"
	"strings"

	"motorent/internal/db"
	apperr "motorent/internal/errors"
)

type ctxKey struct{}

// Identity is the authenticated caller.
type Identity struct {
	UserID int64
	Role   db.Role
	Email  string
}

func (i Identity) IsAdmin() bool { return i.Role == db.RoleAdmin }

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// FailFunc renders an authentication or authorization failure.
type FailFunc func(w http.ResponseWriter, r *http.Request, err error)

type Middleware struct {
	tokens *Tokens
	fail   FailFunc
}

func NewMiddleware(tokens *Tokens, fail FailFunc) *Middleware {
	return &Middleware{tokens: tokens, fail: fail}
}

// Authenticate requires a valid Bearer token.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			m.fail(w, r, apperr.ErrUnauthorized("missing bearer token"))
			return
		}
		claims, err := m.tokens.Verify(strings.TrimSpace(raw))
		if err != nil {
			m.fail(w, r, apperr.ErrUnauthorized("invalid or expired token").Wrap(err))
			return
		}
		ctx := WithIdentity(r.Context(), Identity{UserID: claims.UserID, Role: claims.Role, Email: claims.Email})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after Authenticate.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		if !ok {
			m.fail(w, r, apperr.ErrUnauthorized("authentication required"))
			return
		}
		if !id.IsAdmin() {
			m.fail(w, r, apperr.ErrForbidden("admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
