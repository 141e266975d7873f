// Package reqid tags every HTTP request with an ID that is echoed in the
// X-Request-ID response header and attached to the request's logger.
package reqid

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"motorent/internal/logger"
)

const Header = "X-Request-ID"

type ctxKey struct{}

// upstream IDs are reused only when they look sane.
var validID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

func WithValue(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromCtx returns the request ID, or "" outside a request.
func FromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Middleware reuses an incoming X-Request-ID or generates one, and stores a
// logger carrying it in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if !validID.MatchString(id) {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)

		ctx := WithValue(r.Context(), id)
		ctx = logger.Inject(ctx, logger.L.With("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
