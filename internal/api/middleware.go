package api

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/handlers"

	apperr "motorent/internal/errors"
	"motorent/internal/logger"
)

// accessLog writes one line per request through the request's logger.
func accessLog(next http.Handler) http.Handler {
	return handlers.CustomLoggingHandler(io.Discard, next, func(_ io.Writer, p handlers.LogFormatterParams) {
		logger.WithCtx(p.Request.Context()).Info("http request",
			"method", p.Request.Method, "path", p.URL.Path, "status", p.StatusCode,
			"bytes", p.Size, "duration", time.Since(p.TimeStamp), "remote", p.Request.RemoteAddr)
	})
}

// recoverer turns a handler panic into a 500 envelope.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				logger.WithCtx(r.Context()).Error("panic in handler", "panic", p, "stack", string(debug.Stack()))
				writeError(w, r, apperr.Internal(fmt.Errorf("panic: %v", p)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
