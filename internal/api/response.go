package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apperr "motorent/internal/errors"
	"motorent/internal/logger"
)

const maxJSONBody = 1 << 20

// envelope is the shape of every response body.
type envelope struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      any         `json:"data,omitempty"`
	Kind      apperr.Kind `json:"kind,omitempty"`
	Details   any         `json:"details,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func ok(w http.ResponseWriter, message string, data any) {
	if message == "" {
		message = "OK"
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func created(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: message, Data: data})
}

// writeError renders err through the error taxonomy. Causes are logged,
// never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	he := apperr.From(err)
	log := logger.WithCtx(r.Context())
	switch {
	case he.Code >= http.StatusInternalServerError:
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", he.Code, "error", err)
	default:
		log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", he.Code, "error", err)
	}
	if he.Retryable() {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, he.Code, envelope{Message: he.Message, Kind: he.Kind, Details: he.Detail, Retryable: he.Retryable()})
}

// decodeJSON reads a single JSON object into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperr.NewHTTPError(http.StatusRequestEntityTooLarge, "request body is too large")
		case errors.Is(err, io.EOF):
			return apperr.ErrValidation("request body is empty")
		}
		return apperr.ErrValidation("invalid JSON body").Wrap(err)
	}
	if dec.More() {
		return apperr.ErrValidation("request body must contain a single JSON object")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ErrValidation(fmt.Sprintf("invalid %s %q", name, raw))
	}
	return id, nil
}
