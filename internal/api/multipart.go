package api

import (
	"errors"
	"net/http"
	"strings"

	apperr "motorent/internal/errors"
	"motorent/internal/storage"
)

// multipartOverhead leaves room for the text fields next to the file.
const multipartOverhead = 1 << 20

// parseMultipart bounds the body and parses a multipart form. Files above
// the in-memory threshold are spooled to temporary files by net/http.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxFile int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFile+multipartOverhead)
	if err := r.ParseMultipartForm(maxFile); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.NewHTTPError(http.StatusRequestEntityTooLarge, "file is too large")
		}
		return apperr.ErrValidation("invalid multipart form").Wrap(err)
	}
	return nil
}

// removeForm deletes the temporary files of a parsed form.
func removeForm(r *http.Request) {
	if r.MultipartForm != nil {
		r.MultipartForm.RemoveAll() //nolint:errcheck
	}
}

// formFile returns the named file part, or nil when it is absent.
func formFile(r *http.Request, field string) (*storage.Upload, func(), error) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, apperr.ErrValidation("invalid " + field + " file").Wrap(err)
	}
	return &storage.Upload{Name: hdr.Filename, Body: f}, func() { f.Close() }, nil
}

// requiredFile is formFile for mandatory parts.
func requiredFile(r *http.Request, field string) (storage.Upload, func(), error) {
	u, closeFn, err := formFile(r, field)
	if err != nil {
		return storage.Upload{}, closeFn, err
	}
	if u == nil {
		return storage.Upload{}, closeFn, apperr.ErrValidation(field + " file is required")
	}
	return *u, closeFn, nil
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}
