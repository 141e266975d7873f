package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	apperr "motorent/internal/errors"
	"motorent/internal/storage"
)

// FileHandler streams stored uploads. Motor images are public; proofs and
// identity documents are routed behind the admin guard.
type FileHandler struct {
	files storage.Files
}

func NewFileHandler(files storage.Files) *FileHandler {
	return &FileHandler{files: files}
}

func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ref := vars["category"] + "/" + vars["name"]

	rc, contentType, err := h.files.Open(r.Context(), ref)
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidRef):
		writeError(w, r, apperr.ErrNotFound("file not found"))
		return
	case err != nil:
		writeError(w, r, apperr.Transient("could not read the file, please retry", err))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=300")
	if vars["category"] == string(storage.Motors) {
		w.Header().Set("Cache-Control", "public, max-age=86400")
	}
	w.WriteHeader(http.StatusOK)
	io.Copy(w, rc) //nolint:errcheck
}
