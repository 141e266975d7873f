package api

import (
	"net/http"

	"motorent/internal/auth"
	"motorent/internal/entities"
	apperr "motorent/internal/errors"
	"motorent/internal/service"
)

type AuthHandler struct {
	users     UserService
	maxUpload int64
}

func NewAuthHandler(users UserService, maxUpload int64) *AuthHandler {
	return &AuthHandler{users: users, maxUpload: maxUpload}
}

// Register takes a multipart form with the account fields and the
// identity document.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r, h.maxUpload); err != nil {
		writeError(w, r, err)
		return
	}
	defer removeForm(r)
	doc, closeDoc, err := requiredFile(r, "document")
	defer closeDoc()
	if err != nil {
		writeError(w, r, err)
		return
	}

	req := entities.RegisterRequest{
		Name:     formValue(r, "name"),
		Email:    formValue(r, "email"),
		Phone:    formValue(r, "phone"),
		Password: r.FormValue("password"),
	}
	p, err := h.users.Register(r.Context(), req, doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created(w, "Registration received. An admin will verify your document.", p)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req entities.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.users.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "Logged in", resp)
}

// caller returns the authenticated identity set by auth.Middleware.
func caller(r *http.Request) (auth.Identity, error) {
	id, found := auth.FromContext(r.Context())
	if !found {
		return auth.Identity{}, apperr.ErrUnauthorized("authentication required")
	}
	return id, nil
}

func viewer(id auth.Identity) service.Viewer {
	return service.Viewer{UserID: id.UserID, Admin: id.IsAdmin()}
}
