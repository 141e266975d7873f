package api

import (
	"net/http"

	"motorent/internal/entities"
)

// AccountHandler serves the admin side of registrations and users.
type AccountHandler struct {
	users UserService
}

func NewAccountHandler(users UserService) *AccountHandler {
	return &AccountHandler{users: users}
}

func (h *AccountHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.ListPending(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "", list)
}

func (h *AccountHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.users.Approve(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "Registration approved", u)
}

func (h *AccountHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.users.Reject(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "Registration rejected", nil)
}

func (h *AccountHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "", list)
}

func (h *AccountHandler) SetVerification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req entities.VerificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.users.SetVerified(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "User updated", u)
}

func (h *AccountHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "User deleted", nil)
}
