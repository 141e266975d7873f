package api

import (
	"net/http"

	"motorent/internal/entities"
)

type ReservationHandler struct {
	reservations ReservationService
}

func NewReservationHandler(reservations ReservationService) *ReservationHandler {
	return &ReservationHandler{reservations: reservations}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req entities.CreateReservationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.reservations.Create(r.Context(), id.UserID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created(w, "Reservation created. Upload your proof of transfer to confirm it.", res)
}

func (h *ReservationHandler) Mine(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.reservations.ListForUser(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "", list)
}

func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.reservations.Get(r.Context(), viewer(id), resID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "", d)
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.reservations.Cancel(r.Context(), id.UserID, resID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "Reservation cancelled", res)
}

func (h *ReservationHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.reservations.List(r.Context(), entities.ReservationFilter{Search: q.Get("search"), Status: q.Get("status")})
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "", list)
}

func (h *ReservationHandler) AdminSetStatus(w http.ResponseWriter, r *http.Request) {
	resID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req entities.UpdateReservationStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.reservations.UpdateStatus(r.Context(), resID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "Reservation updated", res)
}
