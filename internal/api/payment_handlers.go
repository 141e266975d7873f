package api

import (
	"net/http"

	"motorent/internal/entities"
)

type PaymentHandler struct {
	payments  PaymentService
	maxUpload int64
}

func NewPaymentHandler(payments PaymentService, maxUpload int64) *PaymentHandler {
	return &PaymentHandler{payments: payments, maxUpload: maxUpload}
}

// Submit uploads the proof of transfer for a reservation. Uploading again
// replaces the previous proof.
func (h *PaymentHandler) Submit(w http.ResponseWriter, r *http.Request) {
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
	if err := parseMultipart(w, r, h.maxUpload); err != nil {
		writeError(w, r, err)
		return
	}
	defer removeForm(r)
	proof, closeProof, err := requiredFile(r, "proof")
	defer closeProof()
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.payments.SubmitProof(r.Context(), id.UserID, resID, proof, formValue(r, "note"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	created(w, "Payment proof received. An admin will review it.", p)
}

func (h *PaymentHandler) ForReservation(w http.ResponseWriter, r *http.Request) {
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
	p, err := h.payments.GetForReservation(r.Context(), viewer(id), resID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "", p)
}

func (h *PaymentHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.payments.List(r.Context(), entities.PaymentFilter{Search: q.Get("search"), Status: q.Get("status")})
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "", list)
}

func (h *PaymentHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.payments.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "", d)
}

func (h *PaymentHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req entities.PaymentDecisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.payments.Decide(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "Payment "+string(d.Status), d)
}
