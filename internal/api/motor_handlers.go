package api

import (
	"net/http"
	"strconv"

	"motorent/internal/entities"
	apperr "motorent/internal/errors"
)

type MotorHandler struct {
	motors       MotorService
	reservations ReservationService
	maxUpload    int64
}

func NewMotorHandler(motors MotorService, reservations ReservationService, maxUpload int64) *MotorHandler {
	return &MotorHandler{motors: motors, reservations: reservations, maxUpload: maxUpload}
}

func availabilityQuery(r *http.Request) entities.AvailabilityQuery {
	q := r.URL.Query()
	return entities.AvailabilityQuery{
		StartDate: q.Get("start_date"),
		Duration:  q.Get("duration"),
		EndDate:   q.Get("end_date"),
	}
}

func (h *MotorHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.motors.List(r.Context(), entities.MotorFilter{Search: q.Get("search"), Status: q.Get("status")})
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "", list)
}

func (h *MotorHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.motors.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "", m)
}

func (h *MotorHandler) Available(w http.ResponseWriter, r *http.Request) {
	resp, err := h.reservations.AvailableMotors(r.Context(), availabilityQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "", resp)
}

func (h *MotorHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.reservations.CheckAvailability(r.Context(), id, availabilityQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := "Motor is available"
	if !res.Available {
		msg = res.Reason
	}
	ok(w, msg, res)
}

// motorForm reads the multipart motor fields.
func motorForm(r *http.Request) (entities.MotorRequest, error) {
	req := entities.MotorRequest{
		Brand:       formValue(r, "brand"),
		Type:        formValue(r, "type"),
		Specs:       formValue(r, "specs"),
		Description: formValue(r, "description"),
	}
	if raw := formValue(r, "price_per_day"); raw != "" {
		price, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return req, apperr.ErrValidation("price_per_day must be a whole number")
		}
		req.PricePerDay = price
	}
	return req, nil
}

func (h *MotorHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r, h.maxUpload); err != nil {
		writeError(w, r, err)
		return
	}
	defer removeForm(r)
	req, err := motorForm(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	image, closeImage, err := formFile(r, "image")
	defer closeImage()
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.motors.Create(r.Context(), req, image)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created(w, "Motor created", m)
}

func (h *MotorHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := parseMultipart(w, r, h.maxUpload); err != nil {
		writeError(w, r, err)
		return
	}
	defer removeForm(r)
	req, err := motorForm(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	image, closeImage, err := formFile(r, "image")
	defer closeImage()
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.motors.Update(r.Context(), id, req, image)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "Motor updated", m)
}

func (h *MotorHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req entities.MotorStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.motors.SetStatus(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "Motor status updated", m)
}

func (h *MotorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.motors.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "Motor deleted", nil)
}

func (h *MotorHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req entities.BulkDeleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.motors.BulkDelete(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, strconv.Itoa(n)+" motors deleted", map[string]int{"deleted": n})
}
