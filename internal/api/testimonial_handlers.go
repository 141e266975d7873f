package api

import (
	"net/http"

	"motorent/internal/entities"
)

type TestimonialHandler struct {
	testimonials TestimonialService
}

func NewTestimonialHandler(testimonials TestimonialService) *TestimonialHandler {
	return &TestimonialHandler{testimonials: testimonials}
}

func (h *TestimonialHandler) Public(w http.ResponseWriter, r *http.Request) {
	list, err := h.testimonials.ListPublic(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "", list)
}

func (h *TestimonialHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req entities.TestimonialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.testimonials.Create(r.Context(), id.UserID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created(w, "Thanks! Your testimonial will appear once approved.", t)
}

func (h *TestimonialHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	list, err := h.testimonials.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "", list)
}

func (h *TestimonialHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req entities.TestimonialStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.testimonials.Moderate(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "Testimonial "+string(t.Status), t)
}

func (h *TestimonialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.testimonials.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "Testimonial deleted", nil)
}
