package entities

import "motorent/internal/db"

type TestimonialRequest struct {
	Content string `json:"content" validate:"required,min=5,max=2000"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
}

type TestimonialStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type TestimonialDetail struct {
	db.Testimonial
	UserName string `json:"user_name"`
}
