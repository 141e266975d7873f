package entities

type CreateReservationRequest struct {
	MotorID      int64  `json:"motor_id" validate:"required,gt=0"`
	StartDate    string `json:"start_date" validate:"required,datetime=2006-01-02"`
	DurationDays int    `json:"duration_days" validate:"required,gt=0,lte=365"`
	Note         string `json:"note" validate:"max=1000"`
}

type UpdateReservationStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type ReservationFilter struct {
	Search string
	Status string
}
