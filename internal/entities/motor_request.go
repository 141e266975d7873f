package entities

type MotorRequest struct {
	Brand       string `json:"brand" validate:"required,max=100"`
	Type        string `json:"type" validate:"required,max=100"`
	PricePerDay int64  `json:"price_per_day" validate:"required,gt=0"`
	Specs       string `json:"specs" validate:"max=4000"`
	Description string `json:"description" validate:"max=4000"`
}

type MotorStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type MotorFilter struct {
	Search string
	Status string
}

type BulkDeleteRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

// DeleteBlock explains why a motor could not be deleted.
type DeleteBlock struct {
	MotorID        int64   `json:"motor_id"`
	Count          int     `json:"count"`
	ReservationIDs []int64 `json:"reservation_ids"`
}
