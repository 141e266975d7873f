package entities

import (
	"motorent/internal/availability"
	"motorent/internal/db"
)

// AvailabilityQuery is the raw period a caller asks about. Exactly one of
// Duration and EndDate is expected.
type AvailabilityQuery struct {
	StartDate string
	Duration  string
	EndDate   string
}

type AvailableMotorsResponse struct {
	Period availability.Period `json:"period"`
	Motors []db.Motor          `json:"motors"`
}
