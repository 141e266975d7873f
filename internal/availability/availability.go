// Package availability decides whether a motor is free for a date range.
//
// Ranges are closed intervals of calendar dates. A reservation starting on
// S for D days covers [S, S+D]. Two ranges overlap unless one ends strictly
// before the other starts. Only pending, confirmed and completed
// reservations occupy their dates.
package availability

import (
	"errors"
	"fmt"
	"time"

	"motorent/internal/db"
)

const DateLayout = "2006-01-02"

var (
	ErrInvalidDuration = errors.New("duration must be a positive number of days")
	ErrStartInPast     = errors.New("start date must not be in the past")
	ErrEndBeforeStart  = errors.New("end date must not be before start date")
)

// Period is a closed range of calendar dates.
type Period struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// Day returns t's calendar date, as seen in t's location, at midnight UTC.
// Dates from different locations compare by calendar day after Day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewPeriod builds the range covered by a booking of days starting at start.
func NewPeriod(start time.Time, days int) (Period, error) {
	if days <= 0 {
		return Period{}, ErrInvalidDuration
	}
	s := Day(start)
	return Period{Start: s, End: s.AddDate(0, 0, days)}, nil
}

// Between builds a range from explicit start and end dates.
func Between(start, end time.Time) (Period, error) {
	s, e := Day(start), Day(end)
	if e.Before(s) {
		return Period{}, ErrEndBeforeStart
	}
	return Period{Start: s, End: e}, nil
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(v string) (time.Time, error) {
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must use format YYYY-MM-DD", v)
	}
	return t, nil
}

// ValidateStart rejects a start date earlier than today, where today is
// the calendar date of now in now's location.
func ValidateStart(start, now time.Time) error {
	if Day(start).Before(Day(now)) {
		return ErrStartInPast
	}
	return nil
}

// Overlaps reports whether a and b share at least one calendar date.
func (a Period) Overlaps(b Period) bool {
	return !(a.End.Before(b.Start) || b.End.Before(a.Start))
}

func (a Period) String() string {
	return a.Start.Format(DateLayout) + ".." + a.End.Format(DateLayout)
}

// Of returns the range a reservation covers.
func Of(r db.Reservation) Period {
	s := Day(r.StartDate)
	return Period{Start: s, End: s.AddDate(0, 0, r.DurationDays)}
}

// Conflict is a reservation that blocks a requested range.
type Conflict struct {
	ReservationID int64                `json:"reservation_id"`
	Status        db.ReservationStatus `json:"status"`
	Period        Period               `json:"period"`
}

type Result struct {
	MotorID   int64      `json:"motor_id"`
	Period    Period     `json:"period"`
	Available bool       `json:"available"`
	Reason    string     `json:"reason,omitempty"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

// Conflicts returns the blocking reservations of motorID overlapping p.
// Reservations of other motors are ignored.
func Conflicts(motorID int64, p Period, reservations []db.Reservation) []Conflict {
	var out []Conflict
	for _, r := range reservations {
		if r.MotorID != motorID || !r.Status.Blocks() {
			continue
		}
		rp := Of(r)
		if rp.Overlaps(p) {
			out = append(out, Conflict{ReservationID: r.ID, Status: r.Status, Period: rp})
		}
	}
	return out
}

// Evaluate decides whether m can be booked for p given the known
// reservations. A motor that is not currently available is never bookable.
func Evaluate(m db.Motor, p Period, reservations []db.Reservation) Result {
	res := Result{MotorID: m.ID, Period: p}
	res.Conflicts = Conflicts(m.ID, p, reservations)

	switch {
	case m.Status != db.MotorAvailable:
		res.Reason = fmt.Sprintf("motor is %s", m.Status)
	case len(res.Conflicts) > 0:
		res.Reason = fmt.Sprintf("motor has %d reservation(s) overlapping %s", len(res.Conflicts), p)
	default:
		res.Available = true
	}
	return res
}

// FilterAvailable keeps the motors Evaluate reports as available.
func FilterAvailable(motors []db.Motor, p Period, reservations []db.Reservation) []db.Motor {
	byMotor := make(map[int64][]db.Reservation)
	for _, r := range reservations {
		byMotor[r.MotorID] = append(byMotor[r.MotorID], r)
	}
	out := make([]db.Motor, 0, len(motors))
	for _, m := range motors {
		if Evaluate(m, p, byMotor[m.ID]).Available {
			out = append(out, m)
		}
	}
	return out
}
