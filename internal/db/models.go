package db

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

type Motor struct {
	ID          int64       `json:"id"`
	Brand       string      `json:"brand"`
	Type        string      `json:"type"`
	PricePerDay int64       `json:"price_per_day"`
	Specs       string      `json:"specs"`
	Description string      `json:"description"`
	ImageRef    string      `json:"image_ref,omitempty"`
	Status      MotorStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	IsVerified   bool      `json:"is_verified"`
	Role         Role      `json:"role"`
	DocumentRef  string    `json:"document_ref,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// PendingUser is a registration waiting for an admin decision.
type PendingUser struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	DocumentRef  string    `json:"document_ref"`
	CreatedAt    time.Time `json:"created_at"`
}

type Reservation struct {
	ID           int64             `json:"id"`
	UserID       int64             `json:"user_id"`
	MotorID      int64             `json:"motor_id"`
	StartDate    time.Time         `json:"start_date"`
	DurationDays int               `json:"duration_days"`
	TotalPrice   int64             `json:"total_price"`
	Status       ReservationStatus `json:"status"`
	Note         string            `json:"note,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// EndDate is the last calendar day covered by the reservation.
func (r Reservation) EndDate() time.Time {
	return r.StartDate.AddDate(0, 0, r.DurationDays)
}

type Payment struct {
	ID            int64         `json:"id"`
	ReservationID int64         `json:"reservation_id"`
	Amount        int64         `json:"amount"`
	ProofRef      string        `json:"proof_ref"`
	Note          string        `json:"note,omitempty"`
	Status        PaymentStatus `json:"status"`
	AdminNote     string        `json:"admin_note,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type Testimonial struct {
	ID        int64             `json:"id"`
	UserID    int64             `json:"user_id"`
	Content   string            `json:"content"`
	Rating    int               `json:"rating"`
	Status    TestimonialStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}
