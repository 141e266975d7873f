package entities

// PaymentNotice is what the notifier needs to tell a renter about an admin
// decision on their payment.
type PaymentNotice struct {
	UserName      string
	UserEmail     string
	UserPhone     string
	ReservationID int64
	MotorName     string
	StartDate     string
	EndDate       string
	TotalPrice    int64
	Status        string
	AdminNote     string
}

// AccountNotice tells a registrant the outcome of their verification.
type AccountNotice struct {
	UserName  string
	UserEmail string
	UserPhone string
	Approved  bool
}
