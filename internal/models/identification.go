package models

import "time"

// Identification is a transient "this customer is physically present" event.
// It lives only in process memory and is consumed (or dismissed, or reaped)
// by staff; it is never written back to durable storage.
type Identification struct {
	ID          string
	MerchantID  string
	Identifier  string // normalized email or phone used to self-identify
	CustomerID  string // empty when the customer record was just created
	DisplayName string
	Email       string
	Phone       string

	PointsBalance int
	VisitCount    int
	IsFirstVisit  bool

	// RecentDuplicate marks the secondary flagged entry produced when a
	// customer re-identifies within the cooldown window. ElapsedMinutes is
	// the hint shown to staff for such entries.
	RecentDuplicate bool
	ElapsedMinutes  int

	CreatedAt time.Time
}

// Snapshot converts the identification into the staff-facing customer view.
func (id *Identification) Snapshot() CustomerSnapshot {
	return CustomerSnapshot{
		CustomerID:    id.CustomerID,
		DisplayName:   id.DisplayName,
		Email:         id.Email,
		Phone:         id.Phone,
		PointsBalance: id.PointsBalance,
		VisitCount:    id.VisitCount,
		IsFirstVisit:  id.IsFirstVisit,
	}
}

// IdentifyOutcome is what the customer's device receives after a
// self-identification, and what the cooldown tracker replays for repeat
// attempts inside the window.
type IdentifyOutcome struct {
	IdentificationID string
	CustomerID       string
	IsNew            bool
	DisplayName      string
	PointsBalance    int
}

// Transaction is a durable points movement (credit or redemption) recorded
// against a membership.
type Transaction struct {
	ID         string    `db:"id"`
	MerchantID string    `db:"merchant_id"`
	CustomerID string    `db:"customer_id"`
	StaffID    string    `db:"staff_id"`
	Kind       string    `db:"kind"` // "credit" or "redeem"
	Points     int       `db:"points"`
	Note       *string   `db:"note"`
	CreatedAt  time.Time `db:"created_at"`
}

const (
	TransactionCredit = "credit"
	TransactionRedeem = "redeem"
)
