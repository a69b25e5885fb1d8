package models

import "time"

// Customer is a loyalty-card holder, global across merchants. Customers are
// identified by email and/or phone; either may be absent but never both.
type Customer struct {
	ID           string     `db:"id"`
	Email        *string    `db:"email"`
	Phone        *string    `db:"phone"`
	DisplayName  string     `db:"display_name"`
	PINHash      string     `db:"pin_hash"`
	PersonalCode string     `db:"personal_code"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	LastSeenAt   *time.Time `db:"last_seen_at"`
}

// ContactString returns the customer's primary contact identifier, preferring
// email over phone.
func (c *Customer) ContactString() string {
	if c.Email != nil && *c.Email != "" {
		return *c.Email
	}
	if c.Phone != nil {
		return *c.Phone
	}
	return ""
}

// Membership is a customer's per-merchant loyalty state. It is owned by the
// durable store; the presence core only reads snapshots of it.
type Membership struct {
	MerchantID    string    `db:"merchant_id"`
	CustomerID    string    `db:"customer_id"`
	PointsBalance int       `db:"points_balance"`
	VisitCount    int       `db:"visit_count"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// CustomerSnapshot is the read-only view of a customer handed to staff when
// an identification is consumed or a personal code is looked up.
type CustomerSnapshot struct {
	CustomerID    string `json:"customer_id"`
	DisplayName   string `json:"display_name"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	PointsBalance int    `json:"points_balance"`
	VisitCount    int    `json:"visit_count"`
	IsFirstVisit  bool   `json:"is_first_visit"`
}
