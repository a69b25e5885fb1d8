package models

import "time"

// Merchant is a tenant business using the loyalty system. IdentifyCode is the
// opaque value embedded in the QR poster customers scan at the counter.
type Merchant struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	IdentifyCode string    `db:"identify_code"`
	Active       bool      `db:"active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Staff roles, in ascending order of privilege.
const (
	RoleCashier = "cashier"
	RoleManager = "manager"
	RoleOwner   = "owner"
)

// Staff is an authenticated employee of a merchant.
type Staff struct {
	ID         string    `db:"id"`
	MerchantID string    `db:"merchant_id"`
	Email      string    `db:"email"`
	Name       string    `db:"name"`
	Role       string    `db:"role"`
	CreatedAt  time.Time `db:"created_at"`
}
