package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mwhite-dev/punchcard/internal/database"
	"github.com/mwhite-dev/punchcard/internal/models"
)

// CustomerRepository reads and writes customer records and per-merchant
// memberships in the durable store.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

func NewCustomerRepository(db *database.DB) *CustomerRepository {
	return &CustomerRepository{pool: db.Pool}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const customerColumns = `id, email, phone, display_name, pin_hash, personal_code, created_at, updated_at, last_seen_at`

func scanCustomerRow(scanner rowScanner) (*models.Customer, error) {
	var c models.Customer
	var pinHash *string

	err := scanner.Scan(
		&c.ID, &c.Email, &c.Phone, &c.DisplayName, &pinHash,
		&c.PersonalCode, &c.CreatedAt, &c.UpdatedAt, &c.LastSeenAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if pinHash != nil {
		c.PINHash = *pinHash
	}
	return &c, nil
}

// GetByID fetches a customer by primary key.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE id = $1`, customerColumns)
	return scanCustomerRow(r.pool.QueryRow(ctx, query, id))
}

// FindByContact looks a customer up by normalized email or phone. Exactly
// one of email/phone is non-empty.
func (r *CustomerRepository) FindByContact(ctx context.Context, email, phone string) (*models.Customer, error) {
	var query string
	var arg string
	if email != "" {
		query = fmt.Sprintf(`SELECT %s FROM customers WHERE email = $1`, customerColumns)
		arg = email
	} else {
		query = fmt.Sprintf(`SELECT %s FROM customers WHERE phone = $1`, customerColumns)
		arg = phone
	}
	return scanCustomerRow(r.pool.QueryRow(ctx, query, arg))
}

// FindByPersonalCode resolves the static code embedded in a customer's
// personal QR.
func (r *CustomerRepository) FindByPersonalCode(ctx context.Context, code string) (*models.Customer, error) {
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE personal_code = $1`, customerColumns)
	return scanCustomerRow(r.pool.QueryRow(ctx, query, code))
}

// Create inserts a new customer record.
func (r *CustomerRepository) Create(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	c.ID = uuid.New().String()
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
		INSERT INTO customers (id, email, phone, display_name, pin_hash, personal_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	var pinHash *string
	if c.PINHash != "" {
		pinHash = &c.PINHash
	}

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.Email, c.Phone, c.DisplayName, pinHash, c.PersonalCode, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return c, nil
}

// TouchLastSeen records a presence event against the customer record.
func (r *CustomerRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE customers SET last_seen_at = $2, updated_at = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, at)
	return database.MapPostgresError(err)
}

// GetMembership returns the per-merchant loyalty state for a customer, or
// ErrNotFound when the customer has never visited this merchant.
func (r *CustomerRepository) GetMembership(ctx context.Context, merchantID, customerID string) (*models.Membership, error) {
	query := `
		SELECT merchant_id, customer_id, points_balance, visit_count, created_at, updated_at
		FROM memberships
		WHERE merchant_id = $1 AND customer_id = $2`

	var m models.Membership
	err := r.pool.QueryRow(ctx, query, merchantID, customerID).Scan(
		&m.MerchantID, &m.CustomerID, &m.PointsBalance, &m.VisitCount, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &m, nil
}

// EnsureMembership creates the membership row on first visit and bumps the
// visit count, returning the resulting state.
func (r *CustomerRepository) EnsureMembership(ctx context.Context, merchantID, customerID string) (*models.Membership, error) {
	query := `
		INSERT INTO memberships (merchant_id, customer_id, points_balance, visit_count, created_at, updated_at)
		VALUES ($1, $2, 0, 1, now(), now())
		ON CONFLICT (merchant_id, customer_id)
		DO UPDATE SET visit_count = memberships.visit_count + 1, updated_at = now()
		RETURNING merchant_id, customer_id, points_balance, visit_count, created_at, updated_at`

	var m models.Membership
	err := r.pool.QueryRow(ctx, query, merchantID, customerID).Scan(
		&m.MerchantID, &m.CustomerID, &m.PointsBalance, &m.VisitCount, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &m, nil
}
