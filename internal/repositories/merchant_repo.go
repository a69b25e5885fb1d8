package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mwhite-dev/punchcard/internal/database"
	"github.com/mwhite-dev/punchcard/internal/models"
)

// MerchantRepository reads merchant and staff records from the durable
// store. The recognition core never creates merchants; that belongs to the
// registration flows outside this service.
type MerchantRepository struct {
	pool *pgxpool.Pool
}

func NewMerchantRepository(db *database.DB) *MerchantRepository {
	return &MerchantRepository{pool: db.Pool}
}

const merchantColumns = `id, name, identify_code, active, created_at, updated_at`

func scanMerchantRow(scanner rowScanner) (*models.Merchant, error) {
	var m models.Merchant
	err := scanner.Scan(&m.ID, &m.Name, &m.IdentifyCode, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &m, nil
}

// GetByID fetches a merchant by primary key.
func (r *MerchantRepository) GetByID(ctx context.Context, id string) (*models.Merchant, error) {
	query := fmt.Sprintf(`SELECT %s FROM merchants WHERE id = $1`, merchantColumns)
	return scanMerchantRow(r.pool.QueryRow(ctx, query, id))
}

// GetByIdentifyCode resolves the opaque code embedded in the counter QR.
// Inactive merchants resolve as not found.
func (r *MerchantRepository) GetByIdentifyCode(ctx context.Context, code string) (*models.Merchant, error) {
	query := fmt.Sprintf(`SELECT %s FROM merchants WHERE identify_code = $1 AND active`, merchantColumns)
	return scanMerchantRow(r.pool.QueryRow(ctx, query, code))
}

// GetStaffByID fetches a staff member by primary key.
func (r *MerchantRepository) GetStaffByID(ctx context.Context, id string) (*models.Staff, error) {
	query := `SELECT id, merchant_id, email, name, role, created_at FROM staff WHERE id = $1`

	var s models.Staff
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.MerchantID, &s.Email, &s.Name, &s.Role, &s.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &s, nil
}
