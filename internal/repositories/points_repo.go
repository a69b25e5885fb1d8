package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mwhite-dev/punchcard/internal/database"
	"github.com/mwhite-dev/punchcard/internal/models"
)

// PointsRepository records points movements. The transaction row and the
// balance delta are committed atomically; a redemption that would drive the
// balance negative fails as ErrInsufficientPoints.
type PointsRepository struct {
	db *database.DB
}

func NewPointsRepository(db *database.DB) *PointsRepository {
	return &PointsRepository{db: db}
}

// Apply records tx and adjusts the membership balance. For redemptions
// tx.Points is positive; the sign flip happens here.
func (r *PointsRepository) Apply(ctx context.Context, tx *models.Transaction) (int, error) {
	delta := tx.Points
	if tx.Kind == models.TransactionRedeem {
		delta = -delta
	}

	var newBalance int
	err := r.db.WithTransaction(ctx, func(dbtx pgx.Tx) error {
		query := `
			UPDATE memberships
			SET points_balance = points_balance + $3, updated_at = now()
			WHERE merchant_id = $1 AND customer_id = $2
			RETURNING points_balance`

		if err := dbtx.QueryRow(ctx, query, tx.MerchantID, tx.CustomerID, delta).Scan(&newBalance); err != nil {
			return database.MapPostgresError(err)
		}
		if newBalance < 0 {
			// Rolls back the balance update as well
			return models.ErrInsufficientPoints
		}

		tx.ID = uuid.New().String()
		tx.CreatedAt = time.Now()

		insert := `
			INSERT INTO transactions (id, merchant_id, customer_id, staff_id, kind, points, note, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

		_, err := dbtx.Exec(ctx, insert,
			tx.ID, tx.MerchantID, tx.CustomerID, tx.StaffID, tx.Kind, tx.Points, tx.Note, tx.CreatedAt)
		return database.MapPostgresError(err)
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// ListForCustomer returns the most recent transactions for a membership,
// newest first.
func (r *PointsRepository) ListForCustomer(ctx context.Context, merchantID, customerID string, limit int) ([]*models.Transaction, error) {
	query := `
		SELECT id, merchant_id, customer_id, staff_id, kind, points, note, created_at
		FROM transactions
		WHERE merchant_id = $1 AND customer_id = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.db.Pool.Query(ctx, query, merchantID, customerID, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	txs := make([]*models.Transaction, 0)
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.ID, &tx.MerchantID, &tx.CustomerID, &tx.StaffID,
			&tx.Kind, &tx.Points, &tx.Note, &tx.CreatedAt); err != nil {
			return nil, database.MapPostgresError(err)
		}
		txs = append(txs, &tx)
	}
	return txs, rows.Err()
}
