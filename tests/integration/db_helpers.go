package integration

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mwhite-dev/punchcard/internal/database"
	"github.com/mwhite-dev/punchcard/internal/models"
	pkgauth "github.com/mwhite-dev/punchcard/pkg/auth"
)

// TestDB manages the PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("punchcard"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         &database.DB{Pool: pool},
	}, nil
}

// runMigrations executes all goose migrations
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir, err := filepath.Abs("../../migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	goose.SetLogger(log.New(io.Discard, "", 0))

	// Goose needs a stdlib DB connection
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"transactions",
		"memberships",
		"customers",
		"staff",
		"merchants",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	return nil
}

// SeedMerchant inserts an active merchant with the given identify code
func SeedMerchant(ctx context.Context, pool *pgxpool.Pool, name, identifyCode string) (*models.Merchant, error) {
	query := `
		INSERT INTO merchants (name, identify_code, active)
		VALUES ($1, $2, true)
		RETURNING id, name, identify_code, active, created_at, updated_at`

	var m models.Merchant
	err := pool.QueryRow(ctx, query, name, identifyCode).Scan(
		&m.ID, &m.Name, &m.IdentifyCode, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert merchant: %w", err)
	}
	return &m, nil
}

// SeedStaff inserts a staff member for the merchant
func SeedStaff(ctx context.Context, pool *pgxpool.Pool, merchantID, email, role string) (*models.Staff, error) {
	query := `
		INSERT INTO staff (merchant_id, email, name, role)
		VALUES ($1, $2, 'Test Staff', $3)
		RETURNING id, merchant_id, email, name, role, created_at`

	var s models.Staff
	err := pool.QueryRow(ctx, query, merchantID, email, role).Scan(
		&s.ID, &s.MerchantID, &s.Email, &s.Name, &s.Role, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert staff: %w", err)
	}
	return &s, nil
}

// SeedCustomer inserts a customer keyed by email, optionally with a PIN
func SeedCustomer(ctx context.Context, pool *pgxpool.Pool, email, displayName, pin string) (*models.Customer, error) {
	var pinHash *string
	if pin != "" {
		hashed, err := pkgauth.HashPIN(pin)
		if err != nil {
			return nil, fmt.Errorf("failed to hash pin: %w", err)
		}
		pinHash = &hashed
	}

	personalCode, err := pkgauth.GeneratePersonalCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate personal code: %w", err)
	}

	query := `
		INSERT INTO customers (id, email, display_name, pin_hash, personal_code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, email, phone, display_name, COALESCE(pin_hash, ''), personal_code, created_at, updated_at, last_seen_at`

	var c models.Customer
	err = pool.QueryRow(ctx, query, uuid.New().String(), email, displayName, pinHash, personalCode).Scan(
		&c.ID, &c.Email, &c.Phone, &c.DisplayName, &c.PINHash,
		&c.PersonalCode, &c.CreatedAt, &c.UpdatedAt, &c.LastSeenAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert customer: %w", err)
	}
	return &c, nil
}

// SeedMembership inserts a membership with the given balance
func SeedMembership(ctx context.Context, pool *pgxpool.Pool, merchantID, customerID string, balance, visits int) error {
	query := `
		INSERT INTO memberships (merchant_id, customer_id, points_balance, visit_count)
		VALUES ($1, $2, $3, $4)`

	if _, err := pool.Exec(ctx, query, merchantID, customerID, balance, visits); err != nil {
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	return nil
}
