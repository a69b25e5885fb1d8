package services

import (
	"context"
	"time"

	"github.com/mwhite-dev/punchcard/internal/models"
)

// MockCustomerStore implements CustomerStore for testing
type MockCustomerStore struct {
	GetByIDFunc            func(ctx context.Context, id string) (*models.Customer, error)
	FindByContactFunc      func(ctx context.Context, email, phone string) (*models.Customer, error)
	FindByPersonalCodeFunc func(ctx context.Context, code string) (*models.Customer, error)
	CreateFunc             func(ctx context.Context, c *models.Customer) (*models.Customer, error)
	TouchLastSeenFunc      func(ctx context.Context, id string, at time.Time) error
	GetMembershipFunc      func(ctx context.Context, merchantID, customerID string) (*models.Membership, error)
	EnsureMembershipFunc   func(ctx context.Context, merchantID, customerID string) (*models.Membership, error)
}

func (m *MockCustomerStore) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockCustomerStore) FindByContact(ctx context.Context, email, phone string) (*models.Customer, error) {
	if m.FindByContactFunc != nil {
		return m.FindByContactFunc(ctx, email, phone)
	}
	return nil, models.ErrNotFound
}

func (m *MockCustomerStore) FindByPersonalCode(ctx context.Context, code string) (*models.Customer, error) {
	if m.FindByPersonalCodeFunc != nil {
		return m.FindByPersonalCodeFunc(ctx, code)
	}
	return nil, models.ErrNotFound
}

func (m *MockCustomerStore) Create(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, c)
	}
	created := *c
	created.ID = "cust_created"
	return &created, nil
}

func (m *MockCustomerStore) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	if m.TouchLastSeenFunc != nil {
		return m.TouchLastSeenFunc(ctx, id, at)
	}
	return nil
}

func (m *MockCustomerStore) GetMembership(ctx context.Context, merchantID, customerID string) (*models.Membership, error) {
	if m.GetMembershipFunc != nil {
		return m.GetMembershipFunc(ctx, merchantID, customerID)
	}
	return nil, models.ErrNotFound
}

func (m *MockCustomerStore) EnsureMembership(ctx context.Context, merchantID, customerID string) (*models.Membership, error) {
	if m.EnsureMembershipFunc != nil {
		return m.EnsureMembershipFunc(ctx, merchantID, customerID)
	}
	return &models.Membership{MerchantID: merchantID, CustomerID: customerID, VisitCount: 1}, nil
}

// MockMerchantStore implements MerchantStore for testing
type MockMerchantStore struct {
	GetByIDFunc           func(ctx context.Context, id string) (*models.Merchant, error)
	GetByIdentifyCodeFunc func(ctx context.Context, code string) (*models.Merchant, error)
}

func (m *MockMerchantStore) GetByID(ctx context.Context, id string) (*models.Merchant, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockMerchantStore) GetByIdentifyCode(ctx context.Context, code string) (*models.Merchant, error) {
	if m.GetByIdentifyCodeFunc != nil {
		return m.GetByIdentifyCodeFunc(ctx, code)
	}
	return nil, models.ErrNotFound
}

// MockWelcomeMailer implements WelcomeMailer for testing
type MockWelcomeMailer struct {
	SendWelcomeEmailFunc func(ctx context.Context, email, displayName string) error
}

func (m *MockWelcomeMailer) SendWelcomeEmail(ctx context.Context, email, displayName string) error {
	if m.SendWelcomeEmailFunc != nil {
		return m.SendWelcomeEmailFunc(ctx, email, displayName)
	}
	return nil
}

// MockPointsLedger implements PointsLedger for testing
type MockPointsLedger struct {
	ApplyFunc           func(ctx context.Context, tx *models.Transaction) (int, error)
	ListForCustomerFunc func(ctx context.Context, merchantID, customerID string, limit int) ([]*models.Transaction, error)
	Applied             []*models.Transaction
}

func (m *MockPointsLedger) Apply(ctx context.Context, tx *models.Transaction) (int, error) {
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, tx)
	}
	m.Applied = append(m.Applied, tx)
	return tx.Points, nil
}

func (m *MockPointsLedger) ListForCustomer(ctx context.Context, merchantID, customerID string, limit int) ([]*models.Transaction, error) {
	if m.ListForCustomerFunc != nil {
		return m.ListForCustomerFunc(ctx, merchantID, customerID, limit)
	}
	return m.Applied, nil
}

// NewTestMerchant creates an active merchant for testing
func NewTestMerchant(id, identifyCode string) *models.Merchant {
	return &models.Merchant{
		ID:           id,
		Name:         "Test Coffee",
		IdentifyCode: identifyCode,
		Active:       true,
		CreatedAt:    time.Now(),
	}
}

// NewTestCustomer creates a customer keyed by email
func NewTestCustomer(id, email, name string) *models.Customer {
	now := time.Now()
	return &models.Customer{
		ID:           id,
		DisplayName:  name,
		Email:        &email,
		PersonalCode: "PERSONAL" + id,
		CreatedAt:    now,
	}
}

// NewTestCustomerWithPIN creates a customer with a stored PIN hash
func NewTestCustomerWithPIN(id, email, name, pinHash string) *models.Customer {
	c := NewTestCustomer(id, email, name)
	c.PINHash = pinHash
	return c
}

// NewTestMembership creates a membership with a given balance
func NewTestMembership(merchantID, customerID string, balance, visits int) *models.Membership {
	return &models.Membership{
		MerchantID:    merchantID,
		CustomerID:    customerID,
		PointsBalance: balance,
		VisitCount:    visits,
		CreatedAt:     time.Now(),
	}
}
