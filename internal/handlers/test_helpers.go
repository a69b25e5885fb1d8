package handlers

import (
	"context"

	"github.com/mwhite-dev/punchcard/internal/models"
	"github.com/mwhite-dev/punchcard/internal/presence"
	"github.com/mwhite-dev/punchcard/internal/services"
)

// MockPresenceService implements PresenceServiceInterface for testing
type MockPresenceService struct {
	SelfIdentifyFunc         func(ctx context.Context, in services.IdentifyInput) (*models.IdentifyOutcome, error)
	StatusFunc               func(ctx context.Context, merchantCode, identificationID string) (*services.StatusResult, error)
	PendingFunc              func(merchantID string) []presence.PendingEntry
	ConsumeFunc              func(ctx context.Context, merchantID, identificationID string) (*services.ConsumeResult, error)
	DismissFunc              func(merchantID, identificationID string)
	LookupByPersonalCodeFunc func(ctx context.Context, merchantID, code string) (*services.LookupResult, error)
}

func (m *MockPresenceService) SelfIdentify(ctx context.Context, in services.IdentifyInput) (*models.IdentifyOutcome, error) {
	if m.SelfIdentifyFunc != nil {
		return m.SelfIdentifyFunc(ctx, in)
	}
	return nil, models.ErrNotFound
}

func (m *MockPresenceService) Status(ctx context.Context, merchantCode, identificationID string) (*services.StatusResult, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, merchantCode, identificationID)
	}
	return &services.StatusResult{}, nil
}

func (m *MockPresenceService) Pending(merchantID string) []presence.PendingEntry {
	if m.PendingFunc != nil {
		return m.PendingFunc(merchantID)
	}
	return nil
}

func (m *MockPresenceService) Consume(ctx context.Context, merchantID, identificationID string) (*services.ConsumeResult, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, merchantID, identificationID)
	}
	return nil, models.ErrNotFound
}

func (m *MockPresenceService) Dismiss(merchantID, identificationID string) {
	if m.DismissFunc != nil {
		m.DismissFunc(merchantID, identificationID)
	}
}

func (m *MockPresenceService) LookupByPersonalCode(ctx context.Context, merchantID, code string) (*services.LookupResult, error) {
	if m.LookupByPersonalCodeFunc != nil {
		return m.LookupByPersonalCodeFunc(ctx, merchantID, code)
	}
	return nil, models.ErrNotFound
}

// MockLoginService implements LoginServiceInterface for testing
type MockLoginService struct {
	LoginFunc func(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
}

func (m *MockLoginService) Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, in)
	}
	return nil, models.ErrInvalidCredentials
}

// MockPointsService implements PointsServiceInterface for testing
type MockPointsService struct {
	CreditFunc  func(ctx context.Context, in services.PointsInput) (int, error)
	RedeemFunc  func(ctx context.Context, in services.PointsInput) (int, error)
	HistoryFunc func(ctx context.Context, merchantID, customerID string, limit int) (*services.HistoryResult, error)
}

func (m *MockPointsService) Credit(ctx context.Context, in services.PointsInput) (int, error) {
	if m.CreditFunc != nil {
		return m.CreditFunc(ctx, in)
	}
	return in.Points, nil
}

func (m *MockPointsService) Redeem(ctx context.Context, in services.PointsInput) (int, error) {
	if m.RedeemFunc != nil {
		return m.RedeemFunc(ctx, in)
	}
	return 0, models.ErrPINRequired
}

func (m *MockPointsService) History(ctx context.Context, merchantID, customerID string, limit int) (*services.HistoryResult, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, merchantID, customerID, limit)
	}
	return nil, models.ErrNotFound
}
