package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhite-dev/punchcard/internal/models"
	"github.com/mwhite-dev/punchcard/internal/presence"
	pkgauth "github.com/mwhite-dev/punchcard/pkg/auth"
)

type pointsFixture struct {
	svc          *PointsService
	ledger       *MockPointsLedger
	customers    *MockCustomerStore
	verifyTokens *presence.Issuer[struct{}]
	secretTokens *presence.Issuer[string]
}

func newPointsFixture() *pointsFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &pointsFixture{
		ledger:       &MockPointsLedger{},
		customers:    &MockCustomerStore{},
		verifyTokens: presence.NewIssuer[struct{}](30 * time.Minute),
		secretTokens: presence.NewIssuer[string](5 * time.Minute),
	}
	f.svc = NewPointsService(f.ledger, f.customers, f.verifyTokens, f.secretTokens, logger)
	return f
}

func TestCreditNeedsNoAuthorization(t *testing.T) {
	f := newPointsFixture()

	balance, err := f.svc.Credit(context.Background(), PointsInput{
		MerchantID: "m1", StaffID: "s1", CustomerID: "c1", Points: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, balance)
	require.Len(t, f.ledger.Applied, 1)
	assert.Equal(t, models.TransactionCredit, f.ledger.Applied[0].Kind)
}

func TestCreditRejectsNonPositivePoints(t *testing.T) {
	f := newPointsFixture()

	_, err := f.svc.Credit(context.Background(), PointsInput{
		MerchantID: "m1", CustomerID: "c1", Points: 0,
	})
	assert.ErrorIs(t, err, models.ErrBadRequest)

	_, err = f.svc.Credit(context.Background(), PointsInput{
		MerchantID: "m1", CustomerID: "c1", Points: -5,
	})
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestRedeemWithVerifyToken(t *testing.T) {
	f := newPointsFixture()
	now := time.Now()

	token, err := f.verifyTokens.Issue(struct{}{}, now)
	require.NoError(t, err)

	balance, err := f.svc.Redeem(context.Background(), PointsInput{
		MerchantID: "m1", StaffID: "s1", CustomerID: "c1",
		Points: 50, VerifyToken: token,
	})
	require.NoError(t, err)
	assert.Equal(t, 50, balance)
	require.Len(t, f.ledger.Applied, 1)
	assert.Equal(t, models.TransactionRedeem, f.ledger.Applied[0].Kind)
}

func TestRedeemVerifyTokenSingleUse(t *testing.T) {
	f := newPointsFixture()

	token, err := f.verifyTokens.Issue(struct{}{}, time.Now())
	require.NoError(t, err)

	in := PointsInput{
		MerchantID: "m1", StaffID: "s1", CustomerID: "c1",
		Points: 50, VerifyToken: token,
	}
	_, err = f.svc.Redeem(context.Background(), in)
	require.NoError(t, err)

	_, err = f.svc.Redeem(context.Background(), in)
	assert.ErrorIs(t, err, models.ErrUnauthorized, "a verify token is spent by its first use")
	assert.Len(t, f.ledger.Applied, 1)
}

func TestRedeemExpiredVerifyToken(t *testing.T) {
	f := newPointsFixture()
	base := time.Now()

	token, err := f.verifyTokens.Issue(struct{}{}, base)
	require.NoError(t, err)

	f.svc.SetClock(fixedClock(base.Add(31 * time.Minute)))
	_, err = f.svc.Redeem(context.Background(), PointsInput{
		MerchantID: "m1", CustomerID: "c1", Points: 50, VerifyToken: token,
	})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Empty(t, f.ledger.Applied)
}

func TestRedeemWithPINToken(t *testing.T) {
	f := newPointsFixture()
	now := time.Now()

	hash, err := pkgauth.HashPIN("4321")
	require.NoError(t, err)
	pinToken, err := f.secretTokens.Issue(hash, now)
	require.NoError(t, err)

	balance, err := f.svc.Redeem(context.Background(), PointsInput{
		MerchantID: "m1", CustomerID: "c1", Points: 30,
		PINToken: pinToken, PIN: "4321",
	})
	require.NoError(t, err)
	assert.Equal(t, 30, balance)
}

func TestRedeemPINTokenWrongPIN(t *testing.T) {
	f := newPointsFixture()
	now := time.Now()

	hash, err := pkgauth.HashPIN("4321")
	require.NoError(t, err)
	pinToken, err := f.secretTokens.Issue(hash, now)
	require.NoError(t, err)

	_, err = f.svc.Redeem(context.Background(), PointsInput{
		MerchantID: "m1", CustomerID: "c1", Points: 30,
		PINToken: pinToken, PIN: "0000",
	})
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	// The token was consumed by the failed attempt.
	_, err = f.svc.Redeem(context.Background(), PointsInput{
		MerchantID: "m1", CustomerID: "c1", Points: 30,
		PINToken: pinToken, PIN: "4321",
	})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestRedeemWithDirectPIN(t *testing.T) {
	f := newPointsFixture()

	hash, err := pkgauth.HashPIN("4321")
	require.NoError(t, err)
	f.customers.GetByIDFunc = func(ctx context.Context, id string) (*models.Customer, error) {
		return NewTestCustomerWithPIN(id, "a@example.com", "Alice", hash), nil
	}

	balance, err := f.svc.Redeem(context.Background(), PointsInput{
		MerchantID: "m1", CustomerID: "c1", Points: 20, PIN: "4321",
	})
	require.NoError(t, err)
	assert.Equal(t, 20, balance)

	_, err = f.svc.Redeem(context.Background(), PointsInput{
		MerchantID: "m1", CustomerID: "c1", Points: 20, PIN: "9999",
	})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestRedeemWithoutProof(t *testing.T) {
	f := newPointsFixture()

	_, err := f.svc.Redeem(context.Background(), PointsInput{
		MerchantID: "m1", CustomerID: "c1", Points: 20,
	})
	assert.ErrorIs(t, err, models.ErrPINRequired)
	assert.Empty(t, f.ledger.Applied)
}

func TestHistoryReturnsStandingAndTransactions(t *testing.T) {
	f := newPointsFixture()

	f.customers.GetMembershipFunc = func(ctx context.Context, merchantID, customerID string) (*models.Membership, error) {
		assert.Equal(t, "m1", merchantID)
		assert.Equal(t, "c1", customerID)
		return NewTestMembership("m1", "c1", 70, 4), nil
	}
	f.ledger.ListForCustomerFunc = func(ctx context.Context, merchantID, customerID string, limit int) ([]*models.Transaction, error) {
		assert.Equal(t, 50, limit, "limit falls back to the default when unset")
		return []*models.Transaction{
			{ID: "tx2", Kind: models.TransactionRedeem, Points: 50},
			{ID: "tx1", Kind: models.TransactionCredit, Points: 120},
		}, nil
	}

	result, err := f.svc.History(context.Background(), "m1", "c1", 0)
	require.NoError(t, err)
	assert.Equal(t, 70, result.PointsBalance)
	assert.Equal(t, 4, result.VisitCount)
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "tx2", result.Transactions[0].ID)
}

func TestHistoryUnknownMembership(t *testing.T) {
	f := newPointsFixture()

	_, err := f.svc.History(context.Background(), "m1", "ghost", 10)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRedeemInsufficientPoints(t *testing.T) {
	f := newPointsFixture()
	f.ledger.ApplyFunc = func(ctx context.Context, tx *models.Transaction) (int, error) {
		return 0, models.ErrInsufficientPoints
	}

	token, err := f.verifyTokens.Issue(struct{}{}, time.Now())
	require.NoError(t, err)

	_, err = f.svc.Redeem(context.Background(), PointsInput{
		MerchantID: "m1", CustomerID: "c1", Points: 500, VerifyToken: token,
	})
	assert.ErrorIs(t, err, models.ErrInsufficientPoints)
}
