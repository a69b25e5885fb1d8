package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/mwhite-dev/punchcard/internal/models"
	"github.com/mwhite-dev/punchcard/internal/presence"
	pkgauth "github.com/mwhite-dev/punchcard/pkg/auth"
)

// PointsLedger is the durable-store collaborator for points movements.
type PointsLedger interface {
	Apply(ctx context.Context, tx *models.Transaction) (int, error)
	ListForCustomer(ctx context.Context, merchantID, customerID string, limit int) ([]*models.Transaction, error)
}

// PointsService applies credits and redemptions. Redemptions are gated by
// redemption authorization: proof that the customer was physically present
// (a verify token from a consumed identification) or knowledge of the
// customer's PIN.
type PointsService struct {
	ledger       PointsLedger
	customers    CustomerStore
	verifyTokens *presence.Issuer[struct{}]
	secretTokens *presence.Issuer[string]
	logger       *slog.Logger
	now          func() time.Time
}

func NewPointsService(
	ledger PointsLedger,
	customers CustomerStore,
	verifyTokens *presence.Issuer[struct{}],
	secretTokens *presence.Issuer[string],
	logger *slog.Logger,
) *PointsService {
	return &PointsService{
		ledger:       ledger,
		customers:    customers,
		verifyTokens: verifyTokens,
		secretTokens: secretTokens,
		logger:       logger,
		now:          time.Now,
	}
}

// SetClock overrides the service clock. Intended for tests.
func (s *PointsService) SetClock(now func() time.Time) {
	s.now = now
}

// PointsInput describes a credit or redemption request from staff.
type PointsInput struct {
	MerchantID  string
	StaffID     string
	CustomerID  string
	Points      int
	Note        string
	VerifyToken string
	PINToken    string
	PIN         string
}

// Credit adds points. Credits need no authorization beyond the staff
// session: giving a customer points is not worth stealing.
func (s *PointsService) Credit(ctx context.Context, in PointsInput) (int, error) {
	if in.Points <= 0 {
		return 0, models.ErrBadRequest
	}
	return s.apply(ctx, in, models.TransactionCredit)
}

// Redeem subtracts points after the authorization chain passes. Whatever
// tokens the request carries are consumed even when authorization
// ultimately fails; capability tokens are strictly one-shot.
func (s *PointsService) Redeem(ctx context.Context, in PointsInput) (int, error) {
	if in.Points <= 0 {
		return 0, models.ErrBadRequest
	}
	if err := s.authorize(ctx, in); err != nil {
		return 0, err
	}
	return s.apply(ctx, in, models.TransactionRedeem)
}

// HistoryResult pairs the membership's current standing with its most
// recent transactions, newest first.
type HistoryResult struct {
	PointsBalance int
	VisitCount    int
	Transactions  []*models.Transaction
}

const defaultHistoryLimit = 50

// History returns the membership standing and recent transactions for a
// customer at a merchant. ErrNotFound when no membership exists.
func (s *PointsService) History(ctx context.Context, merchantID, customerID string, limit int) (*HistoryResult, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultHistoryLimit
	}

	membership, err := s.customers.GetMembership(ctx, merchantID, customerID)
	if err != nil {
		return nil, err
	}

	txs, err := s.ledger.ListForCustomer(ctx, merchantID, customerID, limit)
	if err != nil {
		return nil, err
	}

	return &HistoryResult{
		PointsBalance: membership.PointsBalance,
		VisitCount:    membership.VisitCount,
		Transactions:  txs,
	}, nil
}

// authorize walks the proof chain in order of strength: a verify token from
// an in-person scan, then a PIN checked against a resolvable-secret token,
// then a PIN checked against the stored record.
func (s *PointsService) authorize(ctx context.Context, in PointsInput) error {
	now := s.now()

	if in.VerifyToken != "" {
		if _, ok := s.verifyTokens.Resolve(in.VerifyToken, now); ok {
			return nil
		}
		return models.ErrUnauthorized
	}

	if in.PINToken != "" {
		hash, ok := s.secretTokens.Resolve(in.PINToken, now)
		if !ok {
			return models.ErrUnauthorized
		}
		if in.PIN == "" || pkgauth.ComparePIN(hash, in.PIN) != nil {
			return models.ErrUnauthorized
		}
		return nil
	}

	if in.PIN != "" {
		customer, err := s.customers.GetByID(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if customer.PINHash == "" || pkgauth.ComparePIN(customer.PINHash, in.PIN) != nil {
			return models.ErrUnauthorized
		}
		return nil
	}

	return models.ErrPINRequired
}

func (s *PointsService) apply(ctx context.Context, in PointsInput, kind string) (int, error) {
	tx := &models.Transaction{
		MerchantID: in.MerchantID,
		StaffID:    in.StaffID,
		CustomerID: in.CustomerID,
		Kind:       kind,
		Points:     in.Points,
	}
	if in.Note != "" {
		tx.Note = &in.Note
	}

	balance, err := s.ledger.Apply(ctx, tx)
	if err != nil {
		return 0, err
	}

	s.logger.Info("points applied",
		slog.String("merchant_id", in.MerchantID),
		slog.String("customer_id", in.CustomerID),
		slog.String("kind", kind),
		slog.Int("points", in.Points),
		slog.Int("balance", balance))

	return balance, nil
}
