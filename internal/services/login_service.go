package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mwhite-dev/punchcard/internal/auth"
	"github.com/mwhite-dev/punchcard/internal/models"
	"github.com/mwhite-dev/punchcard/internal/presence"
	pkgauth "github.com/mwhite-dev/punchcard/pkg/auth"
)

// LoginService authenticates customers with contact + PIN and enforces the
// per-identifier lockout.
type LoginService struct {
	customers CustomerStore
	merchants MerchantStore
	lockout   *presence.LockoutTracker
	sessions  *auth.SessionManager
	delay     *auth.TimingDelay
	logger    *slog.Logger
	now       func() time.Time
}

func NewLoginService(
	customers CustomerStore,
	merchants MerchantStore,
	lockout *presence.LockoutTracker,
	sessions *auth.SessionManager,
	delay *auth.TimingDelay,
	logger *slog.Logger,
) *LoginService {
	return &LoginService{
		customers: customers,
		merchants: merchants,
		lockout:   lockout,
		sessions:  sessions,
		delay:     delay,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock overrides the service clock. Intended for tests.
func (s *LoginService) SetClock(now func() time.Time) {
	s.now = now
}

// LoginInput describes a credential login attempt. Origin is the client IP
// as seen behind trusted proxies.
type LoginInput struct {
	MerchantCode string
	Contact      string
	PIN          string
	Origin       string
}

// LoginResult carries the session token and the customer it belongs to.
type LoginResult struct {
	Token       string
	CustomerID  string
	DisplayName string
}

// Login verifies a contact + PIN pair. The lockout is keyed per
// (origin, identifier), so an attacker hammering an identifier from one
// address does not lock the real owner out elsewhere. The gate runs before
// any credential work so a locked pair never reaches bcrypt, and every
// failure path returns the same generic error after the same floor delay.
func (s *LoginService) Login(ctx context.Context, in LoginInput) (result *LoginResult, err error) {
	start := s.now()
	defer func() { s.delay.Wait(err == nil) }()

	merchant, err := s.merchants.GetByIdentifyCode(ctx, in.MerchantCode)
	if err != nil {
		return nil, err
	}

	identifier, email, phone, err := NormalizeContact(in.Contact)
	if err != nil {
		return nil, err
	}

	if status := s.lockout.Check(in.Origin, identifier, start); status.Blocked {
		s.logger.Warn("login attempt against locked identifier",
			slog.String("merchant_id", merchant.ID),
			slog.String("origin", in.Origin),
			slog.Int("minutes_remaining", status.MinutesRemaining))
		return nil, &models.LockoutError{MinutesRemaining: status.MinutesRemaining}
	}

	customer, err := s.customers.FindByContact(ctx, email, phone)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Unknown identifiers accrue failures too; otherwise probing
			// reveals which contacts exist.
			s.lockout.RecordFailure(in.Origin, identifier, start)
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}

	if customer.PINHash == "" || pkgauth.ComparePIN(customer.PINHash, in.PIN) != nil {
		s.lockout.RecordFailure(in.Origin, identifier, start)
		return nil, models.ErrInvalidCredentials
	}

	s.lockout.Clear(in.Origin, identifier)

	token, err := s.sessions.IssueCustomerSession(customer.ID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:       token,
		CustomerID:  customer.ID,
		DisplayName: customer.DisplayName,
	}, nil
}
