package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mwhite-dev/punchcard/internal/models"
	"github.com/mwhite-dev/punchcard/internal/presence"
	pkgauth "github.com/mwhite-dev/punchcard/pkg/auth"
)

// CustomerStore is the durable-store collaborator for customer records.
type CustomerStore interface {
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	FindByContact(ctx context.Context, email, phone string) (*models.Customer, error)
	FindByPersonalCode(ctx context.Context, code string) (*models.Customer, error)
	Create(ctx context.Context, c *models.Customer) (*models.Customer, error)
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
	GetMembership(ctx context.Context, merchantID, customerID string) (*models.Membership, error)
	EnsureMembership(ctx context.Context, merchantID, customerID string) (*models.Membership, error)
}

// MerchantStore is the durable-store collaborator for merchant records.
type MerchantStore interface {
	GetByID(ctx context.Context, id string) (*models.Merchant, error)
	GetByIdentifyCode(ctx context.Context, code string) (*models.Merchant, error)
}

// WelcomeMailer sends the one-time welcome email for newly created
// customers.
type WelcomeMailer interface {
	SendWelcomeEmail(ctx context.Context, email, displayName string) error
}

// PresenceService orchestrates the recognition flow: self-identification,
// the staff-facing pending queue, and capability token issuance. All
// ephemeral state lives in the presence package stores owned by this
// service's composition root.
type PresenceService struct {
	customers CustomerStore
	merchants MerchantStore
	mailer    WelcomeMailer

	queue        *presence.Queue
	cooldown     *presence.CooldownTracker
	limiter      *presence.WindowLimiter
	verifyTokens *presence.Issuer[struct{}]
	secretTokens *presence.Issuer[string]

	logger *slog.Logger
	now    func() time.Time
}

// NewPresenceService wires the service. mailer may be nil when email is
// disabled.
func NewPresenceService(
	customers CustomerStore,
	merchants MerchantStore,
	mailer WelcomeMailer,
	queue *presence.Queue,
	cooldown *presence.CooldownTracker,
	limiter *presence.WindowLimiter,
	verifyTokens *presence.Issuer[struct{}],
	secretTokens *presence.Issuer[string],
	logger *slog.Logger,
) *PresenceService {
	return &PresenceService{
		customers:    customers,
		merchants:    merchants,
		mailer:       mailer,
		queue:        queue,
		cooldown:     cooldown,
		limiter:      limiter,
		verifyTokens: verifyTokens,
		secretTokens: secretTokens,
		logger:       logger,
		now:          time.Now,
	}
}

// SetClock overrides the service clock. Intended for tests.
func (s *PresenceService) SetClock(now func() time.Time) {
	s.now = now
}

// IdentifyInput is a validated self-identification request.
type IdentifyInput struct {
	MerchantCode string
	Contact      string
	DisplayName  string
	Origin       string // client IP, as keyed by the sliding ceiling
}

// NormalizeContact canonicalizes a contact identifier: emails are lowercased
// and trimmed, phone numbers reduced to digits. The returned identifier is
// the key used across the queue, cooldown, and lockout stores.
func NormalizeContact(contact string) (identifier, email, phone string, err error) {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return "", "", "", fmt.Errorf("%w: contact is required", models.ErrBadRequest)
	}

	if strings.Contains(contact, "@") {
		email = strings.ToLower(contact)
		at := strings.Index(email, "@")
		if at == 0 || at == len(email)-1 || !strings.Contains(email[at:], ".") {
			return "", "", "", fmt.Errorf("%w: malformed email address", models.ErrBadRequest)
		}
		return email, email, "", nil
	}

	var digits strings.Builder
	for _, r := range contact {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	phone = digits.String()
	if len(phone) < 7 || len(phone) > 15 {
		return "", "", "", fmt.Errorf("%w: malformed phone number", models.ErrBadRequest)
	}
	return phone, "", phone, nil
}

// SelfIdentify handles a customer's "I'm here" signal. Inside the cooldown
// window the original outcome is replayed and a single flagged repeat entry
// surfaces in the staff queue; otherwise the customer record is resolved or
// created and a fresh identification is queued.
func (s *PresenceService) SelfIdentify(ctx context.Context, in IdentifyInput) (*models.IdentifyOutcome, error) {
	merchant, err := s.merchants.GetByIdentifyCode(ctx, in.MerchantCode)
	if err != nil {
		return nil, err
	}

	identifier, email, phone, err := NormalizeContact(in.Contact)
	if err != nil {
		return nil, err
	}

	now := s.now()

	if !s.limiter.Allow(in.Origin, now) {
		return nil, models.ErrRateLimited
	}

	// A repeat inside the window replays the original outcome: same
	// identification id, same snapshot, no new side effects.
	if outcome, age, ok := s.cooldown.GetOutcome(merchant.ID, identifier, now); ok {
		s.queue.Enqueue(&models.Identification{
			MerchantID:      merchant.ID,
			Identifier:      identifier,
			CustomerID:      outcome.CustomerID,
			DisplayName:     outcome.DisplayName,
			Email:           email,
			Phone:           phone,
			PointsBalance:   outcome.PointsBalance,
			RecentDuplicate: true,
			ElapsedMinutes:  int(age.Minutes()),
		}, now)
		return outcome, nil
	}

	customer, isNew, err := s.resolveCustomer(ctx, email, phone, in.DisplayName)
	if err != nil {
		return nil, err
	}

	membership, err := s.customers.EnsureMembership(ctx, merchant.ID, customer.ID)
	if err != nil {
		return nil, err
	}

	if err := s.customers.TouchLastSeen(ctx, customer.ID, now); err != nil {
		s.logger.Warn("failed to update last seen",
			slog.String("customer_id", customer.ID),
			slog.Any("error", err))
	}

	id := s.queue.Enqueue(&models.Identification{
		MerchantID:    merchant.ID,
		Identifier:    identifier,
		CustomerID:    customer.ID,
		DisplayName:   customer.DisplayName,
		Email:         email,
		Phone:         phone,
		PointsBalance: membership.PointsBalance,
		VisitCount:    membership.VisitCount,
		IsFirstVisit:  membership.VisitCount == 1,
	}, now)

	outcome := &models.IdentifyOutcome{
		IdentificationID: id,
		CustomerID:       customer.ID,
		IsNew:            isNew,
		DisplayName:      customer.DisplayName,
		PointsBalance:    membership.PointsBalance,
	}
	s.cooldown.RecordOutcome(merchant.ID, identifier, outcome, now)

	return outcome, nil
}

// resolveCustomer finds the customer by contact or creates a new record.
// Store failures propagate untouched: fabricating a customer here would
// hand out capability tokens nothing earned.
func (s *PresenceService) resolveCustomer(ctx context.Context, email, phone, displayName string) (*models.Customer, bool, error) {
	customer, err := s.customers.FindByContact(ctx, email, phone)
	if err == nil {
		return customer, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, err
	}

	if displayName == "" {
		if email != "" {
			displayName = email[:strings.Index(email, "@")]
		} else {
			displayName = "Guest"
		}
	}

	personalCode, err := pkgauth.GeneratePersonalCode()
	if err != nil {
		return nil, false, err
	}

	newCustomer := &models.Customer{
		DisplayName:  displayName,
		PersonalCode: personalCode,
	}
	if email != "" {
		newCustomer.Email = &email
	}
	if phone != "" {
		newCustomer.Phone = &phone
	}

	created, err := s.customers.Create(ctx, newCustomer)
	if err != nil {
		return nil, false, err
	}

	if s.mailer != nil && email != "" {
		// Best effort; the cooldown guarantees this fires at most once per
		// fresh identification.
		go func(email, name string) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.mailer.SendWelcomeEmail(ctx, email, name); err != nil {
				s.logger.Warn("failed to send welcome email", slog.Any("error", err))
			}
		}(email, created.DisplayName)
	}

	return created, true, nil
}

// StatusResult is the customer-device poll response.
type StatusResult struct {
	Active        bool
	IsNew         bool
	DisplayName   string
	PointsBalance int
}

// Status reports whether an identification is still pending. Unknown,
// consumed, and expired ids all report inactive; the endpoint never errors
// on an id.
func (s *PresenceService) Status(ctx context.Context, merchantCode, identificationID string) (*StatusResult, error) {
	merchant, err := s.merchants.GetByIdentifyCode(ctx, merchantCode)
	if err != nil {
		return nil, err
	}

	rec, ok := s.queue.Get(identificationID, s.now())
	if !ok || rec.MerchantID != merchant.ID {
		return &StatusResult{}, nil
	}

	return &StatusResult{
		Active:        true,
		IsNew:         rec.IsFirstVisit,
		DisplayName:   rec.DisplayName,
		PointsBalance: rec.PointsBalance,
	}, nil
}

// Pending lists the live identifications for a merchant, newest first.
func (s *PresenceService) Pending(merchantID string) []presence.PendingEntry {
	return s.queue.List(merchantID, s.now())
}

// ConsumeResult pairs the consumed snapshot with the verify token staff use
// to skip PIN verification on the follow-up credit or redemption.
type ConsumeResult struct {
	Snapshot    models.CustomerSnapshot
	VerifyToken string
}

// Consume removes a pending identification exactly once and mints a
// verify-only capability token as proof of the in-person scan.
func (s *PresenceService) Consume(ctx context.Context, merchantID, identificationID string) (*ConsumeResult, error) {
	now := s.now()

	rec, ok := s.queue.Consume(merchantID, identificationID, now)
	if !ok {
		return nil, models.ErrNotFound
	}

	token, err := s.verifyTokens.Issue(struct{}{}, now)
	if err != nil {
		return nil, err
	}

	return &ConsumeResult{Snapshot: rec.Snapshot(), VerifyToken: token}, nil
}

// Dismiss drops a pending identification. Idempotent; dismissal does not
// clear the cooldown, which stays purely time-based.
func (s *PresenceService) Dismiss(merchantID, identificationID string) {
	s.queue.Dismiss(merchantID, identificationID)
}

// LookupResult is the staff view of a customer reached through their
// personal code: a snapshot plus fresh capability tokens.
type LookupResult struct {
	Snapshot    models.CustomerSnapshot
	VerifyToken string
	PINToken    string // empty when the customer has no PIN on file
}

// LookupByPersonalCode is the alternate entry path: staff scan the
// customer's own static QR instead of consuming a queue entry.
func (s *PresenceService) LookupByPersonalCode(ctx context.Context, merchantID, code string) (*LookupResult, error) {
	customer, err := s.customers.FindByPersonalCode(ctx, code)
	if err != nil {
		return nil, err
	}

	membership, err := s.customers.EnsureMembership(ctx, merchantID, customer.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()

	verifyToken, err := s.verifyTokens.Issue(struct{}{}, now)
	if err != nil {
		return nil, err
	}

	result := &LookupResult{
		Snapshot: models.CustomerSnapshot{
			CustomerID:    customer.ID,
			DisplayName:   customer.DisplayName,
			PointsBalance: membership.PointsBalance,
			VisitCount:    membership.VisitCount,
			IsFirstVisit:  membership.VisitCount == 1,
		},
		VerifyToken: verifyToken,
	}
	if customer.Email != nil {
		result.Snapshot.Email = *customer.Email
	}
	if customer.Phone != nil {
		result.Snapshot.Phone = *customer.Phone
	}

	// The resolvable-secret token lets the points endpoint verify a PIN the
	// customer types at the counter without a second record fetch, and
	// without the handler layer ever seeing the stored hash directly.
	if customer.PINHash != "" {
		pinToken, err := s.secretTokens.Issue(customer.PINHash, now)
		if err != nil {
			return nil, err
		}
		result.PINToken = pinToken
	}

	return result, nil
}
