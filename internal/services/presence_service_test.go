package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhite-dev/punchcard/internal/models"
	"github.com/mwhite-dev/punchcard/internal/presence"
)

func newTestPresenceService(customers *MockCustomerStore, merchants *MockMerchantStore, mailer WelcomeMailer) *PresenceService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPresenceService(
		customers,
		merchants,
		mailer,
		presence.NewQueue(15*time.Minute),
		presence.NewCooldownTracker(15*time.Minute),
		presence.NewWindowLimiter(12, time.Hour),
		presence.NewIssuer[struct{}](30*time.Minute),
		presence.NewIssuer[string](5*time.Minute),
		logger,
	)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSelfIdentifyExistingCustomer(t *testing.T) {
	merchant := NewTestMerchant("m1", "CAFE123")
	alice := NewTestCustomer("cust_alice", "alice@example.com", "Alice")

	customers := &MockCustomerStore{
		FindByContactFunc: func(ctx context.Context, email, phone string) (*models.Customer, error) {
			assert.Equal(t, "alice@example.com", email)
			return alice, nil
		},
		EnsureMembershipFunc: func(ctx context.Context, merchantID, customerID string) (*models.Membership, error) {
			return NewTestMembership(merchantID, customerID, 120, 9), nil
		},
	}
	merchants := &MockMerchantStore{
		GetByIdentifyCodeFunc: func(ctx context.Context, code string) (*models.Merchant, error) {
			require.Equal(t, "CAFE123", code)
			return merchant, nil
		},
	}

	svc := newTestPresenceService(customers, merchants, nil)
	base := time.Now()
	svc.SetClock(fixedClock(base))

	outcome, err := svc.SelfIdentify(context.Background(), IdentifyInput{
		MerchantCode: "CAFE123",
		Contact:      "Alice@Example.com",
		Origin:       "10.0.0.1",
	})
	require.NoError(t, err)
	assert.False(t, outcome.IsNew)
	assert.Equal(t, "Alice", outcome.DisplayName)
	assert.Equal(t, 120, outcome.PointsBalance)
	assert.NotEmpty(t, outcome.IdentificationID)

	pending := svc.Pending("m1")
	require.Len(t, pending, 1)
	assert.Equal(t, outcome.IdentificationID, pending[0].ID)
}

func TestSelfIdentifyCreatesNewCustomer(t *testing.T) {
	merchant := NewTestMerchant("m1", "CAFE123")
	created := make(chan *models.Customer, 1)

	customers := &MockCustomerStore{
		CreateFunc: func(ctx context.Context, c *models.Customer) (*models.Customer, error) {
			out := *c
			out.ID = "cust_new"
			created <- &out
			return &out, nil
		},
		EnsureMembershipFunc: func(ctx context.Context, merchantID, customerID string) (*models.Membership, error) {
			return NewTestMembership(merchantID, customerID, 0, 1), nil
		},
	}
	merchants := &MockMerchantStore{
		GetByIdentifyCodeFunc: func(ctx context.Context, code string) (*models.Merchant, error) {
			return merchant, nil
		},
	}

	svc := newTestPresenceService(customers, merchants, nil)
	svc.SetClock(fixedClock(time.Now()))

	outcome, err := svc.SelfIdentify(context.Background(), IdentifyInput{
		MerchantCode: "CAFE123",
		Contact:      "bob@example.com",
		DisplayName:  "Bob",
		Origin:       "10.0.0.2",
	})
	require.NoError(t, err)
	assert.True(t, outcome.IsNew)
	assert.Equal(t, "cust_new", outcome.CustomerID)

	c := <-created
	require.NotNil(t, c.Email)
	assert.Equal(t, "bob@example.com", *c.Email)
	assert.NotEmpty(t, c.PersonalCode)
}

func TestSelfIdentifySendsWelcomeEmailOnce(t *testing.T) {
	merchant := NewTestMerchant("m1", "CAFE123")
	sent := make(chan string, 4)

	var existing *models.Customer
	customers := &MockCustomerStore{
		FindByContactFunc: func(ctx context.Context, email, phone string) (*models.Customer, error) {
			if existing != nil {
				return existing, nil
			}
			return nil, models.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, c *models.Customer) (*models.Customer, error) {
			out := *c
			out.ID = "cust_new"
			existing = &out
			return &out, nil
		},
	}
	merchants := &MockMerchantStore{
		GetByIdentifyCodeFunc: func(ctx context.Context, code string) (*models.Merchant, error) {
			return merchant, nil
		},
	}
	mailer := &MockWelcomeMailer{
		SendWelcomeEmailFunc: func(ctx context.Context, email, displayName string) error {
			sent <- email
			return nil
		},
	}

	svc := newTestPresenceService(customers, merchants, mailer)
	base := time.Now()
	svc.SetClock(fixedClock(base))

	first, err := svc.SelfIdentify(context.Background(), IdentifyInput{
		MerchantCode: "CAFE123", Contact: "carol@example.com", Origin: "ip",
	})
	require.NoError(t, err)

	select {
	case email := <-sent:
		assert.Equal(t, "carol@example.com", email)
	case <-time.After(2 * time.Second):
		t.Fatal("welcome email never sent")
	}

	// A repeat inside the cooldown replays the outcome and sends nothing.
	svc.SetClock(fixedClock(base.Add(5 * time.Minute)))
	second, err := svc.SelfIdentify(context.Background(), IdentifyInput{
		MerchantCode: "CAFE123", Contact: "carol@example.com", Origin: "ip",
	})
	require.NoError(t, err)
	assert.Equal(t, first.IdentificationID, second.IdentificationID)

	select {
	case <-sent:
		t.Fatal("repeat identification must not resend the welcome email")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSelfIdentifyCooldownReplaysOutcome(t *testing.T) {
	merchant := NewTestMerchant("m1", "CAFE123")
	alice := NewTestCustomer("cust_alice", "alice@example.com", "Alice")
	var findCalls int

	customers := &MockCustomerStore{
		FindByContactFunc: func(ctx context.Context, email, phone string) (*models.Customer, error) {
			findCalls++
			return alice, nil
		},
		EnsureMembershipFunc: func(ctx context.Context, merchantID, customerID string) (*models.Membership, error) {
			return NewTestMembership(merchantID, customerID, 50, 3), nil
		},
	}
	merchants := &MockMerchantStore{
		GetByIdentifyCodeFunc: func(ctx context.Context, code string) (*models.Merchant, error) {
			return merchant, nil
		},
	}

	svc := newTestPresenceService(customers, merchants, nil)
	base := time.Now()
	svc.SetClock(fixedClock(base))

	in := IdentifyInput{MerchantCode: "CAFE123", Contact: "alice@example.com", Origin: "ip"}
	first, err := svc.SelfIdentify(context.Background(), in)
	require.NoError(t, err)

	svc.SetClock(fixedClock(base.Add(10 * time.Minute)))
	second, err := svc.SelfIdentify(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first.IdentificationID, second.IdentificationID)
	assert.Equal(t, 1, findCalls, "repeat inside cooldown must not touch the durable store")

	// The staff queue carries the original entry plus one flagged repeat.
	pending := svc.Pending("m1")
	require.Len(t, pending, 2)
	var flagged, fresh int
	for _, p := range pending {
		if p.RecentDuplicate {
			flagged++
			assert.Equal(t, 10, p.ElapsedMinutes)
		} else {
			fresh++
		}
	}
	assert.Equal(t, 1, flagged)
	assert.Equal(t, 1, fresh)
}

func TestSelfIdentifyAfterCooldownIsFresh(t *testing.T) {
	merchant := NewTestMerchant("m1", "CAFE123")
	alice := NewTestCustomer("cust_alice", "alice@example.com", "Alice")

	customers := &MockCustomerStore{
		FindByContactFunc: func(ctx context.Context, email, phone string) (*models.Customer, error) {
			return alice, nil
		},
		EnsureMembershipFunc: func(ctx context.Context, merchantID, customerID string) (*models.Membership, error) {
			return NewTestMembership(merchantID, customerID, 50, 3), nil
		},
	}
	merchants := &MockMerchantStore{
		GetByIdentifyCodeFunc: func(ctx context.Context, code string) (*models.Merchant, error) {
			return merchant, nil
		},
	}

	svc := newTestPresenceService(customers, merchants, nil)
	base := time.Now()
	svc.SetClock(fixedClock(base))

	in := IdentifyInput{MerchantCode: "CAFE123", Contact: "alice@example.com", Origin: "ip"}
	first, err := svc.SelfIdentify(context.Background(), in)
	require.NoError(t, err)

	svc.SetClock(fixedClock(base.Add(16 * time.Minute)))
	second, err := svc.SelfIdentify(context.Background(), in)
	require.NoError(t, err)

	assert.NotEqual(t, first.IdentificationID, second.IdentificationID)
}

func TestSelfIdentifyRateLimited(t *testing.T) {
	merchant := NewTestMerchant("m1", "CAFE123")
	merchants := &MockMerchantStore{
		GetByIdentifyCodeFunc: func(ctx context.Context, code string) (*models.Merchant, error) {
			return merchant, nil
		},
	}
	customers := &MockCustomerStore{
		FindByContactFunc: func(ctx context.Context, email, phone string) (*models.Customer, error) {
			return NewTestCustomer("c1", email, "X"), nil
		},
		EnsureMembershipFunc: func(ctx context.Context, merchantID, customerID string) (*models.Membership, error) {
			return NewTestMembership(merchantID, customerID, 0, 2), nil
		},
	}

	svc := newTestPresenceService(customers, merchants, nil)
	base := time.Now()

	// 12 distinct contacts from the same origin fill the hourly ceiling.
	for i := 0; i < 12; i++ {
		svc.SetClock(fixedClock(base.Add(time.Duration(i) * time.Second)))
		_, err := svc.SelfIdentify(context.Background(), IdentifyInput{
			MerchantCode: "CAFE123",
			Contact:      "user" + string(rune('a'+i)) + "@example.com",
			Origin:       "198.51.100.7",
		})
		require.NoError(t, err)
	}

	_, err := svc.SelfIdentify(context.Background(), IdentifyInput{
		MerchantCode: "CAFE123", Contact: "onemore@example.com", Origin: "198.51.100.7",
	})
	assert.ErrorIs(t, err, models.ErrRateLimited)

	// A different origin is unaffected.
	_, err = svc.SelfIdentify(context.Background(), IdentifyInput{
		MerchantCode: "CAFE123", Contact: "other@example.com", Origin: "203.0.113.9",
	})
	assert.NoError(t, err)
}

func TestSelfIdentifyUnknownMerchant(t *testing.T) {
	svc := newTestPresenceService(&MockCustomerStore{}, &MockMerchantStore{}, nil)
	_, err := svc.SelfIdentify(context.Background(), IdentifyInput{
		MerchantCode: "NOPE", Contact: "a@example.com", Origin: "ip",
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSelfIdentifyStoreFailurePropagates(t *testing.T) {
	merchant := NewTestMerchant("m1", "CAFE123")
	storeErr := errors.New("connection refused")

	customers := &MockCustomerStore{
		FindByContactFunc: func(ctx context.Context, email, phone string) (*models.Customer, error) {
			return nil, storeErr
		},
	}
	merchants := &MockMerchantStore{
		GetByIdentifyCodeFunc: func(ctx context.Context, code string) (*models.Merchant, error) {
			return merchant, nil
		},
	}

	svc := newTestPresenceService(customers, merchants, nil)
	_, err := svc.SelfIdentify(context.Background(), IdentifyInput{
		MerchantCode: "CAFE123", Contact: "a@example.com", Origin: "ip",
	})
	assert.ErrorIs(t, err, storeErr)
	assert.Empty(t, svc.Pending("m1"), "no identification may be queued on store failure")
}

func TestStatusLifecycle(t *testing.T) {
	merchant := NewTestMerchant("m1", "CAFE123")
	alice := NewTestCustomer("cust_alice", "alice@example.com", "Alice")

	customers := &MockCustomerStore{
		FindByContactFunc: func(ctx context.Context, email, phone string) (*models.Customer, error) {
			return alice, nil
		},
		EnsureMembershipFunc: func(ctx context.Context, merchantID, customerID string) (*models.Membership, error) {
			return NewTestMembership(merchantID, customerID, 75, 4), nil
		},
	}
	merchants := &MockMerchantStore{
		GetByIdentifyCodeFunc: func(ctx context.Context, code string) (*models.Merchant, error) {
			return merchant, nil
		},
	}

	svc := newTestPresenceService(customers, merchants, nil)
	base := time.Now()
	svc.SetClock(fixedClock(base))

	outcome, err := svc.SelfIdentify(context.Background(), IdentifyInput{
		MerchantCode: "CAFE123", Contact: "alice@example.com", Origin: "ip",
	})
	require.NoError(t, err)

	status, err := svc.Status(context.Background(), "CAFE123", outcome.IdentificationID)
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.Equal(t, "Alice", status.DisplayName)
	assert.Equal(t, 75, status.PointsBalance)

	// Consumed entries report inactive.
	_, err = svc.Consume(context.Background(), "m1", outcome.IdentificationID)
	require.NoError(t, err)

	status, err = svc.Status(context.Background(), "CAFE123", outcome.IdentificationID)
	require.NoError(t, err)
	assert.False(t, status.Active)

	// Unknown ids report inactive too, never an error.
	status, err = svc.Status(context.Background(), "CAFE123", "no-such-id")
	require.NoError(t, err)
	assert.False(t, status.Active)
}

func TestConsumeIssuesSingleUseVerifyToken(t *testing.T) {
	merchant := NewTestMerchant("m1", "CAFE123")
	alice := NewTestCustomer("cust_alice", "alice@example.com", "Alice")

	customers := &MockCustomerStore{
		FindByContactFunc: func(ctx context.Context, email, phone string) (*models.Customer, error) {
			return alice, nil
		},
		EnsureMembershipFunc: func(ctx context.Context, merchantID, customerID string) (*models.Membership, error) {
			return NewTestMembership(merchantID, customerID, 200, 10), nil
		},
	}
	merchants := &MockMerchantStore{
		GetByIdentifyCodeFunc: func(ctx context.Context, code string) (*models.Merchant, error) {
			return merchant, nil
		},
	}

	svc := newTestPresenceService(customers, merchants, nil)
	base := time.Now()
	svc.SetClock(fixedClock(base))

	outcome, err := svc.SelfIdentify(context.Background(), IdentifyInput{
		MerchantCode: "CAFE123", Contact: "alice@example.com", Origin: "ip",
	})
	require.NoError(t, err)

	result, err := svc.Consume(context.Background(), "m1", outcome.IdentificationID)
	require.NoError(t, err)
	assert.Equal(t, "cust_alice", result.Snapshot.CustomerID)
	assert.Equal(t, 200, result.Snapshot.PointsBalance)
	assert.NotEmpty(t, result.VerifyToken)

	// The entry is gone: a second consume fails.
	_, err = svc.Consume(context.Background(), "m1", outcome.IdentificationID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestConsumeWrongMerchant(t *testing.T) {
	merchant := NewTestMerchant("m1", "CAFE123")
	alice := NewTestCustomer("cust_alice", "alice@example.com", "Alice")

	customers := &MockCustomerStore{
		FindByContactFunc: func(ctx context.Context, email, phone string) (*models.Customer, error) {
			return alice, nil
		},
	}
	merchants := &MockMerchantStore{
		GetByIdentifyCodeFunc: func(ctx context.Context, code string) (*models.Merchant, error) {
			return merchant, nil
		},
	}

	svc := newTestPresenceService(customers, merchants, nil)
	svc.SetClock(fixedClock(time.Now()))

	outcome, err := svc.SelfIdentify(context.Background(), IdentifyInput{
		MerchantCode: "CAFE123", Contact: "alice@example.com", Origin: "ip",
	})
	require.NoError(t, err)

	_, err = svc.Consume(context.Background(), "other-merchant", outcome.IdentificationID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	// The entry survives for the right merchant.
	_, err = svc.Consume(context.Background(), "m1", outcome.IdentificationID)
	assert.NoError(t, err)
}

func TestDismissDoesNotClearCooldown(t *testing.T) {
	merchant := NewTestMerchant("m1", "CAFE123")
	alice := NewTestCustomer("cust_alice", "alice@example.com", "Alice")

	customers := &MockCustomerStore{
		FindByContactFunc: func(ctx context.Context, email, phone string) (*models.Customer, error) {
			return alice, nil
		},
	}
	merchants := &MockMerchantStore{
		GetByIdentifyCodeFunc: func(ctx context.Context, code string) (*models.Merchant, error) {
			return merchant, nil
		},
	}

	svc := newTestPresenceService(customers, merchants, nil)
	base := time.Now()
	svc.SetClock(fixedClock(base))

	in := IdentifyInput{MerchantCode: "CAFE123", Contact: "alice@example.com", Origin: "ip"}
	first, err := svc.SelfIdentify(context.Background(), in)
	require.NoError(t, err)

	svc.Dismiss("m1", first.IdentificationID)
	assert.Empty(t, svc.Pending("m1"))

	// Still inside the window: the outcome replays even though the queue
	// entry is gone.
	svc.SetClock(fixedClock(base.Add(5 * time.Minute)))
	second, err := svc.SelfIdentify(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.IdentificationID, second.IdentificationID)
}

func TestLookupByPersonalCode(t *testing.T) {
	alice := NewTestCustomerWithPIN("cust_alice", "alice@example.com", "Alice", "$2a$12$hashhashhash")

	customers := &MockCustomerStore{
		FindByPersonalCodeFunc: func(ctx context.Context, code string) (*models.Customer, error) {
			if code == alice.PersonalCode {
				return alice, nil
			}
			return nil, models.ErrNotFound
		},
		EnsureMembershipFunc: func(ctx context.Context, merchantID, customerID string) (*models.Membership, error) {
			return NewTestMembership(merchantID, customerID, 80, 5), nil
		},
	}

	svc := newTestPresenceService(customers, &MockMerchantStore{}, nil)
	svc.SetClock(fixedClock(time.Now()))

	result, err := svc.LookupByPersonalCode(context.Background(), "m1", alice.PersonalCode)
	require.NoError(t, err)
	assert.Equal(t, "Alice", result.Snapshot.DisplayName)
	assert.Equal(t, 80, result.Snapshot.PointsBalance)
	assert.NotEmpty(t, result.VerifyToken)
	assert.NotEmpty(t, result.PINToken)

	_, err = svc.LookupByPersonalCode(context.Background(), "m1", "UNKNOWNCODE")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLookupByPersonalCodeNoPIN(t *testing.T) {
	alice := NewTestCustomer("cust_alice", "alice@example.com", "Alice")

	customers := &MockCustomerStore{
		FindByPersonalCodeFunc: func(ctx context.Context, code string) (*models.Customer, error) {
			return alice, nil
		},
	}

	svc := newTestPresenceService(customers, &MockMerchantStore{}, nil)
	result, err := svc.LookupByPersonalCode(context.Background(), "m1", alice.PersonalCode)
	require.NoError(t, err)
	assert.Empty(t, result.PINToken)
}

func TestNormalizeContact(t *testing.T) {
	tests := []struct {
		name           string
		contact        string
		wantIdentifier string
		wantErr        bool
	}{
		{"email lowercased", "Alice@Example.COM", "alice@example.com", false},
		{"email trimmed", "  bob@example.com ", "bob@example.com", false},
		{"phone digits only", "+1 (555) 010-9988", "15550109988", false},
		{"phone with dashes", "555-010-9988", "5550109988", false},
		{"empty", "", "", true},
		{"malformed email", "@example.com", "", true},
		{"email without domain dot", "a@localhost", "", true},
		{"phone too short", "12345", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identifier, _, _, err := NormalizeContact(tt.contact)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrBadRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIdentifier, identifier)
		})
	}
}
