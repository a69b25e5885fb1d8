package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session subject kinds.
const (
	SubjectStaff    = "staff"
	SubjectCustomer = "customer"
)

// SessionClaims are the JWT claims carried by a signed session credential.
// Staff sessions carry a merchant and role; customer sessions carry only the
// customer id.
type SessionClaims struct {
	Subject    string `json:"sub_kind"`
	MerchantID string `json:"merchant_id,omitempty"`
	Role       string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// SessionManager issues and validates long-lived signed session credentials.
// It is the session-issuance collaborator of the recognition core: the core
// proves who someone is, the manager turns that into a bearer credential.
type SessionManager struct {
	secret []byte
	expiry time.Duration
}

// NewSessionManager creates a SessionManager signing with secret.
func NewSessionManager(secret string, expiry time.Duration) *SessionManager {
	return &SessionManager{secret: []byte(secret), expiry: expiry}
}

// IssueCustomerSession mints a session credential for a customer id after a
// successful credential login.
func (sm *SessionManager) IssueCustomerSession(customerID string) (string, error) {
	return sm.issue(SessionClaims{
		Subject: SubjectCustomer,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: customerID,
		},
	})
}

// IssueStaffSession mints a session credential for a staff member scoped to
// their merchant and role.
func (sm *SessionManager) IssueStaffSession(staffID, merchantID, role string) (string, error) {
	return sm.issue(SessionClaims{
		Subject:    SubjectStaff,
		MerchantID: merchantID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: staffID,
		},
	})
}

func (sm *SessionManager) issue(claims SessionClaims) (string, error) {
	now := time.Now()
	claims.ID = uuid.New().String()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(sm.expiry))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(sm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session credential, returning its claims.
func (sm *SessionManager) Validate(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return sm.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return claims, nil
}
