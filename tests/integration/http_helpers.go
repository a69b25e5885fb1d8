package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mwhite-dev/punchcard/internal/auth"
	"github.com/mwhite-dev/punchcard/internal/config"
	"github.com/mwhite-dev/punchcard/internal/database"
	"github.com/mwhite-dev/punchcard/internal/handlers"
	middlewareCustom "github.com/mwhite-dev/punchcard/internal/middleware"
	"github.com/mwhite-dev/punchcard/internal/presence"
	"github.com/mwhite-dev/punchcard/internal/repositories"
	"github.com/mwhite-dev/punchcard/internal/routes"
	"github.com/mwhite-dev/punchcard/internal/services"
	pkghttp "github.com/mwhite-dev/punchcard/pkg/http"
)

// SentEmail represents a captured email message
type SentEmail struct {
	To          string
	DisplayName string
}

// MockMailer captures welcome emails for test assertions
type MockMailer struct {
	SentEmails []SentEmail
	mu         sync.Mutex
}

// SendWelcomeEmail records the email
func (m *MockMailer) SendWelcomeEmail(ctx context.Context, email, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentEmails = append(m.SentEmails, SentEmail{To: email, DisplayName: displayName})
	return nil
}

// Count returns the number of captured emails
func (m *MockMailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SentEmails)
}

// TestServer wraps httptest.Server with the database and all dependencies
type TestServer struct {
	Server *httptest.Server
	DB     *database.DB
	Mailer *MockMailer
	Config *config.Config

	SessionManager *auth.SessionManager
}

// NewTestServer builds a complete HTTP server over a real database with a
// mocked mailer and tight presence TTLs suitable for tests.
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:     "test-secret-32-characters-long-for-testing",
			SessionExpiry: 24 * time.Hour,
			TimingDelayMs: 0,
		},
		Presence: config.PresenceConfig{
			IdentificationTTL:    15 * time.Minute,
			CooldownWindow:       15 * time.Minute,
			LockoutThreshold:     5,
			LockoutDuration:      15 * time.Minute,
			SecretTokenTTL:       5 * time.Minute,
			VerifyTokenTTL:       30 * time.Minute,
			SweepInterval:        time.Minute,
			MaxIdentifiesPerHour: 100,
		},
		Server: config.ServerConfig{
			Port:    "0",
			Env:     "test",
			BaseURL: "http://localhost:8080",
		},
	}

	customerRepo := repositories.NewCustomerRepository(db)
	merchantRepo := repositories.NewMerchantRepository(db)
	pointsRepo := repositories.NewPointsRepository(db)

	mailer := &MockMailer{}

	pendingQueue := presence.NewQueue(cfg.Presence.IdentificationTTL)
	cooldownTracker := presence.NewCooldownTracker(cfg.Presence.CooldownWindow)
	lockoutTracker := presence.NewLockoutTracker(cfg.Presence.LockoutThreshold, cfg.Presence.LockoutDuration)
	identifyLimiter := presence.NewWindowLimiter(cfg.Presence.MaxIdentifiesPerHour, time.Hour)
	verifyTokens := presence.NewIssuer[struct{}](cfg.Presence.VerifyTokenTTL)
	secretTokens := presence.NewIssuer[string](cfg.Presence.SecretTokenTTL)

	sessionManager := auth.NewSessionManager(cfg.Auth.JWTSecret, cfg.Auth.SessionExpiry)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{})

	presenceService := services.NewPresenceService(
		customerRepo, merchantRepo, mailer,
		pendingQueue, cooldownTracker, identifyLimiter,
		verifyTokens, secretTokens, logger,
	)
	loginService := services.NewLoginService(
		customerRepo, merchantRepo, lockoutTracker, sessionManager, timingDelay, logger,
	)
	pointsService := services.NewPointsService(
		pointsRepo, customerRepo, verifyTokens, secretTokens, logger,
	)

	ipConfig := &pkghttp.IPConfig{}
	presenceHandler := handlers.NewPresenceHandler(presenceService, loginService, ipConfig)
	pointsHandler := handlers.NewPointsHandler(pointsService)
	qrHandler := handlers.NewQRHandler(customerRepo, merchantRepo, cfg.Server.BaseURL)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(chiMiddleware.Recoverer)

	routes.RegisterRoutes(router, presenceHandler, pointsHandler, qrHandler, sessionManager)

	return &TestServer{
		Server:         httptest.NewServer(router),
		DB:             db,
		Mailer:         mailer,
		Config:         cfg,
		SessionManager: sessionManager,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// StaffToken mints a staff session for request authorization
func (ts *TestServer) StaffToken(staffID, merchantID, role string) (string, error) {
	return ts.SessionManager.IssueStaffSession(staffID, merchantID, role)
}

// CustomerToken mints a customer session for request authorization
func (ts *TestServer) CustomerToken(customerID string) (string, error) {
	return ts.SessionManager.IssueCustomerSession(customerID)
}

// DoJSON performs an HTTP request with a JSON body and optional bearer token
func (ts *TestServer) DoJSON(method, path, token string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return http.DefaultClient.Do(req)
}

// DecodeJSON decodes a response body into out and closes it
func DecodeJSON(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}
