package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mwhite-dev/punchcard/internal/auth"
	"github.com/mwhite-dev/punchcard/internal/background"
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

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	customerRepo := repositories.NewCustomerRepository(db)
	merchantRepo := repositories.NewMerchantRepository(db)
	pointsRepo := repositories.NewPointsRepository(db)

	// Ephemeral presence stores. These live for the process lifetime and hold
	// all transient recognition state; nothing in them survives a restart.
	pendingQueue := presence.NewQueue(cfg.Presence.IdentificationTTL)
	cooldownTracker := presence.NewCooldownTracker(cfg.Presence.CooldownWindow)
	lockoutTracker := presence.NewLockoutTracker(cfg.Presence.LockoutThreshold, cfg.Presence.LockoutDuration)
	identifyLimiter := presence.NewWindowLimiter(cfg.Presence.MaxIdentifiesPerHour, time.Hour)
	verifyTokens := presence.NewIssuer[struct{}](cfg.Presence.VerifyTokenTTL)
	secretTokens := presence.NewIssuer[string](cfg.Presence.SecretTokenTTL)

	// Background sweeper bounds memory growth across all ephemeral stores
	sweeper := background.NewSweeper(logger, cfg.Presence.SweepInterval)
	sweeper.Register("pending_queue", pendingQueue)
	sweeper.Register("cooldown_tracker", cooldownTracker)
	sweeper.Register("lockout_tracker", lockoutTracker)
	sweeper.Register("identify_limiter", identifyLimiter)
	sweeper.Register("verify_tokens", verifyTokens)
	sweeper.Register("secret_tokens", secretTokens)

	// Session manager for staff and customer bearer credentials
	sessionManager := auth.NewSessionManager(cfg.Auth.JWTSecret, cfg.Auth.SessionExpiry)

	// Timing delay for the credential login path
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayMs,
		RandomDelayMs: cfg.Auth.TimingDelayMs / 2,
	})

	// AWS SES welcome mailer, optional
	var mailer services.WelcomeMailer
	if cfg.Email.Enabled {
		sesMailer, err := services.NewAWSSESMailer(cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		mailer = sesMailer
	}

	// Initialize services
	presenceService := services.NewPresenceService(
		customerRepo,
		merchantRepo,
		mailer,
		pendingQueue,
		cooldownTracker,
		identifyLimiter,
		verifyTokens,
		secretTokens,
		logger,
	)
	loginService := services.NewLoginService(
		customerRepo,
		merchantRepo,
		lockoutTracker,
		sessionManager,
		timingDelay,
		logger,
	)
	pointsService := services.NewPointsService(
		pointsRepo,
		customerRepo,
		verifyTokens,
		secretTokens,
		logger,
	)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{
		TrustedProxies: []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
	}
	presenceHandler := handlers.NewPresenceHandler(presenceService, loginService, ipConfig)
	pointsHandler := handlers.NewPointsHandler(pointsService)
	qrHandler := handlers.NewQRHandler(customerRepo, merchantRepo, cfg.Server.BaseURL)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.Env)
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, presenceHandler, pointsHandler, qrHandler, sessionManager)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background sweeper
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	go sweeper.Start(sweepCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweepCancel()
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
