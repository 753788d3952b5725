package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/adminguard/internal/auth"
	"github.com/BradenHooton/adminguard/internal/background"
	"github.com/BradenHooton/adminguard/internal/config"
	"github.com/BradenHooton/adminguard/internal/database"
	"github.com/BradenHooton/adminguard/internal/geo"
	"github.com/BradenHooton/adminguard/internal/handlers"
	"github.com/BradenHooton/adminguard/internal/metrics"
	middlewareCustom "github.com/BradenHooton/adminguard/internal/middleware"
	"github.com/BradenHooton/adminguard/internal/models"
	"github.com/BradenHooton/adminguard/internal/repositories"
	"github.com/BradenHooton/adminguard/internal/routes"
	"github.com/BradenHooton/adminguard/internal/services"
	"github.com/BradenHooton/adminguard/internal/sessionstore"
	pkgauth "github.com/BradenHooton/adminguard/pkg/auth"
	pkghttp "github.com/BradenHooton/adminguard/pkg/http"
	pkglogger "github.com/BradenHooton/adminguard/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
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

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Server.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("session_backend", cfg.Session.Backend),
	)

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	userRepo := repositories.NewUserRepository(db)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Shared session roster
	checks := map[string]handlers.HealthCheckFunc{"database": db.HealthCheck}
	var kv sessionstore.KV
	switch cfg.Session.Backend {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := sessionstore.NewRedisClient(ctx, cfg.Session.RedisAddr, cfg.Session.RedisPassword, cfg.Session.RedisDB)
		cancel()
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer client.Close()
		kv = sessionstore.NewRedisKV(client, cfg.Session.Namespace)
		checks["sessions"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	default:
		kv = sessionstore.NewMemoryKV()
	}
	rosterStore := sessionstore.NewStore(kv, "", logger)

	appMetrics := metrics.New()
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Location lookup for new sessions
	var resolver services.GeoResolver = geo.Disabled()
	if cfg.Geo.Enabled {
		resolver = geo.NewHTTPResolver(
			&http.Client{Timeout: cfg.Geo.IPLookupTimeout + cfg.Geo.GeoLookupTimeout},
			geo.DefaultEndpoints(),
			cfg.Geo.IPLookupTimeout,
			cfg.Geo.GeoLookupTimeout,
			appMetrics,
			logger,
		)
	}

	// Lockout alerts
	var notifier services.LockoutNotifier
	if cfg.Alerts.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		sesNotifier, err := services.NewSESLockoutNotifier(ctx, cfg.Alerts.AWSRegion, cfg.Alerts.FromAddress, cfg.Alerts.Recipients, logger)
		cancel()
		if err != nil {
			logger.Error("failed to initialize lockout alerts", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	} else {
		logger.Info("no ALERT_FROM_ADDRESS or ALERT_RECIPIENTS set, lockout alerts disabled")
	}

	// Consoles, one per browser tab
	orchestratorConfig := services.OrchestratorConfig{
		Lockout: services.LockoutConfig{
			MaxFailedAttempts:    cfg.Security.MaxFailedAttempts,
			LockoutDuration:      cfg.Security.LockoutDuration,
			RateLimitWindow:      cfg.Security.RateLimitWindow,
			RateLimitMaxAttempts: cfg.Security.RateLimitMaxAttempts,
			HistorySize:          cfg.Security.AttemptHistorySize,
		},
		SessionTimeout:       cfg.Security.SessionTimeout,
		IdleTimeout:          cfg.Security.IdleTimeout,
		CountdownInterval:    cfg.Security.CountdownInterval,
		SyncInterval:         cfg.Security.SyncInterval,
		CountBackendFailures: cfg.Security.CountBackendFailures,
	}
	orchestratorDeps := services.OrchestratorDeps{
		Validator: services.NewCredentialValidator(userRepo),
		Geo:       resolver,
		Notifier:  notifier,
		Metrics:   appMetrics,
		Audit:     auditLogger,
		Logger:    logger,
	}
	consoles := services.NewConsoleRegistry(
		services.NewConsoleFactory(orchestratorConfig, orchestratorDeps, func(tabID string) services.SessionStore {
			return rosterStore.ForTab(tabID)
		}),
		logger,
	)

	cleanupManager := background.NewCleanupManager(
		rosterStore,
		consoles,
		appMetrics,
		logger,
		cfg.Security.CleanupInterval,
		cfg.Security.SessionTimeout,
		cfg.Security.ConsoleEvictionAfter,
	)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   cfg.Security.FailureDelay,
		RandomDelay: cfg.Security.FailureJitter,
	})
	consoleHandler := handlers.NewConsoleHandler(consoles, ipConfig, timingDelay, logger)
	consoleHandler.SetLoginWriteTimeout(cfg.Server.WriteTimeout + cfg.Geo.LookupBudget() + cfg.Security.FailureDelay + cfg.Security.FailureJitter)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)

	routes.RegisterRoutes(router, consoleHandler, handlers.Health(checks), appMetrics.Handler(), routes.Config{
		TabTokens: auth.NewTabTokenManager(cfg.Security.TabSecret),
		Cookies: auth.CookieConfig{
			Domain:   cfg.Security.CookieDomain,
			Secure:   cfg.Security.CookieSecure,
			SameSite: "strict",
		},
		LoginRateLimit: middlewareCustom.RateLimitConfig{
			RequestsPerMinute: cfg.Security.LoginRequestsPerMinute,
			TrustedProxies:    cfg.Server.TrustedProxies,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: 30 * time.Second,
		Logger:         logger,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Event streams end when their consoles close
	server.RegisterOnShutdown(consoles.Close)
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	// Check if admin already exists
	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(adminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	_, err = userRepo.Create(ctx, &models.User{
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Name:         "Admin",
		IsAdmin:      true,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created", slog.String("email", pkglogger.SanitizedEmail(adminEmail)))
	return nil
}
