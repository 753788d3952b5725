package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/adminguard/internal/auth"
	"github.com/BradenHooton/adminguard/internal/handlers"
	"github.com/BradenHooton/adminguard/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Config carries what the admin routes need beyond their handlers
type Config struct {
	TabTokens      *auth.TabTokenManager
	Cookies        auth.CookieConfig
	LoginRateLimit middleware.RateLimitConfig
	AllowedOrigins []string
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	consoleHandler *handlers.ConsoleHandler,
	health http.HandlerFunc,
	metrics http.Handler,
	cfg Config,
) {
	router.Get("/health", health)
	router.Handle("/metrics", metrics)

	router.Route("/admin", func(r chi.Router) {
		r.Use(auth.TabIdentity(cfg.TabTokens, cfg.Cookies, cfg.Logger))
		r.Use(middleware.CaptureTabID)
		r.Use(middleware.SameOriginGuard(cfg.AllowedOrigins, cfg.Logger))

		// The event stream stays open; everything else is bounded
		r.Get("/events", consoleHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

			r.Get("/console", consoleHandler.Console)
			r.With(middleware.RateLimitByIP(cfg.LoginRateLimit)).Post("/login", consoleHandler.Login)
			r.Post("/logout", consoleHandler.Logout)
			r.Post("/activity", consoleHandler.Activity)
		})
	})
}
