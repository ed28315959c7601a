// Package api provides the HTTP API for the PaceLog privacy service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/pacelog/privacy-service/internal/api/handler"
	"github.com/pacelog/privacy-service/internal/api/middleware"
	"github.com/pacelog/privacy-service/internal/deletion"
	"github.com/pacelog/privacy-service/internal/export"
	"github.com/pacelog/privacy-service/internal/identity"
	"github.com/pacelog/privacy-service/internal/provider/resilience"
	"github.com/pacelog/privacy-service/internal/recovery"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	TokenVerifier   identity.TokenVerifier
	DeletionService *deletion.Service
	RecoveryService *recovery.Service
	ExportService   *export.Service

	// DB backs the readiness check. May be nil in tests.
	DB handler.Pinger

	// Providers exposes downstream circuit-breaker health. May be nil.
	Providers *resilience.Registry

	// AllowedOrigins restricts CORS. Empty means same-origin only.
	AllowedOrigins []string
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "pacelog-privacy-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(middleware.ContentTypeJSON) // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.DB, cfg.Providers)
	privacyHandler := handler.NewPrivacyHandler(cfg.DeletionService)
	recoveryHandler := handler.NewRecoveryHandler(cfg.RecoveryService)
	exportHandler := handler.NewExportHandler(cfg.ExportService)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.TokenVerifier)

	// Rate limits per endpoint category
	publicRateLimit := middleware.RateLimitByIP(middleware.PublicRateLimit)
	mutationRateLimit := middleware.RateLimitByUser(middleware.MutationRateLimit)
	standardRateLimit := middleware.RateLimitByUser(middleware.StandardRateLimit)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.Health)
			r.Get("/ready", opsHandler.Ready)
		})

		// Recovery endpoints (public) - the whole point is reaching users
		// whose sessions were revoked, so no auth; strict IP rate limiting.
		r.Group(func(r chi.Router) {
			r.Use(publicRateLimit)
			r.Post("/recovery:requestCode", recoveryHandler.RequestCode)
			r.Post("/recovery:verifyCode", recoveryHandler.VerifyCode)
			r.Post("/recovery:recoverAccount", recoveryHandler.RecoverAccount)
		})

		// Privacy mutations (authenticated)
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(mutationRateLimit)
			r.Post("/privacy:requestAccountDeletion", privacyHandler.RequestAccountDeletion)
			r.Post("/privacy:cancelDeletion", privacyHandler.CancelDeletion)
			r.Post("/exports:create", exportHandler.Create)
		})

		// Privacy reads (authenticated)
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)
			r.Post("/privacy:getDeletionStatus", privacyHandler.GetDeletionStatus)
			r.Post("/privacy:getDeletionRequests", privacyHandler.GetDeletionRequests)
			r.Post("/privacy:getDeletionCertificate", privacyHandler.GetDeletionCertificate)
			r.Post("/exports:get", exportHandler.Get)
			r.Post("/exports:list", exportHandler.List)
		})
	})

	return r
}
