// Package main provides the entrypoint for the PaceLog privacy API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pacelog/privacy-service/internal/api"
	"github.com/pacelog/privacy-service/internal/api/middleware"
	"github.com/pacelog/privacy-service/internal/audit"
	"github.com/pacelog/privacy-service/internal/config"
	"github.com/pacelog/privacy-service/internal/database"
	"github.com/pacelog/privacy-service/internal/deletion"
	"github.com/pacelog/privacy-service/internal/export"
	"github.com/pacelog/privacy-service/internal/identity"
	"github.com/pacelog/privacy-service/internal/mail"
	"github.com/pacelog/privacy-service/internal/provider/resilience"
	"github.com/pacelog/privacy-service/internal/recovery"
	"github.com/pacelog/privacy-service/internal/tasks"
	"github.com/pacelog/privacy-service/internal/telemetry"
	"github.com/pacelog/privacy-service/internal/user"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "pacelog-privacy-api"

	cfg := config.Load()

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting PaceLog privacy API")

	// Initialize OpenTelemetry
	ctx := context.Background()
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	if cfg.RunMigrations {
		if err := database.Migrate(dbConfig); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
		log.Info().Msg("schema migrations applied")
	}

	// Redis backs the recovery-code request limiter
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close redis client")
		}
	}()

	// Token verification for authenticated endpoints
	if cfg.JWTSigningKey == "" {
		if cfg.IsProduction() {
			log.Fatal().Msg("JWT_SIGNING_KEY is required in production")
		}
		cfg.JWTSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	tokenService := identity.NewTokenService(identity.TokenConfig{
		SigningKey: cfg.JWTSigningKey,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
	})

	// Transactional email
	var mailer mail.Mailer
	if cfg.ResendAPIKey != "" {
		mailer = mail.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom, log)
		log.Info().Msg("resend mailer initialized")
	} else {
		mailer = mail.NopMailer{}
		log.Warn().Msg("RESEND_API_KEY not set - outgoing mail is discarded")
	}

	// Repositories
	deletionRepo := deletion.NewPostgresRepository(pool)
	recoveryRepo := recovery.NewPostgresRepository(pool)
	exportRepo := export.NewPostgresRepository(pool)
	taskRepo := tasks.NewPostgresRepository(pool)
	userRepo := user.NewPostgresRepository(pool)
	auditRecorder := audit.NewPostgresRecorder(pool)

	// Task scheduling (the worker binary drains the queue)
	scheduler := tasks.NewScheduler(tasks.SchedulerConfig{
		Repository: taskRepo,
		Logger:     log,
	})

	exportService := export.NewService(export.ServiceConfig{
		Repository: exportRepo,
		Scheduler:  scheduler,
		Audit:      auditRecorder,
		Logger:     log,
	})
	log.Info().Msg("export service initialized")

	deletionService := deletion.NewService(deletion.ServiceConfig{
		Repository: deletionRepo,
		Users:      userRepo,
		Exports:    exportService,
		Scheduler:  scheduler,
		Audit:      auditRecorder,
		Mailer:     mailer,
		Logger:     log,
	})
	log.Info().Msg("deletion service initialized")

	recoveryService := recovery.NewService(recovery.ServiceConfig{
		Repository: recoveryRepo,
		Deletions:  deletionService,
		Limiter:    recovery.NewRedisLimiter(redisClient),
		Mailer:     mailer,
		Audit:      auditRecorder,
		Logger:     log,
	})
	log.Info().Msg("recovery service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         metrics,
		TokenVerifier:   tokenService,
		DeletionService: deletionService,
		RecoveryService: recoveryService,
		ExportService:   exportService,
		DB:              pool,
		Providers:       resilience.GlobalRegistry,
		AllowedOrigins:  cfg.AllowedOrigins,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
