// Package main provides the entrypoint for the PaceLog privacy worker. It
// drains the durable task queue: deletion executions and export runs.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pacelog/privacy-service/internal/api/middleware"
	"github.com/pacelog/privacy-service/internal/audit"
	"github.com/pacelog/privacy-service/internal/config"
	"github.com/pacelog/privacy-service/internal/database"
	"github.com/pacelog/privacy-service/internal/deletion"
	"github.com/pacelog/privacy-service/internal/export"
	"github.com/pacelog/privacy-service/internal/identity"
	"github.com/pacelog/privacy-service/internal/objectstore"
	"github.com/pacelog/privacy-service/internal/tasks"
	"github.com/pacelog/privacy-service/internal/telemetry"
	"github.com/pacelog/privacy-service/internal/user"
	"github.com/pacelog/privacy-service/internal/warehouse"
	"github.com/pacelog/privacy-service/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "pacelog-privacy-worker"

	cfg := config.Load()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting PaceLog privacy worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Object storage holds uploads and export archives
	var objects objectstore.Store
	gcs, err := objectstore.NewGCS(ctx, cfg.GCSBucket)
	if err != nil {
		if cfg.IsProduction() {
			log.Fatal().Err(err).Msg("failed to initialize object storage")
		}
		log.Warn().Err(err).Msg("object storage unavailable - using in-memory store")
		objects = objectstore.NewInMemoryStore()
	} else {
		objects = gcs
		log.Info().Str("bucket", cfg.GCSBucket).Msg("object storage initialized")
	}

	// Analytics warehouse, addressed by pseudonymized user keys
	var analytics warehouse.Warehouse
	if cfg.BigQueryProject != "" {
		bq, err := warehouse.NewBigQuery(ctx, cfg.BigQueryProject, cfg.BigQueryDataset, cfg.BigQueryTable)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize warehouse client")
		}
		analytics = bq
		log.Info().
			Str("project", cfg.BigQueryProject).
			Str("dataset", cfg.BigQueryDataset).
			Msg("warehouse client initialized")
	} else {
		if cfg.IsProduction() {
			log.Fatal().Msg("BIGQUERY_PROJECT is required in production")
		}
		log.Warn().Msg("BIGQUERY_PROJECT not set - using in-memory warehouse")
		analytics = warehouse.NewInMemoryWarehouse()
	}

	if cfg.PseudonymSalt == "" {
		if cfg.IsProduction() {
			log.Fatal().Msg("PSEUDONYM_SALT is required in production")
		}
		cfg.PseudonymSalt = "local-dev-pseudonym-salt"
		log.Warn().Msg("using default pseudonym salt - not secure for production")
	}
	pseudonymizer := warehouse.NewPseudonymizer(cfg.PseudonymSalt)

	// Identity admin client for session revocation and account deletion
	providerMetrics, err := middleware.NewProviderMetrics("identity-admin")
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	identityClient := identity.NewClient(identity.ClientConfig{
		BaseURL:      cfg.IdentityBaseURL,
		ServiceToken: cfg.IdentityServiceToken,
		Metrics:      providerMetrics,
		Logger:       log,
	})
	log.Info().Str("base_url", cfg.IdentityBaseURL).Msg("identity admin client initialized")

	// Repositories
	deletionRepo := deletion.NewPostgresRepository(pool)
	exportRepo := export.NewPostgresRepository(pool)
	taskRepo := tasks.NewPostgresRepository(pool)
	userRepo := user.NewPostgresRepository(pool)
	auditRecorder := audit.NewPostgresRecorder(pool)

	executor := deletion.NewExecutor(deletion.ExecutorConfig{
		Repository: deletionRepo,
		Users:      userRepo,
		Objects:    objects,
		Warehouse:  analytics,
		Identity:   identityClient,
		Pseudonym:  pseudonymizer.Key,
		Audit:      auditRecorder,
		Logger:     log,
	})
	log.Info().Msg("deletion executor initialized")

	runner := export.NewRunner(export.RunnerConfig{
		Jobs:    exportRepo,
		Users:   userRepo,
		Objects: objects,
		Audit:   auditRecorder,
		Logger:  log,
	})
	log.Info().Msg("export runner initialized")

	scheduler := tasks.NewScheduler(tasks.SchedulerConfig{
		Repository: taskRepo,
		Logger:     log,
	})

	sweeper := worker.NewSweeper(worker.SweeperConfig{
		Scheduler: scheduler,
		Deletions: executor,
		Exports:   runner,
		Logger:    log,
		Interval:  cfg.SweepInterval,
		BatchSize: cfg.SweepBatchSize,
	})

	// Interval sweep is the delivery guarantee; Pub/Sub nudges just cut
	// the latency between scheduling and execution.
	go sweeper.Run(ctx)

	if cfg.PubSubProject != "" {
		pubsubHandler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProject,
			SubscriptionName: cfg.PubSubSubscription,
			Sweeper:          sweeper,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize pubsub handler")
		}
		defer func() {
			if closeErr := pubsubHandler.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := pubsubHandler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Warn().Msg("PUBSUB_PROJECT not set - relying on interval sweeps only")
	}

	// Health endpoint for the orchestrator
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
