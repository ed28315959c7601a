// Package config loads service configuration from the environment.
// A local .env file is honored when present; real deployments inject
// everything through the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the API and worker binaries read from the
// environment.
type Config struct {
	// Environment is the deployment environment (development, staging,
	// production).
	Environment string

	// Port is the HTTP listen port for the API binary.
	Port string

	// OTel exporter settings.
	OTelEnabled  bool
	OTLPEndpoint string

	// RunMigrations applies pending schema migrations on startup.
	RunMigrations bool

	// JWT settings for validating platform access tokens.
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// Redis backs the recovery-code rate limiter.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// GCSBucket holds user uploads and export archives.
	GCSBucket string

	// BigQuery analytics warehouse.
	BigQueryProject string
	BigQueryDataset string
	BigQueryTable   string

	// Identity service internal admin API.
	IdentityBaseURL      string
	IdentityServiceToken string

	// Resend transactional email.
	ResendAPIKey string
	MailFrom     string

	// Pub/Sub task nudges for the worker.
	PubSubProject      string
	PubSubTopic        string
	PubSubSubscription string

	// PseudonymSalt keys the warehouse pseudonymization HMAC.
	PseudonymSalt string

	// AllowedOrigins restricts CORS on the API.
	AllowedOrigins []string

	// Worker settings.
	SweepInterval  time.Duration
	SweepBatchSize int
}

// Load reads configuration from the environment, after loading an
// optional .env file.
func Load() Config {
	// Missing .env is the normal case outside local development
	_ = godotenv.Load()

	return Config{
		Environment: getEnvOrDefault("APP_ENV", "development"),
		Port:        getEnvOrDefault("APP_PORT", "8080"),

		OTelEnabled:  os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		RunMigrations: getEnvOrDefault("DB_RUN_MIGRATIONS", "true") == "true",

		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
		JWTIssuer:     getEnvOrDefault("JWT_ISSUER", "https://id.pacelog.app"),
		JWTAudience:   getEnvOrDefault("JWT_AUDIENCE", "pacelog-api"),

		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("REDIS_DB", 0),

		GCSBucket: getEnvOrDefault("GCS_BUCKET", "pacelog-user-data"),

		BigQueryProject: os.Getenv("BIGQUERY_PROJECT"),
		BigQueryDataset: getEnvOrDefault("BIGQUERY_DATASET", "analytics"),
		BigQueryTable:   getEnvOrDefault("BIGQUERY_TABLE", "events"),

		IdentityBaseURL:      getEnvOrDefault("IDENTITY_BASE_URL", "http://identity.internal:8080"),
		IdentityServiceToken: os.Getenv("IDENTITY_SERVICE_TOKEN"),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		MailFrom:     getEnvOrDefault("MAIL_FROM", "PaceLog <privacy@pacelog.app>"),

		PubSubProject:      os.Getenv("PUBSUB_PROJECT"),
		PubSubTopic:        getEnvOrDefault("PUBSUB_TASK_TOPIC", "privacy-tasks"),
		PubSubSubscription: getEnvOrDefault("PUBSUB_TASK_SUBSCRIPTION", "privacy-tasks-worker"),

		PseudonymSalt: os.Getenv("PSEUDONYM_SALT"),

		AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		SweepInterval:  getEnvDurationOrDefault("WORKER_SWEEP_INTERVAL", 30*time.Second),
		SweepBatchSize: getEnvIntOrDefault("WORKER_SWEEP_BATCH_SIZE", 10),
	}
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
