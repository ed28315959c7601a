package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/pacelog/privacy-service/internal/api/models"
	"github.com/pacelog/privacy-service/internal/api/response"
	"github.com/pacelog/privacy-service/internal/apierr"
	"github.com/pacelog/privacy-service/internal/provider/resilience"
)

// Pinger checks connectivity to a backing store. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles health and readiness endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	db        Pinger
	providers *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler. db and providers may be nil, in
// which case readiness only reflects that the process is serving.
func NewOpsHandler(version, buildTime string, db Pinger, providers *resilience.Registry) *OpsHandler {
	return &OpsHandler{version: version, buildTime: buildTime, db: db, providers: providers}
}

// Health handles GET /v1/ops/health. It reports liveness plus the circuit
// state of downstream providers, without calling any of them.
func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatusOK
	details := map[string]any{
		"version":   h.version,
		"buildTime": h.buildTime,
	}

	if h.providers != nil {
		providerStates := make(map[string]string)
		for _, health := range h.providers.GetAllHealth() {
			providerStates[health.Name] = health.CircuitState.String()
			if !health.IsHealthy() {
				status = models.HealthStatusDegraded
			}
		}
		if len(providerStates) > 0 {
			details["providers"] = providerStates
		}
	}

	response.OK(w, r, models.Health{
		Status:  status,
		Time:    models.Timestamp(time.Now()),
		Details: details,
	})
}

// Ready handles GET /v1/ops/ready. It verifies the database connection so
// the load balancer stops routing to an instance that lost its pool.
func (h *OpsHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			response.Error(w, r, apierr.Unavailable("database unavailable").WithCause(err))
			return
		}
	}
	response.OK(w, r, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	})
}
