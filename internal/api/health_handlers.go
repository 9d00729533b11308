package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/veridex/listrank/internal/middleware"
)

// readinessTimeout bounds the whole readiness sweep across dependencies.
const readinessTimeout = 5 * time.Second

// HealthChecker is implemented by dependency probes (Postgres, Redis).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandlers serves the liveness and readiness endpoints used by
// Kubernetes probes.
type HealthHandlers struct {
	dbChecker      HealthChecker
	redisChecker   HealthChecker
	metricsEnabled bool
}

// HealthHandlersConfig configures the health check handlers. Nil checkers
// mean the dependency is not configured (in-memory mode) and count as
// healthy.
type HealthHandlersConfig struct {
	DBChecker      HealthChecker
	RedisChecker   HealthChecker
	MetricsEnabled bool
}

func NewHealthHandlers(config HealthHandlersConfig) *HealthHandlers {
	return &HealthHandlers{
		dbChecker:      config.DBChecker,
		redisChecker:   config.RedisChecker,
		metricsEnabled: config.MetricsEnabled,
	}
}

// HealthResponse is the JSON body for both probe endpoints.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

func (h *HealthHandlers) writeProbeResponse(w http.ResponseWriter, statusCode int, status string, checks map[string]string) {
	response := HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode probe response", "error", err)
	}
}

func rejectNonGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return false
	}
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
	WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	return true
}

// Health handles GET /health. Liveness is simply being able to respond.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if rejectNonGet(w, r) {
		return
	}
	h.writeProbeResponse(w, http.StatusOK, "healthy", map[string]string{"runtime": "ok"})
}

// probeDependency runs one checker and records its result. A nil checker
// means the dependency is not configured and reports ok.
func probeDependency(ctx context.Context, name string, checker HealthChecker, checks map[string]string) bool {
	if checker == nil {
		checks[name] = "ok"
		return true
	}
	if err := checker.HealthCheck(ctx); err != nil {
		checks[name] = "error"
		slog.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err)
		return false
	}
	checks[name] = "ok"
	return true
}

// Ready handles GET /ready. Returns 503 when any configured dependency
// fails its probe so the load balancer stops routing traffic here.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if rejectNonGet(w, r) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string)
	healthy := probeDependency(ctx, "database", h.dbChecker, checks)
	healthy = probeDependency(ctx, "redis", h.redisChecker, checks) && healthy

	// The Prometheus registry is initialized at startup and cannot fail.
	checks["metrics"] = "ok"

	if !healthy {
		h.writeProbeResponse(w, http.StatusServiceUnavailable, "unhealthy", checks)
		return
	}
	h.writeProbeResponse(w, http.StatusOK, "healthy", checks)
}
