package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker is implemented by dependency checks.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandlersConfig configures the probes. Nil checkers are reported as
// not configured.
type HealthHandlersConfig struct {
	// DBChecker and RedisChecker gate readiness.
	DBChecker    HealthChecker
	RedisChecker HealthChecker
	// RoutingChecker is advisory: route lookups fall back to straight lines.
	RoutingChecker HealthChecker
	Timeout        time.Duration
	Logger         *slog.Logger
}

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	cfg HealthHandlersConfig
}

// NewHealthHandlers creates the probe handlers.
func NewHealthHandlers(cfg HealthHandlersConfig) *HealthHandlers {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &HealthHandlers{cfg: cfg}
}

// HealthResponse is the probe body.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health. It answers as long as the process serves requests.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready. It returns 503 when the database or Redis fails
// and "degraded" with 200 when only the routing service is unreachable.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.Timeout)
	defer cancel()

	checks := make(map[string]string, 3)
	healthy, degraded := true, false

	run := func(name string, c HealthChecker, critical bool) {
		if c == nil {
			checks[name] = "not_configured"
			return
		}
		if err := c.HealthCheck(ctx); err != nil {
			checks[name] = "error"
			h.cfg.Logger.WarnContext(ctx, "health check failed",
				slog.String("check", name),
				slog.String("error", err.Error()),
			)
			if critical {
				healthy = false
			} else {
				degraded = true
			}
			return
		}
		checks[name] = "ok"
	}
	run("database", h.cfg.DBChecker, true)
	run("redis", h.cfg.RedisChecker, true)
	run("routing", h.cfg.RoutingChecker, false)

	status, code := "healthy", http.StatusOK
	switch {
	case !healthy:
		status, code = "unhealthy", http.StatusServiceUnavailable
	case degraded:
		status = "degraded"
	}
	writeJSON(w, r, code, HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
