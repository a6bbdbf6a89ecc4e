package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports liveness, dependency probes and an optional status
// payload such as the board's poller counters.
type HealthHandler struct {
	checks map[string]HealthCheck
	status func() any
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. checks and status may be nil.
func NewHealthHandler(checks map[string]HealthCheck, status func() any, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, status: status, logger: logger}
}

// HealthCheck answers 200 when every probe passes and 503 otherwise.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	code := http.StatusOK
	overall := "ok"
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			code = http.StatusServiceUnavailable
			overall = "degraded"
			h.logger.WarnContext(ctx, "health check failed", slog.String("check", name), slog.String("error", err.Error()))
			continue
		}
		results[name] = "ok"
	}

	body := map[string]any{
		"status":    overall,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    results,
	}
	if h.status != nil {
		body["board"] = h.status()
	}
	writeJSON(w, code, body)
}
