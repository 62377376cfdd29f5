package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// Pinger is a dependency that can report liveness
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service health and its dependencies
type HealthHandler struct {
	checks  map[string]Pinger
	timeout time.Duration
}

// NewHealthHandler creates a health handler with no dependency checks
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		checks:  make(map[string]Pinger),
		timeout: 2 * time.Second,
	}
}

// WithCheck registers a named dependency
func (h *HealthHandler) WithCheck(name string, p Pinger) *HealthHandler {
	h.checks[name] = p
	return h
}

// GetHealth returns 200 when every check passes, 503 otherwise
// GET /health
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := "ok"
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, map[string]interface{}{
		"status":  status,
		"service": "riskdash",
		"checks":  checks,
	})
}
