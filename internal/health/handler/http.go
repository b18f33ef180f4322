// Package handler serves readiness/liveness for Kubernetes, load balancers, and CI.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger reports backing-store reachability (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker reports policy engine readiness (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves GET /healthz.
type Handler struct {
	db     Pinger
	policy PolicyChecker
}

// NewHandler returns a health handler. db and policy may be nil; nil checks are skipped.
func NewHandler(db Pinger, policy PolicyChecker) *Handler {
	return &Handler{db: db, policy: policy}
}

type checkResult struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Check runs the configured checks with a short timeout. Returns 200 when all
// pass, 503 otherwise, with per-check detail in the body.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	result := checkResult{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			result.Checks["database"] = err.Error()
			result.Status = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			result.Checks["database"] = "ok"
		}
	}
	if h.policy != nil {
		if err := h.policy.HealthCheck(ctx); err != nil {
			result.Checks["policy"] = err.Error()
			result.Status = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			result.Checks["policy"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result)
}
