package handlers

import (
	"net/http"

	"product-catalog/internal/health"
	"product-catalog/pkg/api"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checker *health.Checker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Check handles GET /health requests
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, h.checker.Liveness())
}

// Ready handles GET /ready requests
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	report := h.checker.Readiness(r.Context())
	status := http.StatusOK
	if !report.Up() {
		status = http.StatusServiceUnavailable
	}
	api.Success(w, status, report)
}
