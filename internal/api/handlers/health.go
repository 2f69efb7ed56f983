package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/eshaffer321/expense-matcher/internal/api/dto"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler reports whether the server and its database are up.
type HealthHandler struct {
	ping func(context.Context) error
}

// NewHealthHandler creates a health handler. A nil ping skips the database check.
func NewHealthHandler(ping func(context.Context) error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := dto.NewHealthResponse()
	status := http.StatusOK

	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		response.Database = dto.HealthOK
		if err := h.ping(ctx); err != nil {
			response.Status = dto.HealthDegraded
			response.Database = dto.HealthUnavailable
			status = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}
