package handlers

import (
	"net/http"

	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
	"github.com/pratik-mahalle/infrasec/internal/pkg/utils"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	store  rule.Store
	logger *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store rule.Store, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		logger: log,
	}
}

// Healthz handles liveness probe
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Readyz handles readiness probe. The store is ready when a trivial read
// succeeds.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.CountByStatus(r.Context()); err != nil {
		h.logger.ErrorWithErr(err, "Store readiness check failed")
		utils.WriteErrorMessage(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Rule store unavailable")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, map[string]string{
		"status": "ready",
		"store":  "connected",
	})
}
