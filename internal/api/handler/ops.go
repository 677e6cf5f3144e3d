package handler

import (
	"net/http"

	"github.com/stuartshay/pwsh-azure-health-sub000/internal/api/response"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
}

// NewOpsHandler creates an OpsHandler.
func NewOpsHandler(version, buildTime string) *OpsHandler {
	return &OpsHandler{version: version, buildTime: buildTime}
}

// HealthCheck handles GET /v1/ops/health - liveness probe.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, map[string]string{
		"status":     "healthy",
		"version":    h.version,
		"build_time": h.buildTime,
	})
}

// ReadinessCheck handles GET /v1/ops/ready - readiness probe.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
