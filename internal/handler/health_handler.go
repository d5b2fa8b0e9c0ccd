package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simtrek/esim_api/internal/service"
	"github.com/simtrek/esim_api/internal/utils"
)

var startTime = time.Now()

// HealthHandler provides the health endpoint.
type HealthHandler struct {
	balanceService *service.BalanceService
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(balanceService *service.BalanceService) *HealthHandler {
	return &HealthHandler{balanceService: balanceService}
}

// GetHealth responds with service status and per-provider reachability.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	providers := gin.H{}
	for slug, ok := range h.balanceService.CheckHealth(c.Request.Context()) {
		status := "connected"
		if !ok {
			status = "disconnected"
		}
		providers[string(slug)] = status
	}

	utils.Success(c, 200, "Service is healthy", gin.H{
		"status":    "healthy",
		"version":   "1.0.0",
		"uptime":    int(time.Since(startTime).Seconds()),
		"providers": providers,
	})
}
