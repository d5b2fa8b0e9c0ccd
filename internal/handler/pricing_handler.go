package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/simtrek/esim_api/internal/service"
	"github.com/simtrek/esim_api/internal/utils"
)

// PricingHandler exposes the admin-triggered best-offer rebuild.
type PricingHandler struct {
	pricingService *service.PricingService
}

// NewPricingHandler constructs a PricingHandler.
func NewPricingHandler(pricingService *service.PricingService) *PricingHandler {
	return &PricingHandler{pricingService: pricingService}
}

// Rebuild handles POST /v1/admin/pricing/rebuild
func (h *PricingHandler) Rebuild(c *gin.Context) {
	count, err := h.pricingService.Rebuild(c.Request.Context())
	if err != nil {
		if errors.Is(err, utils.ErrRebuildInProgress) {
			utils.Error(c, 409, "REBUILD_IN_PROGRESS", "A pricing rebuild is already running")
			return
		}
		utils.Error(c, 500, "REBUILD_FAILED", err.Error())
		return
	}
	utils.Success(c, 200, "Best offers rebuilt", gin.H{
		"offers": count,
	})
}
