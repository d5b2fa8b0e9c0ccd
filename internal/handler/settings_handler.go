package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/simtrek/esim_api/internal/models"
	"github.com/simtrek/esim_api/internal/service"
	"github.com/simtrek/esim_api/internal/utils"
)

// SettingsHandler exposes the global pricing settings to the admin UI.
type SettingsHandler struct {
	settingsService *service.SettingsService
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// GetSettings handles GET /v1/admin/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingsService.Get()
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve settings")
		return
	}
	utils.Success(c, 200, "Settings retrieved", settings)
}

// UpdateSettings handles PUT /v1/admin/settings. A SKU price override below
// the offer's cost is rejected and never persisted.
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var settings models.PricingSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if err := h.settingsService.Update(&settings); err != nil {
		if errors.Is(err, utils.ErrPriceGuardViolation) {
			utils.Error(c, 422, "PRICE_GUARD_VIOLATION", err.Error())
			return
		}
		utils.Error(c, 400, "INVALID_SETTINGS", err.Error())
		return
	}

	utils.Success(c, 200, "Settings updated", settings)
}
