package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/simtrek/esim_api/internal/models"
	"github.com/simtrek/esim_api/internal/service"
	"github.com/simtrek/esim_api/internal/utils"
)

// EsimHandler exposes optional per-profile provider capabilities.
type EsimHandler struct {
	esimService *service.EsimService
}

// NewEsimHandler constructs an EsimHandler.
func NewEsimHandler(esimService *service.EsimService) *EsimHandler {
	return &EsimHandler{esimService: esimService}
}

// GetStatus handles GET /v1/esims/:iccid?provider=esimaccess
func (h *EsimHandler) GetStatus(c *gin.Context) {
	slug := models.ProviderSlug(c.Query("provider"))
	if slug == "" {
		utils.Error(c, 400, "INVALID_REQUEST", "provider query parameter is required")
		return
	}

	status, err := h.esimService.GetStatus(c.Request.Context(), slug, c.Param("iccid"))
	if err != nil {
		writeEsimError(c, err)
		return
	}
	utils.Success(c, 200, "Esim status retrieved", status)
}

// TopUp handles POST /v1/esims/:iccid/topup
func (h *EsimHandler) TopUp(c *gin.Context) {
	var req struct {
		Provider          string `json:"provider" binding:"required"`
		ProviderProductID string `json:"providerProductId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	result, err := h.esimService.TopUp(c.Request.Context(),
		models.ProviderSlug(req.Provider), c.Param("iccid"), req.ProviderProductID)
	if err != nil {
		writeEsimError(c, err)
		return
	}
	utils.Success(c, 200, "Top-up placed", result)
}

func writeEsimError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrNoProviderAvailable):
		utils.Error(c, 404, "NO_PROVIDER_AVAILABLE", "Provider is not registered")
	case errors.Is(err, utils.ErrUnsupportedCapability):
		utils.Error(c, 501, "UNSUPPORTED_CAPABILITY", err.Error())
	default:
		utils.Error(c, 502, "UPSTREAM_ERROR", "Provider call failed")
	}
}
