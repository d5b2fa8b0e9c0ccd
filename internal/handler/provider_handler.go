package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/simtrek/esim_api/internal/repository"
	"github.com/simtrek/esim_api/internal/service"
	"github.com/simtrek/esim_api/internal/utils"
)

// ProviderHandler exposes provider administration: status, scoring inputs,
// balances, and daily health.
type ProviderHandler struct {
	providerRepo   *repository.ProviderRepository
	balanceService *service.BalanceService
}

// NewProviderHandler constructs a ProviderHandler.
func NewProviderHandler(providerRepo *repository.ProviderRepository, balanceService *service.BalanceService) *ProviderHandler {
	return &ProviderHandler{providerRepo: providerRepo, balanceService: balanceService}
}

// ListProviders handles GET /v1/admin/providers
func (h *ProviderHandler) ListProviders(c *gin.Context) {
	providers, err := h.providerRepo.GetAll(false)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve providers")
		return
	}
	utils.Success(c, 200, "Providers retrieved", providers)
}

// UpdateProvider handles PATCH /v1/admin/providers/:id — active flag plus
// the admin-maintained scoring inputs.
func (h *ProviderHandler) UpdateProvider(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.Error(c, 400, "INVALID_ID", "Invalid provider ID")
		return
	}

	var req struct {
		IsActive         *bool    `json:"isActive"`
		Priority         *int     `json:"priority"`
		ReliabilityScore *float64 `json:"reliabilityScore"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	provider, err := h.providerRepo.GetByID(id)
	if err != nil {
		utils.Error(c, 404, "PROVIDER_NOT_FOUND", "Provider not found")
		return
	}

	if req.IsActive != nil {
		if err := h.providerRepo.UpdateStatus(id, *req.IsActive); err != nil {
			utils.Error(c, 500, "INTERNAL_ERROR", "Failed to update provider status")
			return
		}
	}
	if req.Priority != nil || req.ReliabilityScore != nil {
		priority := provider.Priority
		reliability := provider.ReliabilityScore
		if req.Priority != nil {
			priority = *req.Priority
		}
		if req.ReliabilityScore != nil {
			reliability = *req.ReliabilityScore
		}
		if err := h.providerRepo.UpdateScoring(id, priority, reliability); err != nil {
			utils.Error(c, 500, "INTERNAL_ERROR", "Failed to update provider scoring")
			return
		}
	}

	updated, err := h.providerRepo.GetByID(id)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to reload provider")
		return
	}
	utils.Success(c, 200, "Provider updated", updated)
}

// GetBalances handles GET /v1/admin/providers/balances. Dead providers show
// a zero fallback instead of failing the dashboard.
func (h *ProviderHandler) GetBalances(c *gin.Context) {
	utils.Success(c, 200, "Balances retrieved", h.balanceService.GetBalances(c.Request.Context()))
}

// GetHealth handles GET /v1/admin/providers/health — today's per-provider
// request statistics.
func (h *ProviderHandler) GetHealth(c *gin.Context) {
	health, err := h.providerRepo.GetAllHealthToday()
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve provider health")
		return
	}
	utils.Success(c, 200, "Provider health retrieved", health)
}
