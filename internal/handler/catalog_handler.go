package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simtrek/esim_api/internal/models"
	"github.com/simtrek/esim_api/internal/repository"
	"github.com/simtrek/esim_api/internal/service"
	"github.com/simtrek/esim_api/internal/utils"
)

// CatalogHandler exposes admin-triggered catalogue maintenance.
type CatalogHandler struct {
	syncService *service.CatalogSyncService
	syncLogRepo *repository.SyncLogRepository
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(syncService *service.CatalogSyncService, syncLogRepo *repository.SyncLogRepository) *CatalogHandler {
	return &CatalogHandler{syncService: syncService, syncLogRepo: syncLogRepo}
}

// SyncAll handles POST /v1/admin/catalog/sync
func (h *CatalogHandler) SyncAll(c *gin.Context) {
	if err := h.syncService.SyncAll(c.Request.Context()); err != nil {
		utils.Error(c, 502, "SYNC_FAILED", err.Error())
		return
	}
	utils.Success(c, 200, "Catalog sync completed", nil)
}

// SyncProvider handles POST /v1/admin/catalog/sync/:slug
func (h *CatalogHandler) SyncProvider(c *gin.Context) {
	slug := models.ProviderSlug(c.Param("slug"))
	if err := h.syncService.SyncProvider(c.Request.Context(), slug); err != nil {
		if errors.Is(err, utils.ErrSyncAborted) {
			utils.Error(c, 502, "SYNC_ABORTED", err.Error())
			return
		}
		utils.Error(c, 500, "SYNC_FAILED", err.Error())
		return
	}
	utils.Success(c, 200, "Catalog sync completed", nil)
}

// PruneStale handles POST /v1/admin/catalog/prune/:slug. A normal sync never
// removes products; this deactivates everything one provider has not
// reported for the given number of days (default 7).
func (h *CatalogHandler) PruneStale(c *gin.Context) {
	slug := models.ProviderSlug(c.Param("slug"))
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 {
		utils.Error(c, 400, "INVALID_REQUEST", "days must be a positive integer")
		return
	}

	deactivated, err := h.syncService.PruneStale(slug, time.Now().AddDate(0, 0, -days))
	if err != nil {
		utils.Error(c, 500, "PRUNE_FAILED", err.Error())
		return
	}
	utils.Success(c, 200, "Stale products pruned", gin.H{
		"deactivated": deactivated,
	})
}

// GetSyncLogs handles GET /v1/admin/catalog/sync-logs
func (h *CatalogHandler) GetSyncLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	logs, err := h.syncLogRepo.GetRecent(limit)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve sync logs")
		return
	}
	utils.Success(c, 200, "Sync logs retrieved", logs)
}
