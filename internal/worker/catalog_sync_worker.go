package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/simtrek/esim_api/internal/service"
)

// CatalogSyncWorker periodically refreshes provider catalogues.
type CatalogSyncWorker struct {
	syncService *service.CatalogSyncService
	interval    time.Duration
}

// NewCatalogSyncWorker constructs a CatalogSyncWorker.
func NewCatalogSyncWorker(syncService *service.CatalogSyncService, interval time.Duration) *CatalogSyncWorker {
	return &CatalogSyncWorker{
		syncService: syncService,
		interval:    interval,
	}
}

// Start begins the periodic sync loop and listens for context cancellation.
func (w *CatalogSyncWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting catalog sync worker")

	// Run immediately on start
	w.run(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Catalog sync worker stopped")
			return
		}
	}
}

func (w *CatalogSyncWorker) run(ctx context.Context) {
	log.Info().Msg("Syncing provider catalogues...")

	start := time.Now()
	if err := w.syncService.SyncAll(ctx); err != nil {
		log.Error().Err(err).Msg("Catalog sync run finished with errors")
		return
	}

	log.Info().Dur("duration", time.Since(start)).Msg("Catalog sync run completed")
}
