package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/simtrek/esim_api/internal/service"
	"github.com/simtrek/esim_api/internal/utils"
)

// PricingWorker periodically rebuilds the best-offer table so catalogue and
// settings changes reach the storefront without an admin trigger.
type PricingWorker struct {
	pricingService *service.PricingService
	interval       time.Duration
}

// NewPricingWorker constructs a PricingWorker.
func NewPricingWorker(pricingService *service.PricingService, interval time.Duration) *PricingWorker {
	return &PricingWorker{
		pricingService: pricingService,
		interval:       interval,
	}
}

// Start begins the periodic rebuild loop and listens for context cancellation.
func (w *PricingWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting pricing worker")

	w.run(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Pricing worker stopped")
			return
		}
	}
}

func (w *PricingWorker) run(ctx context.Context) {
	count, err := w.pricingService.Rebuild(ctx)
	if err != nil {
		// An admin-triggered rebuild may hold the lock; skip this tick.
		if errors.Is(err, utils.ErrRebuildInProgress) {
			log.Info().Msg("Pricing rebuild already running, skipping tick")
			return
		}
		log.Error().Err(err).Msg("Failed to rebuild best offers")
		return
	}
	log.Info().Int("offers", count).Msg("Scheduled best offer rebuild completed")
}
