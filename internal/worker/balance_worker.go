package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/simtrek/esim_api/internal/service"
)

// BalanceWorker periodically checks provider balances and raises low-balance
// alerts. It never blocks or fails the order path.
type BalanceWorker struct {
	balanceService *service.BalanceService
	interval       time.Duration
}

// NewBalanceWorker constructs a BalanceWorker.
func NewBalanceWorker(balanceService *service.BalanceService, interval time.Duration) *BalanceWorker {
	return &BalanceWorker{
		balanceService: balanceService,
		interval:       interval,
	}
}

// Start begins the periodic balance check loop and listens for context
// cancellation.
func (w *BalanceWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting balance worker")

	w.run(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Balance worker stopped")
			return
		}
	}
}

func (w *BalanceWorker) run(ctx context.Context) {
	if err := w.balanceService.CheckAndAlert(ctx); err != nil {
		log.Error().Err(err).Msg("Balance check failed")
	}
}
