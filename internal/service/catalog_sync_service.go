package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/simtrek/esim_api/internal/models"
	"github.com/simtrek/esim_api/internal/utils"
)

// upsertConcurrency bounds parallel product upserts during a sync run.
const upsertConcurrency = 16

// catalogProductStore is the product persistence surface the sync needs.
type catalogProductStore interface {
	Upsert(p *models.ProviderProduct) error
	DeactivateMissing(providerID int, syncStartedAt time.Time) (int64, error)
	CountByCountry(providerID int) (models.CountryCountMap, error)
}

// catalogProviderStore resolves provider rows for registered adapters.
type catalogProviderStore interface {
	GetAll(activeOnly bool) ([]models.Provider, error)
	GetBySlug(slug models.ProviderSlug) (*models.Provider, error)
}

// syncLogStore persists sync audit records.
type syncLogStore interface {
	Create(log *models.CatalogSyncLog) error
}

// CatalogSyncService materializes provider catalogues into the local
// provider_products table. A sync run is all-or-nothing per provider: any
// fetch failure aborts that provider's run and the previous snapshot stays
// authoritative.
type CatalogSyncService struct {
	registry     *AdapterRegistry
	providerRepo catalogProviderStore
	productRepo  catalogProductStore
	syncLogRepo  syncLogStore
}

// NewCatalogSyncService creates a new CatalogSyncService.
func NewCatalogSyncService(registry *AdapterRegistry, providerRepo catalogProviderStore, productRepo catalogProductStore, syncLogRepo syncLogStore) *CatalogSyncService {
	return &CatalogSyncService{
		registry:     registry,
		providerRepo: providerRepo,
		productRepo:  productRepo,
		syncLogRepo:  syncLogRepo,
	}
}

// SyncAll syncs every active provider that has a registered adapter.
// Individual provider failures are logged and do not stop the others; the
// returned error is the last failure, if any.
func (s *CatalogSyncService) SyncAll(ctx context.Context) error {
	providers, err := s.providerRepo.GetAll(true)
	if err != nil {
		return fmt.Errorf("failed to load providers: %w", err)
	}

	var lastErr error
	for _, p := range providers {
		if s.registry.Get(p.Slug) == nil {
			continue
		}
		if err := s.SyncProvider(ctx, p.Slug); err != nil {
			log.Error().Err(err).Str("provider", string(p.Slug)).Msg("Catalog sync failed")
			lastErr = err
		}
	}
	return lastErr
}

// SyncProvider syncs one provider's catalogue. The fetch happens before any
// write: when it fails, nothing in the database changes.
func (s *CatalogSyncService) SyncProvider(ctx context.Context, slug models.ProviderSlug) error {
	adapter := s.registry.Get(slug)
	if adapter == nil {
		return fmt.Errorf("%w: no adapter for %s", utils.ErrNoProviderAvailable, slug)
	}
	provider, err := s.providerRepo.GetBySlug(slug)
	if err != nil {
		return fmt.Errorf("failed to load provider %s: %w", slug, err)
	}

	startedAt := time.Now()
	log.Info().Str("provider", string(slug)).Msg("Starting catalog sync")

	entries, err := adapter.FetchCatalog(ctx)
	if err != nil {
		s.writeSyncLog(provider.ID, startedAt, 0, nil, err)
		return fmt.Errorf("%w: %s: %v", utils.ErrSyncAborted, slug, err)
	}
	entries = filterEntries(entries)

	upserted, err := s.upsertEntries(provider.ID, entries)
	if err != nil {
		s.writeSyncLog(provider.ID, startedAt, upserted, nil, err)
		return fmt.Errorf("%w: %s: %v", utils.ErrSyncAborted, slug, err)
	}

	byCountry, err := s.productRepo.CountByCountry(provider.ID)
	if err != nil {
		log.Warn().Err(err).Str("provider", string(slug)).Msg("Failed to count products by country")
		byCountry = nil
	}

	s.writeSyncLog(provider.ID, startedAt, upserted, byCountry, nil)
	log.Info().
		Str("provider", string(slug)).
		Int("products", upserted).
		Dur("took", time.Since(startedAt)).
		Msg("Catalog sync completed")
	return nil
}

// PruneStale deactivates a provider's products that were not touched by any
// sync since the cutoff. A normal refresh is upsert-only; this is a separate
// maintenance operation because order history still references old products.
func (s *CatalogSyncService) PruneStale(slug models.ProviderSlug, cutoff time.Time) (int64, error) {
	provider, err := s.providerRepo.GetBySlug(slug)
	if err != nil {
		return 0, fmt.Errorf("failed to load provider %s: %w", slug, err)
	}
	deactivated, err := s.productRepo.DeactivateMissing(provider.ID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune stale products for %s: %w", slug, err)
	}
	log.Info().
		Str("provider", string(slug)).
		Int64("deactivated", deactivated).
		Time("cutoff", cutoff).
		Msg("Stale products pruned")
	return deactivated, nil
}

// filterEntries drops rows no storefront listing could use: empty names and
// non-positive prices.
func filterEntries(entries []CatalogEntry) []CatalogEntry {
	valid := entries[:0]
	for _, e := range entries {
		if e.Name == "" || !e.CostPrice.IsPositive() {
			continue
		}
		valid = append(valid, e)
	}
	return valid
}

// upsertEntries writes normalized entries with bounded concurrency. The
// first error stops dispatch of further upserts; in-flight ones drain, then
// the run is reported failed.
func (s *CatalogSyncService) upsertEntries(providerID int, entries []CatalogEntry) (int, error) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		count    int
	)
	sem := make(chan struct{}, upsertConcurrency)

	for _, entry := range entries {
		mu.Lock()
		failed := firstErr != nil
		mu.Unlock()
		if failed {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(e CatalogEntry) {
			defer wg.Done()
			defer func() { <-sem }()

			product := &models.ProviderProduct{
				ProviderID:        providerID,
				ProviderProductID: e.ProviderProductID,
				Name:              e.Name,
				CountryCode:       e.CountryCode,
				DataAmountMB:      e.DataAmountMB,
				ValidityDays:      e.ValidityDays,
				CostPrice:         e.CostPrice,
				Currency:          e.Currency,
				IsActive:          e.Available,
			}
			err := s.productRepo.Upsert(product)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			count++
		}(entry)
	}
	wg.Wait()

	return count, firstErr
}

// writeSyncLog records the audit row; audit failures are logged, not fatal.
func (s *CatalogSyncService) writeSyncLog(providerID int, startedAt time.Time, count int, byCountry models.CountryCountMap, runErr error) {
	entry := &models.CatalogSyncLog{
		ProviderID:   providerID,
		Success:      runErr == nil,
		ProductCount: count,
		ByCountry:    byCountry,
		StartedAt:    startedAt,
		FinishedAt:   time.Now(),
	}
	if runErr != nil {
		msg := runErr.Error()
		entry.Error = &msg
	}
	if err := s.syncLogRepo.Create(entry); err != nil {
		log.Error().Err(err).Int("provider_id", providerID).Msg("Failed to write sync log")
	}
}
