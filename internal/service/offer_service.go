package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/simtrek/esim_api/internal/cache"
	"github.com/simtrek/esim_api/internal/models"
	"github.com/simtrek/esim_api/internal/utils"
)

type offerListStore interface {
	GetByKey(key models.OfferKey) (*models.BestOffer, error)
	List(countryCode string, limit, offset int) ([]models.BestOffer, int, error)
}

// OfferService serves the storefront's read path over the materialized
// best-offer table, plus the real-time checkout quote.
type OfferService struct {
	offerRepo    offerListStore
	settingsRepo pricingSettingsStore
	offerCache   *cache.OfferCache
}

// NewOfferService creates a new OfferService.
func NewOfferService(offerRepo offerListStore, settingsRepo pricingSettingsStore, offerCache *cache.OfferCache) *OfferService {
	return &OfferService{
		offerRepo:    offerRepo,
		settingsRepo: settingsRepo,
		offerCache:   offerCache,
	}
}

// List returns best offers for the storefront, optionally filtered by
// country.
func (s *OfferService) List(countryCode string, limit, offset int) ([]models.BestOffer, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.offerRepo.List(countryCode, limit, offset)
}

// GetBySKU returns the best offer behind one storefront SKU.
func (s *OfferService) GetBySKU(sku string) (*models.BestOffer, error) {
	key, err := models.ParseSKU(sku)
	if err != nil {
		return nil, utils.ErrInvalidSKU
	}
	offer, err := s.offerRepo.GetByKey(key)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, utils.ErrOfferNotFound
	}
	return offer, nil
}

// Quote computes the real-time checkout price for a SKU: margin rules only,
// without the batch rebuild's auto-discount and price-guard steps. Quotes
// are cached briefly so storefront page views stay off the database.
func (s *OfferService) Quote(ctx context.Context, sku string) (*cache.OfferQuote, error) {
	if s.offerCache != nil {
		if quote, err := s.offerCache.Get(ctx, sku); err == nil {
			return quote, nil
		}
	}

	offer, err := s.GetBySKU(sku)
	if err != nil {
		return nil, err
	}
	settings, err := s.settingsRepo.Get()
	if err != nil {
		return nil, err
	}

	quote := &cache.OfferQuote{
		SKU:          sku,
		ProviderSlug: string(offer.ProviderSlug),
		SellPrice:    ApplyMargin(offer.CostPrice, offer.CountryCode, settings),
		Currency:     offer.Currency,
	}
	if s.offerCache != nil {
		if err := s.offerCache.Set(ctx, quote); err != nil {
			log.Warn().Err(err).Str("sku", sku).Msg("Failed to cache offer quote")
		}
	}
	return quote, nil
}
