package service

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/simtrek/esim_api/internal/models"
	"github.com/simtrek/esim_api/internal/utils"
)

type settingsStore interface {
	Get() (*models.PricingSettings, error)
	Save(s *models.PricingSettings) error
}

type settingsOfferStore interface {
	GetByKey(key models.OfferKey) (*models.BestOffer, error)
}

// SettingsService guards writes to the global pricing settings.
type SettingsService struct {
	settingsRepo settingsStore
	offerRepo    settingsOfferStore
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(settingsRepo settingsStore, offerRepo settingsOfferStore) *SettingsService {
	return &SettingsService{settingsRepo: settingsRepo, offerRepo: offerRepo}
}

// Get returns the current global settings.
func (s *SettingsService) Get() (*models.PricingSettings, error) {
	return s.settingsRepo.Get()
}

// Update validates and persists new settings. A manual SKU price override
// below the current cost of that SKU's best offer is rejected outright and
// never persisted.
func (s *SettingsService) Update(settings *models.PricingSettings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	for _, override := range settings.SKUOverrides {
		key, err := models.ParseSKU(override.SKU)
		if err != nil {
			return fmt.Errorf("invalid settings: %w", err)
		}
		offer, err := s.offerRepo.GetByKey(key)
		if err != nil {
			return fmt.Errorf("failed to check override %s: %w", override.SKU, err)
		}
		if offer != nil && override.Price.LessThan(offer.CostPrice) {
			return fmt.Errorf("%w: override %s price %s is below cost %s",
				utils.ErrPriceGuardViolation, override.SKU,
				override.Price.String(), offer.CostPrice.String())
		}
	}

	if err := s.settingsRepo.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	log.Info().Msg("Pricing settings updated")
	return nil
}
