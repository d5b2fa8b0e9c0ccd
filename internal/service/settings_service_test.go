package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simtrek/esim_api/internal/models"
	"github.com/simtrek/esim_api/internal/utils"
)

type fakeSettingsWriteStore struct {
	saved *models.PricingSettings
}

func (f *fakeSettingsWriteStore) Get() (*models.PricingSettings, error) {
	return models.DefaultPricingSettings(), nil
}

func (f *fakeSettingsWriteStore) Save(s *models.PricingSettings) error {
	f.saved = s
	return nil
}

func TestUpdateRejectsOverrideBelowCost(t *testing.T) {
	offer := &models.BestOffer{
		CountryCode: "US", DataAmountMB: 1024, ValidityDays: 7,
		CostPrice: dec("10"),
	}
	store := &fakeSettingsWriteStore{}
	svc := NewSettingsService(store, &fakeFulfillOfferStore{offer: offer})

	settings := models.DefaultPricingSettings()
	settings.SKUOverrides = models.SKUOverrideList{{SKU: "US-1024MB-7D", Price: dec("8")}}

	err := svc.Update(settings)

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrPriceGuardViolation)
	assert.Nil(t, store.saved, "rejected settings must never be persisted")
}

func TestUpdateAllowsOverrideAtOrAboveCost(t *testing.T) {
	offer := &models.BestOffer{
		CountryCode: "US", DataAmountMB: 1024, ValidityDays: 7,
		CostPrice: dec("10"),
	}
	store := &fakeSettingsWriteStore{}
	svc := NewSettingsService(store, &fakeFulfillOfferStore{offer: offer})

	settings := models.DefaultPricingSettings()
	settings.SKUOverrides = models.SKUOverrideList{{SKU: "US-1024MB-7D", Price: dec("10")}}

	require.NoError(t, svc.Update(settings))
	assert.NotNil(t, store.saved)
}

func TestUpdateRejectsInvalidShape(t *testing.T) {
	store := &fakeSettingsWriteStore{}
	svc := NewSettingsService(store, &fakeFulfillOfferStore{})

	settings := models.DefaultPricingSettings()
	settings.AutoDiscount.Percent = dec("150")

	err := svc.Update(settings)

	require.Error(t, err)
	assert.Nil(t, store.saved)
}

func TestUpdateSkipsGuardForSKUsWithoutOffers(t *testing.T) {
	// An override for a SKU that has no materialized offer yet is allowed;
	// the rebuild's price guard still protects the final price.
	store := &fakeSettingsWriteStore{}
	svc := NewSettingsService(store, &fakeFulfillOfferStore{})

	settings := models.DefaultPricingSettings()
	settings.SKUOverrides = models.SKUOverrideList{{SKU: "JP-2048MB-14D", Price: dec("1")}}

	require.NoError(t, svc.Update(settings))
	assert.NotNil(t, store.saved)
}
