package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simtrek/esim_api/internal/models"
)

type fakeProductStore struct {
	candidates []models.ProviderProduct
}

func (f *fakeProductStore) ActiveCandidates() ([]models.ProviderProduct, error) {
	return f.candidates, nil
}

type fakeOfferStore struct {
	replaced [][]models.BestOffer
}

func (f *fakeOfferStore) ReplaceAll(offers []models.BestOffer) error {
	f.replaced = append(f.replaced, offers)
	return nil
}

type fakeSettingsStore struct {
	settings *models.PricingSettings
}

func (f *fakeSettingsStore) Get() (*models.PricingSettings, error) {
	return f.settings, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func usProduct(id, providerID int, cost string) models.ProviderProduct {
	return models.ProviderProduct{
		ID:                id,
		ProviderID:        providerID,
		ProviderProductID: "pkg",
		CountryCode:       "US",
		DataAmountMB:      1024,
		ValidityDays:      7,
		CostPrice:         dec(cost),
		Currency:          "USD",
	}
}

func TestComputeSellPriceGlobalMargin(t *testing.T) {
	settings := models.DefaultPricingSettings() // 20% / +0

	sell := ComputeSellPrice(dec("10"), models.OfferKey{CountryCode: "US", DataAmountMB: 1024, ValidityDays: 7}, settings)

	assert.True(t, sell.Equal(dec("12.00")), "got %s", sell)
}

func TestComputeSellPriceCountryOverrideDiscountAndGuard(t *testing.T) {
	// standard = 10*1.05 + 1 = 11.50; discount 50% over threshold 10 = 5.75;
	// guard floors: 10+1 = 11.00 and 10*1.05 = 10.50; final = 11.00.
	settings := models.DefaultPricingSettings()
	settings.CountryMargins["US"] = models.MarginRule{Percent: dec("5"), Fixed: dec("1")}
	settings.AutoDiscount = models.AutoDiscountRule{Enabled: true, Percent: dec("50"), Threshold: dec("10")}
	settings.PriceGuard = models.PriceGuard{MinMarginFixed: dec("1"), MinMarginPercent: dec("5")}

	sell := ComputeSellPrice(dec("10"), models.OfferKey{CountryCode: "US", DataAmountMB: 1024, ValidityDays: 7}, settings)

	assert.True(t, sell.Equal(dec("11.00")), "got %s", sell)
}

func TestComputeSellPriceNeverBelowCost(t *testing.T) {
	// Adversarial settings: negative margin plus full discount.
	settings := models.DefaultPricingSettings()
	settings.MarginPercent = dec("-50")
	settings.AutoDiscount = models.AutoDiscountRule{Enabled: true, Percent: dec("100"), Threshold: dec("0")}

	cost := dec("10")
	sell := ComputeSellPrice(cost, models.OfferKey{CountryCode: "US", DataAmountMB: 1024, ValidityDays: 7}, settings)

	assert.True(t, sell.GreaterThanOrEqual(cost), "sell %s fell below cost %s", sell, cost)
}

func TestComputeSellPriceSKUOverride(t *testing.T) {
	settings := models.DefaultPricingSettings()
	settings.SKUOverrides = models.SKUOverrideList{{SKU: "US-1024MB-7D", Price: dec("25")}}

	sell := ComputeSellPrice(dec("10"), models.OfferKey{CountryCode: "US", DataAmountMB: 1024, ValidityDays: 7}, settings)

	assert.True(t, sell.Equal(dec("25")), "got %s", sell)
}

func TestScoreWeighting(t *testing.T) {
	a := usProduct(1, 1, "10")
	a.ReliabilityScore = 0.9
	a.Priority = 100
	b := usProduct(2, 2, "11")
	b.ReliabilityScore = 0.5
	b.Priority = 80

	// 10*1.0 + 0.9*(-5.0) + 100*(-2.0)
	assert.InDelta(t, -194.5, Score(a), 1e-9)
	// 11*1.0 + 0.5*(-5.0) + 80*(-2.0)
	assert.InDelta(t, -151.5, Score(b), 1e-9)

	offers := ComputeBestOffers([]models.ProviderProduct{a, b}, models.DefaultPricingSettings())
	require.Len(t, offers, 1)
	assert.Equal(t, 1, offers[0].ProviderID, "lower score must win")
}

func TestComputeBestOffersCheapestWinsWithinKey(t *testing.T) {
	cheap := usProduct(1, 1, "8")
	pricey := usProduct(2, 2, "12")

	offers := ComputeBestOffers([]models.ProviderProduct{pricey, cheap}, models.DefaultPricingSettings())

	require.Len(t, offers, 1)
	assert.Equal(t, 1, offers[0].ProviderID)
	assert.True(t, offers[0].CostPrice.Equal(dec("8")))
}

func TestComputeBestOffersTieBreaksByPriorityThenID(t *testing.T) {
	// a: 1 - 10 - 10 = -19, b: 11 - 10 - 20 = -19. Equal scores, so the
	// higher-priority candidate must win.
	a := usProduct(1, 1, "1")
	a.Priority = 5
	a.ReliabilityScore = 2.0
	b := usProduct(2, 2, "11")
	b.Priority = 10
	b.ReliabilityScore = 2.0

	offers := ComputeBestOffers([]models.ProviderProduct{a, b}, models.DefaultPricingSettings())
	require.Len(t, offers, 1)
	assert.Equal(t, 2, offers[0].ProviderID, "higher priority wins a score tie")

	// Fully tied rows fall back to the lowest product id.
	x := usProduct(7, 1, "10")
	y := usProduct(3, 2, "10")
	offers = ComputeBestOffers([]models.ProviderProduct{x, y}, models.DefaultPricingSettings())
	require.Len(t, offers, 1)
	assert.Equal(t, 2, offers[0].ProviderID)
	assert.Equal(t, "pkg", offers[0].ProviderProductID)
}

func TestComputeBestOffersAtMostOneRowPerKey(t *testing.T) {
	candidates := []models.ProviderProduct{
		usProduct(1, 1, "10"),
		usProduct(2, 2, "11"),
		{ID: 3, ProviderID: 1, ProviderProductID: "tr", CountryCode: "TR",
			DataAmountMB: models.UnlimitedPlusMB, ValidityDays: 30, CostPrice: dec("20"), Currency: "USD"},
	}

	offers := ComputeBestOffers(candidates, models.DefaultPricingSettings())

	seen := map[models.OfferKey]bool{}
	for _, o := range offers {
		require.False(t, seen[o.Key()], "duplicate key %v", o.Key())
		seen[o.Key()] = true
	}
	assert.Len(t, offers, 2)
}

func TestComputeBestOffersDeterministic(t *testing.T) {
	candidates := []models.ProviderProduct{
		usProduct(1, 1, "10"),
		usProduct(2, 2, "11"),
		{ID: 3, ProviderID: 2, ProviderProductID: "jp", CountryCode: "JP",
			DataAmountMB: 2048, ValidityDays: 14, CostPrice: dec("7"), Currency: "USD"},
	}
	settings := models.DefaultPricingSettings()

	first := ComputeBestOffers(candidates, settings)
	// Reversed input order must not change the output.
	reversed := []models.ProviderProduct{candidates[2], candidates[1], candidates[0]}
	second := ComputeBestOffers(reversed, settings)

	assert.Equal(t, first, second)
}

func TestRebuildReplacesWholeTable(t *testing.T) {
	products := &fakeProductStore{candidates: []models.ProviderProduct{usProduct(1, 1, "10")}}
	offers := &fakeOfferStore{}
	settings := &fakeSettingsStore{settings: models.DefaultPricingSettings()}

	svc := NewPricingService(products, offers, settings, nil)
	count, err := svc.Rebuild(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, offers.replaced, 1)
	require.Len(t, offers.replaced[0], 1)
	row := offers.replaced[0][0]
	assert.True(t, row.SellPrice.Equal(dec("12.00")))
	assert.True(t, row.Margin.Equal(dec("2.00")))
}

func TestApplyMarginPrecedence(t *testing.T) {
	settings := models.DefaultPricingSettings()
	settings.MarginPercent = dec("10")
	settings.MarginFixed = dec("2")
	settings.CountryMargins["JP"] = models.MarginRule{Percent: dec("50"), Fixed: dec("0")}

	assert.True(t, ApplyMargin(dec("10"), "US", settings).Equal(dec("13.00")))
	assert.True(t, ApplyMargin(dec("10"), "JP", settings).Equal(dec("15.00")))
}
