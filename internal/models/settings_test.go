package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricingSettingsValidateDefaults(t *testing.T) {
	assert.NoError(t, DefaultPricingSettings().Validate())
}

func TestPricingSettingsValidateRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PricingSettings)
	}{
		{"empty country code", func(s *PricingSettings) {
			s.CountryMargins[""] = MarginRule{}
		}},
		{"bad override sku", func(s *PricingSettings) {
			s.SKUOverrides = SKUOverrideList{{SKU: "not-a-sku", Price: decimal.NewFromInt(10)}}
		}},
		{"negative override price", func(s *PricingSettings) {
			s.SKUOverrides = SKUOverrideList{{SKU: "US-1024MB-7D", Price: decimal.NewFromInt(-1)}}
		}},
		{"discount over 100", func(s *PricingSettings) {
			s.AutoDiscount.Percent = decimal.NewFromInt(120)
		}},
		{"negative guard", func(s *PricingSettings) {
			s.PriceGuard.MinMarginFixed = decimal.NewFromInt(-1)
		}},
		{"negative balance threshold", func(s *PricingSettings) {
			s.LowBalanceThreshold = decimal.NewFromInt(-5)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultPricingSettings()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestSKUOverrideListFind(t *testing.T) {
	list := SKUOverrideList{
		{SKU: "US-1024MB-7D", Price: decimal.NewFromInt(9)},
		{SKU: "TR-UL-7D", Price: decimal.NewFromInt(15)},
	}
	require.NotNil(t, list.Find("TR-UL-7D"))
	assert.True(t, list.Find("TR-UL-7D").Price.Equal(decimal.NewFromInt(15)))
	assert.Nil(t, list.Find("JP-1024MB-7D"))
}

func TestJSONBRoundTrip(t *testing.T) {
	margins := CountryMarginMap{
		"US": {Percent: decimal.NewFromInt(25), Fixed: decimal.NewFromInt(1)},
	}
	value, err := margins.Value()
	require.NoError(t, err)

	var decoded CountryMarginMap
	require.NoError(t, decoded.Scan(value))
	require.Contains(t, decoded, "US")
	assert.True(t, decoded["US"].Percent.Equal(decimal.NewFromInt(25)))

	var fromNull CountryMarginMap
	assert.NoError(t, fromNull.Scan(nil))
}
