package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simtrek/esim_api/internal/models"
	"github.com/simtrek/esim_api/pkg/esimgo"
)

func TestNormalizeEsimGoBundle(t *testing.T) {
	tests := []struct {
		name    string
		bundle  esimgo.Bundle
		want    CatalogEntry
		skipped bool
	}{
		{
			name: "structured fields win over name tokens",
			bundle: esimgo.Bundle{
				Name:         "ESIM_5GB_30D_US_V2",
				Description:  "USA 5GB 30 Days",
				Countries:    []string{"us"},
				DataAmountMB: 5120,
				Duration:     "30d",
				Price:        14.50,
				Currency:     "USD",
				Available:    true,
			},
			want: CatalogEntry{
				ProviderProductID: "ESIM_5GB_30D_US_V2",
				Name:              "USA 5GB 30 Days",
				CountryCode:       "US",
				DataAmountMB:      5120,
				ValidityDays:      30,
				CostPrice:         dec("14.5"),
				Currency:          "USD",
				Available:         true,
			},
		},
		{
			name: "everything parsed from name tokens",
			bundle: esimgo.Bundle{
				Name:  "ESIM_5GB_30D_US_V2",
				Price: 14.50,
			},
			want: CatalogEntry{
				ProviderProductID: "ESIM_5GB_30D_US_V2",
				Name:              "ESIM_5GB_30D_US_V2",
				CountryCode:       "US",
				DataAmountMB:      5120,
				ValidityDays:      30,
				CostPrice:         dec("14.5"),
				Currency:          "USD",
			},
		},
		{
			name: "megabyte token",
			bundle: esimgo.Bundle{
				Name:  "ESIM_500MB_7D_JP_V2",
				Price: 3.20,
			},
			want: CatalogEntry{
				ProviderProductID: "ESIM_500MB_7D_JP_V2",
				Name:              "ESIM_500MB_7D_JP_V2",
				CountryCode:       "JP",
				DataAmountMB:      500,
				ValidityDays:      7,
				CostPrice:         dec("3.2"),
				Currency:          "USD",
			},
		},
		{
			name: "unlimited plus token",
			bundle: esimgo.Bundle{
				Name:  "ESIM_ULP_7D_TR_V2",
				Price: 19.00,
			},
			want: CatalogEntry{
				ProviderProductID: "ESIM_ULP_7D_TR_V2",
				Name:              "ESIM_ULP_7D_TR_V2",
				CountryCode:       "TR",
				DataAmountMB:      models.UnlimitedPlusMB,
				ValidityDays:      7,
				CostPrice:         dec("19"),
				Currency:          "USD",
			},
		},
		{
			name: "unlimited essential token",
			bundle: esimgo.Bundle{
				Name:  "ESIM_ULE_14D_GR_V2",
				Price: 12.00,
			},
			want: CatalogEntry{
				ProviderProductID: "ESIM_ULE_14D_GR_V2",
				Name:              "ESIM_ULE_14D_GR_V2",
				CountryCode:       "GR",
				DataAmountMB:      models.UnlimitedEssentialMB,
				ValidityDays:      14,
				CostPrice:         dec("12"),
				Currency:          "USD",
			},
		},
		{
			name: "multiple countries map to MULTI",
			bundle: esimgo.Bundle{
				Name:      "ESIM_3GB_15D_EU_V2",
				Countries: []string{"DE", "FR", "IT"},
				Price:     11.00,
			},
			want: CatalogEntry{
				ProviderProductID: "ESIM_3GB_15D_EU_V2",
				Name:              "ESIM_3GB_15D_EU_V2",
				CountryCode:       models.CountryMulti,
				DataAmountMB:      3072,
				ValidityDays:      15,
				CostPrice:         dec("11"),
				Currency:          "USD",
			},
		},
		{
			name: "global region",
			bundle: esimgo.Bundle{
				Name:   "ESIM_10GB_30D_GLOBAL",
				Region: "Global",
				Price:  39.00,
			},
			want: CatalogEntry{
				ProviderProductID: "ESIM_10GB_30D_GLOBAL",
				Name:              "ESIM_10GB_30D_GLOBAL",
				CountryCode:       models.CountryGlobal,
				DataAmountMB:      10240,
				ValidityDays:      30,
				CostPrice:         dec("39"),
				Currency:          "USD",
			},
		},
		{
			name: "regional bundle without country list",
			bundle: esimgo.Bundle{
				Name:   "ESIM_5GB_30D_NA_V2",
				Region: "North America",
				Price:  18.00,
			},
			want: CatalogEntry{
				ProviderProductID: "ESIM_5GB_30D_NA_V2",
				Name:              "ESIM_5GB_30D_NA_V2",
				CountryCode:       models.CountryMulti,
				DataAmountMB:      5120,
				ValidityDays:      30,
				CostPrice:         dec("18"),
				Currency:          "USD",
			},
		},
		{
			name:    "empty name",
			bundle:  esimgo.Bundle{Price: 5},
			skipped: true,
		},
		{
			name:    "no resolvable country",
			bundle:  esimgo.Bundle{Name: "ESIM_5GB_30D", Price: 5},
			skipped: true,
		},
		{
			name:    "no resolvable data amount",
			bundle:  esimgo.Bundle{Name: "ESIM_MYSTERY_30D_US_V2", Price: 5},
			skipped: true,
		},
		{
			name:    "no resolvable duration",
			bundle:  esimgo.Bundle{Name: "ESIM_5GB_US", Countries: []string{"US"}, Price: 5},
			skipped: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalizeEsimGoBundle(tt.bundle)
			if tt.skipped {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want.ProviderProductID, got.ProviderProductID)
			assert.Equal(t, tt.want.Name, got.Name)
			assert.Equal(t, tt.want.CountryCode, got.CountryCode)
			assert.Equal(t, tt.want.DataAmountMB, got.DataAmountMB)
			assert.Equal(t, tt.want.ValidityDays, got.ValidityDays)
			assert.True(t, got.CostPrice.Equal(tt.want.CostPrice), "price %s", got.CostPrice)
			assert.Equal(t, tt.want.Currency, got.Currency)
			assert.Equal(t, tt.want.Available, got.Available)
		})
	}
}

func TestParseDataToken(t *testing.T) {
	tests := []struct {
		tok  string
		want int
		ok   bool
	}{
		{"5GB", 5120, true},
		{"1GB", 1024, true},
		{"500MB", 500, true},
		{"0GB", 0, false},
		{"GB", 0, false},
		{"V2", 0, false},
		{"30D", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseDataToken(tt.tok)
		assert.Equal(t, tt.ok, ok, tt.tok)
		assert.Equal(t, tt.want, got, tt.tok)
	}
}

func TestParseDurationString(t *testing.T) {
	assert.Equal(t, 30, parseDurationString("30d"))
	assert.Equal(t, 7, parseDurationString(" 7D "))
	assert.Equal(t, 0, parseDurationString(""))
	assert.Equal(t, 0, parseDurationString("month"))
	assert.Equal(t, 0, parseDurationString("-3d"))
}
