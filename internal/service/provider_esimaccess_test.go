package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simtrek/esim_api/internal/models"
	"github.com/simtrek/esim_api/pkg/esimaccess"
)

func TestNormalizeEsimAccessPackage(t *testing.T) {
	tests := []struct {
		name    string
		pkg     esimaccess.Package
		want    CatalogEntry
		skipped bool
	}{
		{
			name: "standard country package",
			pkg: esimaccess.Package{
				PackageCode:  "USA-1GB-7",
				Name:         "USA 1GB 7 Days",
				LocationCode: "US",
				VolumeMB:     1024,
				DurationDays: 7,
				PriceCents:   420,
				Currency:     "USD",
				Available:    true,
			},
			want: CatalogEntry{
				ProviderProductID: "USA-1GB-7",
				Name:              "USA 1GB 7 Days",
				CountryCode:       "US",
				DataAmountMB:      1024,
				ValidityDays:      7,
				CostPrice:         dec("4.20"),
				Currency:          "USD",
				Available:         true,
			},
		},
		{
			name: "global marker location",
			pkg: esimaccess.Package{
				PackageCode:  "GLB-ULP-30",
				Name:         "Global Unlimited Plus 30 Days",
				LocationCode: "!GL",
				VolumeMB:     0,
				DurationDays: 30,
				PriceCents:   4900,
			},
			want: CatalogEntry{
				ProviderProductID: "GLB-ULP-30",
				Name:              "Global Unlimited Plus 30 Days",
				CountryCode:       models.CountryGlobal,
				DataAmountMB:      models.UnlimitedPlusMB,
				ValidityDays:      30,
				CostPrice:         dec("49.00"),
				Currency:          "USD",
			},
		},
		{
			name: "multi country location",
			pkg: esimaccess.Package{
				PackageCode:  "EU-3GB-15",
				Name:         "Europe 3GB",
				LocationCode: "DE,FR,IT",
				VolumeMB:     3072,
				DurationDays: 15,
				PriceCents:   1200,
			},
			want: CatalogEntry{
				ProviderProductID: "EU-3GB-15",
				Name:              "Europe 3GB",
				CountryCode:       models.CountryMulti,
				DataAmountMB:      3072,
				ValidityDays:      15,
				CostPrice:         dec("12.00"),
				Currency:          "USD",
			},
		},
		{
			name: "name falls back to package code",
			pkg: esimaccess.Package{
				PackageCode:  "TR-UL-7",
				Name:         "",
				LocationCode: "TR",
				VolumeMB:     2048,
				DurationDays: 7,
				PriceCents:   900,
			},
			want: CatalogEntry{
				ProviderProductID: "TR-UL-7",
				Name:              "TR-UL-7",
				CountryCode:       "TR",
				DataAmountMB:      2048,
				ValidityDays:      7,
				CostPrice:         dec("9.00"),
				Currency:          "USD",
			},
		},
		{
			name:    "missing package code",
			pkg:     esimaccess.Package{Name: "x", LocationCode: "US", VolumeMB: 1024, DurationDays: 7},
			skipped: true,
		},
		{
			name:    "missing duration",
			pkg:     esimaccess.Package{PackageCode: "X", Name: "x", LocationCode: "US", VolumeMB: 1024},
			skipped: true,
		},
		{
			name:    "unparseable location",
			pkg:     esimaccess.Package{PackageCode: "X", Name: "x", LocationCode: "EUROPE", VolumeMB: 1024, DurationDays: 7},
			skipped: true,
		},
		{
			name:    "zero volume without unlimited marker",
			pkg:     esimaccess.Package{PackageCode: "X", Name: "Mystery Plan", LocationCode: "US", DurationDays: 7},
			skipped: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalizeEsimAccessPackage(tt.pkg)
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

func TestUnlimitedTierFromName(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"Turkey Unlimited Plus 30 Days", models.UnlimitedPlusMB, true},
		{"Turkey Unlimited Essential 30 Days", models.UnlimitedEssentialMB, true},
		{"Turkey Unlimited 30 Days", models.UnlimitedLiteMB, true},
		{"turkey unlimited plus", models.UnlimitedPlusMB, true},
		{"Turkey 5GB", 0, false},
	}
	for _, tt := range tests {
		got, ok := unlimitedTierFromName(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestParseLPA(t *testing.T) {
	smdp, matchingID, err := parseLPA("LPA:1$rsp.example.com$ABC-123-XYZ")
	require.NoError(t, err)
	assert.Equal(t, "rsp.example.com", smdp)
	assert.Equal(t, "ABC-123-XYZ", matchingID)

	for _, bad := range []string{"", "rsp.example.com$ABC", "LPA:1$only-one-part", "1$a$b"} {
		_, _, err := parseLPA(bad)
		assert.Error(t, err, bad)
	}
}
