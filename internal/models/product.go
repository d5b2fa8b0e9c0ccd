package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Special country codes for packages that are not tied to a single country.
const (
	CountryGlobal = "GLOBAL"
	CountryMulti  = "MULTI"
)

// Sentinel values for DataAmountMB when a package offers unlimited data.
// The tier is encoded in the sentinel so unlimited packages of different
// quality remain distinct (country, data, validity) keys.
const (
	UnlimitedLiteMB      = -1
	UnlimitedEssentialMB = -2
	UnlimitedPlusMB      = -3
)

// ProviderProduct is a single package as offered by one specific provider.
// The natural key is (provider_id, provider_product_id); rows are upserted
// by the catalogue sync and never deleted on a normal refresh.
type ProviderProduct struct {
	ID                int             `db:"id" json:"id"`
	ProviderID        int             `db:"provider_id" json:"providerId"`
	ProviderProductID string          `db:"provider_product_id" json:"providerProductId"`
	Name              string          `db:"name" json:"name"`
	CountryCode       string          `db:"country_code" json:"countryCode"`
	DataAmountMB      int             `db:"data_amount_mb" json:"dataAmountMb"`
	ValidityDays      int             `db:"validity_days" json:"validityDays"`
	CostPrice         decimal.Decimal `db:"cost_price" json:"costPrice"`
	Currency          string          `db:"currency" json:"currency"`
	IsActive          bool            `db:"is_active" json:"isActive"`
	LastSyncAt        *time.Time      `db:"last_sync_at" json:"lastSyncAt,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"-"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`

	// Joined fields from providers
	ProviderSlug     ProviderSlug `db:"provider_slug" json:"providerSlug,omitempty"`
	Priority         int          `db:"priority" json:"priority,omitempty"`
	ReliabilityScore float64      `db:"reliability_score" json:"reliabilityScore,omitempty"`
}

// Key returns the offer key for this product.
func (p ProviderProduct) Key() OfferKey {
	return OfferKey{
		CountryCode:  p.CountryCode,
		DataAmountMB: p.DataAmountMB,
		ValidityDays: p.ValidityDays,
	}
}

// OfferKey is the (country, data amount, validity) triple identifying one
// storefront SKU.
type OfferKey struct {
	CountryCode  string `db:"country_code" json:"countryCode"`
	DataAmountMB int    `db:"data_amount_mb" json:"dataAmountMb"`
	ValidityDays int    `db:"validity_days" json:"validityDays"`
}

// unlimited tier tokens used in storefront SKU strings.
var tierTokens = map[int]string{
	UnlimitedLiteMB:      "UL",
	UnlimitedEssentialMB: "ULE",
	UnlimitedPlusMB:      "ULP",
}

// SKU renders the key as the canonical storefront SKU string, e.g.
// "US-1024MB-7D", "GLOBAL-ULP-30D".
func (k OfferKey) SKU() string {
	data := tierTokens[k.DataAmountMB]
	if data == "" {
		data = fmt.Sprintf("%dMB", k.DataAmountMB)
	}
	return fmt.Sprintf("%s-%s-%dD", k.CountryCode, data, k.ValidityDays)
}

// ParseSKU parses a storefront SKU string back into an OfferKey.
func ParseSKU(sku string) (OfferKey, error) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(sku)), "-")
	if len(parts) != 3 {
		return OfferKey{}, fmt.Errorf("invalid sku %q: want COUNTRY-DATA-DAYS", sku)
	}

	key := OfferKey{CountryCode: parts[0]}
	if key.CountryCode == "" {
		return OfferKey{}, fmt.Errorf("invalid sku %q: empty country code", sku)
	}

	switch parts[1] {
	case "UL":
		key.DataAmountMB = UnlimitedLiteMB
	case "ULE":
		key.DataAmountMB = UnlimitedEssentialMB
	case "ULP":
		key.DataAmountMB = UnlimitedPlusMB
	default:
		mb, err := strconv.Atoi(strings.TrimSuffix(parts[1], "MB"))
		if err != nil || mb <= 0 {
			return OfferKey{}, fmt.Errorf("invalid sku %q: bad data amount %q", sku, parts[1])
		}
		key.DataAmountMB = mb
	}

	days, err := strconv.Atoi(strings.TrimSuffix(parts[2], "D"))
	if err != nil || days <= 0 {
		return OfferKey{}, fmt.Errorf("invalid sku %q: bad validity %q", sku, parts[2])
	}
	key.ValidityDays = days

	return key, nil
}

// DataRank orders data amounts for equivalence comparison. Any unlimited
// tier outranks every finite amount, and higher tiers outrank lower ones.
func DataRank(dataAmountMB int) int64 {
	switch dataAmountMB {
	case UnlimitedLiteMB:
		return 1 << 32
	case UnlimitedEssentialMB:
		return 2 << 32
	case UnlimitedPlusMB:
		return 3 << 32
	default:
		return int64(dataAmountMB)
	}
}
