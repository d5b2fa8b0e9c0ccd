package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BestOffer is the materialized winning (provider, price) pair for one
// (country, data amount, validity) key. The whole table is derived by the
// pricing rebuild and is never hand-edited; at most one row exists per key.
type BestOffer struct {
	ID                int             `db:"id" json:"id"`
	CountryCode       string          `db:"country_code" json:"countryCode"`
	DataAmountMB      int             `db:"data_amount_mb" json:"dataAmountMb"`
	ValidityDays      int             `db:"validity_days" json:"validityDays"`
	ProviderID        int             `db:"provider_id" json:"providerId"`
	ProviderProductID string          `db:"provider_product_id" json:"providerProductId"`
	CostPrice         decimal.Decimal `db:"cost_price" json:"costPrice"`
	SellPrice         decimal.Decimal `db:"sell_price" json:"sellPrice"`
	Margin            decimal.Decimal `db:"margin" json:"margin"`
	Currency          string          `db:"currency" json:"currency"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`

	// Joined fields from providers
	ProviderSlug ProviderSlug `db:"provider_slug" json:"providerSlug,omitempty"`
}

// Key returns the offer key for this row.
func (o BestOffer) Key() OfferKey {
	return OfferKey{
		CountryCode:  o.CountryCode,
		DataAmountMB: o.DataAmountMB,
		ValidityDays: o.ValidityDays,
	}
}
