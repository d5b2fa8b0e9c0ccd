package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SettingsKeyGlobal is the key of the singleton pricing settings row.
const SettingsKeyGlobal = "global"

// MarginRule is a percent/fixed markup pair.
type MarginRule struct {
	Percent decimal.Decimal `json:"percent"`
	Fixed   decimal.Decimal `json:"fixed"`
}

// CountryMarginMap maps a country code to its margin override.
// Stored as a JSONB column.
type CountryMarginMap map[string]MarginRule

// SKUPriceOverride pins the sell price of one storefront SKU.
type SKUPriceOverride struct {
	SKU   string          `json:"sku"`
	Price decimal.Decimal `json:"price"`
}

// SKUOverrideList is the list of admin price overrides. Stored as JSONB.
type SKUOverrideList []SKUPriceOverride

// Find returns the override for a SKU, or nil.
func (l SKUOverrideList) Find(sku string) *SKUPriceOverride {
	for i := range l {
		if l[i].SKU == sku {
			return &l[i]
		}
	}
	return nil
}

// AutoDiscountRule discounts offers whose standard price crosses a threshold.
type AutoDiscountRule struct {
	Enabled   bool            `json:"enabled"`
	Percent   decimal.Decimal `json:"percent"`
	Threshold decimal.Decimal `json:"threshold"`
}

// PriceGuard is the minimum-margin floor applied after every price
// computation: sell >= max(cost + MinMarginFixed, cost * (1 + MinMarginPercent/100)).
type PriceGuard struct {
	MinMarginFixed   decimal.Decimal `json:"minMarginFixed"`
	MinMarginPercent decimal.Decimal `json:"minMarginPercent"`
}

// PricingSettings is the singleton configuration row (key "global") read by
// the pricing engine and the checkout quote path.
type PricingSettings struct {
	Key                  string           `db:"key" json:"-"`
	MarginPercent        decimal.Decimal  `db:"margin_percent" json:"marginPercent"`
	MarginFixed          decimal.Decimal  `db:"margin_fixed" json:"marginFixed"`
	CountryMargins       CountryMarginMap `db:"country_margins" json:"countryMargins"`
	SKUOverrides         SKUOverrideList  `db:"sku_overrides" json:"skuOverrides"`
	AutoDiscount         AutoDiscountRule `db:"auto_discount" json:"autoDiscount"`
	PriceGuard           PriceGuard       `db:"price_guard" json:"priceGuard"`
	LowBalanceThreshold  decimal.Decimal  `db:"low_balance_threshold" json:"lowBalanceThreshold"`
	BalanceAlertsEnabled bool             `db:"balance_alerts_enabled" json:"balanceAlertsEnabled"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updatedAt"`
}

// DefaultPricingSettings returns the settings used when no row exists yet.
func DefaultPricingSettings() *PricingSettings {
	return &PricingSettings{
		Key:                 SettingsKeyGlobal,
		MarginPercent:       decimal.NewFromInt(20),
		MarginFixed:         decimal.Zero,
		CountryMargins:      CountryMarginMap{},
		SKUOverrides:        SKUOverrideList{},
		PriceGuard:          PriceGuard{MinMarginFixed: decimal.Zero, MinMarginPercent: decimal.Zero},
		LowBalanceThreshold: decimal.NewFromInt(50),
	}
}

// Validate checks the shape of the settings after load or before save.
// It rejects obviously broken values; the pricing engine's price guard still
// protects against hostile-but-valid combinations.
func (s *PricingSettings) Validate() error {
	for code := range s.CountryMargins {
		if code == "" {
			return fmt.Errorf("country margin override with empty country code")
		}
	}
	for _, o := range s.SKUOverrides {
		if _, err := ParseSKU(o.SKU); err != nil {
			return fmt.Errorf("sku override: %w", err)
		}
		if o.Price.IsNegative() {
			return fmt.Errorf("sku override %s: negative price", o.SKU)
		}
	}
	if s.AutoDiscount.Percent.IsNegative() || s.AutoDiscount.Percent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("auto discount percent must be within [0, 100]")
	}
	if s.PriceGuard.MinMarginFixed.IsNegative() || s.PriceGuard.MinMarginPercent.IsNegative() {
		return fmt.Errorf("price guard values must be >= 0")
	}
	if s.LowBalanceThreshold.IsNegative() {
		return fmt.Errorf("low balance threshold must be >= 0")
	}
	return nil
}

// jsonbValue serializes v for storage in a JSONB column.
func jsonbValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// jsonbScan deserializes a JSONB column into dst, tolerating NULL.
func jsonbScan(src, dst any) error {
	if src == nil {
		return nil
	}
	switch b := src.(type) {
	case []byte:
		return json.Unmarshal(b, dst)
	case string:
		return json.Unmarshal([]byte(b), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

func (m CountryMarginMap) Value() (driver.Value, error) { return jsonbValue(m) }
func (m *CountryMarginMap) Scan(src any) error          { return jsonbScan(src, m) }

func (l SKUOverrideList) Value() (driver.Value, error) { return jsonbValue(l) }
func (l *SKUOverrideList) Scan(src any) error          { return jsonbScan(src, l) }

func (r AutoDiscountRule) Value() (driver.Value, error) { return jsonbValue(r) }
func (r *AutoDiscountRule) Scan(src any) error          { return jsonbScan(src, r) }

func (g PriceGuard) Value() (driver.Value, error) { return jsonbValue(g) }
func (g *PriceGuard) Scan(src any) error          { return jsonbScan(src, g) }
