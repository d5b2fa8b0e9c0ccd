package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/simtrek/esim_api/internal/models"
)

// SettingsRepository handles the singleton pricing settings row.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the global pricing settings, falling back to defaults when the
// row does not exist yet.
func (r *SettingsRepository) Get() (*models.PricingSettings, error) {
	const q = `SELECT * FROM pricing_settings WHERE key = $1 LIMIT 1`

	var settings models.PricingSettings
	err := r.db.Get(&settings, q, models.SettingsKeyGlobal)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.DefaultPricingSettings(), nil
		}
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Save upserts the global settings row. Callers validate before saving.
func (r *SettingsRepository) Save(s *models.PricingSettings) error {
	const q = `
		INSERT INTO pricing_settings
			(key, margin_percent, margin_fixed, country_margins, sku_overrides,
			 auto_discount, price_guard, low_balance_threshold, balance_alerts_enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (key) DO UPDATE SET
			margin_percent = EXCLUDED.margin_percent,
			margin_fixed = EXCLUDED.margin_fixed,
			country_margins = EXCLUDED.country_margins,
			sku_overrides = EXCLUDED.sku_overrides,
			auto_discount = EXCLUDED.auto_discount,
			price_guard = EXCLUDED.price_guard,
			low_balance_threshold = EXCLUDED.low_balance_threshold,
			balance_alerts_enabled = EXCLUDED.balance_alerts_enabled,
			updated_at = NOW()`

	_, err := r.db.Exec(q,
		models.SettingsKeyGlobal, s.MarginPercent, s.MarginFixed, s.CountryMargins,
		s.SKUOverrides, s.AutoDiscount, s.PriceGuard, s.LowBalanceThreshold,
		s.BalanceAlertsEnabled)
	return err
}
