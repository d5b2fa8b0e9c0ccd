package repository

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/simtrek/esim_api/internal/models"
)

// intArray adapts a []int for use as a Postgres int array parameter.
func intArray(ids []int) pq.Int64Array {
	arr := make(pq.Int64Array, len(ids))
	for i, id := range ids {
		arr[i] = int64(id)
	}
	return arr
}

// ProductRepository handles data access for provider catalogue products.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Upsert inserts or refreshes one catalogue product. The natural key is
// (provider_id, provider_product_id); a refresh updates price and metadata
// and stamps last_sync_at.
func (r *ProductRepository) Upsert(p *models.ProviderProduct) error {
	const q = `
		INSERT INTO provider_products
			(provider_id, provider_product_id, name, country_code, data_amount_mb,
			 validity_days, cost_price, currency, is_active, last_sync_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (provider_id, provider_product_id) DO UPDATE SET
			name = EXCLUDED.name,
			country_code = EXCLUDED.country_code,
			data_amount_mb = EXCLUDED.data_amount_mb,
			validity_days = EXCLUDED.validity_days,
			cost_price = EXCLUDED.cost_price,
			currency = EXCLUDED.currency,
			is_active = EXCLUDED.is_active,
			last_sync_at = NOW(),
			updated_at = NOW()
		RETURNING id`

	return r.db.QueryRow(q,
		p.ProviderID, p.ProviderProductID, p.Name, p.CountryCode, p.DataAmountMB,
		p.ValidityDays, p.CostPrice, p.Currency, p.IsActive,
	).Scan(&p.ID)
}

// ActiveCandidates returns every active product from an active provider,
// joined with the provider's priority and reliability score. This is the
// input set for the pricing rebuild.
func (r *ProductRepository) ActiveCandidates() ([]models.ProviderProduct, error) {
	const q = `
		SELECT pp.*, p.slug AS provider_slug, p.priority, p.reliability_score
		FROM provider_products pp
		JOIN providers p ON pp.provider_id = p.id
		WHERE pp.is_active = true AND p.is_active = true
		ORDER BY pp.country_code, pp.data_amount_mb, pp.validity_days, pp.id`

	var products []models.ProviderProduct
	if err := r.db.Select(&products, q); err != nil {
		return nil, err
	}
	return products, nil
}

// FindByProviderAndKey returns the active product one provider sells for the
// given offer key, or nil when the provider has none.
func (r *ProductRepository) FindByProviderAndKey(providerID int, key models.OfferKey) (*models.ProviderProduct, error) {
	const q = `
		SELECT pp.*, p.slug AS provider_slug, p.priority, p.reliability_score
		FROM provider_products pp
		JOIN providers p ON pp.provider_id = p.id
		WHERE pp.provider_id = $1 AND pp.country_code = $2
		  AND pp.data_amount_mb = $3 AND pp.validity_days = $4
		  AND pp.is_active = true
		ORDER BY pp.cost_price ASC
		LIMIT 1`

	var product models.ProviderProduct
	err := r.db.Get(&product, q, providerID, key.CountryCode, key.DataAmountMB, key.ValidityDays)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// FindEquivalent returns active products from other providers that can stand
// in for the given key during failover: same country, at least as much data
// and at least the same validity, cheapest and highest-priority first.
// Unlimited tiers rank above any finite amount and above lower tiers.
func (r *ProductRepository) FindEquivalent(key models.OfferKey, excludeProviderIDs []int) ([]models.ProviderProduct, error) {
	const q = `
		SELECT pp.*, p.slug AS provider_slug, p.priority, p.reliability_score
		FROM provider_products pp
		JOIN providers p ON pp.provider_id = p.id
		WHERE pp.country_code = $1
		  AND pp.validity_days >= $2
		  AND (CASE pp.data_amount_mb
		         WHEN -1 THEN 4294967296::BIGINT
		         WHEN -2 THEN 8589934592::BIGINT
		         WHEN -3 THEN 12884901888::BIGINT
		         ELSE pp.data_amount_mb::BIGINT
		       END) >= $3
		  AND pp.is_active = true AND p.is_active = true
		  AND pp.provider_id != ALL($4)
		ORDER BY pp.cost_price ASC, p.priority DESC, pp.validity_days ASC`

	var products []models.ProviderProduct
	err := r.db.Select(&products, q,
		key.CountryCode, key.ValidityDays, models.DataRank(key.DataAmountMB),
		intArray(excludeProviderIDs))
	if err != nil {
		return nil, err
	}
	return products, nil
}

// DeactivateMissing marks products from one provider inactive when they were
// not seen by the sync that started at or after the given cutoff. Returns the
// number of rows affected.
func (r *ProductRepository) DeactivateMissing(providerID int, syncStartedAt time.Time) (int64, error) {
	const q = `
		UPDATE provider_products
		SET is_active = false, updated_at = NOW()
		WHERE provider_id = $1 AND is_active = true
		  AND (last_sync_at IS NULL OR last_sync_at < $2)`

	res, err := r.db.Exec(q, providerID, syncStartedAt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountByCountry returns the number of active products per country for one
// provider, used for the sync audit log.
func (r *ProductRepository) CountByCountry(providerID int) (models.CountryCountMap, error) {
	const q = `
		SELECT country_code, COUNT(*) AS n
		FROM provider_products
		WHERE provider_id = $1 AND is_active = true
		GROUP BY country_code`

	rows, err := r.db.Query(q, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := models.CountryCountMap{}
	for rows.Next() {
		var country string
		var n int
		if err := rows.Scan(&country, &n); err != nil {
			return nil, err
		}
		counts[country] = n
	}
	return counts, rows.Err()
}
