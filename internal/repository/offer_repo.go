package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/simtrek/esim_api/internal/models"
)

// OfferRepository handles data access for the materialized best-offer table.
type OfferRepository struct {
	db *sqlx.DB
}

// NewOfferRepository creates a new OfferRepository.
func NewOfferRepository(db *sqlx.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

// ReplaceAll swaps the entire best_offers table for the given rows inside a
// single transaction, so readers never observe a partially rebuilt table.
func (r *OfferRepository) ReplaceAll(offers []models.BestOffer) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM best_offers`); err != nil {
		return err
	}

	const q = `
		INSERT INTO best_offers
			(country_code, data_amount_mb, validity_days, provider_id,
			 provider_product_id, cost_price, sell_price, margin, currency, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`

	stmt, err := tx.Preparex(q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range offers {
		if _, err := stmt.Exec(
			o.CountryCode, o.DataAmountMB, o.ValidityDays, o.ProviderID,
			o.ProviderProductID, o.CostPrice, o.SellPrice, o.Margin, o.Currency,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByKey returns the best offer for one (country, data, validity) key, or
// nil when the key has no offer.
func (r *OfferRepository) GetByKey(key models.OfferKey) (*models.BestOffer, error) {
	const q = `
		SELECT o.*, p.slug AS provider_slug
		FROM best_offers o
		JOIN providers p ON o.provider_id = p.id
		WHERE o.country_code = $1 AND o.data_amount_mb = $2 AND o.validity_days = $3
		LIMIT 1`

	var offer models.BestOffer
	err := r.db.Get(&offer, q, key.CountryCode, key.DataAmountMB, key.ValidityDays)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

// List returns best offers, optionally filtered by country code, ordered for
// a stable storefront listing.
func (r *OfferRepository) List(countryCode string, limit, offset int) ([]models.BestOffer, int, error) {
	countQ := `SELECT COUNT(*) FROM best_offers`
	listQ := `
		SELECT o.*, p.slug AS provider_slug
		FROM best_offers o
		JOIN providers p ON o.provider_id = p.id`

	var args []interface{}
	if countryCode != "" {
		countQ += ` WHERE country_code = $1`
		listQ += ` WHERE o.country_code = $1`
		args = append(args, countryCode)
	}

	var total int
	if err := r.db.Get(&total, countQ, args...); err != nil {
		return nil, 0, err
	}

	listQ += ` ORDER BY o.country_code, o.data_amount_mb, o.validity_days`
	args = append(args, limit, offset)
	if countryCode != "" {
		listQ += ` LIMIT $2 OFFSET $3`
	} else {
		listQ += ` LIMIT $1 OFFSET $2`
	}

	var offers []models.BestOffer
	if err := r.db.Select(&offers, listQ, args...); err != nil {
		return nil, 0, err
	}
	return offers, total, nil
}

// Count returns the number of best-offer rows.
func (r *OfferRepository) Count() (int, error) {
	var n int
	err := r.db.Get(&n, `SELECT COUNT(*) FROM best_offers`)
	return n, err
}
