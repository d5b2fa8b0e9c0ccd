package repository

import (
	"github.com/jmoiron/sqlx"

	"github.com/simtrek/esim_api/internal/models"
)

// SyncLogRepository persists catalogue sync audit records.
type SyncLogRepository struct {
	db *sqlx.DB
}

// NewSyncLogRepository creates a new SyncLogRepository.
func NewSyncLogRepository(db *sqlx.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Create writes one sync audit record.
func (r *SyncLogRepository) Create(log *models.CatalogSyncLog) error {
	const q = `
		INSERT INTO catalog_sync_logs
			(provider_id, success, product_count, by_country, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	return r.db.QueryRow(q,
		log.ProviderID, log.Success, log.ProductCount, log.ByCountry,
		log.Error, log.StartedAt, log.FinishedAt,
	).Scan(&log.ID)
}

// GetRecent returns the most recent sync records, newest first.
func (r *SyncLogRepository) GetRecent(limit int) ([]models.CatalogSyncLog, error) {
	const q = `SELECT * FROM catalog_sync_logs ORDER BY started_at DESC LIMIT $1`
	var logs []models.CatalogSyncLog
	if err := r.db.Select(&logs, q, limit); err != nil {
		return nil, err
	}
	return logs, nil
}
