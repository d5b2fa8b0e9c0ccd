package repository

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/simtrek/esim_api/internal/models"
)

// ProviderRepository handles data access for upstream eSIM providers.
type ProviderRepository struct {
	db *sqlx.DB
}

// NewProviderRepository creates a new ProviderRepository.
func NewProviderRepository(db *sqlx.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// GetAll returns all providers, optionally only active ones, ordered by
// priority descending (higher priority first).
func (r *ProviderRepository) GetAll(activeOnly bool) ([]models.Provider, error) {
	q := `SELECT * FROM providers`
	if activeOnly {
		q += ` WHERE is_active = true`
	}
	q += ` ORDER BY priority DESC, slug ASC`

	var providers []models.Provider
	if err := r.db.Select(&providers, q); err != nil {
		return nil, err
	}
	return providers, nil
}

// GetBySlug returns a provider by slug.
func (r *ProviderRepository) GetBySlug(slug models.ProviderSlug) (*models.Provider, error) {
	const q = `SELECT * FROM providers WHERE slug = $1 LIMIT 1`
	var p models.Provider
	if err := r.db.Get(&p, q, slug); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID returns a provider by ID.
func (r *ProviderRepository) GetByID(id int) (*models.Provider, error) {
	const q = `SELECT * FROM providers WHERE id = $1 LIMIT 1`
	var p models.Provider
	if err := r.db.Get(&p, q, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStatus updates the provider active flag.
func (r *ProviderRepository) UpdateStatus(id int, isActive bool) error {
	const q = `UPDATE providers SET is_active = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.Exec(q, id, isActive)
	return err
}

// UpdateScoring updates the admin-maintained priority and reliability score.
func (r *ProviderRepository) UpdateScoring(id, priority int, reliabilityScore float64) error {
	const q = `UPDATE providers SET priority = $2, reliability_score = $3, updated_at = NOW() WHERE id = $1`
	_, err := r.db.Exec(q, id, priority, reliabilityScore)
	return err
}

// RecordRequest records one request to a provider for daily health tracking.
func (r *ProviderRepository) RecordRequest(providerID int, success bool, responseTimeMs int, failureReason string) error {
	const q = `
		INSERT INTO provider_health
			(provider_id, total_requests, success_count, failed_count, last_success_at, last_failure_at, last_failure_reason, avg_response_time_ms, date)
		VALUES ($1, 1, $2, $3, $4, $5, $6, $7, CURRENT_DATE)
		ON CONFLICT (provider_id, date) DO UPDATE SET
			total_requests = provider_health.total_requests + 1,
			success_count = provider_health.success_count + $2,
			failed_count = provider_health.failed_count + $3,
			last_success_at = CASE WHEN $2 = 1 THEN NOW() ELSE provider_health.last_success_at END,
			last_failure_at = CASE WHEN $3 = 1 THEN NOW() ELSE provider_health.last_failure_at END,
			last_failure_reason = CASE WHEN $3 = 1 THEN $6 ELSE provider_health.last_failure_reason END,
			avg_response_time_ms = (provider_health.avg_response_time_ms * provider_health.total_requests + $7) / (provider_health.total_requests + 1),
			health_score = (provider_health.success_count + $2)::DECIMAL / (provider_health.total_requests + 1) * 100,
			updated_at = NOW()`

	var successCount, failedCount int
	var lastSuccessAt, lastFailureAt *time.Time
	now := time.Now()

	if success {
		successCount = 1
		lastSuccessAt = &now
	} else {
		failedCount = 1
		lastFailureAt = &now
	}

	_, err := r.db.Exec(q, providerID, successCount, failedCount, lastSuccessAt, lastFailureAt, failureReason, responseTimeMs)
	return err
}

// GetHealth returns today's health stats for a provider, or nil if no
// requests were recorded yet.
func (r *ProviderRepository) GetHealth(providerID int) (*models.ProviderHealth, error) {
	const q = `
		SELECT h.*, p.slug AS provider_slug, p.name AS provider_name
		FROM provider_health h
		JOIN providers p ON h.provider_id = p.id
		WHERE h.provider_id = $1 AND h.date = CURRENT_DATE`

	var health models.ProviderHealth
	if err := r.db.Get(&health, q, providerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &health, nil
}

// GetAllHealthToday returns today's health stats for all providers.
func (r *ProviderRepository) GetAllHealthToday() ([]models.ProviderHealth, error) {
	const q = `
		SELECT h.*, p.slug AS provider_slug, p.name AS provider_name
		FROM provider_health h
		JOIN providers p ON h.provider_id = p.id
		WHERE h.date = CURRENT_DATE
		ORDER BY h.health_score DESC`

	var health []models.ProviderHealth
	if err := r.db.Select(&health, q); err != nil {
		return nil, err
	}
	return health, nil
}
