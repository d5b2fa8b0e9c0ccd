package models

import (
	"encoding/json"
	"time"
)

// ProviderSlug identifies an upstream eSIM supplier.
type ProviderSlug string

const (
	ProviderEsimAccess ProviderSlug = "esimaccess"
	ProviderEsimGo     ProviderSlug = "esimgo"
)

// Provider represents an upstream eSIM supplier account.
// ReliabilityScore and Priority are admin-maintained; higher values make the
// provider more attractive during offer scoring.
type Provider struct {
	ID               int             `db:"id" json:"id"`
	Slug             ProviderSlug    `db:"slug" json:"slug"`
	Name             string          `db:"name" json:"name"`
	IsActive         bool            `db:"is_active" json:"isActive"`
	Priority         int             `db:"priority" json:"priority"`
	ReliabilityScore float64         `db:"reliability_score" json:"reliabilityScore"`
	Config           json.RawMessage `db:"config" json:"config,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"-"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

// ProviderHealth tracks per-day provider request statistics.
type ProviderHealth struct {
	ID                int        `db:"id" json:"id"`
	ProviderID        int        `db:"provider_id" json:"providerId"`
	TotalRequests     int        `db:"total_requests" json:"totalRequests"`
	SuccessCount      int        `db:"success_count" json:"successCount"`
	FailedCount       int        `db:"failed_count" json:"failedCount"`
	LastSuccessAt     *time.Time `db:"last_success_at" json:"lastSuccessAt,omitempty"`
	LastFailureAt     *time.Time `db:"last_failure_at" json:"lastFailureAt,omitempty"`
	LastFailureReason *string    `db:"last_failure_reason" json:"lastFailureReason,omitempty"`
	AvgResponseTimeMs int        `db:"avg_response_time_ms" json:"avgResponseTimeMs"`
	HealthScore       float64    `db:"health_score" json:"healthScore"`
	Date              time.Time  `db:"date" json:"date"`
	CreatedAt         time.Time  `db:"created_at" json:"-"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`

	// Joined fields
	ProviderSlug ProviderSlug `db:"provider_slug" json:"providerSlug,omitempty"`
	ProviderName string       `db:"provider_name" json:"providerName,omitempty"`
}
